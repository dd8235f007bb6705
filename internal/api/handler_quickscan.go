package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/models"
)

type quickScanRunBody struct {
	UserID            string         `json:"user_id"`
	BodyParts         []string       `json:"body_parts" binding:"required"`
	PartsRelationship string         `json:"parts_relationship"`
	FormData          map[string]any `json:"form_data"`
}

// quickScanRunHandler handles POST /api/quick-scan.
func (s *Server) quickScanRunHandler(c *gin.Context) {
	var body quickScanRunBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	tier := s.resolveTier(c, body.UserID)
	result, err := s.quickscan.Run(c.Request.Context(), body.UserID, tier, body.BodyParts, body.PartsRelationship, body.FormData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scan_id":    result.ScanID,
		"analysis":   result.Analysis,
		"confidence": result.Confidence,
		"urgency":    result.Urgency,
		"model":      result.Model,
	})
}

type scanEscalationBody struct {
	ScanID string `json:"scan_id" binding:"required"`
	UserID string `json:"user_id"`
}

// quickScanThinkHarderHandler handles POST /api/quick-scan/think-harder
// and /api/quick-scan/think-harder-o4.
func (s *Server) quickScanThinkHarderHandler(c *gin.Context) {
	var body scanEscalationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.quickscan.ThinkHarder(c.Request.Context(), body.ScanID, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, escalationResponse(result.Analysis, result.OriginalConfidence, result.EnhancedConfidence, result.ConfidenceImprovement, result.Model))
}

// quickScanUltraThinkHandler handles POST /api/quick-scan/ultra-think.
func (s *Server) quickScanUltraThinkHandler(c *gin.Context) {
	var body scanEscalationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.quickscan.UltraThink(c.Request.Context(), body.ScanID, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, escalationResponse(result.Analysis, result.OriginalConfidence, result.EnhancedConfidence, result.ConfidenceImprovement, result.Model))
}

func escalationResponse(analysis map[string]any, original, enhanced, improvement float64, model string) gin.H {
	return gin.H{
		"analysis":               analysis,
		"original_confidence":    original,
		"enhanced_confidence":    enhanced,
		"confidence_improvement": improvement,
		"model":                  model,
	}
}

type quickScanAskMoreBody struct {
	ScanID           string  `json:"scan_id" binding:"required"`
	UserID           string  `json:"user_id"`
	TargetConfidence float64 `json:"target_confidence"`
	MaxQuestions     int     `json:"max_questions"`
}

// quickScanAskMoreHandler handles POST /api/quick-scan/ask-more.
func (s *Server) quickScanAskMoreHandler(c *gin.Context) {
	var body quickScanAskMoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.TargetConfidence <= 0 {
		body.TargetConfidence = 85
	}

	result, err := s.quickscan.AskMore(c.Request.Context(), body.ScanID, body.TargetConfidence, body.MaxQuestions, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"already_met":              result.AlreadyMet,
		"limit_reached":            result.LimitReached,
		"question":                 result.Question,
		"question_number":          result.QuestionNumber,
		"current_confidence":       result.CurrentConfidence,
		"target_confidence":        result.TargetConfidence,
		"estimated_questions_left": result.EstimatedQuestionsLeft,
	})
}

// resolveTier looks up the caller's tier, defaulting to free for
// anonymous requests (empty userID).
func (s *Server) resolveTier(c *gin.Context, userID string) models.Tier {
	if userID == "" {
		return models.TierFree
	}
	return s.tiers.Resolve(c.Request.Context(), userID)
}
