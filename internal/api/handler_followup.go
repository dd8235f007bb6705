package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/followup"
)

// followUpQuestionsHandler handles GET /api/follow-up/questions/:assessment_id.
func (s *Server) followUpQuestionsHandler(c *gin.Context) {
	assessmentType := c.Query("assessment_type")
	if assessmentType == "" {
		assessmentType = "quick_scan"
	}
	userID := c.Query("user_id")

	result, err := s.followup.Questions(c.Request.Context(), c.Param("assessment_id"), assessmentType, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chain_id":            result.ChainID,
		"base_questions":      result.BaseQuestions,
		"ai_questions":        result.AIQuestions,
		"days_since_original": result.DaysSinceOriginal,
		"days_since_last":     result.DaysSinceLast,
	})
}

type followUpSubmitBody struct {
	AssessmentID   string         `json:"assessment_id" binding:"required"`
	AssessmentType string         `json:"assessment_type"`
	ChainID        string         `json:"chain_id"`
	UserID         string         `json:"user_id"`
	Responses      map[string]any `json:"responses"`
}

// followUpSubmitHandler handles POST /api/follow-up/submit.
func (s *Server) followUpSubmitHandler(c *gin.Context) {
	var body followUpSubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.AssessmentType == "" {
		body.AssessmentType = "quick_scan"
	}

	result, err := s.followup.Submit(c.Request.Context(), followup.SubmitRequest{
		AssessmentID:   body.AssessmentID,
		AssessmentType: body.AssessmentType,
		ChainID:        body.ChainID,
		UserID:         body.UserID,
		Responses:      body.Responses,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"follow_up_id":         result.FollowUpID,
		"chain_id":             result.ChainID,
		"primary_assessment":   result.PrimaryAssessment,
		"confidence_score":     result.ConfidenceScore,
		"confidence_change":    result.ConfidenceChange,
		"assessment_evolution": result.AssessmentEvolution,
		"patterns":             result.Patterns,
		"milestones":           result.Milestones,
		"events":               result.Events,
	})
}

// followUpChainHandler handles GET /api/follow-up/chain/:assessment_id.
func (s *Server) followUpChainHandler(c *gin.Context) {
	chain, err := s.followup.Chain(c.Request.Context(), c.Param("assessment_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chain, "length": len(chain)})
}

type explainBody struct {
	UserID     string `json:"user_id"`
	Assessment string `json:"assessment" binding:"required"`
}

// followUpExplainHandler handles POST /api/follow-up/medical-visit/explain.
func (s *Server) followUpExplainHandler(c *gin.Context) {
	var body explainBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	plain, err := s.followup.ExplainMedicalVisit(c.Request.Context(), body.UserID, body.Assessment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": plain})
}
