package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type deepDiveStartBody struct {
	UserID    string         `json:"user_id"`
	BodyParts []string       `json:"body_parts" binding:"required"`
	FormData  map[string]any `json:"form_data"`
}

// deepDiveStartHandler handles POST /api/deep-dive/start.
func (s *Server) deepDiveStartHandler(c *gin.Context) {
	var body deepDiveStartBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.Start(c.Request.Context(), body.UserID, s.resolveTier(c, body.UserID), body.BodyParts, body.FormData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":         result.SessionID,
		"question":           result.Question,
		"question_number":    result.QuestionNumber,
		"question_type":      result.QuestionType,
		"estimated_questions": result.EstimatedQuestions,
	})
}

type deepDiveContinueBody struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id"`
	Answer    string `json:"answer" binding:"required"`
}

// deepDiveContinueHandler handles POST /api/deep-dive/continue.
func (s *Server) deepDiveContinueHandler(c *gin.Context) {
	var body deepDiveContinueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.Continue(c.Request.Context(), body.SessionID, body.Answer, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	var question *string
	if result.Question != "" {
		question = &result.Question
	}
	c.JSON(http.StatusOK, gin.H{
		"ready_for_analysis":  result.ReadyForAnalysis,
		"question":            question,
		"question_number":     result.QuestionNumber,
		"is_final_question":   result.IsFinalQuestion,
		"current_confidence":  result.CurrentConfidence,
		"questions_remaining": result.QuestionsRemaining,
		"questions_completed": result.QuestionsCompleted,
		"reason":              result.Reason,
	})
}

type deepDiveCompleteBody struct {
	SessionID   string `json:"session_id" binding:"required"`
	UserID      string `json:"user_id"`
	FinalAnswer string `json:"final_answer"`
}

// deepDiveCompleteHandler handles POST /api/deep-dive/complete.
func (s *Server) deepDiveCompleteHandler(c *gin.Context) {
	var body deepDiveCompleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.Complete(c.Request.Context(), body.SessionID, body.FinalAnswer, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": result.Analysis, "confidence": result.Confidence})
}

type deepDiveEscalationBody struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id"`
}

// deepDiveThinkHarderHandler handles POST /api/deep-dive/think-harder.
func (s *Server) deepDiveThinkHarderHandler(c *gin.Context) {
	var body deepDiveEscalationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.ThinkHarder(c.Request.Context(), body.SessionID, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":    result.Analysis,
		"confidence":  result.Confidence,
		"improvement": result.Improvement,
	})
}

// deepDiveUltraThinkHandler handles POST /api/deep-dive/ultra-think.
func (s *Server) deepDiveUltraThinkHandler(c *gin.Context) {
	var body deepDiveEscalationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.UltraThink(c.Request.Context(), body.SessionID, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": result.Analysis, "confidence": result.Confidence})
}

type deepDiveAskMoreBody struct {
	SessionID        string  `json:"session_id" binding:"required"`
	UserID           string  `json:"user_id"`
	TargetConfidence float64 `json:"target_confidence"`
}

// deepDiveAskMoreHandler handles POST /api/deep-dive/ask-more.
func (s *Server) deepDiveAskMoreHandler(c *gin.Context) {
	var body deepDiveAskMoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.deepdive.AskMore(c.Request.Context(), body.SessionID, body.TargetConfidence, s.resolveTier(c, body.UserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"should_finalize": result.ShouldFinalize,
		"question":        result.Question,
		"question_number": result.QuestionNumber,
		"max_questions":   result.MaxQuestions,
	})
}

// deepDiveDebugSessionHandler handles GET /api/debug/session/:id, a
// raw session dump for troubleshooting a stuck diagnostic dialogue.
func (s *Server) deepDiveDebugSessionHandler(c *gin.Context) {
	session, err := s.storage.GetDeepDiveSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
