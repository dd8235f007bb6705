package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/photo"
)

type photoCreateSessionBody struct {
	UserID        string `json:"user_id" binding:"required"`
	ConditionName string `json:"condition_name" binding:"required"`
	Description   string `json:"description"`
	IsSensitive   bool   `json:"is_sensitive"`
}

// photoCreateSessionHandler handles POST /api/photo-analysis/sessions.
func (s *Server) photoCreateSessionHandler(c *gin.Context) {
	var body photoCreateSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.storage.InsertPhotoSession(c.Request.Context(), models.PhotoSession{
		UserID:        body.UserID,
		ConditionName: body.ConditionName,
		Description:   body.Description,
		IsSensitive:   body.IsSensitive,
	})
	if err != nil {
		respondError(c, fmt.Errorf("creating photo session: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

// photoListSessionsHandler handles GET /api/photo-analysis/sessions.
func (s *Server) photoListSessionsHandler(c *gin.Context) {
	sessions, err := s.storage.ListPhotoSessions(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, fmt.Errorf("listing photo sessions: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// photoGetSessionHandler handles GET /api/photo-analysis/session/:id.
func (s *Server) photoGetSessionHandler(c *gin.Context) {
	session, err := s.storage.GetPhotoSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("loading photo session: %w", err))
		return
	}
	uploads, err := s.storage.ListPhotoUploads(c.Request.Context(), session.ID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo uploads: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "uploads": uploads})
}

// photoDeleteSessionHandler handles DELETE /api/photo-analysis/session/:id.
func (s *Server) photoDeleteSessionHandler(c *gin.Context) {
	if err := s.storage.DeletePhotoSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, fmt.Errorf("deleting photo session: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// photoTimelineHandler handles GET /api/photo-analysis/session/:id/timeline.
func (s *Server) photoTimelineHandler(c *gin.Context) {
	sessionID := c.Param("id")
	uploads, err := s.storage.ListPhotoUploads(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo uploads: %w", err))
		return
	}
	analyses, err := s.storage.ListPhotoAnalyses(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo analyses: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": uploads, "analyses": analyses})
}

// photoProgressionHandler handles GET /api/photo-analysis/session/:id/progression-analysis.
func (s *Server) photoProgressionHandler(c *gin.Context) {
	sessionID := c.Param("id")
	analyses, err := s.storage.ListPhotoAnalyses(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo analyses: %w", err))
		return
	}
	if len(analyses) < 2 {
		c.JSON(http.StatusOK, gin.H{"status": "insufficient_data", "analyses_count": len(analyses)})
		return
	}

	result, err := s.photo.AnalyzeProgression(c.Request.Context(), sessionID, c.Query("metric"))
	if err != nil {
		respondError(c, fmt.Errorf("analyzing progression: %w", err))
		return
	}

	latest := analyses[len(analyses)-1]
	redFlags := 0
	if rf, ok := latest.AnalysisData["red_flags"].([]any); ok {
		redFlags = len(rf)
	}
	suggestion := photo.SuggestFollowUpInterval(*result, analyses, latest, redFlags, c.Query("change_significance"))

	c.JSON(http.StatusOK, gin.H{
		"velocity_per_week":  result.VelocityPerWeek,
		"acceleration":       result.Acceleration,
		"projected_30_day":   result.Projection30Day,
		"overall_trend":      result.OverallTrend,
		"monitoring_phase":   result.MonitoringPhase,
		"risk_indicators":    result.RiskIndicators,
		"overall_risk_level": result.OverallRiskLevel,
		"recommend_derm_review": result.RecommendDermReview,
		"follow_up": gin.H{
			"interval_days": suggestion.IntervalDays,
			"priority":      suggestion.Priority,
			"reasoning":     suggestion.Reasoning,
		},
	})
}

// photoAnalysisHistoryHandler handles GET /api/photo-analysis/session/:id/analysis-history.
func (s *Server) photoAnalysisHistoryHandler(c *gin.Context) {
	analyses, err := s.storage.ListPhotoAnalyses(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("listing photo analyses: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

type photoUploadBody struct {
	UserID          string `json:"user_id" binding:"required"`
	SessionID       string `json:"session_id" binding:"required"`
	ImageBase64     string `json:"image_base64" binding:"required"`
	ContentType     string `json:"content_type"`
	IsFollowUp      bool   `json:"is_followup"`
	FollowUpNotes   string `json:"followup_notes"`
}

// photoUploadHandler handles POST /api/photo-analysis/upload: categorize
// then route to persistent or ephemeral storage per spec §4.11.1.
func (s *Server) photoUploadHandler(c *gin.Context) {
	var body photoUploadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	tier := s.resolveTier(c, body.UserID)

	session, err := s.storage.GetPhotoSession(ctx, body.SessionID)
	if err != nil {
		respondError(c, fmt.Errorf("loading photo session: %w", err))
		return
	}

	cat, err := s.photo.Categorize(ctx, body.UserID, tier, body.ImageBase64)
	if err != nil {
		if err == photo.ErrInappropriate {
			badRequest(c, "photo rejected: inappropriate content")
			return
		}
		respondError(c, fmt.Errorf("categorizing photo: %w", err))
		return
	}
	if cat.RequiresAction == "unclear_modal" {
		c.JSON(http.StatusOK, gin.H{"requires_action": "unclear_modal", "category": cat.Category, "quality_score": cat.QualityScore})
		return
	}
	if cat.Category == models.PhotoCategoryNonMedical {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "category": cat.Category})
		return
	}

	upload, err := s.photo.StoreUpload(ctx, *session, *cat, body.ImageBase64, body.ContentType, body.IsFollowUp, body.FollowUpNotes)
	if err != nil {
		respondError(c, fmt.Errorf("storing photo upload: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_id":     upload.ID,
		"category":      upload.Category,
		"quality_score": cat.QualityScore,
		"is_sensitive":  upload.Category == models.PhotoCategorySensitive,
	})
}

type photoAnalyzeBody struct {
	UserID              string   `json:"user_id"`
	SessionID           string   `json:"session_id" binding:"required"`
	PhotoIDs            []string `json:"photo_ids" binding:"required"`
	ComparisonPhotoIDs  []string `json:"comparison_photo_ids"`
	UserDescription     string   `json:"user_description"`
	TemporaryAnalysis   bool     `json:"temporary_analysis"`
}

// photoAnalyzeHandler handles POST /api/photo-analysis/analyze.
func (s *Server) photoAnalyzeHandler(c *gin.Context) {
	var body photoAnalyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	tier := s.resolveTier(c, body.UserID)
	result, err := s.photo.Analyze(c.Request.Context(), body.UserID, tier, body.SessionID, body.PhotoIDs,
		body.ComparisonPhotoIDs, body.UserDescription, body.TemporaryAnalysis)
	if err != nil {
		respondError(c, fmt.Errorf("analyzing photos: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": result.Analysis})
}

// photoReportHandler handles POST /api/photo-analysis/reports/photo-analysis:
// assembles a session's uploads, analyses, and progression into one
// report payload (spec §4.14's photo_progression data source, scoped
// to a single session rather than the user's full history).
func (s *Server) photoReportHandler(c *gin.Context) {
	var body struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	session, err := s.storage.GetPhotoSession(ctx, body.SessionID)
	if err != nil {
		respondError(c, fmt.Errorf("loading photo session: %w", err))
		return
	}
	analyses, err := s.storage.ListPhotoAnalyses(ctx, body.SessionID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo analyses: %w", err))
		return
	}

	report := gin.H{"session": session, "analyses": analyses}
	if len(analyses) >= 2 {
		if progression, err := s.photo.AnalyzeProgression(ctx, body.SessionID, ""); err == nil {
			report["progression"] = progression
		}
	}
	c.JSON(http.StatusOK, report)
}

type photoFollowUpBody struct {
	UserID             string   `json:"user_id"`
	PhotoIDs           []string `json:"photo_ids" binding:"required"`
	ComparisonPhotoIDs []string `json:"comparison_photo_ids"`
	AutoCompare        bool     `json:"auto_compare"`
	UserDescription    string   `json:"user_description"`
}

// photoFollowUpHandler handles POST /api/photo-analysis/session/:id/follow-up.
// When auto_compare is set and no explicit comparison ids are supplied,
// it runs SmartPhotoBatcher over the session's full history (spec
// §4.11.3) instead of sending every prior photo to the vision model.
func (s *Server) photoFollowUpHandler(c *gin.Context) {
	sessionID := c.Param("id")
	var body photoFollowUpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	tier := s.resolveTier(c, body.UserID)

	comparisonIDs := body.ComparisonPhotoIDs
	var batchInfo gin.H
	if body.AutoCompare && len(comparisonIDs) == 0 {
		batch, err := s.photo.BatchForComparison(ctx, sessionID)
		if err != nil {
			respondError(c, fmt.Errorf("batching comparison photos: %w", err))
			return
		}
		comparisonIDs = make([]string, len(batch.Selected))
		for i, u := range batch.Selected {
			comparisonIDs[i] = u.ID
		}
		batchInfo = gin.H{
			"total_photos":        batch.Total,
			"photos_shown":        batch.Shown,
			"selection_reasoning": batch.SelectionReason,
			"omitted_ranges":      batch.OmittedRanges,
		}
	}

	result, err := s.photo.Analyze(ctx, body.UserID, tier, sessionID, body.PhotoIDs, comparisonIDs, body.UserDescription, false)
	if err != nil {
		respondError(c, fmt.Errorf("analyzing follow-up photos: %w", err))
		return
	}
	resp := gin.H{"analysis": result.Analysis}
	if batchInfo != nil {
		resp["smart_batching_info"] = batchInfo
	}
	c.JSON(http.StatusOK, resp)
}

type photoReminderBody struct {
	SessionID        string `json:"session_id" binding:"required"`
	AnalysisID       string `json:"analysis_id"`
	UserID           string `json:"user_id" binding:"required"`
	Enabled          bool   `json:"enabled"`
	IntervalDays     int    `json:"interval_days"`
	ReminderMethod   string `json:"reminder_method"`
	AIReasoning      string `json:"ai_reasoning"`
}

// photoConfigureReminderHandler handles POST /api/photo-analysis/reminders/configure.
func (s *Server) photoConfigureReminderHandler(c *gin.Context) {
	var body photoReminderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.IntervalDays <= 0 {
		body.IntervalDays = 14
	}
	if body.ReminderMethod == "" {
		body.ReminderMethod = "email"
	}
	next := time.Now().Add(time.Duration(body.IntervalDays) * 24 * time.Hour)
	if err := s.storage.UpsertPhotoReminder(c.Request.Context(), models.PhotoReminder{
		SessionID:        body.SessionID,
		AnalysisID:       body.AnalysisID,
		UserID:           body.UserID,
		Enabled:          body.Enabled,
		IntervalDays:     body.IntervalDays,
		ReminderMethod:   body.ReminderMethod,
		NextReminderDate: next,
		AIReasoning:      body.AIReasoning,
	}); err != nil {
		respondError(c, fmt.Errorf("configuring photo reminder: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "configured", "next_reminder_date": next})
}

type photoMonitoringSuggestBody struct {
	SessionID string `json:"session_id" binding:"required"`
}

// photoMonitoringSuggestHandler handles POST /api/photo-analysis/monitoring/suggest:
// computes the recommended follow-up interval from the session's
// progression without requiring a new upload (spec §4.11.5).
func (s *Server) photoMonitoringSuggestHandler(c *gin.Context) {
	var body photoMonitoringSuggestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	analyses, err := s.storage.ListPhotoAnalyses(ctx, body.SessionID)
	if err != nil {
		respondError(c, fmt.Errorf("listing photo analyses: %w", err))
		return
	}
	if len(analyses) == 0 {
		badRequest(c, "no analyses to base a monitoring suggestion on")
		return
	}

	progression, err := s.photo.AnalyzeProgression(ctx, body.SessionID, "")
	if err != nil {
		respondError(c, fmt.Errorf("analyzing progression: %w", err))
		return
	}
	latest := analyses[len(analyses)-1]
	redFlags := 0
	if rf, ok := latest.AnalysisData["red_flags"].([]any); ok {
		redFlags = len(rf)
	}
	suggestion := photo.SuggestFollowUpInterval(*progression, analyses, latest, redFlags, "")
	c.JSON(http.StatusOK, gin.H{
		"interval_days": suggestion.IntervalDays,
		"priority":      suggestion.Priority,
		"reasoning":     suggestion.Reasoning,
	})
}
