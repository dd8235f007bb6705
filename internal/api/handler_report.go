package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/report"
)

type reportAnalyzeBody struct {
	UserID            string             `json:"user_id" binding:"required"`
	Purpose           string             `json:"purpose"`
	Audience          string             `json:"audience"`
	SymptomFocus      bool               `json:"symptom_focus"`
	EmergencyMarkers  bool               `json:"emergency_markers"`
	PhotoSessionCount int                `json:"photo_session_count"`
	Specialty         string             `json:"specialty"`
	TimeRange         *models.TimeRange  `json:"time_range"`
	QuickScanIDs      []string           `json:"quick_scan_ids"`
	DeepDiveIDs       []string           `json:"deep_dive_ids"`
	PhotoSessionIDs   []string           `json:"photo_session_ids"`
}

// reportAnalyzeHandler handles POST /api/report/analyze.
func (s *Server) reportAnalyzeHandler(c *gin.Context) {
	var body reportAnalyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.report.Analyze(c.Request.Context(), report.AnalyzeRequest{
		UserID:            body.UserID,
		Purpose:           body.Purpose,
		Audience:          body.Audience,
		SymptomFocus:      body.SymptomFocus,
		EmergencyMarkers:  body.EmergencyMarkers,
		PhotoSessionCount: body.PhotoSessionCount,
		Specialty:         body.Specialty,
		TimeRange:         body.TimeRange,
		QuickScanIDs:      body.QuickScanIDs,
		DeepDiveIDs:       body.DeepDiveIDs,
		PhotoSessionIDs:   body.PhotoSessionIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis_id":      result.AnalysisID,
		"recommended_type": result.RecommendedType,
		"endpoint":         result.Endpoint,
		"time_range":       result.TimeRange,
	})
}

// reportListHandler handles GET /api/report/list/:user_id.
func (s *Server) reportListHandler(c *gin.Context) {
	reports, err := s.report.ListReports(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// reportGetHandler handles GET /api/report/:id.
func (s *Server) reportGetHandler(c *gin.Context) {
	r, err := s.report.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type reportGenerateBody struct {
	AnalysisID string `json:"analysis_id" binding:"required"`
	UserID     string `json:"user_id"`
	Specialty  string `json:"specialty"`
}

// reportGenerateHandler returns a closure bound to one route's report
// type, un-hyphenating it back to the underscore form the engine and
// Specialties slice use (spec §6.1's "/report/{hyphenated-type}" vs
// §4.14's snake_case report_type).
func (s *Server) reportGenerateHandler(routeType string) gin.HandlerFunc {
	reportType := strings.ReplaceAll(routeType, "-", "_")
	return func(c *gin.Context) {
		var body reportGenerateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}

		result, err := s.report.Generate(c.Request.Context(), report.GenerateRequest{
			AnalysisID: body.AnalysisID,
			UserID:     body.UserID,
			ReportType: reportType,
			Specialty:  body.Specialty,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"report_id":         result.ReportID,
			"report_data":       result.ReportData,
			"executive_summary": result.ExecutiveSummary,
			"confidence_score":  result.ConfidenceScore,
			"model_used":        result.ModelUsed,
		})
	}
}

type doctorNotesBody struct {
	Notes string `json:"notes" binding:"required"`
}

// reportDoctorNotesHandler handles PUT /api/report/:id/doctor-notes.
func (s *Server) reportDoctorNotesHandler(c *gin.Context) {
	var body doctorNotesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.report.DoctorNotes(c.Request.Context(), report.DoctorNotesRequest{
		ReportID: c.Param("id"),
		Notes:    body.Notes,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// reportShareHandler handles POST /api/report/:id/share.
func (s *Server) reportShareHandler(c *gin.Context) {
	result, err := s.report.Share(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_token": result.Token})
}

// reportSharedHandler handles GET /api/report/shared/:token, the public
// doctor-facing view a share link resolves to.
func (s *Server) reportSharedHandler(c *gin.Context) {
	r, err := s.report.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type rateBody struct {
	Rating int `json:"rating" binding:"required"`
}

// reportRateHandler handles POST /api/report/:id/rate.
func (s *Server) reportRateHandler(c *gin.Context) {
	var body rateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.report.Rate(c.Request.Context(), c.Param("id"), body.Rating); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
