package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/tracking"
)

type trackingSuggestBody struct {
	UserID     string `json:"user_id" binding:"required"`
	SourceType string `json:"source_type" binding:"required"`
	SourceID   string `json:"source_id" binding:"required"`
}

// trackingSuggestHandler handles POST /api/tracking/suggest.
func (s *Server) trackingSuggestHandler(c *gin.Context) {
	var body trackingSuggestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	tier := s.resolveTier(c, body.UserID)
	suggestion, err := s.tracking.Suggest(c.Request.Context(), body.UserID, tracking.SourceType(body.SourceType), body.SourceID, tier)
	if err != nil {
		respondError(c, fmt.Errorf("generating tracking suggestion: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

type trackingConfigureBody struct {
	SuggestionID   string `json:"suggestion_id" binding:"required"`
	MetricName     string `json:"metric_name"`
	YAxisLabel     string `json:"y_axis_label"`
	ShowOnHomepage bool   `json:"show_on_homepage"`
}

// trackingConfigureHandler handles POST /api/tracking/configure.
func (s *Server) trackingConfigureHandler(c *gin.Context) {
	var body trackingConfigureBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	cfg, err := s.tracking.Configure(c.Request.Context(), body.SuggestionID, body.MetricName, body.YAxisLabel, body.ShowOnHomepage)
	if err != nil {
		respondError(c, fmt.Errorf("configuring tracking metric: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"configuration": cfg})
}

// trackingApproveHandler handles POST /api/tracking/approve/:suggestion_id.
func (s *Server) trackingApproveHandler(c *gin.Context) {
	cfg, err := s.tracking.ApproveAll(c.Request.Context(), c.Param("suggestion_id"))
	if err != nil {
		respondError(c, fmt.Errorf("approving tracking suggestion: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"configuration": cfg})
}

type trackingDataBody struct {
	UserID          string  `json:"user_id" binding:"required"`
	ConfigurationID string  `json:"configuration_id" binding:"required"`
	Value           float64 `json:"value" binding:"required"`
	Notes           string  `json:"notes"`
}

// trackingRecordDataHandler handles POST /api/tracking/data.
func (s *Server) trackingRecordDataHandler(c *gin.Context) {
	var body trackingDataBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	point, err := s.tracking.RecordDataPoint(c.Request.Context(), body.UserID, body.ConfigurationID, body.Value, body.Notes, time.Now())
	if err != nil {
		respondError(c, fmt.Errorf("recording tracking data point: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data_point": point})
}

// trackingDashboardHandler handles GET /api/tracking/dashboard.
func (s *Server) trackingDashboardHandler(c *gin.Context) {
	configs, trend, suggestions, err := s.tracking.Dashboard(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, fmt.Errorf("loading tracking dashboard: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configurations":        configs,
		"latest_trend":          trend,
		"pending_suggestions":   suggestions,
	})
}

// trackingChartHandler handles GET /api/tracking/chart/:config_id.
func (s *Server) trackingChartHandler(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().AddDate(0, 0, -days)
	points, stats, err := s.tracking.Chart(c.Request.Context(), c.Param("config_id"), since)
	if err != nil {
		respondError(c, fmt.Errorf("loading tracking chart: %w", err))
		return
	}

	labels := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.RecordedAt.Format("2006-01-02")
		values[i] = p.Value
	}
	c.JSON(http.StatusOK, gin.H{
		"labels": labels,
		"values": values,
		"stats": gin.H{
			"min":   stats.Min,
			"max":   stats.Max,
			"avg":   stats.Avg,
			"count": stats.Count,
		},
	})
}

// trackingConfigurationsHandler handles GET /api/tracking/configurations.
func (s *Server) trackingConfigurationsHandler(c *gin.Context) {
	configs, _, _, err := s.tracking.Dashboard(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, fmt.Errorf("listing tracking configurations: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"configurations": configs})
}

// trackingDataPointsHandler handles GET /api/tracking/data-points/:config_id.
func (s *Server) trackingDataPointsHandler(c *gin.Context) {
	points, stats, err := s.tracking.Chart(c.Request.Context(), c.Param("config_id"), time.Time{})
	if err != nil {
		respondError(c, fmt.Errorf("listing tracking data points: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data_points": points, "stats": gin.H{
		"min": stats.Min, "max": stats.Max, "avg": stats.Avg, "count": stats.Count,
	}})
}

// trackingPastScansHandler handles GET /api/tracking/past-scans: the
// quick-scan picker a user chooses a suggest() source from.
func (s *Server) trackingPastScansHandler(c *gin.Context) {
	scans, err := s.storage.ListQuickScansByUser(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, fmt.Errorf("listing past quick scans: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"quick_scans": scans})
}

// trackingPastDivesHandler handles GET /api/tracking/past-dives: the
// deep-dive picker a user chooses a suggest() source from.
func (s *Server) trackingPastDivesHandler(c *gin.Context) {
	dives, err := s.storage.ListDeepDivesByUser(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, fmt.Errorf("listing past deep dives: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deep_dives": dives})
}
