package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/report"
)

type healthStoryBody struct {
	UserID    string            `json:"user_id" binding:"required"`
	DateRange *models.TimeRange `json:"date_range"`
}

// healthStoryHandler handles POST /api/health-story.
func (s *Server) healthStoryHandler(c *gin.Context) {
	var body healthStoryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.report.HealthStory(c.Request.Context(), report.HealthStoryRequest{
		UserID:    body.UserID,
		DateRange: body.DateRange,
	})
	if err != nil {
		respondError(c, fmt.Errorf("generating health story: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"story_id":     result.StoryID,
		"title":        result.Title,
		"subtitle":     result.Subtitle,
		"content":      result.Content,
		"date":         result.GeneratedAt.Format("January 2, 2006"),
		"data_sources": result.DataSources,
		"model":        result.ModelUsed,
		"status":       "success",
	})
}
