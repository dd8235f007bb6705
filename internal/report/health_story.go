package report

import (
	"context"
	"fmt"
	"time"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/models"
)

// HealthStoryRequest carries the inputs to HealthStory.
type HealthStoryRequest struct {
	UserID    string
	DateRange *models.TimeRange // defaults to the trailing 7 days
}

// HealthStoryResult is HealthStory's return shape.
type HealthStoryResult struct {
	StoryID     string
	Title       string
	Subtitle    string
	Content     string
	GeneratedAt time.Time
	DataSources map[string]int
	ModelUsed   string
}

const healthStorySystemPrompt = `You are a creative health journalist analyzing patterns and trends to create an engaging narrative health story with a compelling title.

Return JSON: {"title": string, "subtitle": string, "content": string}.

Title: creative, engaging, under 8 words, tied to the week's dominant health pattern.
Subtitle: a clearer, more grounded complement to the title.
Content: 2-3 warm, second-person paragraphs weaving in specific percentages and metrics naturally. Stay grounded in the data; do not give medical advice, mention app features or technical terms, or overuse metaphors.`

// HealthStory generates a narrative weekly digest from a user's quick
// scans, deep dives, conversations, and tracking data (spec §6.1's
// POST /api/health-story, supplementing the distilled spec from
// original_source's generate_health_story).
func (e *Engine) HealthStory(ctx context.Context, req HealthStoryRequest) (*HealthStoryResult, error) {
	dateRange := models.TimeRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()}
	if req.DateRange != nil {
		dateRange = *req.DateRange
	}

	data, err := e.gatherComprehensive(ctx, &models.ReportAnalysis{
		UserID: req.UserID,
		ReportConfig: map[string]any{
			"time_range": map[string]any{"start": dateRange.Start, "end": dateRange.End},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gathering health story data: %w", err)
	}

	summary := data.summarize()

	candidates := e.models.Models(models.TierPro, config.EndpointHealthAnalysis, false)
	if len(candidates) == 0 {
		candidates = e.models.Models(models.TierFree, config.EndpointHealthAnalysis, false)
	}
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: healthStorySystemPrompt},
			{Role: "user", Content: "Based on the following health data from the past week, generate a health story:\n\n" + summary},
		},
		UserID:      req.UserID,
		Endpoint:    config.EndpointHealthAnalysis,
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("health story generation call: %w", err)
	}

	title, subtitle, content := "Your Health Patterns This Week", "An analysis of your wellness trends", result.Content
	if obj, ok := jsonx.AsObject(result.Content); ok {
		title = stringField(obj, "title", title)
		subtitle = stringField(obj, "subtitle", subtitle)
		content = stringField(obj, "content", "Unable to generate health story at this time.")
	}

	sources := map[string]int{
		"quick_scans":       len(data.QuickScans),
		"deep_dives":        len(data.DeepDives),
		"oracle_chats":      len(data.Conversations),
		"tracking_data_points": len(data.TrackingPoints),
	}

	id, err := e.storage.InsertHealthStory(ctx, models.HealthStory{
		UserID:          req.UserID,
		Title:           title,
		Subtitle:        subtitle,
		StoryText:       content,
		DateRangeStart:  dateRange.Start,
		DateRangeEnd:    dateRange.End,
		DataSources:     sources,
		GenerationModel: result.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("persisting health story: %w", err)
	}

	return &HealthStoryResult{
		StoryID:     id,
		Title:       title,
		Subtitle:    subtitle,
		Content:     content,
		GeneratedAt: time.Now(),
		DataSources: sources,
		ModelUsed:   result.Model,
	}, nil
}
