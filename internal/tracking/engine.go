// Package tracking implements TrackingEngine (spec §4.8): turns a
// completed QuickScan or DeepDive into a single AI-suggested long-term
// metric, lets the user approve and configure it, and records data
// points against it. Grounded on original_source/api/tracking.py's
// suggest/configure/approve/data flow, generalized from Supabase calls
// to internal/storage.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

const suggestSystemPrompt = `You are analyzing medical scan data to suggest ONE most important metric to track long-term.

Consider:
1. The primary condition identified
2. Severity and urgency levels
3. Symptoms that would benefit from tracking
4. What metric would provide the most insight over time

Choose tracking type:
- severity: Track pain/symptom intensity (1-10 scale)
- frequency: Track occurrences per day/week
- duration: Track how long symptoms last
- occurrence: Simple yes/no tracking

Return JSON with this structure:
{
  "metric_name": "Headache Severity",
  "y_axis_label": "Pain Level (1-10)",
  "y_axis_type": "numeric",
  "y_axis_min": 0,
  "y_axis_max": 10,
  "tracking_type": "severity",
  "symptom_keywords": ["headache", "head pain", "migraine"],
  "ai_reasoning": "Tracking severity will help identify triggers and treatment effectiveness",
  "confidence_score": 0.85,
  "suggested_questions": ["Rate your headache pain from 1-10", "Any specific triggers today?"]
}`

// Engine implements the suggest/configure/approve/record operations.
type Engine struct {
	storage *storage.Client
	llm     *llm.Orchestrator
	models  *modelselect.Selector
}

func New(store *storage.Client, orchestrator *llm.Orchestrator, selector *modelselect.Selector) *Engine {
	return &Engine{storage: store, llm: orchestrator, models: selector}
}

// SourceType names which aggregate a suggestion was derived from.
type SourceType string

const (
	SourceQuickScan SourceType = "quick_scan"
	SourceDeepDive  SourceType = "deep_dive"
)

// Suggest analyzes a completed scan/dive and proposes the single most
// valuable metric to track (spec §4.8 suggest()).
func (e *Engine) Suggest(ctx context.Context, userID string, sourceType SourceType, sourceID string, tier models.Tier) (*models.TrackingSuggestion, error) {
	bodyParts, analysis, formData, err := e.loadSource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}

	userMessage := fmt.Sprintf(
		"Analyze this health data and suggest the SINGLE MOST IMPORTANT metric to track:\n\n"+
			"Body Part: %s\nPrimary Condition: %v\nUrgency: %v\nUser Reported: %v\n\n"+
			"What ONE metric would be most valuable to track over time?",
		joinBodyParts(bodyParts), analysis["primaryCondition"], analysis["urgency"], formData["symptoms"])

	candidates := e.models.Models(tier, config.EndpointTracking, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: suggestSystemPrompt},
			{Role: "user", Content: userMessage},
		},
		UserID:      userID,
		Endpoint:    config.EndpointTracking,
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("tracking suggestion call: %w", err)
	}

	parsed, ok := jsonx.Extract(result.Content)
	if !ok {
		return nil, fmt.Errorf("tracking: failed to extract suggestion from model output")
	}
	suggestion, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tracking: suggestion was not a JSON object")
	}

	s := models.TrackingSuggestion{
		UserID:             userID,
		SourceType:         string(sourceType),
		SourceID:           sourceID,
		MetricName:         stringField(suggestion, "metric_name"),
		YAxisLabel:         stringField(suggestion, "y_axis_label"),
		YAxisType:          orDefault(stringField(suggestion, "y_axis_type"), "numeric"),
		YAxisMin:           floatField(suggestion, "y_axis_min", 0),
		YAxisMax:           floatField(suggestion, "y_axis_max", 10),
		TrackingType:       models.TrackingType(orDefault(stringField(suggestion, "tracking_type"), "severity")),
		SymptomKeywords:    stringSliceField(suggestion, "symptom_keywords"),
		SuggestedQuestions: stringSliceField(suggestion, "suggested_questions"),
		AIReasoning:        stringField(suggestion, "ai_reasoning"),
		ConfidenceScore:    floatField(suggestion, "confidence_score", 0.5),
	}

	id, err := e.storage.InsertTrackingSuggestion(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("persist tracking suggestion: %w", err)
	}
	s.ID = id
	return &s, nil
}

func (e *Engine) loadSource(ctx context.Context, sourceType SourceType, sourceID string) (bodyParts []string, analysis, formData map[string]any, err error) {
	switch sourceType {
	case SourceQuickScan:
		scan, err := e.storage.GetQuickScan(ctx, sourceID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading quick scan: %w", err)
		}
		return scan.BodyParts, scan.AnalysisResult, scan.FormData, nil
	case SourceDeepDive:
		session, err := e.storage.GetDeepDiveSession(ctx, sourceID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading deep dive: %w", err)
		}
		return session.BodyParts, session.FinalAnalysis, session.FormData, nil
	default:
		return nil, nil, nil, fmt.Errorf("tracking: invalid source type %q", sourceType)
	}
}

// ApproveAll quick-approves a suggestion with its default values (spec
// §4.8's approve() shortcut, distinct from Configure's user overrides).
func (e *Engine) ApproveAll(ctx context.Context, suggestionID string) (*models.TrackingConfiguration, error) {
	return e.approve(ctx, suggestionID, "", "", true, "approved_all")
}

// Configure creates a configuration with user-chosen overrides for
// metric name and visibility (spec §4.8 configure()).
func (e *Engine) Configure(ctx context.Context, suggestionID, metricName, yAxisLabel string, showOnHomepage bool) (*models.TrackingConfiguration, error) {
	return e.approve(ctx, suggestionID, metricName, yAxisLabel, showOnHomepage, "approved_some")
}

func (e *Engine) approve(ctx context.Context, suggestionID, metricNameOverride, yAxisLabelOverride string, showOnHomepage bool, action string) (*models.TrackingConfiguration, error) {
	suggestion, err := e.storage.GetTrackingSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("loading tracking suggestion: %w", err)
	}

	cfg := models.TrackingConfiguration{
		UserID:         suggestion.UserID,
		SuggestionID:   suggestionID,
		MetricName:     orDefault(metricNameOverride, suggestion.MetricName),
		YAxisLabel:     orDefault(yAxisLabelOverride, suggestion.YAxisLabel),
		YAxisType:      suggestion.YAxisType,
		YAxisMin:       suggestion.YAxisMin,
		YAxisMax:       suggestion.YAxisMax,
		ShowOnHomepage: showOnHomepage,
	}

	id, err := e.storage.InsertTrackingConfiguration(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("persist tracking configuration: %w", err)
	}
	cfg.ID = id

	if err := e.storage.MarkTrackingSuggestionActioned(ctx, suggestionID, action); err != nil {
		return nil, fmt.Errorf("mark suggestion actioned: %w", err)
	}
	return &cfg, nil
}

// RecordDataPoint appends one measurement to a configuration.
func (e *Engine) RecordDataPoint(ctx context.Context, userID, configurationID string, value float64, notes string, recordedAt time.Time) (*models.TrackingDataPoint, error) {
	dp := models.TrackingDataPoint{
		ConfigurationID: configurationID,
		UserID:          userID,
		Value:           value,
		Notes:           notes,
		RecordedAt:      recordedAt,
	}
	id, err := e.storage.InsertTrackingDataPoint(ctx, dp)
	if err != nil {
		return nil, fmt.Errorf("persist data point: %w", err)
	}
	dp.ID = id
	return &dp, nil
}

// Trend classifies the direction between the two most recent data
// points of a configuration (spec §4.8 dashboard()).
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
	TrendUnknown    Trend = ""
)

// Dashboard returns the user's configurations (newest first), one
// trend computed from the two most recent data points of the first of
// them, and the unactioned suggestions created in the last 7 days
// (spec §4.8 dashboard()). The other configurations carry no trend.
func (e *Engine) Dashboard(ctx context.Context, userID string) ([]models.TrackingConfiguration, Trend, []models.TrackingSuggestion, error) {
	configs, err := e.storage.ListTrackingConfigurations(ctx, userID)
	if err != nil {
		return nil, TrendUnknown, nil, fmt.Errorf("listing configurations: %w", err)
	}
	pending, err := e.storage.ListPendingTrackingSuggestions(ctx, userID)
	if err != nil {
		return nil, TrendUnknown, nil, fmt.Errorf("listing suggestions: %w", err)
	}
	cutoff := time.Now().AddDate(0, 0, -7)
	var suggestions []models.TrackingSuggestion
	for _, s := range pending {
		if !s.CreatedAt.Before(cutoff) {
			suggestions = append(suggestions, s)
		}
	}

	var trend Trend = TrendUnknown
	if len(configs) > 0 {
		points, err := e.storage.ListTrackingDataPoints(ctx, configs[0].ID)
		if err == nil && len(points) >= 2 {
			trend = computeTrend(points[len(points)-1].Value, points[len(points)-2].Value)
		}
	}
	return configs, trend, suggestions, nil
}

func computeTrend(latest, previous float64) Trend {
	switch {
	case latest > previous:
		return TrendIncreasing
	case latest < previous:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Chart returns a configuration's data points restricted to the last N
// days, plus min/max/avg statistics (spec §4.8 chart()).
func (e *Engine) Chart(ctx context.Context, configurationID string, since time.Time) ([]models.TrackingDataPoint, ChartStats, error) {
	points, err := e.storage.ListTrackingDataPoints(ctx, configurationID)
	if err != nil {
		return nil, ChartStats{}, fmt.Errorf("listing data points: %w", err)
	}

	var filtered []models.TrackingDataPoint
	for _, p := range points {
		if !p.RecordedAt.Before(since) {
			filtered = append(filtered, p)
		}
	}
	return filtered, computeStats(filtered), nil
}

// ChartStats summarizes a filtered data-point window.
type ChartStats struct {
	Min, Max, Avg float64
	Count         int
}

func computeStats(points []models.TrackingDataPoint) ChartStats {
	if len(points) == 0 {
		return ChartStats{}
	}
	stats := ChartStats{Min: points[0].Value, Max: points[0].Value, Count: len(points)}
	var sum float64
	for _, p := range points {
		if p.Value < stats.Min {
			stats.Min = p.Value
		}
		if p.Value > stats.Max {
			stats.Max = p.Value
		}
		sum += p.Value
	}
	stats.Avg = sum / float64(len(points))
	return stats
}

func joinBodyParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
