package photo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// measurementPoint is one analysis's extracted metric value, ok=false
// when the analysis didn't carry that key_measurements field.
type measurementPoint struct {
	at    time.Time
	value float64
	ok    bool
}

// ProgressionResult is returned from AnalyzeProgression (spec §4.11.4).
type ProgressionResult struct {
	VelocityPerWeek    float64
	Acceleration       string // "increasing" | "decreasing" | "stable"
	Projection30Day    float64
	OverallTrend       string // "growing" | "shrinking" | "stable"
	MonitoringPhase    string // "initial" | "active_monitoring" | "maintenance" | "ongoing"
	RiskIndicators     map[string]bool
	OverallRiskLevel   string // "low" | "moderate" | "high"
	RecommendDermReview bool
}

const (
	trendDeadbandMM  = 0.5
	rapidGrowthPct   = 0.20
	dermReviewSizeMM = 6.0
	// rateComparisonEpsilon guards the acceleration comparison against
	// floating-point noise only; spec §4.11.4 scopes the ±0.5mm deadband
	// to overall-trend classification, not to first-half/second-half
	// rate comparison.
	rateComparisonEpsilon = 1e-9
)

// AnalyzeProgression computes velocity, acceleration, a 30-day
// projection, overall trend, monitoring phase, and risk indicators
// from a session's ordered analyses over the given numeric metric path
// (default key_measurements.size_estimate_mm).
func (p *Pipeline) AnalyzeProgression(ctx context.Context, sessionID string, metricKey string) (*ProgressionResult, error) {
	if metricKey == "" {
		metricKey = "size_estimate_mm"
	}
	analyses, err := p.storage.ListPhotoAnalyses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading analyses for progression: %w", err)
	}

	points := make([]measurementPoint, 0, len(analyses))
	for _, a := range analyses {
		v, ok := measurementValue(a, metricKey)
		points = append(points, measurementPoint{at: a.CreatedAt, value: v, ok: ok})
	}

	result := &ProgressionResult{
		OverallTrend:    "stable",
		MonitoringPhase: monitoringPhase(len(analyses), "stable"),
		RiskIndicators:  map[string]bool{},
	}

	valid := make([]measurementPoint, 0, len(points))
	for _, pt := range points {
		if pt.ok {
			valid = append(valid, pt)
		}
	}
	if len(valid) < 2 {
		result.MonitoringPhase = monitoringPhase(len(analyses), "stable")
		result.RiskIndicators = computeRiskIndicators(analyses)
		result.OverallRiskLevel = riskLevel(result.RiskIndicators)
		return result, nil
	}

	first, last := valid[0], valid[len(valid)-1]
	weeks := last.at.Sub(first.at).Hours() / (24 * 7)
	if weeks <= 0 {
		weeks = 1.0 / 7
	}
	netChange := last.value - first.value
	velocity := netChange / weeks
	result.VelocityPerWeek = velocity
	result.Projection30Day = last.value + (velocity/7)*30

	switch {
	case netChange > trendDeadbandMM:
		result.OverallTrend = "growing"
	case netChange < -trendDeadbandMM:
		result.OverallTrend = "shrinking"
	default:
		result.OverallTrend = "stable"
	}

	if len(valid) >= 3 {
		mid := len(valid) / 2
		firstHalf := valid[:mid+1]
		secondHalf := valid[mid:]
		firstRate := rateOf(firstHalf)
		secondRate := rateOf(secondHalf)
		rateDelta := secondRate - firstRate
		switch {
		case rateDelta > rateComparisonEpsilon:
			result.Acceleration = "increasing"
		case rateDelta < -rateComparisonEpsilon:
			result.Acceleration = "decreasing"
		default:
			result.Acceleration = "stable"
		}
	} else {
		result.Acceleration = "stable"
	}

	result.MonitoringPhase = monitoringPhase(len(analyses), result.OverallTrend)
	result.RiskIndicators = computeRiskIndicators(analyses)
	if rapidGrowthIndicator(valid) {
		result.RiskIndicators["rapid_growth"] = true
	}
	result.OverallRiskLevel = riskLevel(result.RiskIndicators)
	result.RecommendDermReview = last.value >= dermReviewSizeMM

	return result, nil
}

func measurementValue(a models.PhotoAnalysis, metricKey string) (float64, bool) {
	km, ok := a.AnalysisData["key_measurements"].(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := km[metricKey].(float64)
	return v, ok
}

func rateOf(points []measurementPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	first, last := points[0], points[len(points)-1]
	weeks := last.at.Sub(first.at).Hours() / (24 * 7)
	if weeks <= 0 {
		weeks = 1.0 / 7
	}
	return (last.value - first.value) / weeks
}

func rapidGrowthIndicator(points []measurementPoint) bool {
	for i := 1; i < len(points); i++ {
		prev := points[i-1].value
		if prev == 0 {
			continue
		}
		step := (points[i].value - prev) / prev
		if step > rapidGrowthPct {
			return true
		}
	}
	return false
}

func monitoringPhase(analysisCount int, trend string) string {
	switch {
	case analysisCount <= 2:
		return "initial"
	case analysisCount <= 5 && trend != "stable":
		return "active_monitoring"
	case analysisCount > 5 && trend == "stable":
		return "maintenance"
	default:
		return "ongoing"
	}
}

func computeRiskIndicators(analyses []models.PhotoAnalysis) map[string]bool {
	indicators := map[string]bool{
		"rapid_growth":             false,
		"color_darkening":          false,
		"border_irregularity_increase": false,
		"new_colors_appearing":     false,
		"asymmetry_increasing":     false,
	}
	for _, a := range analyses {
		comp := a.Comparison
		if comp == nil {
			continue
		}
		if v, ok := comp["color_darkening"].(bool); ok && v {
			indicators["color_darkening"] = true
		}
		if v, ok := comp["border_irregularity_increase"].(bool); ok && v {
			indicators["border_irregularity_increase"] = true
		}
		if v, ok := comp["new_colors_appearing"].(bool); ok && v {
			indicators["new_colors_appearing"] = true
		}
		if v, ok := comp["asymmetry_increasing"].(bool); ok && v {
			indicators["asymmetry_increasing"] = true
		}
	}
	return indicators
}

func riskLevel(indicators map[string]bool) string {
	count := 0
	for _, v := range indicators {
		if v {
			count++
		}
	}
	switch {
	case count >= 3:
		return "high"
	case count >= 1:
		return "moderate"
	default:
		return "low"
	}
}

// FollowUpSuggestion is returned from SuggestFollowUpInterval.
type FollowUpSuggestion struct {
	IntervalDays int
	Priority     string // "urgent" | "important" | "routine"
	Reasoning    string
}

// recentComparisonTrend reads the last 3 analyses' vision-reported
// comparison.trend field (worsening/improving/stable), defaulting to
// "initial" with fewer than 2 analyses (spec §4.11.5; grounded on
// original_source's analyze_progression_history, which scans
// analyses[-3:] and prefers a "worsening" hit over "improving"). This
// is a distinct signal from ProgressionResult.OverallTrend, which
// classifies net change in a numeric measurement rather than the
// model's own qualitative comparison.
func recentComparisonTrend(analyses []models.PhotoAnalysis) string {
	if len(analyses) < 2 {
		return "initial"
	}
	trend := "stable"
	for _, a := range analyses[maxInt(0, len(analyses)-3):] {
		switch t, _ := a.Comparison["trend"].(string); t {
		case "worsening":
			return "worsening"
		case "improving":
			trend = "improving"
		}
	}
	return trend
}

// uploadRate classifies how frequently photos are being uploaded to a
// session (rapid/moderate/slow) from analysis count over the elapsed
// time span. Distinct from ProgressionResult.Acceleration, which
// compares first-half/second-half rates of a numeric measurement
// rather than upload cadence (spec §4.11.5; grounded on
// original_source's changes_per_week = count / max(days_span/7, 1)).
func uploadRate(analyses []models.PhotoAnalysis) string {
	if len(analyses) < 2 {
		return "unknown"
	}
	daysSpan := analyses[len(analyses)-1].CreatedAt.Sub(analyses[0].CreatedAt).Hours() / 24
	weeks := math.Max(daysSpan/7, 1)
	changesPerWeek := float64(len(analyses)) / weeks
	switch {
	case changesPerWeek > 2:
		return "rapid"
	case changesPerWeek > 0.5:
		return "moderate"
	default:
		return "slow"
	}
}

// SuggestFollowUpInterval computes the recommended days until the next
// photo follow-up (spec §4.11.5). It takes the session's analyses
// (ordered ascending by time) directly rather than deriving the trend
// and rate-of-change signals from ProgressionResult: §4.11.5's
// "worsening/improving/initial" and "rapid/slow" vocabularies name the
// vision model's qualitative comparison.trend and photo-upload
// cadence, not §4.11.4's numeric OverallTrend/Acceleration.
func SuggestFollowUpInterval(progression ProgressionResult, analyses []models.PhotoAnalysis, latestAnalysis models.PhotoAnalysis, redFlagsTotal int, changeSignificance string) FollowUpSuggestion {
	trend := recentComparisonTrend(analyses)
	rate := uploadRate(analyses)

	interval := 14.0
	switch trend {
	case "worsening":
		interval = 3
	case "improving":
		interval = 21
	case "initial":
		interval = 7
	}

	switch rate {
	case "rapid":
		interval = math.Max(interval/2, 2)
	case "slow":
		interval = math.Min(interval*1.5, 30)
	}

	if redFlagsTotal > 0 {
		interval = math.Min(interval, 7)
	}
	switch progression.MonitoringPhase {
	case "active_monitoring":
		interval = math.Min(interval, 7)
	case "maintenance":
		interval = math.Max(interval, 30)
	}

	if optimal, ok := latestAnalysis.AnalysisData["next_monitoring"].(map[string]any); ok {
		if days, ok := optimal["optimal_interval_days"].(float64); ok && days > 0 {
			interval = (interval + days) / 2
		}
	}

	priority := "routine"
	switch {
	case redFlagsTotal > 0 || changeSignificance == "critical":
		priority = "urgent"
	case trend == "worsening" || rate == "rapid":
		priority = "important"
	}

	return FollowUpSuggestion{
		IntervalDays: int(math.Round(interval)),
		Priority:     priority,
		Reasoning:    fmt.Sprintf("trend=%s rate=%s phase=%s red_flags=%d", trend, rate, progression.MonitoringPhase, redFlagsTotal),
	}
}
