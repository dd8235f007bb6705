package photo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func TestRateOfComputesPerWeekVelocity(t *testing.T) {
	points := []measurementPoint{
		{at: day(0), value: 5, ok: true},
		{at: day(14), value: 7, ok: true},
	}
	got := rateOf(points)
	assert.InDelta(t, 1.0, got, 0.1, "expected roughly 1mm/week")
}

func TestRateOfSinglePointIsZero(t *testing.T) {
	got := rateOf([]measurementPoint{{at: day(0), value: 5, ok: true}})
	assert.Equal(t, 0.0, got, "expected 0 for a single point")
}

func TestRapidGrowthIndicatorDetectsLargeStep(t *testing.T) {
	points := []measurementPoint{
		{at: day(0), value: 5, ok: true},
		{at: day(7), value: 7, ok: true}, // +40%
	}
	assert.True(t, rapidGrowthIndicator(points), "expected a 40% jump to trip the rapid-growth indicator")
}

func TestRapidGrowthIndicatorIgnoresSmallStep(t *testing.T) {
	points := []measurementPoint{
		{at: day(0), value: 5, ok: true},
		{at: day(7), value: 5.2, ok: true},
	}
	assert.False(t, rapidGrowthIndicator(points), "expected a 4% change to not trip the rapid-growth indicator")
}

// TestAccelerationDeltaExceedsDeadbandBoundary mirrors spec §8 scenario
// S5's measurements (5mm@t0, 6mm@t0+14d, 8mm@t0+28d): the first-half
// rate is 0.5mm/week and the second-half rate is 1.0mm/week, a delta
// exactly equal to the ±0.5mm trend deadband. Acceleration must not
// reuse that deadband as a second padding term on top of itself, or
// this exact-equality case collapses to "stable" instead of
// "increasing".
func TestAccelerationDeltaExceedsDeadbandBoundary(t *testing.T) {
	firstHalf := []measurementPoint{
		{at: day(0), value: 5, ok: true},
		{at: day(14), value: 6, ok: true},
	}
	secondHalf := []measurementPoint{
		{at: day(14), value: 6, ok: true},
		{at: day(28), value: 8, ok: true},
	}
	firstRate := rateOf(firstHalf)
	secondRate := rateOf(secondHalf)
	assert.InDelta(t, 0.5, firstRate, 0.01)
	assert.InDelta(t, 1.0, secondRate, 0.01)

	delta := secondRate - firstRate
	assert.InDelta(t, trendDeadbandMM, delta, 0.01, "delta should equal the trend deadband exactly at this boundary")
	assert.Greater(t, delta, rateComparisonEpsilon,
		"a delta equal to the trend deadband must still read as accelerating once the deadband isn't double-applied")
}

func TestMonitoringPhaseProgression(t *testing.T) {
	cases := []struct {
		count int
		trend string
		want  string
	}{
		{1, "stable", "initial"},
		{2, "growing", "initial"},
		{3, "growing", "active_monitoring"},
		{5, "shrinking", "active_monitoring"},
		{6, "stable", "maintenance"},
		{6, "growing", "ongoing"},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, monitoringPhase(c.count, c.trend), "monitoringPhase(%d, %q)", c.count, c.trend)
	}
}

func TestComputeRiskIndicatorsAggregatesAcrossAnalyses(t *testing.T) {
	analyses := []models.PhotoAnalysis{
		{Comparison: map[string]any{"color_darkening": true}},
		{Comparison: map[string]any{"asymmetry_increasing": true}},
		{Comparison: nil},
	}
	got := computeRiskIndicators(analyses)
	assert.True(t, got["color_darkening"])
	assert.True(t, got["asymmetry_increasing"])
	assert.False(t, got["border_irregularity_increase"], "expected unset flags to remain false")
	assert.False(t, got["new_colors_appearing"], "expected unset flags to remain false")
}

func TestRiskLevelThresholds(t *testing.T) {
	assert.Equal(t, "low", riskLevel(map[string]bool{}), "expected low risk with no indicators")
	assert.Equal(t, "moderate", riskLevel(map[string]bool{"a": true}), "expected moderate risk with 1 indicator")
	assert.Equal(t, "high", riskLevel(map[string]bool{"a": true, "b": true, "c": true}), "expected high risk with 3 indicators")
}

func TestRecentComparisonTrendPrefersWorseningOverImproving(t *testing.T) {
	analyses := []models.PhotoAnalysis{
		{CreatedAt: day(0), Comparison: map[string]any{"trend": "improving"}},
		{CreatedAt: day(1), Comparison: map[string]any{"trend": "stable"}},
		{CreatedAt: day(2), Comparison: map[string]any{"trend": "worsening"}},
	}
	assert.Equal(t, "worsening", recentComparisonTrend(analyses))
}

func TestRecentComparisonTrendDefaultsToInitialBelowTwoAnalyses(t *testing.T) {
	assert.Equal(t, "initial", recentComparisonTrend([]models.PhotoAnalysis{{}}))
}

func TestUploadRateClassifiesByChangesPerWeek(t *testing.T) {
	rapid := []models.PhotoAnalysis{{CreatedAt: day(0)}, {CreatedAt: day(1)}, {CreatedAt: day(2)}}
	assert.Equal(t, "rapid", uploadRate(rapid), "expected 3 analyses within 2 days to read as rapid uploads")

	slow := []models.PhotoAnalysis{{CreatedAt: day(0)}, {CreatedAt: day(60)}}
	assert.Equal(t, "slow", uploadRate(slow), "expected 2 analyses 60 days apart to read as slow uploads")

	assert.Equal(t, "unknown", uploadRate([]models.PhotoAnalysis{{}}), "expected a single analysis to have an unknown rate")
}

func TestSuggestFollowUpIntervalWorseningRapidIsUrgentWindow(t *testing.T) {
	// Last 3 of 3 analyses within 2 days: recentComparisonTrend reads
	// the final "worsening" comparison, and the upload cadence
	// (3 analyses / 1 week) reads rapid — both distinct from, and
	// here contradicting, a numeric-measurement OverallTrend/
	// Acceleration of "stable"/"stable".
	analyses := []models.PhotoAnalysis{
		{CreatedAt: day(0), Comparison: map[string]any{"trend": "stable"}},
		{CreatedAt: day(1), Comparison: map[string]any{"trend": "stable"}},
		{CreatedAt: day(2), Comparison: map[string]any{"trend": "worsening"}},
	}
	progression := ProgressionResult{OverallTrend: "stable", Acceleration: "stable", MonitoringPhase: "active_monitoring"}
	got := SuggestFollowUpInterval(progression, analyses, models.PhotoAnalysis{}, 0, "moderate")
	assert.LessOrEqual(t, got.IntervalDays, 7, "expected a tight follow-up window for worsening+rapid")
	assert.Equal(t, "important", got.Priority)
}

func TestSuggestFollowUpIntervalRedFlagsForceUrgentAndShortWindow(t *testing.T) {
	progression := ProgressionResult{OverallTrend: "stable", MonitoringPhase: "active_monitoring"}
	got := SuggestFollowUpInterval(progression, []models.PhotoAnalysis{{}}, models.PhotoAnalysis{}, 2, "moderate")
	assert.Equal(t, "urgent", got.Priority, "expected urgent priority with active red flags")
	assert.LessOrEqual(t, got.IntervalDays, 7, "expected red flags to cap the interval at 7 days")
}

func TestSuggestFollowUpIntervalMaintenanceImprovingIsRoutine(t *testing.T) {
	// recentComparisonTrend="improving" (distinct from the numeric
	// OverallTrend="shrinking" passed via progression) and a moderate
	// upload cadence together give a long, routine follow-up window.
	analyses := []models.PhotoAnalysis{
		{CreatedAt: day(0), Comparison: map[string]any{"trend": "stable"}},
		{CreatedAt: day(14), Comparison: map[string]any{"trend": "improving"}},
	}
	progression := ProgressionResult{OverallTrend: "shrinking", MonitoringPhase: "maintenance"}
	got := SuggestFollowUpInterval(progression, analyses, models.PhotoAnalysis{}, 0, "minor")
	assert.Equal(t, "routine", got.Priority, "expected routine priority for an improving, maintained lesion")
	assert.GreaterOrEqual(t, got.IntervalDays, 21, "expected a long follow-up window")
}
