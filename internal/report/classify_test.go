package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		req  AnalyzeRequest
		want string
	}{
		{"emergency markers win over everything", AnalyzeRequest{EmergencyMarkers: true, Purpose: "annual", PhotoSessionCount: 5}, "urgent_triage"},
		{"annual purpose beats photo count", AnalyzeRequest{Purpose: "annual", PhotoSessionCount: 5}, "annual_summary"},
		{"3+ photo sessions beats symptom focus", AnalyzeRequest{PhotoSessionCount: 3, SymptomFocus: true}, "photo_progression"},
		{"symptom focus beats specialist audience", AnalyzeRequest{SymptomFocus: true, Audience: "specialist"}, "symptom_timeline"},
		{"specialist audience alone", AnalyzeRequest{Audience: "specialist"}, "specialist_focused"},
		{"default comprehensive", AnalyzeRequest{}, "comprehensive"},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, classify(c.req), "%s", c.name)
	}
}

func TestClassifyPhotoCountBelowThreshold(t *testing.T) {
	assert.Equal(t, "comprehensive", classify(AnalyzeRequest{PhotoSessionCount: 2}),
		"expected 2 photo sessions to not trigger photo_progression")
}

func TestDefaultTimeRangeUsesSuppliedRangeWhenPresent(t *testing.T) {
	supplied := &models.TimeRange{}
	got := defaultTimeRange("urgent_triage", supplied)
	assert.Equal(t, *supplied, got, "expected supplied range to pass through unchanged")
}

func TestDefaultTimeRangeSpanByType(t *testing.T) {
	cases := map[string]float64{
		"urgent_triage":     7,
		"annual_summary":    365,
		"photo_progression": 90,
		"symptom_timeline":  90,
		"comprehensive":     30,
	}
	for reportType, wantDays := range cases {
		got := defaultTimeRange(reportType, nil)
		days := got.End.Sub(got.Start).Hours() / 24
		assert.InDeltaf(t, wantDays, days, 0.01, "%s: expected span of %v days", reportType, wantDays)
	}
}

func TestDataSourcesForNarrowsBySpecialtyType(t *testing.T) {
	got := dataSourcesFor("photo_progression")
	require.Len(t, got, 1)
	assert.Equal(t, "photo_analyses", got[0])

	assert.Len(t, dataSourcesFor("symptom_timeline"), 3)

	comprehensive := dataSourcesFor("comprehensive")
	assert.GreaterOrEqual(t, len(comprehensive), 5, "expected comprehensive to pull from every source")
}

func TestIsSpecialty(t *testing.T) {
	assert.True(t, isSpecialty("cardiology"), "expected cardiology to be a recognized specialty")
	assert.False(t, isSpecialty("comprehensive"), "expected comprehensive to not be a specialty report type")
}

func TestTimeFromAnyAcceptsTimeAndRFC3339String(t *testing.T) {
	// ReportConfig["start"]/["end"] are time.Time in the in-memory
	// Analyze() path but come back as RFC3339 strings after a JSON
	// round-trip through storage (GetReportAnalysis); timeFromAny must
	// accept both shapes so the classify()-selected window survives
	// the round-trip instead of silently falling back to the 30-day
	// default.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, ok := timeFromAny(now)
	require.True(t, ok)
	assert.True(t, now.Equal(got))

	got, ok = timeFromAny(now.Format(time.RFC3339))
	require.True(t, ok)
	assert.True(t, now.Equal(got))

	_, ok = timeFromAny("not a timestamp")
	assert.False(t, ok)

	_, ok = timeFromAny(nil)
	assert.False(t, ok)
}

func TestTimeRangeFromConfigSurvivesStringRoundTrip(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	cfg := map[string]any{
		"time_range": map[string]any{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
	}
	tr := timeRangeFromConfig(cfg)
	assert.True(t, start.Equal(tr.Start))
	assert.True(t, end.Equal(tr.End))
}
