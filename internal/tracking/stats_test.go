package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func TestComputeTrend(t *testing.T) {
	assert.Equal(t, TrendIncreasing, computeTrend(5, 3))
	assert.Equal(t, TrendDecreasing, computeTrend(3, 5))
	assert.Equal(t, TrendStable, computeTrend(5, 5))
}

func TestComputeStatsEmpty(t *testing.T) {
	got := computeStats(nil)
	assert.Equal(t, ChartStats{}, got, "expected zero-value stats")
}

func TestComputeStatsMinMaxAvg(t *testing.T) {
	points := []models.TrackingDataPoint{{Value: 2}, {Value: 8}, {Value: 5}}
	got := computeStats(points)
	assert.Equal(t, 2.0, got.Min)
	assert.Equal(t, 8.0, got.Max)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 5.0, got.Avg)
}

func TestJoinBodyParts(t *testing.T) {
	assert.Equal(t, "", joinBodyParts(nil))
	assert.Equal(t, "knee", joinBodyParts([]string{"knee"}))
	assert.Equal(t, "knee, ankle", joinBodyParts([]string{"knee", "ankle"}))
}

func TestStringFieldAndFloatFieldAndSliceField(t *testing.T) {
	m := map[string]any{"a": "x", "b": 3.5, "c": []any{"p", "q", 7}}
	assert.Equal(t, "x", stringField(m, "a"))
	assert.Equal(t, "", stringField(m, "missing"), "expected empty default")
	assert.Equal(t, 3.5, floatField(m, "b", -1))
	assert.Equal(t, -1.0, floatField(m, "missing", -1), "expected fallback")

	sliced := stringSliceField(m, "c")
	assert.Equal(t, []string{"p", "q"}, sliced, "expected non-string entries dropped")
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "fallback", orDefault("", "fallback"))
	assert.Equal(t, "value", orDefault("value", "fallback"))
}
