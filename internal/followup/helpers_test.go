package followup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func TestDetectPatternsAndMilestonesFlagsConfidenceCrossing90(t *testing.T) {
	_, milestones := detectPatternsAndMilestones(nil, 85, 92, 7)
	require.Len(t, milestones, 1)
	assert.Equal(t, "confidence_crossed_90_percent", milestones[0])
}

func TestDetectPatternsAndMilestonesNoMilestoneWhenAlreadyAbove90(t *testing.T) {
	_, milestones := detectPatternsAndMilestones(nil, 91, 93, 2)
	assert.Empty(t, milestones, "expected no milestone when already above 90%%")
}

func TestDetectPatternsAndMilestonesSustainedImprovement(t *testing.T) {
	chain := []models.AssessmentFollowUp{
		{ConfidenceChange: 0},
		{ConfidenceChange: 5},
		{ConfidenceChange: 3},
	}
	patterns, _ := detectPatternsAndMilestones(chain, 60, 65, 5)
	assert.Contains(t, patterns, "sustained_confidence_improvement")
}

func TestDetectPatternsAndMilestonesSustainedDecline(t *testing.T) {
	chain := []models.AssessmentFollowUp{
		{ConfidenceChange: 0},
		{ConfidenceChange: -4},
		{ConfidenceChange: -6},
	}
	patterns, _ := detectPatternsAndMilestones(chain, 70, 64, -6)
	assert.Contains(t, patterns, "sustained_confidence_decline")
}

func TestDetectPatternsAndMilestonesNoPatternOnSingleChange(t *testing.T) {
	chain := []models.AssessmentFollowUp{{ConfidenceChange: 5}}
	patterns, _ := detectPatternsAndMilestones(chain, 60, 65, 5)
	assert.Empty(t, patterns, "expected no pattern from a single data point")
}

func TestDiagnosisChanged(t *testing.T) {
	assert.True(t, diagnosisChanged(map[string]any{"diagnosis_refined": true}))
	assert.False(t, diagnosisChanged(map[string]any{"diagnosis_refined": false}))
	assert.False(t, diagnosisChanged(map[string]any{}), "expected false when the key is absent")
}

func TestBoolWord(t *testing.T) {
	assert.Equal(t, "is", boolWord(true))
	assert.Equal(t, "is not", boolWord(false))
}

func TestStringFieldFloatFieldMapFieldSliceField(t *testing.T) {
	m := map[string]any{
		"s": "hello",
		"f": 2.5,
		"m": map[string]any{"nested": true},
		"l": []any{"a", "b", 3},
	}
	assert.Equal(t, "hello", stringField(m, "s", "fallback"))
	assert.Equal(t, "fallback", stringField(m, "missing", "fallback"))
	assert.Equal(t, 2.5, floatField(m, "f", -1))

	_, ok := mapField(m, "m")
	assert.True(t, ok, "expected map field found")
	_, ok = mapField(m, "missing")
	assert.False(t, ok, "expected map field absent")

	slice, ok := stringSliceField(m, "l")
	require.True(t, ok)
	assert.Len(t, slice, 2, "expected 2 string entries")
}
