package quickscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnalysisParsesJSON(t *testing.T) {
	got := extractAnalysis(`{"assessment": "mild strain", "urgency": "low"}`)
	assert.Equal(t, "mild strain", got["assessment"])
	assert.Equal(t, "low", got["urgency"])
}

func TestExtractAnalysisFallsBackToRawContent(t *testing.T) {
	got := extractAnalysis("not valid json, no braces")
	assert.Equal(t, "not valid json, no braces", got["assessment"])
	assert.Equal(t, "low", got["urgency"], "expected default low urgency")
}

func TestStringFieldAndFloatField(t *testing.T) {
	m := map[string]any{"a": "x", "b": 4.5}
	assert.Equal(t, "x", stringField(m, "a", "fallback"))
	assert.Equal(t, "fallback", stringField(m, "missing", "fallback"))
	assert.Equal(t, 4.5, floatField(m, "b", -1))
	assert.Equal(t, -1.0, floatField(m, "missing", -1))
}

func TestIsDuplicateQuestionThreshold(t *testing.T) {
	previous := []string{"Where exactly is the pain located?"}
	assert.True(t, isDuplicateQuestion("Where exactly is the pain located?", previous),
		"expected identical question to be flagged duplicate")
	assert.False(t, isDuplicateQuestion("Have you had any fever?", previous),
		"expected an unrelated question to pass")
}

func TestIsDuplicateQuestionAtExactThreshold(t *testing.T) {
	// "abcde" vs "abcdf" sits at exactly a 0.80 Levenshtein ratio;
	// spec §8's boundary case requires >= here, not >.
	assert.Equal(t, 0.80, levenshteinRatio("abcde", "abcdf"))
	assert.True(t, isDuplicateQuestion("abcdf", []string{"abcde"}),
		"expected a question at exactly the 0.80 similarity threshold to be flagged duplicate")
}
