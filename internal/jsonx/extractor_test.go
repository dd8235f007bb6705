package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAlreadyStructured(t *testing.T) {
	in := map[string]any{"a": 1.0}
	v, ok := Extract(in)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Equal(t, 1.0, m["a"])
}

func TestExtractDirectParse(t *testing.T) {
	v, ok := Extract(`{"question": "How long?"}`)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Equal(t, "How long?", m["question"])
}

func TestExtractFencedBlock(t *testing.T) {
	text := "Here is the analysis:\n```json\n{\"urgency\": \"high\"}\n```\nLet me know if you have questions."
	v, ok := Extract(text)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Equal(t, "high", m["urgency"])
}

func TestExtractBracketScanWithNestedBracesAndStrings(t *testing.T) {
	text := `Some prose before. {"finding": "contains a \"quoted\" brace } inside a string", "nested": {"count": 2}} trailing prose.`
	v, ok := Extract(text)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.NotNil(t, m["finding"])
	nested := m["nested"].(map[string]any)
	assert.Equal(t, 2.0, nested["count"])
}

func TestExtractPrefersFirstValidCandidate(t *testing.T) {
	text := `{"a": 1} and also {"b": 2}`
	v, ok := Extract(text)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Contains(t, m, "a")
}

func TestExtractQuestionFallback(t *testing.T) {
	text := "I'm not sure how to format this, but have you had this symptom before?"
	v, ok := Extract(text)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Equal(t, text, m["question"])
	assert.Equal(t, "open_ended", m["question_type"])
}

func TestExtractGivesUp(t *testing.T) {
	_, ok := Extract("nothing useful here at all")
	assert.False(t, ok)
}

func TestExtractTruncatedJSONBestEffort(t *testing.T) {
	// Unterminated object: bracket scan never closes, falls through to
	// the question-detection heuristic (no '?' here, so it gives up).
	_, ok := Extract(`{"findings": ["a", "b"`)
	assert.False(t, ok, "expected not ok for truncated, non-question content")
}

func TestAsObject(t *testing.T) {
	m, ok := AsObject(`{"x": 1}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, m["x"])

	_, ok = AsObject(`[1, 2, 3]`)
	assert.False(t, ok, "expected array input to not satisfy AsObject")
}
