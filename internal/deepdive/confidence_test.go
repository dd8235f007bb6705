package deepdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateConfidenceStaysWithinBounds(t *testing.T) {
	for _, qc := range []int{0, 1, 2, 3, 5, 7} {
		for _, llmConf := range []float64{0, 10, 50, 80, 100} {
			got := calculateConfidence(llmConf, qc)
			assert.GreaterOrEqualf(t, got, 20.0, "confidence out of [20,95] for llmConf=%v questionCount=%d", llmConf, qc)
			assert.LessOrEqualf(t, got, 95.0, "confidence out of [20,95] for llmConf=%v questionCount=%d", llmConf, qc)
		}
	}
}

func TestCalculateConfidenceCappedEarlyWithFewQuestions(t *testing.T) {
	// With question_count < 2 the modifier sum is at its lowest, so a
	// high raw LLM confidence should still be pulled well below its
	// raw value by the completeness/red-flag modifiers.
	got := calculateConfidence(100, 0)
	assert.Less(t, got, 100.0, "expected the low-question-count modifier to reduce raw confidence")
}

func TestCalculateConfidenceNoLLMConfidenceUsesBaseFormula(t *testing.T) {
	// llmConfidence<=0 takes the fallback base = 25 + questionCount*15,
	// capped at 85.
	got := calculateConfidence(0, 7)
	assert.LessOrEqual(t, got, 85.0, "expected fallback formula capped at 85")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 20.0, clamp(10, 20, 95), "expected clamp to floor")
	assert.Equal(t, 95.0, clamp(999, 20, 95), "expected clamp to ceiling")
	assert.Equal(t, 50.0, clamp(50, 20, 95), "expected value within range to pass through unchanged")
}

func TestIsDuplicateQuestionDetectsNearIdenticalPhrasing(t *testing.T) {
	previous := []string{"Have you had a fever in the last 3 days?"}
	assert.True(t, isDuplicateQuestion("Have you had a fever in the last three days?", previous),
		"expected near-identical rephrasing to be flagged as duplicate")
}

func TestIsDuplicateQuestionAllowsDistinctQuestions(t *testing.T) {
	previous := []string{"Have you had a fever in the last 3 days?"}
	assert.False(t, isDuplicateQuestion("Is there any family history of heart disease?", previous),
		"expected an unrelated question to not be flagged as duplicate")
}

func TestIsDuplicateQuestionIgnoresCaseAndWhitespace(t *testing.T) {
	previous := []string{"  Have You Had A Fever?  "}
	assert.True(t, isDuplicateQuestion("have you had a fever?", previous),
		"expected case/whitespace-insensitive duplicate detection")
}

func TestIsDuplicateQuestionAtExactThreshold(t *testing.T) {
	// "abcde" vs "abcdf" is a single substitution over length 5, giving
	// a Levenshtein ratio of exactly 1 - 1/5 = 0.80. Spec §8's boundary
	// case requires a question exactly 0.80 similar to a prior one to
	// be treated as a duplicate, so the comparison must be >=, not >.
	assert.Equal(t, 0.80, levenshteinRatio("abcde", "abcdf"))
	assert.True(t, isDuplicateQuestion("abcdf", []string{"abcde"}),
		"expected a question at exactly the 0.80 similarity threshold to be flagged duplicate")
}

func TestLevenshteinRatioIdentical(t *testing.T) {
	assert.Equal(t, 1.0, levenshteinRatio("same text", "same text"))
}

func TestLevenshteinRatioEmptyStrings(t *testing.T) {
	assert.Equal(t, 1.0, levenshteinRatio("", ""))
}

func TestLevenshteinRatioCompletelyDifferent(t *testing.T) {
	got := levenshteinRatio("abcdefgh", "zyxwvuts")
	assert.LessOrEqual(t, got, 0.2, "expected a low ratio for completely different strings")
}

func TestInvalidQuestionRejectsShortAndMetaQuestions(t *testing.T) {
	cases := []string{
		"short",
		"Please respond in JSON format",
		"Ensure your response follows the required format",
		"```json question here```",
	}
	for _, c := range cases {
		assert.Truef(t, invalidQuestion(c), "expected %q to be flagged invalid", c)
	}
}

func TestInvalidQuestionAcceptsGenuineQuestion(t *testing.T) {
	assert.False(t, invalidQuestion("Have you noticed any swelling around the affected area?"),
		"expected a genuine clinical question to pass validation")
}

func TestParseQuestionResponseFallsBackOnInvalidQuestion(t *testing.T) {
	question, questionType, state := parseQuestionResponse(`{"question": "short", "question_type": "differential"}`, []string{"knee"})
	assert.NotEqual(t, "short", question, "expected invalid question to be replaced by a fallback")
	assert.Equal(t, "differential", questionType, "expected question_type preserved")
	assert.Equal(t, true, state["fallback"], "expected fallback marker in internal state")
}

func TestParseQuestionResponseDefaultsQuestionType(t *testing.T) {
	_, questionType, _ := parseQuestionResponse(`{"question": "How long have you had this swelling?"}`, []string{"knee"})
	assert.Equal(t, "differential", questionType, "expected default question_type 'differential'")
}

func TestMinMaxHelpers(t *testing.T) {
	assert.Equal(t, 3, minInt(3, 5))
	assert.Equal(t, 3, minInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 1.5, minFloat(1.5, 2.5))
}

func TestMaxTotalWithAskMoreInvariant(t *testing.T) {
	// spec §8: a completed DeepDiveSession must never exceed 11 total
	// questions (initial + ask-more). A session that hit MaxQuestions
	// during the initial phase has no ask-more budget left at all.
	assert.Equal(t, 11, MaxTotalWithAskMore)
	assert.True(t, MaxQuestions+AskMoreLimit > MaxTotalWithAskMore,
		"initial-phase max plus the ask-more limit alone would overshoot 11 without the combined-total guard")
}
