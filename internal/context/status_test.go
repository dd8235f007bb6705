package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatWords(word string, n int) string {
	return strings.Repeat(word+" ", n)
}

func TestComputeStatusFreeWithinLimits(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "hello, how are you feeling today?"}}
	st := ComputeStatus(msgs, false)
	assert.Equal(t, "within_limits", st.Status)
	assert.True(t, st.CanContinue)
}

func TestComputeStatusFreeBlockedAtHardLimit(t *testing.T) {
	// Force the token count well past the 100,000 hard limit.
	msgs := []Message{{Role: "user", Content: repeatWords("word", 200000)}}
	st := ComputeStatus(msgs, false)
	assert.False(t, st.CanContinue, "expected can_continue=false at/above hard limit")
	assert.Equal(t, "blocked", st.Status)
	require.NotNil(t, st.UpgradePrompt, "expected an upgrade prompt on a blocked free-tier status")
}

func TestComputeStatusFreeSoftLimitTriggersUpgradePrompt(t *testing.T) {
	msgs := []Message{{Role: "user", Content: repeatWords("word", 50000)}}
	st := ComputeStatus(msgs, false)
	assert.True(t, st.CanContinue, "expected can_continue=true below the hard limit")
	assert.Equal(t, "limited", st.Status, "expected limited status past the soft limit")
	require.NotNil(t, st.UpgradePrompt, "expected upgrade prompt past the soft limit")
}

func TestComputeStatusPremiumNeverBlocks(t *testing.T) {
	msgs := []Message{{Role: "user", Content: repeatWords("word", 200000)}}
	st := ComputeStatus(msgs, true)
	require.True(t, st.CanContinue, "premium tiers must never be blocked")
	assert.Equal(t, "aggressive_compression", st.Status)
}

func TestExtractMedicalFlags(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "I've had a fever and have been taking prescription medication for it"},
		{Role: "assistant", Content: "Please follow up with your doctor and consider scheduling a lab test"},
	}
	flags := ExtractMedicalFlags(msgs)
	want := []string{"symptoms_tracked", "prescription_discussed", "followup_recommended", "tests_discussed"}
	for _, w := range want {
		assert.Contains(t, flags, w)
	}
}
