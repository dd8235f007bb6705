package context

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	summary string
	err     error
}

func (s stubSummarizer) Summarize(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.summary, s.err
}

func buildLongConversation(n int) []Message {
	msgs := make([]Message, 0, n)
	msgs = append(msgs, Message{Role: "user", Content: "I have a persistent headache"})
	msgs = append(msgs, Message{Role: "assistant", Content: "How long has this been going on?"})
	msgs = append(msgs, Message{Role: "user", Content: "About three days now"})
	for i := 0; i < n-13; i++ {
		msgs = append(msgs, Message{Role: "user", Content: "just chatting about unrelated things"})
	}
	msgs = append(msgs, Message{Role: "user", Content: "I am also taking a daily prescription medication, 500mg"})
	msgs = append(msgs, Message{Role: "assistant", Content: "I recommend you discuss this with your doctor and consider the dosage"})
	msgs = append(msgs, Message{Role: "user", Content: "I also had chest pain yesterday, should I go to the hospital"})
	for i := 0; i < 10; i++ {
		msgs = append(msgs, Message{Role: "user", Content: fmt.Sprintf("recent message %d", i)})
	}
	return msgs
}

func TestCompressPremiumPreservesChiefComplaintAndTail(t *testing.T) {
	msgs := buildLongConversation(40)
	out, err := CompressPremium(context.Background(), stubSummarizer{summary: "summary text"}, msgs)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(out), 13, "expected at least chief-complaint + urgent/medication + tail messages")

	for _, m := range msgs[:3] {
		assert.True(t, containsMessage(out, m), "expected chief-complaint message %+v to be preserved", m)
	}

	for _, m := range msgs[len(msgs)-10:] {
		assert.True(t, containsMessage(out, m), "expected tail message %+v to be preserved", m)
	}
}

func TestCompressPremiumPreservesUrgentAndMedicationMessages(t *testing.T) {
	msgs := buildLongConversation(40)
	out, err := CompressPremium(context.Background(), stubSummarizer{summary: "summary text"}, msgs)
	require.NoError(t, err)

	var foundMedication, foundUrgent, foundRecommendation bool
	for _, m := range out {
		switch m.Content {
		case "I am also taking a daily prescription medication, 500mg":
			foundMedication = true
		case "I also had chest pain yesterday, should I go to the hospital":
			foundUrgent = true
		case "I recommend you discuss this with your doctor and consider the dosage":
			foundRecommendation = true
		}
	}
	assert.True(t, foundMedication, "expected medication-flagged message preserved")
	assert.True(t, foundUrgent, "expected urgent-flagged message preserved")
	assert.True(t, foundRecommendation, "expected AI-recommendation message preserved")
}

func TestCompressPremiumDeduplicates(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "user", Content: "hello"},
		{Role: "user", Content: "hello"},
	}
	out, err := CompressPremium(context.Background(), stubSummarizer{summary: "s"}, msgs)
	require.NoError(t, err)
	assert.Len(t, out, 1, "expected duplicates collapsed to 1 message")
}

func TestFreeTierContextUnderThreshold(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	out, err := FreeTierContext(context.Background(), stubSummarizer{summary: "s"}, msgs)
	require.NoError(t, err)
	assert.Len(t, out, len(msgs), "expected passthrough under 15 messages")
}

func TestFreeTierContextOverThreshold(t *testing.T) {
	msgs := make([]Message, 20)
	for i := range msgs {
		msgs[i] = Message{Role: "user", Content: "message"}
	}
	out, err := FreeTierContext(context.Background(), stubSummarizer{summary: "condensed history"}, msgs)
	require.NoError(t, err)
	require.Len(t, out, 11, "expected 1 summary + last 10 messages = 11")
	assert.Equal(t, "system", out[0].Role, "expected first message to be the system summary")
}

func TestGenerateTitleStripsQuotes(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "my knee hurts"}}
	title := GenerateTitle(context.Background(), stubSummarizer{summary: `"Knee Pain Discussion"`}, msgs)
	assert.Equal(t, "Knee Pain Discussion", title, "expected quotes stripped")
}

func TestGenerateTitleDefaultsOnFailure(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "my knee hurts"}}
	title := GenerateTitle(context.Background(), stubSummarizer{err: errBoom}, msgs)
	assert.Equal(t, "Health Discussion", title, "expected default title on failure")
}

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

func containsMessage(haystack []Message, needle Message) bool {
	for _, m := range haystack {
		if m.Role == needle.Role && m.Content == needle.Content {
			return true
		}
	}
	return false
}
