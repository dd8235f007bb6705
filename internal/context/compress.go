package context

import (
	"context"
	"fmt"
	"strings"
)

// Summarizer generates an LLM-backed summary, the one suspension point
// premium compression and title generation need. Kept as a narrow
// interface (rather than importing internal/llm.Orchestrator directly)
// so this package stays a pure, independently testable transform over
// everything except this one call.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompressPremium implements ContextManager.compress_medical (spec
// §4.7): preserve the chief complaint, urgent/medication/AI-
// recommendation messages from the excludable middle range, summarize
// the rest, and always keep the last 10 messages. Deduplicates by
// (role, first-100-chars) preserving original order (spec §8's
// testable property).
func CompressPremium(ctx context.Context, summarizer Summarizer, messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	var preserved []slot

	firstN := 3
	if len(messages) < firstN {
		firstN = len(messages)
	}
	for i := 0; i < firstN; i++ {
		preserved = append(preserved, slot{messages[i], i})
	}

	middleEnd := len(messages) - 10
	var middle []int
	if middleEnd > firstN {
		for i := firstN; i < middleEnd; i++ {
			middle = append(middle, i)
		}
	}

	kept := map[int]bool{}
	addIf := func(pred func(Message) bool) {
		for _, i := range middle {
			if kept[i] {
				continue
			}
			if pred(messages[i]) {
				preserved = append(preserved, slot{messages[i], i})
				kept[i] = true
			}
		}
	}
	addIf(func(m Message) bool { return hasUrgentKeywords(lower(m.Content)) })
	addIf(func(m Message) bool { return hasMedicationKeywords(lower(m.Content)) })
	addIf(isAIRecommendation)

	var excluded []Message
	for _, i := range middle {
		if !kept[i] {
			excluded = append(excluded, messages[i])
		}
	}

	if len(excluded) > 0 {
		summary, err := generateMedicalSummary(ctx, summarizer, excluded, 500)
		if err != nil {
			summary = fmt.Sprintf("Unable to generate summary. Conversation has %d messages.", len(excluded))
		}
		// Inserted immediately before the trailing last-10 block: this
		// resolves the original Python's `messages.index(x)` resort
		// (which gives synthesized messages index -1, an undefined
		// sort position) by giving the summary an explicit index that
		// sorts it right where it belongs — after the preserved
		// middle, before the tail (see DESIGN.md).
		preserved = append(preserved, slot{
			msg:   Message{Role: "system", Content: "[Previous conversation summary: " + summary + "]"},
			index: middleEnd,
		})
	}

	tailStart := len(messages) - 10
	if tailStart < firstN {
		tailStart = firstN
	}
	for i := tailStart; i < len(messages); i++ {
		preserved = append(preserved, slot{messages[i], i})
	}

	return dedupeOrdered(preserved), nil
}

type slot struct {
	msg   Message
	index int
}

func dedupeOrdered(slots []slot) []Message {
	ks := make([]slot, len(slots))
	copy(ks, slots)
	sortByIndexStable(ks)

	seen := map[string]bool{}
	out := make([]Message, 0, len(ks))
	for _, k := range ks {
		key := k.msg.Role + ":" + firstN(k.msg.Content, 100)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k.msg)
	}
	return out
}

func sortByIndexStable(ks []slot) {
	for i := 1; i < len(ks); i++ {
		j := i
		for j > 0 && ks[j-1].index > ks[j].index {
			ks[j-1], ks[j] = ks[j], ks[j-1]
			j--
		}
	}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func lower(s string) string { return strings.ToLower(s) }

// FreeTierContext implements ContextManager.free_tier_context (spec
// §4.7): when more than 15 messages, collapse everything but the last
// 10 into a single ~300-token system summary.
func FreeTierContext(ctx context.Context, summarizer Summarizer, messages []Message) ([]Message, error) {
	if len(messages) <= 15 {
		return messages, nil
	}

	summary, err := generateMedicalSummary(ctx, summarizer, messages[:len(messages)-10], 300)
	if err != nil {
		last := messages[len(messages)-1]
		summary = fmt.Sprintf("Summary generation failed. Last message: %s", firstN(last.Content, 200))
	}

	out := make([]Message, 0, 11)
	out = append(out, Message{Role: "system", Content: "Medical history summary: " + summary})
	out = append(out, messages[len(messages)-10:]...)
	return out, nil
}

func generateMedicalSummary(ctx context.Context, summarizer Summarizer, messages []Message, maxTokens int) (string, error) {
	var sb []byte
	for _, m := range messages {
		sb = append(sb, []byte(m.Role+": "+firstN(m.Content, 500)+"\n")...)
	}
	convo := firstN(string(sb), 3000)

	prompt := fmt.Sprintf(`Summarize this medical conversation focusing on:
1. Initial complaint/symptoms
2. Key medical information discussed
3. Medications mentioned
4. Recommendations given
5. Any urgent concerns

Keep it under %d tokens.

Conversation:
%s

Medical Summary:`, maxTokens, convo)

	return summarizer.Summarize(ctx, prompt, maxTokens)
}

// GenerateTitle implements ContextManager.generate_title (spec §4.7):
// a <=100 char title from the first 6 messages, quotes stripped,
// defaulting to "Health Discussion" on any failure.
func GenerateTitle(ctx context.Context, summarizer Summarizer, messages []Message) string {
	n := 6
	if len(messages) < n {
		n = len(messages)
	}
	var sb []byte
	for _, m := range messages[:n] {
		sb = append(sb, []byte(m.Role+": "+firstN(m.Content, 200)+"\n")...)
	}

	prompt := fmt.Sprintf(`Generate a brief, descriptive title (3-7 words) for this medical conversation:

%s

Title:`, string(sb))

	title, err := summarizer.Summarize(ctx, prompt, 20)
	if err != nil || title == "" {
		return "Health Discussion"
	}
	title = stripQuotes(title)
	return firstN(title, 100)
}

func stripQuotes(s string) string {
	replacer := strings.NewReplacer(`"`, "", "'", "")
	return strings.TrimSpace(replacer.Replace(s))
}
