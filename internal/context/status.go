// Package context implements ContextManager (spec §4.7): token
// accounting, tier-aware medical-salience-preserving compression,
// aggregation of long-term summaries, and context-status gating.
// Ported from original_source/utils/context_compression.py, with the
// free-tier hard block resolved per spec §9's explicit instruction
// (100,000 hard limit, 30,000 soft/upgrade-prompt advisory — see
// DESIGN.md's Open Question decision).
package context

import (
	"strings"

	"github.com/oracle-health/oracle-backend/internal/tokens"
)

// Token limits (spec §4.7).
const (
	FreeSoftLimit             = 30000
	FreeHardLimit             = 100000
	PremiumSoftLimit          = 120000
	PremiumAggressiveLimit    = 200000
)

// Status is ContextManager.status's return shape.
type Status struct {
	Tokens           int            `json:"tokens"`
	Limit            int            `json:"limit"`
	Status           string         `json:"status"`
	NeedsCompression bool           `json:"needs_compression"`
	CanContinue      bool           `json:"can_continue"`
	Notice           string         `json:"notice,omitempty"`
	UpgradePrompt    *UpgradePrompt `json:"upgrade_prompt,omitempty"`
}

// UpgradePrompt is the supplemented payload shape from SPEC_FULL.md §C.3,
// matching original_source's upgrade_prompt dict field-for-field.
type UpgradePrompt struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Benefits    []string `json:"benefits"`
	CTA         string   `json:"cta"`
}

func defaultUpgradePrompt() *UpgradePrompt {
	return &UpgradePrompt{
		Title:       "Unlock Full Context Memory",
		Description: "Your conversation history is preserved, but the assistant can only reference the last 10 messages on the free tier. Upgrade for full conversation memory.",
		Benefits: []string{
			"Remembers the entire conversation",
			"Better medical continuity across visits",
			"Unlimited context length",
			"Seamless conversation resumption",
		},
		CTA: "Upgrade to Premium",
	}
}

// ComputeStatus implements ContextManager.status (spec §4.7): the
// context-status gating decision for a message set. Token count is
// CountTokens's per-message sum over "role: content" plus a fixed
// per-message overhead (a stand-in for the original's
// `count_tokens(str(messages))` over the full serialized list).
func ComputeStatus(messages []Message, isPremium bool) Status {
	total := CountTokens(messages)

	if isPremium {
		switch {
		case total < PremiumSoftLimit:
			return Status{Tokens: total, Limit: PremiumSoftLimit, Status: "within_limits", CanContinue: true}
		case total < PremiumAggressiveLimit:
			return Status{
				Tokens: total, Limit: PremiumSoftLimit, Status: "compressed",
				NeedsCompression: true, CanContinue: true,
				Notice: "Using intelligent compression to maintain conversation quality",
			}
		default:
			return Status{
				Tokens: total, Limit: PremiumSoftLimit, Status: "aggressive_compression",
				NeedsCompression: true, CanContinue: true,
				Notice: "Using advanced compression. Consider starting a new conversation for best results.",
			}
		}
	}

	switch {
	case total < FreeSoftLimit:
		return Status{Tokens: total, Limit: FreeSoftLimit, Status: "within_limits", CanContinue: true}
	case total < FreeHardLimit:
		return Status{
			Tokens: total, Limit: FreeSoftLimit, Status: "limited",
			NeedsCompression: true, CanContinue: true,
			UpgradePrompt: defaultUpgradePrompt(),
		}
	default:
		return Status{
			Tokens: total, Limit: FreeHardLimit, Status: "blocked",
			NeedsCompression: true, CanContinue: false,
			UpgradePrompt: defaultUpgradePrompt(),
		}
	}
}

// CountTokens approximates the original's `count_tokens(str(messages))`
// by summing per-message token counts with role overhead.
func CountTokens(messages []Message) int {
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Role + ": " + m.Content
	}
	return tokens.CountMessages(contents)
}

// Message is the minimal chat message shape ContextManager operates
// over; internal/llm.Message satisfies the same fields.
type Message struct {
	Role      string
	Content   string
	CreatedAt int64 // unix nanos; no function in this package reads it
}

// ExtractMedicalFlags is the supplemented pure function from
// SPEC_FULL.md §C.2 (ported from original_source's
// extract_medical_flags), producing a deduplicated flag set. It only
// computes the set; nothing in the service stores it with a conversation.
func ExtractMedicalFlags(messages []Message) []string {
	flags := map[string]bool{}
	for _, m := range messages {
		content := strings.ToLower(m.Content)
		if containsAny(content, "medication", "prescription", "drug") {
			flags["prescription_discussed"] = true
		}
		if containsAny(content, "pain", "fever", "nausea", "headache") {
			flags["symptoms_tracked"] = true
		}
		if hasUrgentKeywords(content) {
			flags["urgent_care_mentioned"] = true
		}
		if strings.Contains(content, "follow up") || strings.Contains(content, "appointment") {
			flags["followup_recommended"] = true
		}
		if containsAny(content, "test", "lab", "scan", "x-ray", "mri") {
			flags["tests_discussed"] = true
		}
	}
	out := make([]string, 0, len(flags))
	for f := range flags {
		out = append(out, f)
	}
	return out
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
