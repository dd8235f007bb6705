package context

import (
	"context"
	"fmt"

	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/tokens"
)

// aggregateThreshold is the concatenation-fits-as-is ceiling (spec
// §4.7: "≤25k tokens, return concatenation").
const aggregateThreshold = 25000

// SummaryStore fetches a user's long-term LLMContextSummary rows, the
// one persistence dependency aggregate_user_context needs.
type SummaryStore interface {
	ListContextSummaries(ctx context.Context, userID string) ([]models.LLMContextSummary, error)
}

// AggregateUserContext implements ContextManager.aggregate_user_context
// (spec §4.7): fetch every summary row, return the concatenation
// verbatim if it fits under the threshold, else re-summarize at a
// compression ratio scaled to how far over the threshold the raw
// concatenation runs, focused on currentQuery.
func AggregateUserContext(ctx context.Context, store SummaryStore, summarizer Summarizer, userID, currentQuery string) (string, error) {
	rows, err := store.ListContextSummaries(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("listing context summaries: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	var concatenated string
	total := 0
	for _, r := range rows {
		concatenated += r.Summary + "\n\n"
		total += tokens.Count(r.Summary)
	}

	if total <= aggregateThreshold {
		return concatenated, nil
	}

	targetTokens := compressionTarget(total)
	prompt := fmt.Sprintf(`Re-summarize the following medical history summaries, compressed to fit within
%d tokens, focused on relevance to this current query: %q

Summaries:
%s

Focused summary:`, targetTokens, currentQuery, firstN(concatenated, 12000))

	summary, err := summarizer.Summarize(ctx, prompt, targetTokens)
	if err != nil {
		// Fail open to the raw concatenation, truncated, rather than
		// losing the user's history entirely (spec §7: ParseError/
		// ExternalServiceError paths substitute a conservative default).
		return firstN(concatenated, targetTokens*4), nil
	}
	return summary, nil
}

// compressionTarget implements spec §4.7's ratio table: 1.5x under
// 50k, 2x under 100k, 5x at or above.
func compressionTarget(totalTokens int) int {
	switch {
	case totalTokens < 50000:
		return int(float64(totalTokens) / 1.5)
	case totalTokens < 100000:
		return totalTokens / 2
	default:
		return totalTokens / 5
	}
}
