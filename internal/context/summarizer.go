package context

import (
	"context"

	"github.com/oracle-health/oracle-backend/internal/llm"
)

// LLMSummarizer adapts an llm.Orchestrator into the Summarizer
// interface this package needs, using the fixed cheap summarization
// model the original Python hardcodes (deepseek/deepseek-chat) rather
// than routing through ModelSelector — summary generation is an
// internal implementation detail of compression, not a tier-gated
// domain endpoint.
type LLMSummarizer struct {
	Orchestrator *llm.Orchestrator
	Model        string
}

const defaultSummaryModel = "deepseek/deepseek-chat"

func (s LLMSummarizer) Summarize(ctx context.Context, prompt string, maxTokens int) (string, error) {
	model := s.Model
	if model == "" {
		model = defaultSummaryModel
	}
	result, err := s.Orchestrator.Call(ctx, llm.CallParams{
		Messages:    []llm.Message{{Role: "system", Content: prompt}},
		Model:       model,
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
