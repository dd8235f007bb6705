package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/oracle-health/oracle-backend/internal/apierr"
	"github.com/oracle-health/oracle-backend/internal/httpclient"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/tokens"
)

// Usage mirrors the provider's usage block plus the derived reasoning
// token count spec §4.6 requires.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	ResponseTokens   int `json:"response_tokens,omitempty"`
}

// CallResult is LLMOrchestrator.call's return shape (spec §4.6).
type CallResult struct {
	Content       string
	ParsedContent any
	Reasoning     string
	HasReasoning  bool
	Usage         Usage
	Model         string
	FinishReason  string
}

// AllModelsFailed is raised when every candidate model in a
// call_with_fallback cascade fails (spec §4.6).
var AllModelsFailed = errors.New("all candidate models failed")

// KeyProvider resolves the provider API key (and any BYOK alternate
// key) to attach to a request, keeping provider-credential lookup out
// of the orchestrator's hot path.
type KeyProvider interface {
	// RouterKey returns the primary LLM router key (OPENROUTER_API_KEY).
	RouterKey() string
	// BYOKHeader returns an alternate header name/value for the given
	// model's family, if the caller has configured one
	// (OPENAI_API_KEY/ANTHROPIC_API_KEY passthrough), and whether one
	// applies at all.
	BYOKHeader(modelID string) (name, value string, ok bool)
}

// Orchestrator implements LLMOrchestrator (spec §4.6).
type Orchestrator struct {
	http    *httpclient.Client
	baseURL string
	keys    KeyProvider

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds an Orchestrator. baseURL is the chat-completions endpoint
// of the configured LLM router (spec §6.3's OPENROUTER_API_KEY target).
func New(client *httpclient.Client, baseURL string, keys KeyProvider) *Orchestrator {
	return &Orchestrator{
		http:     client,
		baseURL:  baseURL,
		keys:     keys,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (o *Orchestrator) breakerFor(model string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	if b, ok := o.breakers[model]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        model,
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	o.breakers[model] = b
	return b
}

// Call performs one shaped request to a single model, with no
// fallback: the §4.6 "call" primitive that call_with_fallback iterates
// over.
func (o *Orchestrator) Call(ctx context.Context, p CallParams) (*CallResult, error) {
	breaker := o.breakerFor(p.Model)
	res, err := breaker.Execute(func() (any, error) {
		return o.callOnce(ctx, p)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &apierr.ExternalServiceError{Service: p.Model, Err: err}
		}
		return nil, err
	}
	return res.(*CallResult), nil
}

func (o *Orchestrator) callOnce(ctx context.Context, p CallParams) (*CallResult, error) {
	body := buildRequestBody(p)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.keys.RouterKey())
	if name, value, ok := o.keys.BYOKHeader(p.Model); ok {
		req.Header.Set(name, value)
	}

	resp, raw, err := o.http.Do(ctx, req)
	if err != nil {
		return nil, &apierr.ExternalServiceError{Service: p.Model, Err: err}
	}
	if resp.StatusCode >= 300 {
		svcErr := &apierr.ExternalServiceError{Service: p.Model, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", raw)}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, svcErr
		}
		return nil, svcErr
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &apierr.ExternalServiceError{Service: p.Model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(wire.Choices) == 0 || wire.Choices[0].Message.Content == "" && wire.Choices[0].Message.Reasoning == "" {
		return nil, &apierr.ExternalServiceError{Service: p.Model, Err: errors.New("empty choices[0].message")}
	}

	choice := wire.Choices[0]
	result := &CallResult{
		Content:      choice.Message.Content,
		Model:        p.Model,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
		},
	}

	result.Reasoning = extractReasoning(choice)
	result.HasReasoning = result.Reasoning != ""
	if result.HasReasoning {
		fromCount := tokens.Count(result.Reasoning)
		if wire.Usage.CompletionTokensDetails.ReasoningTokens > fromCount {
			result.Usage.ReasoningTokens = wire.Usage.CompletionTokensDetails.ReasoningTokens
		} else {
			result.Usage.ReasoningTokens = fromCount
		}
	}

	if parsed, ok := jsonx.Extract(result.Content); ok {
		result.ParsedContent = parsed
	}

	return result, nil
}

// extractReasoning implements spec §4.6's "first non-empty of" rule
// for locating the model's chain-of-thought output.
func extractReasoning(choice wireChoice) string {
	if choice.Message.Reasoning != "" {
		return choice.Message.Reasoning
	}
	if len(choice.Message.ReasoningDetails) > 0 {
		return choice.Message.ReasoningDetails[0].Text
	}
	return ""
}

// CallWithFallback implements LLMOrchestrator.call_with_fallback (spec
// §4.6): iterate the caller-supplied, already tier-resolved model list
// in order, returning the first success. Pure w.r.t.
// side effects other than outbound HTTP (no caller-visible state is
// mutated besides the per-model circuit breaker).
func (o *Orchestrator) CallWithFallback(ctx context.Context, models []string, base CallParams) (*CallResult, error) {
	var lastErr error
	for _, model := range models {
		p := base
		p.Model = model
		result, err := o.Call(ctx, p)
		if err == nil {
			return result, nil
		}
		slog.Warn("llm model failed, advancing fallback cascade",
			"model", model, "endpoint", base.Endpoint, "error", err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", AllModelsFailed, lastErr)
	}
	return nil, AllModelsFailed
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   struct {
		PromptTokens            int `json:"prompt_tokens"`
		CompletionTokens        int `json:"completion_tokens"`
		CompletionTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
	} `json:"usage"`
}

type wireChoice struct {
	Message struct {
		Content          string                  `json:"content"`
		Reasoning        string                  `json:"reasoning"`
		ReasoningDetails []wireReasoningDetail    `json:"reasoning_details"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type wireReasoningDetail struct {
	Text string `json:"text"`
}
