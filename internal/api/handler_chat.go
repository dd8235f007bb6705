package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/apierr"
	"github.com/oracle-health/oracle-backend/internal/config"
	contextmgr "github.com/oracle-health/oracle-backend/internal/context"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/models"
)

type chatBody struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query" binding:"required"`
	Category       string `json:"category"`
}

// chatHandler handles POST /api/chat: resolves tier, gates on the
// free-tier hard limit, compresses prior context, aggregates long-term
// summaries, and calls the LLM cascade. Message persistence is
// intentionally not performed here (spec §9: the chat endpoint's
// read paths over Conversation/Message/LLMContextSummary are kept,
// its message-table writes are dropped).
func (s *Server) chatHandler(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	tier := s.resolveTier(c, body.UserID)
	isPremium := tier != models.TierFree

	var history []models.Message
	var err error
	if body.ConversationID != "" {
		history, err = s.storage.ListMessages(ctx, body.ConversationID)
		if err != nil {
			respondError(c, fmt.Errorf("loading conversation history: %w", err))
			return
		}
	}
	messages := toContextMessages(history)

	status := contextmgr.ComputeStatus(messages, isPremium)
	if !status.CanContinue {
		respondError(c, &apierr.BlockedError{
			ContextStatus: gin.H{
				"tokens":         status.Tokens,
				"limit":          status.Limit,
				"status":         status.Status,
				"can_continue":   status.CanContinue,
				"upgrade_prompt": status.UpgradePrompt,
			},
			CanContinue: status.CanContinue,
			UserTier:    string(tier),
		})
		return
	}

	summarizer := contextmgr.LLMSummarizer{Orchestrator: s.llm}
	effective := messages
	switch {
	case isPremium && status.NeedsCompression:
		if compressed, cErr := contextmgr.CompressPremium(ctx, summarizer, messages); cErr == nil {
			effective = compressed
		}
	case !isPremium && len(messages) > 15:
		if compressed, cErr := contextmgr.FreeTierContext(ctx, summarizer, messages); cErr == nil {
			effective = compressed
		}
	}

	var aggregated string
	if body.UserID != "" {
		aggregated, _ = contextmgr.AggregateUserContext(ctx, s.storage, summarizer, body.UserID, body.Query)
	}

	systemPrompt := "You are a medical assistant with persistent memory of this user's health history. " +
		"Be warm, clear, and non-technical. Never claim to provide a clinical diagnosis."
	if aggregated != "" {
		systemPrompt += "\n\nRelevant history:\n" + aggregated
	}

	llmMessages := make([]llm.Message, 0, len(effective)+2)
	llmMessages = append(llmMessages, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range effective {
		llmMessages = append(llmMessages, llm.Message{Role: m.Role, Content: m.Content})
	}
	llmMessages = append(llmMessages, llm.Message{Role: "user", Content: body.Query})

	candidates := s.models.Models(tier, config.EndpointChat, false)
	result, err := s.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages:    llmMessages,
		UserID:      body.UserID,
		Endpoint:    config.EndpointChat,
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		respondError(c, fmt.Errorf("chat call: %w", err))
		return
	}

	if body.ConversationID != "" && len(history) == 0 {
		title := contextmgr.GenerateTitle(ctx, summarizer, append(effective, contextmgr.Message{Role: "user", Content: body.Query}))
		_ = s.storage.UpdateConversationTitle(ctx, body.ConversationID, title, true)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"response":       result.Content,
		"model":          result.Model,
		"conversation_id": body.ConversationID,
		"context_status": gin.H{
			"tokens":            status.Tokens,
			"limit":             status.Limit,
			"status":            status.Status,
			"needs_compression": status.NeedsCompression,
			"can_continue":      status.CanContinue,
		},
	})
}

func toContextMessages(messages []models.Message) []contextmgr.Message {
	out := make([]contextmgr.Message, len(messages))
	for i, m := range messages {
		out[i] = contextmgr.Message{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt.UnixNano()}
	}
	return out
}
