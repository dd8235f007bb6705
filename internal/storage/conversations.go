package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// ListMessages returns a conversation's messages ordered by CreatedAt
// (spec §5's total-order guarantee).
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, conversation_id, role, content, token_count, model_used, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.TokenCount, &m.ModelUsed, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateConversationTitle sets a conversation's title, the only
// mutation this system performs on the foreign Conversation aggregate
// (spec §3).
func (c *Client) UpdateConversationTitle(ctx context.Context, conversationID, title string, autoTitled bool) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE conversations SET title = $2, auto_titled = $3 WHERE id = $1 AND title_locked = false`,
		conversationID, title, autoTitled)
	return err
}

// GetConversation fetches one conversation row.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, title, title_locked, auto_titled, created_at, last_message_at
		 FROM conversations WHERE id = $1`, conversationID)
	var conv models.Conversation
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.TitleLocked, &conv.AutoTitled, &conv.CreatedAt, &conv.LastMessageAt); err != nil {
		return nil, err
	}
	return &conv, nil
}

// InsertContextSummary appends a new long-term summary row (spec
// §4.7's aggregation source; §3's append-only lifecycle).
func (c *Client) InsertContextSummary(ctx context.Context, s models.LLMContextSummary) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO llm_context_summaries (id, user_id, conversation_id, summary, context_type, token_count)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
		id, s.UserID, s.ConversationID, s.Summary, string(s.ContextType), s.TokenCount)
	return id, err
}

// ListContextSummaries satisfies context.SummaryStore.
func (c *Client) ListContextSummaries(ctx context.Context, userID string) ([]models.LLMContextSummary, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, COALESCE(conversation_id::text, ''), summary, context_type, token_count, created_at
		 FROM llm_context_summaries WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LLMContextSummary
	for rows.Next() {
		var s models.LLMContextSummary
		var ctxType string
		if err := rows.Scan(&s.ID, &s.UserID, &s.ConversationID, &s.Summary, &ctxType, &s.TokenCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.ContextType = models.ContextType(ctxType)
		out = append(out, s)
	}
	return out, rows.Err()
}
