package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertDeepDiveSession persists a new session (spec §4.9 start()).
func (c *Client) InsertDeepDiveSession(ctx context.Context, s models.DeepDiveSession) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO deep_dive_sessions (id, user_id, body_parts, form_data, model_used, questions,
		 current_step, internal_state, last_question, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, s.UserID, marshalJSON(s.BodyParts), marshalJSON(s.FormData), s.ModelUsed, marshalJSON(s.Questions),
		s.CurrentStep, marshalJSON(s.InternalState), s.LastQuestion, string(s.Status))
	return id, err
}

// ListDeepDivesByUser returns a user's deep-dive sessions, most recent
// first, for tracking's past-dives source picker (spec §4.8).
func (c *Client) ListDeepDivesByUser(ctx context.Context, userID string) ([]models.DeepDiveSession, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, body_parts, status, final_confidence, created_at
		 FROM deep_dive_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeepDiveSession
	for rows.Next() {
		var s models.DeepDiveSession
		var bodyParts []byte
		var status string
		if err := rows.Scan(&s.ID, &s.UserID, &bodyParts, &status, &s.FinalConfidence, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.BodyParts = unmarshalJSONStrings(bodyParts)
		s.Status = models.DeepDiveStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetDeepDiveSession fetches one session by id, deserializing all JSON
// columns (spec §5: questions[] must come back in stored order).
func (c *Client) GetDeepDiveSession(ctx context.Context, id string) (*models.DeepDiveSession, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, body_parts, form_data, model_used, questions, current_step, internal_state,
		 last_question, status, final_analysis, final_confidence, initial_questions_count,
		 additional_questions, allow_more_questions, enhanced_analysis, enhanced_confidence,
		 confidence_improvement, ultra_analysis, ultra_confidence, created_at, completed_at
		 FROM deep_dive_sessions WHERE id = $1`, id)

	var s models.DeepDiveSession
	var bodyParts, formData, questions, internalState, finalAnalysis, additional, enhanced, ultra []byte
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &bodyParts, &formData, &s.ModelUsed, &questions, &s.CurrentStep, &internalState,
		&s.LastQuestion, &status, &finalAnalysis, &s.FinalConfidence, &s.InitialQuestionsCount,
		&additional, &s.AllowMoreQuestions, &enhanced, &s.EnhancedConfidence,
		&s.ConfidenceImprovement, &ultra, &s.UltraConfidence, &s.CreatedAt, &s.CompletedAt); err != nil {
		return nil, err
	}

	s.BodyParts = unmarshalJSONStrings(bodyParts)
	s.FormData = unmarshalJSONMap(formData)
	s.InternalState = unmarshalJSONMap(internalState)
	s.Status = models.DeepDiveStatus(status)
	unmarshalInto(questions, &s.Questions)
	unmarshalInto(additional, &s.AdditionalQuestions)
	if finalAnalysis != nil {
		s.FinalAnalysis = unmarshalJSONMap(finalAnalysis)
	}
	if enhanced != nil {
		s.EnhancedAnalysis = unmarshalJSONMap(enhanced)
	}
	if ultra != nil {
		s.UltraAnalysis = unmarshalJSONMap(ultra)
	}
	return &s, nil
}

// UpdateDeepDiveProgress atomically writes the appended questions[] and
// the new status/current_step/internal_state in one row update (spec
// §5: "writes to questions[] + status on completion must be atomic").
func (c *Client) UpdateDeepDiveProgress(ctx context.Context, s models.DeepDiveSession) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE deep_dive_sessions SET questions = $2, current_step = $3, internal_state = $4,
		 last_question = $5, status = $6, initial_questions_count = $7, final_confidence = $8
		 WHERE id = $1`,
		s.ID, marshalJSON(s.Questions), s.CurrentStep, marshalJSON(s.InternalState),
		s.LastQuestion, string(s.Status), s.InitialQuestionsCount, s.FinalConfidence)
	return err
}

// CompleteDeepDive writes the final analysis and transitions status in
// one update, leaving status at analysis_ready (spec §4.9: ask-more
// must remain available after complete()).
func (c *Client) CompleteDeepDive(ctx context.Context, id string, finalAnalysis map[string]any, finalConfidence float64) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE deep_dive_sessions SET final_analysis = $2, final_confidence = $3,
		 status = 'analysis_ready', allow_more_questions = true WHERE id = $1`,
		id, marshalJSON(finalAnalysis), finalConfidence)
	return err
}

// UpdateDeepDiveStatus sets only the status column, used by the
// auto-repair path (active -> analysis_ready) in ask_more.
func (c *Client) UpdateDeepDiveStatus(ctx context.Context, id string, status models.DeepDiveStatus) error {
	_, err := c.Pool.Exec(ctx, `UPDATE deep_dive_sessions SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// AppendDeepDiveAdditionalQuestion appends one ask-more question.
func (c *Client) AppendDeepDiveAdditionalQuestion(ctx context.Context, id string, additional []models.AdditionalQuestion) error {
	_, err := c.Pool.Exec(ctx, `UPDATE deep_dive_sessions SET additional_questions = $2 WHERE id = $1`, id, marshalJSON(additional))
	return err
}

// UpdateDeepDiveThinkHarder stores the enhanced second-pass analysis.
func (c *Client) UpdateDeepDiveThinkHarder(ctx context.Context, id string, analysis map[string]any, confidence, improvement float64) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE deep_dive_sessions SET enhanced_analysis = $2, enhanced_confidence = $3, confidence_improvement = $4 WHERE id = $1`,
		id, marshalJSON(analysis), confidence, improvement)
	return err
}

// UpdateDeepDiveUltraThink stores the maximum-reasoning pass.
func (c *Client) UpdateDeepDiveUltraThink(ctx context.Context, id string, analysis map[string]any, confidence float64) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE deep_dive_sessions SET ultra_analysis = $2, ultra_confidence = $3 WHERE id = $1`,
		id, marshalJSON(analysis), confidence)
	return err
}
