package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertFollowUp appends a new node to a follow-up chain. FollowUpNumber
// must already be computed by the caller as max+1 within ChainID (spec
// §4.13's strictly-increasing invariant).
func (c *Client) InsertFollowUp(ctx context.Context, f models.AssessmentFollowUp) (string, error) {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO assessment_follow_ups (id, chain_id, parent_follow_up_id, source_type, source_id,
		 follow_up_number, base_responses, ai_questions, analysis_result, primary_assessment,
		 confidence_score, confidence_change, assessment_evolution, days_since_original)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, f.ChainID, f.ParentFollowUpID, f.SourceType, f.SourceID, f.FollowUpNumber, marshalJSON(f.BaseResponses),
		marshalJSON(f.AIQuestions), marshalJSON(f.AnalysisResult), f.PrimaryAssessment, f.ConfidenceScore,
		f.ConfidenceChange, marshalJSON(f.AssessmentEvolution), f.DaysSinceOriginal)
	return id, err
}

// ListFollowUpChain returns every node of a chain in number order.
func (c *Client) ListFollowUpChain(ctx context.Context, chainID string) ([]models.AssessmentFollowUp, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, chain_id, COALESCE(parent_follow_up_id::text, ''), source_type, source_id, follow_up_number,
		 base_responses, ai_questions, analysis_result, primary_assessment, confidence_score, confidence_change,
		 assessment_evolution, days_since_original, created_at
		 FROM assessment_follow_ups WHERE chain_id = $1 ORDER BY follow_up_number ASC`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AssessmentFollowUp
	for rows.Next() {
		var f models.AssessmentFollowUp
		var baseResponses, aiQuestions, analysisResult, evolution []byte
		if err := rows.Scan(&f.ID, &f.ChainID, &f.ParentFollowUpID, &f.SourceType, &f.SourceID, &f.FollowUpNumber,
			&baseResponses, &aiQuestions, &analysisResult, &f.PrimaryAssessment, &f.ConfidenceScore, &f.ConfidenceChange,
			&evolution, &f.DaysSinceOriginal, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.BaseResponses = unmarshalJSONMap(baseResponses)
		f.AIQuestions = unmarshalJSONStrings(aiQuestions)
		f.AnalysisResult = unmarshalJSONMap(analysisResult)
		f.AssessmentEvolution = unmarshalJSONMap(evolution)
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestFollowUpNumber returns the highest FollowUpNumber in a chain, or
// 0 if the chain has no nodes yet (caller then uses source_id as node 0).
func (c *Client) LatestFollowUpNumber(ctx context.Context, chainID string) (int, error) {
	var n *int
	err := c.Pool.QueryRow(ctx,
		`SELECT MAX(follow_up_number) FROM assessment_follow_ups WHERE chain_id = $1`, chainID).Scan(&n)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}

// InsertFollowUpEvent appends an audit row for the chain engine.
func (c *Client) InsertFollowUpEvent(ctx context.Context, chainID, eventType string, data map[string]any) error {
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO follow_up_events (id, chain_id, event_type, event_data) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), chainID, eventType, marshalJSON(data))
	return err
}
