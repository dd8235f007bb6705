package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertQuickScan persists a new QuickScan row, assigning an id if
// absent, and returns the assigned id.
func (c *Client) InsertQuickScan(ctx context.Context, s models.QuickScan) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO quick_scans (id, user_id, body_parts, is_multi_part, form_data, analysis_result,
		 confidence_score, urgency_level, follow_up_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, s.UserID, marshalJSON(s.BodyParts), s.IsMultiPart, marshalJSON(s.FormData), marshalJSON(s.AnalysisResult),
		s.ConfidenceScore, string(s.UrgencyLevel), marshalJSON(s.FollowUpQuestions))
	return id, err
}

// GetQuickScan fetches one QuickScan by id.
func (c *Client) GetQuickScan(ctx context.Context, id string) (*models.QuickScan, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, body_parts, is_multi_part, form_data, analysis_result, confidence_score,
		 urgency_level, enhanced_analysis, ultra_analysis, follow_up_questions, created_at
		 FROM quick_scans WHERE id = $1`, id)

	var s models.QuickScan
	var bodyParts, formData, analysis, followUp []byte
	var enhanced, ultra []byte
	var urgency string
	if err := row.Scan(&s.ID, &s.UserID, &bodyParts, &s.IsMultiPart, &formData, &analysis, &s.ConfidenceScore,
		&urgency, &enhanced, &ultra, &followUp, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.BodyParts = unmarshalJSONStrings(bodyParts)
	s.FormData = unmarshalJSONMap(formData)
	s.AnalysisResult = unmarshalJSONMap(analysis)
	s.UrgencyLevel = models.UrgencyLevel(urgency)
	s.FollowUpQuestions = unmarshalJSONStrings(followUp)
	if enhanced != nil {
		s.EnhancedAnalysis = unmarshalJSONMap(enhanced)
	}
	if ultra != nil {
		s.UltraAnalysis = unmarshalJSONMap(ultra)
	}
	return &s, nil
}

// ListQuickScansByUser returns a user's quick scans, most recent first,
// for tracking's past-scans source picker (spec §4.8).
func (c *Client) ListQuickScansByUser(ctx context.Context, userID string) ([]models.QuickScan, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, body_parts, is_multi_part, confidence_score, urgency_level, created_at
		 FROM quick_scans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QuickScan
	for rows.Next() {
		var s models.QuickScan
		var bodyParts []byte
		var urgency string
		if err := rows.Scan(&s.ID, &s.UserID, &bodyParts, &s.IsMultiPart, &s.ConfidenceScore, &urgency, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.BodyParts = unmarshalJSONStrings(bodyParts)
		s.UrgencyLevel = models.UrgencyLevel(urgency)
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateQuickScanEnhancedAnalysis attaches a think-harder pass without
// mutating the original AnalysisResult (spec §3 lifecycle).
func (c *Client) UpdateQuickScanEnhancedAnalysis(ctx context.Context, id string, value map[string]any) error {
	_, err := c.Pool.Exec(ctx, `UPDATE quick_scans SET enhanced_analysis = $2 WHERE id = $1`, id, marshalJSON(value))
	return err
}

// UpdateQuickScanUltraAnalysis attaches an ultra-think pass without
// mutating the original AnalysisResult.
func (c *Client) UpdateQuickScanUltraAnalysis(ctx context.Context, id string, value map[string]any) error {
	_, err := c.Pool.Exec(ctx, `UPDATE quick_scans SET ultra_analysis = $2 WHERE id = $1`, id, marshalJSON(value))
	return err
}

// AppendQuickScanFollowUpQuestions replaces the ask-more question list.
func (c *Client) AppendQuickScanFollowUpQuestions(ctx context.Context, id string, questions []string) error {
	_, err := c.Pool.Exec(ctx, `UPDATE quick_scans SET follow_up_questions = $2 WHERE id = $1`, id, marshalJSON(questions))
	return err
}
