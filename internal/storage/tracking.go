package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertTrackingSuggestion persists an AI-derived candidate metric.
func (c *Client) InsertTrackingSuggestion(ctx context.Context, s models.TrackingSuggestion) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO tracking_suggestions (id, user_id, source_type, source_id, metric_name, y_axis_label,
		 y_axis_type, y_axis_min, y_axis_max, tracking_type, symptom_keywords, suggested_questions,
		 ai_reasoning, confidence_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, s.UserID, s.SourceType, s.SourceID, s.MetricName, s.YAxisLabel, s.YAxisType, s.YAxisMin, s.YAxisMax,
		string(s.TrackingType), marshalJSON(s.SymptomKeywords), marshalJSON(s.SuggestedQuestions), s.AIReasoning, s.ConfidenceScore)
	return id, err
}

// ListPendingTrackingSuggestions returns suggestions awaiting a user
// decision (ActionTaken == "").
func (c *Client) ListPendingTrackingSuggestions(ctx context.Context, userID string) ([]models.TrackingSuggestion, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, source_type, source_id, metric_name, y_axis_label, y_axis_type, y_axis_min,
		 y_axis_max, tracking_type, symptom_keywords, suggested_questions, ai_reasoning, confidence_score,
		 action_taken, actioned_at, created_at
		 FROM tracking_suggestions WHERE user_id = $1 AND action_taken = '' ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrackingSuggestion
	for rows.Next() {
		var s models.TrackingSuggestion
		var trackingType string
		var keywords, questions []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.SourceType, &s.SourceID, &s.MetricName, &s.YAxisLabel, &s.YAxisType,
			&s.YAxisMin, &s.YAxisMax, &trackingType, &keywords, &questions, &s.AIReasoning, &s.ConfidenceScore,
			&s.ActionTaken, &s.ActionedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TrackingType = models.TrackingType(trackingType)
		s.SymptomKeywords = unmarshalJSONStrings(keywords)
		s.SuggestedQuestions = unmarshalJSONStrings(questions)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrackingSuggestion fetches one suggestion by id.
func (c *Client) GetTrackingSuggestion(ctx context.Context, id string) (*models.TrackingSuggestion, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, source_type, source_id, metric_name, y_axis_label, y_axis_type, y_axis_min,
		 y_axis_max, tracking_type, symptom_keywords, suggested_questions, ai_reasoning, confidence_score,
		 action_taken, actioned_at, created_at
		 FROM tracking_suggestions WHERE id = $1`, id)

	var s models.TrackingSuggestion
	var trackingType string
	var keywords, questions []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.SourceType, &s.SourceID, &s.MetricName, &s.YAxisLabel, &s.YAxisType,
		&s.YAxisMin, &s.YAxisMax, &trackingType, &keywords, &questions, &s.AIReasoning, &s.ConfidenceScore,
		&s.ActionTaken, &s.ActionedAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.TrackingType = models.TrackingType(trackingType)
	s.SymptomKeywords = unmarshalJSONStrings(keywords)
	s.SuggestedQuestions = unmarshalJSONStrings(questions)
	return &s, nil
}

// MarkTrackingSuggestionActioned records the user's approve/dismiss
// decision (spec §4.8: suggestions are immutable once actioned).
func (c *Client) MarkTrackingSuggestionActioned(ctx context.Context, id, action string) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE tracking_suggestions SET action_taken = $2, actioned_at = now() WHERE id = $1`, id, action)
	return err
}

// InsertTrackingConfiguration creates an approved metric.
func (c *Client) InsertTrackingConfiguration(ctx context.Context, cfg models.TrackingConfiguration) (string, error) {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO tracking_configurations (id, user_id, suggestion_id, metric_name, y_axis_label, y_axis_type,
		 y_axis_min, y_axis_max, show_on_homepage)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		id, cfg.UserID, cfg.SuggestionID, cfg.MetricName, cfg.YAxisLabel, cfg.YAxisType, cfg.YAxisMin, cfg.YAxisMax, cfg.ShowOnHomepage)
	return id, err
}

// ListTrackingConfigurations returns a user's approved metrics.
func (c *Client) ListTrackingConfigurations(ctx context.Context, userID string) ([]models.TrackingConfiguration, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, COALESCE(suggestion_id::text, ''), metric_name, y_axis_label, y_axis_type, y_axis_min,
		 y_axis_max, show_on_homepage, data_points_count, last_data_point, created_at
		 FROM tracking_configurations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrackingConfiguration
	for rows.Next() {
		var cfg models.TrackingConfiguration
		if err := rows.Scan(&cfg.ID, &cfg.UserID, &cfg.SuggestionID, &cfg.MetricName, &cfg.YAxisLabel, &cfg.YAxisType,
			&cfg.YAxisMin, &cfg.YAxisMax, &cfg.ShowOnHomepage, &cfg.DataPointsCount, &cfg.LastDataPoint, &cfg.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// InsertTrackingDataPoint records one measurement and bumps the parent
// configuration's rollup counters in the same call.
func (c *Client) InsertTrackingDataPoint(ctx context.Context, dp models.TrackingDataPoint) (string, error) {
	id := dp.ID
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO tracking_data_points (id, configuration_id, user_id, value, notes, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))`,
		id, dp.ConfigurationID, dp.UserID, dp.Value, dp.Notes, dp.RecordedAt); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tracking_configurations SET data_points_count = data_points_count + 1, last_data_point = now()
		 WHERE id = $1`, dp.ConfigurationID); err != nil {
		return "", err
	}
	return id, tx.Commit(ctx)
}

// ListTrackingDataPoints returns a configuration's history, oldest first.
func (c *Client) ListTrackingDataPoints(ctx context.Context, configurationID string) ([]models.TrackingDataPoint, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, configuration_id, user_id, value, notes, recorded_at
		 FROM tracking_data_points WHERE configuration_id = $1 ORDER BY recorded_at ASC`, configurationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrackingDataPoint
	for rows.Next() {
		var dp models.TrackingDataPoint
		if err := rows.Scan(&dp.ID, &dp.ConfigurationID, &dp.UserID, &dp.Value, &dp.Notes, &dp.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}
