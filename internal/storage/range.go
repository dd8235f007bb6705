package storage

import (
	"context"
	"time"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// The functions in this file back ReportOrchestrator's comprehensive/
// time-ranged data-gathering mode (spec §4.14): "load all rows for the
// user within time_range.{start,end}" across the listed aggregates.
// Selected mode never calls these — it loads by explicit id list via
// the per-aggregate Get/GetByIDs helpers instead.

// ListQuickScansByUserRange returns a user's quick scans created within
// [start, end].
func (c *Client) ListQuickScansByUserRange(ctx context.Context, userID string, start, end time.Time) ([]models.QuickScan, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, body_parts, is_multi_part, form_data, analysis_result, confidence_score,
		 urgency_level, enhanced_analysis, ultra_analysis, follow_up_questions, created_at
		 FROM quick_scans WHERE user_id = $1 AND created_at BETWEEN $2 AND $3 ORDER BY created_at ASC`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QuickScan
	for rows.Next() {
		var s models.QuickScan
		var bodyParts, formData, analysis, followUp, enhanced, ultra []byte
		var urgency string
		if err := rows.Scan(&s.ID, &s.UserID, &bodyParts, &s.IsMultiPart, &formData, &analysis, &s.ConfidenceScore,
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
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListDeepDiveSessionsByUserRange returns a user's deep dives started
// within [start, end].
func (c *Client) ListDeepDiveSessionsByUserRange(ctx context.Context, userID string, start, end time.Time) ([]models.DeepDiveSession, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, body_parts, form_data, model_used, questions, current_step, internal_state,
		 last_question, status, final_analysis, final_confidence, initial_questions_count,
		 additional_questions, allow_more_questions, enhanced_analysis, enhanced_confidence,
		 confidence_improvement, ultra_analysis, ultra_confidence, created_at, completed_at
		 FROM deep_dive_sessions WHERE user_id = $1 AND created_at BETWEEN $2 AND $3 ORDER BY created_at ASC`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeepDiveSession
	for rows.Next() {
		var s models.DeepDiveSession
		var bodyParts, formData, questions, internalState, finalAnalysis, additional, enhanced, ultra []byte
		var status string
		if err := rows.Scan(&s.ID, &s.UserID, &bodyParts, &formData, &s.ModelUsed, &questions, &s.CurrentStep, &internalState,
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
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPhotoSessionsByUserRange returns a user's photo sessions whose
// last photo landed within [start, end].
func (c *Client) ListPhotoSessionsByUserRange(ctx context.Context, userID string, start, end time.Time) ([]models.PhotoSession, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, condition_name, description, is_sensitive, created_at, last_photo_at
		 FROM photo_sessions WHERE user_id = $1 AND last_photo_at BETWEEN $2 AND $3 ORDER BY last_photo_at ASC`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PhotoSession
	for rows.Next() {
		var s models.PhotoSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.ConditionName, &s.Description, &s.IsSensitive, &s.CreatedAt, &s.LastPhotoAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListConversationsByUserRange returns a user's oracle_chats
// (conversations) active within [start, end].
func (c *Client) ListConversationsByUserRange(ctx context.Context, userID string, start, end time.Time) ([]models.Conversation, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, title, title_locked, auto_titled, created_at, last_message_at
		 FROM conversations WHERE user_id = $1 AND last_message_at BETWEEN $2 AND $3 ORDER BY last_message_at ASC`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.TitleLocked, &conv.AutoTitled, &conv.CreatedAt, &conv.LastMessageAt); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// ListTrackingDataPointsByUserRange returns every data point a user
// recorded within [start, end], across all of their configurations.
func (c *Client) ListTrackingDataPointsByUserRange(ctx context.Context, userID string, start, end time.Time) ([]models.TrackingDataPoint, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, configuration_id, user_id, value, notes, recorded_at
		 FROM tracking_data_points WHERE user_id = $1 AND recorded_at BETWEEN $2 AND $3 ORDER BY recorded_at ASC`,
		userID, start, end)
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
