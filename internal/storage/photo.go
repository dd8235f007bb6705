package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func (c *Client) InsertPhotoSession(ctx context.Context, s models.PhotoSession) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO photo_sessions (id, user_id, condition_name, description, is_sensitive)
		 VALUES ($1, $2, $3, $4, $5)`, id, s.UserID, s.ConditionName, s.Description, s.IsSensitive)
	return id, err
}

func (c *Client) GetPhotoSession(ctx context.Context, id string) (*models.PhotoSession, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, condition_name, description, is_sensitive, created_at, last_photo_at
		 FROM photo_sessions WHERE id = $1`, id)
	var s models.PhotoSession
	if err := row.Scan(&s.ID, &s.UserID, &s.ConditionName, &s.Description, &s.IsSensitive, &s.CreatedAt, &s.LastPhotoAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListPhotoSessions(ctx context.Context, userID string) ([]models.PhotoSession, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, condition_name, description, is_sensitive, created_at, last_photo_at
		 FROM photo_sessions WHERE user_id = $1 ORDER BY last_photo_at DESC`, userID)
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

func (c *Client) DeletePhotoSession(ctx context.Context, id string) error {
	_, err := c.Pool.Exec(ctx, `DELETE FROM photo_sessions WHERE id = $1`, id)
	return err
}

func (c *Client) TouchPhotoSession(ctx context.Context, id string) error {
	_, err := c.Pool.Exec(ctx, `UPDATE photo_sessions SET last_photo_at = now() WHERE id = $1`, id)
	return err
}

func (c *Client) InsertPhotoUpload(ctx context.Context, u models.PhotoUpload) (string, error) {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO photo_uploads (id, session_id, category, storage_url, temporary_data, file_metadata,
		 quality_score, is_followup, followup_notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, u.SessionID, string(u.Category), u.StorageURL, u.TemporaryData, marshalJSON(u.FileMetadata),
		u.QualityScore, u.IsFollowUp, u.FollowUpNotes)
	return id, err
}

func (c *Client) ListPhotoUploads(ctx context.Context, sessionID string) ([]models.PhotoUpload, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, session_id, category, storage_url, temporary_data, file_metadata, quality_score,
		 is_followup, followup_notes, uploaded_at FROM photo_uploads WHERE session_id = $1 ORDER BY uploaded_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PhotoUpload
	for rows.Next() {
		var u models.PhotoUpload
		var category string
		var meta []byte
		if err := rows.Scan(&u.ID, &u.SessionID, &category, &u.StorageURL, &u.TemporaryData, &meta,
			&u.QualityScore, &u.IsFollowUp, &u.FollowUpNotes, &u.UploadedAt); err != nil {
			return nil, err
		}
		u.Category = models.PhotoCategory(category)
		u.FileMetadata = unmarshalJSONMap(meta)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (c *Client) GetPhotoUploadsByIDs(ctx context.Context, ids []string) ([]models.PhotoUpload, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, session_id, category, storage_url, temporary_data, file_metadata, quality_score,
		 is_followup, followup_notes, uploaded_at FROM photo_uploads WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PhotoUpload
	for rows.Next() {
		var u models.PhotoUpload
		var category string
		var meta []byte
		if err := rows.Scan(&u.ID, &u.SessionID, &category, &u.StorageURL, &u.TemporaryData, &meta,
			&u.QualityScore, &u.IsFollowUp, &u.FollowUpNotes, &u.UploadedAt); err != nil {
			return nil, err
		}
		u.Category = models.PhotoCategory(category)
		u.FileMetadata = unmarshalJSONMap(meta)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (c *Client) InsertPhotoAnalysis(ctx context.Context, a models.PhotoAnalysis) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO photo_analyses (id, session_id, photo_ids, analysis_data, model_used, confidence_score,
		 is_sensitive, expires_at, comparison)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, a.SessionID, marshalJSON(a.PhotoIDs), marshalJSON(a.AnalysisData), a.ModelUsed, a.ConfidenceScore,
		a.IsSensitive, a.ExpiresAt, marshalJSON(a.Comparison))
	return id, err
}

func (c *Client) ListPhotoAnalyses(ctx context.Context, sessionID string) ([]models.PhotoAnalysis, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, session_id, photo_ids, analysis_data, model_used, confidence_score, is_sensitive,
		 expires_at, comparison, created_at FROM photo_analyses WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PhotoAnalysis
	for rows.Next() {
		var a models.PhotoAnalysis
		var photoIDs, analysisData, comparison []byte
		if err := rows.Scan(&a.ID, &a.SessionID, &photoIDs, &analysisData, &a.ModelUsed, &a.ConfidenceScore,
			&a.IsSensitive, &a.ExpiresAt, &comparison, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.PhotoIDs = unmarshalJSONStrings(photoIDs)
		a.AnalysisData = unmarshalJSONMap(analysisData)
		if comparison != nil {
			a.Comparison = unmarshalJSONMap(comparison)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListExpiredSensitivePhotoAnalyses finds sensitive-photo analyses past
// their TTL, for internal/cleanup's retention scan (spec §3's "expires
// with the analysis" lifecycle rule).
func (c *Client) ListExpiredSensitivePhotoAnalyses(ctx context.Context) ([]string, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id FROM photo_analyses WHERE is_sensitive = true AND expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurgeExpiredPhotoAnalysis removes the analysis row and scrubs any
// still-inline sensitive upload bytes tied to it.
func (c *Client) PurgeExpiredPhotoAnalysis(ctx context.Context, analysisID string) error {
	if _, err := c.Pool.Exec(ctx,
		`UPDATE photo_uploads SET temporary_data = '' WHERE category = 'medical_sensitive'
		 AND id::text IN (SELECT jsonb_array_elements_text(photo_ids) FROM photo_analyses
		 WHERE id = $1 AND jsonb_typeof(photo_ids) = 'array')`, analysisID); err != nil {
		return err
	}
	_, err := c.Pool.Exec(ctx, `DELETE FROM photo_analyses WHERE id = $1`, analysisID)
	return err
}

// ScrubExpiredTemporaryData blanks temporary_data for a session's
// medical_sensitive uploads that are more than 24 hours old; it does
// not look at which analyses reference them.
func (c *Client) ScrubExpiredTemporaryData(ctx context.Context, sessionID string) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE photo_uploads SET temporary_data = '' WHERE session_id = $1 AND category = 'medical_sensitive'
		 AND uploaded_at < now() - interval '24 hours'`, sessionID)
	return err
}

func (c *Client) UpsertPhotoReminder(ctx context.Context, r models.PhotoReminder) error {
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO photo_reminders (session_id, analysis_id, user_id, enabled, interval_days,
		 reminder_method, next_reminder_date, ai_reasoning)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (session_id) DO UPDATE SET analysis_id = excluded.analysis_id, enabled = excluded.enabled,
		 interval_days = excluded.interval_days, reminder_method = excluded.reminder_method,
		 next_reminder_date = excluded.next_reminder_date, ai_reasoning = excluded.ai_reasoning`,
		r.SessionID, r.AnalysisID, r.UserID, r.Enabled, r.IntervalDays, r.ReminderMethod, r.NextReminderDate, r.AIReasoning)
	return err
}
