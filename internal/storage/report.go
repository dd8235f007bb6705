package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertReportAnalysis persists the classification/scoping decision
// made by ReportOrchestrator.analyze.
func (c *Client) InsertReportAnalysis(ctx context.Context, a models.ReportAnalysis) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO report_analyses (id, user_id, recommended_type, report_config, quick_scan_ids, deep_dive_ids,
		 photo_session_ids, general_assessment_ids, general_deep_dive_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, a.UserID, a.RecommendedType, marshalJSON(a.ReportConfig), marshalJSON(a.QuickScanIDs),
		marshalJSON(a.DeepDiveIDs), marshalJSON(a.PhotoSessionIDs), marshalJSON(a.GeneralAssessmentIDs),
		marshalJSON(a.GeneralDeepDiveIDs))
	return id, err
}

// GetReportAnalysis fetches a prior analysis, letting generate() be
// called with just its id (spec §4.14's two-phase analyze/generate).
func (c *Client) GetReportAnalysis(ctx context.Context, id string) (*models.ReportAnalysis, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, recommended_type, report_config, quick_scan_ids, deep_dive_ids, photo_session_ids,
		 general_assessment_ids, general_deep_dive_ids, created_at FROM report_analyses WHERE id = $1`, id)

	var a models.ReportAnalysis
	var config, quickScans, deepDives, photoSessions, generalAssess, generalDeepDives []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.RecommendedType, &config, &quickScans, &deepDives, &photoSessions,
		&generalAssess, &generalDeepDives, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ReportConfig = unmarshalJSONMap(config)
	a.QuickScanIDs = unmarshalJSONStrings(quickScans)
	a.DeepDiveIDs = unmarshalJSONStrings(deepDives)
	a.PhotoSessionIDs = unmarshalJSONStrings(photoSessions)
	a.GeneralAssessmentIDs = unmarshalJSONStrings(generalAssess)
	a.GeneralDeepDiveIDs = unmarshalJSONStrings(generalDeepDives)
	return &a, nil
}

// InsertReport persists a generated report.
func (c *Client) InsertReport(ctx context.Context, r models.Report) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO reports (id, user_id, analysis_id, report_type, specialty, report_data, executive_summary,
		 confidence_score, model_used, time_range_start, time_range_end)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, r.UserID, r.AnalysisID, r.ReportType, r.Specialty, marshalJSON(r.ReportData), r.ExecutiveSummary,
		r.ConfidenceScore, r.ModelUsed, r.TimeRangeStart, r.TimeRangeEnd)
	return id, err
}

// GetReport fetches one report by id.
func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(analysis_id::text, ''), report_type, specialty, report_data, executive_summary,
		 confidence_score, model_used, time_range_start, time_range_end, doctor_reviewed, doctor_notes,
		 share_token, share_expires_at, doctor_rating_sum, doctor_rating_count, created_at
		 FROM reports WHERE id = $1`, id)

	var r models.Report
	var data []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.AnalysisID, &r.ReportType, &r.Specialty, &data, &r.ExecutiveSummary,
		&r.ConfidenceScore, &r.ModelUsed, &r.TimeRangeStart, &r.TimeRangeEnd, &r.DoctorReviewed, &r.DoctorNotes,
		&r.ShareToken, &r.ShareExpiresAt, &r.DoctorRatingSum, &r.DoctorRatingCount, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ReportData = unmarshalJSONMap(data)
	return &r, nil
}

// ListReports returns a user's reports, newest first.
func (c *Client) ListReports(ctx context.Context, userID string) ([]models.Report, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, COALESCE(analysis_id::text, ''), report_type, specialty, report_data, executive_summary,
		 confidence_score, model_used, time_range_start, time_range_end, doctor_reviewed, doctor_notes,
		 share_token, share_expires_at, doctor_rating_sum, doctor_rating_count, created_at
		 FROM reports WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var r models.Report
		var data []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.AnalysisID, &r.ReportType, &r.Specialty, &data, &r.ExecutiveSummary,
			&r.ConfidenceScore, &r.ModelUsed, &r.TimeRangeStart, &r.TimeRangeEnd, &r.DoctorReviewed, &r.DoctorNotes,
			&r.ShareToken, &r.ShareExpiresAt, &r.DoctorRatingSum, &r.DoctorRatingCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ReportData = unmarshalJSONMap(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetReportShareToken generates a shareable link with an expiry.
func (c *Client) SetReportShareToken(ctx context.Context, id, token string) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE reports SET share_token = $2, share_expires_at = now() + interval '30 days' WHERE id = $1`, id, token)
	return err
}

// GetReportByShareToken fetches a report via its public share link,
// returning nil if the token is unknown or expired.
func (c *Client) GetReportByShareToken(ctx context.Context, token string) (*models.Report, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(analysis_id::text, ''), report_type, specialty, report_data, executive_summary,
		 confidence_score, model_used, time_range_start, time_range_end, doctor_reviewed, doctor_notes,
		 share_token, share_expires_at, doctor_rating_sum, doctor_rating_count, created_at
		 FROM reports WHERE share_token = $1 AND share_expires_at > now()`, token)

	var r models.Report
	var data []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.AnalysisID, &r.ReportType, &r.Specialty, &data, &r.ExecutiveSummary,
		&r.ConfidenceScore, &r.ModelUsed, &r.TimeRangeStart, &r.TimeRangeEnd, &r.DoctorReviewed, &r.DoctorNotes,
		&r.ShareToken, &r.ShareExpiresAt, &r.DoctorRatingSum, &r.DoctorRatingCount, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ReportData = unmarshalJSONMap(data)
	return &r, nil
}

// RecordDoctorRating accumulates a 1-5 rating into the running sum/count.
func (c *Client) RecordDoctorRating(ctx context.Context, id string, rating int) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE reports SET doctor_rating_sum = doctor_rating_sum + $2, doctor_rating_count = doctor_rating_count + 1
		 WHERE id = $1`, id, rating)
	return err
}

// SetDoctorReview records a clinician's review note.
func (c *Client) SetDoctorReview(ctx context.Context, id, notes string) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE reports SET doctor_reviewed = true, doctor_notes = $2 WHERE id = $1`, id, notes)
	return err
}
