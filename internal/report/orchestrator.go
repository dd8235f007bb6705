// Package report implements ReportOrchestrator (spec §4.14): classifies
// a report request, gathers the patient data it needs in either
// selected or comprehensive/time-ranged mode, builds a specialty- or
// type-specific prompt, and persists the generated Report. Grounded on
// internal/deepdive and internal/tracking's "call model, extract,
// persist" shape and tarsy's agent/orchestrator/runner.go for the
// classify-then-dispatch control flow.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/apierr"
	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

// Engine implements Analyze, the generate_* family, and the
// doctor-facing operations.
type Engine struct {
	storage *storage.Client
	llm     *llm.Orchestrator
	models  *modelselect.Selector
}

func New(store *storage.Client, orchestrator *llm.Orchestrator, selector *modelselect.Selector) *Engine {
	return &Engine{storage: store, llm: orchestrator, models: selector}
}

// Specialties is the full list of per-specialty generate_* endpoints
// (spec §4.14, §6.1).
var Specialties = []string{
	"cardiology", "neurology", "psychiatry", "dermatology", "gastroenterology",
	"endocrinology", "pulmonology", "primary_care", "orthopedics", "rheumatology",
	"nephrology", "urology", "gynecology", "oncology", "physical_therapy",
}

func isSpecialty(reportType string) bool {
	for _, s := range Specialties {
		if s == reportType {
			return true
		}
	}
	return false
}

// AnalyzeRequest carries the report-request classification inputs.
type AnalyzeRequest struct {
	UserID          string
	Purpose         string // "", "annual", ...
	Audience        string // "", "specialist"
	SymptomFocus    bool
	EmergencyMarkers bool
	PhotoSessionCount int
	Specialty       string
	TimeRange       *models.TimeRange
	QuickScanIDs    []string
	DeepDiveIDs     []string
	PhotoSessionIDs []string
}

// AnalyzeResult is returned from Analyze.
type AnalyzeResult struct {
	AnalysisID      string
	RecommendedType string
	Endpoint        string
	TimeRange       models.TimeRange
}

// Analyze classifies a report request and persists a ReportAnalysis
// row scoping what a subsequent generate_* call will gather (spec
// §4.14 analyze()).
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	recommendedType := classify(req)
	timeRange := defaultTimeRange(recommendedType, req.TimeRange)

	analysis := models.ReportAnalysis{
		UserID:          req.UserID,
		RecommendedType: recommendedType,
		ReportConfig: map[string]any{
			"time_range": map[string]any{
				"start": timeRange.Start,
				"end":   timeRange.End,
			},
			"primary_focus": req.Specialty,
			"data_sources":  dataSourcesFor(recommendedType),
		},
		QuickScanIDs:    req.QuickScanIDs,
		DeepDiveIDs:     req.DeepDiveIDs,
		PhotoSessionIDs: req.PhotoSessionIDs,
	}

	id, err := e.storage.InsertReportAnalysis(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("persisting report analysis: %w", err)
	}

	return &AnalyzeResult{
		AnalysisID:      id,
		RecommendedType: recommendedType,
		Endpoint:        "/api/report/" + strings.ReplaceAll(recommendedType, "_", "-"),
		TimeRange:       timeRange,
	}, nil
}

// classify picks a recommended report type per spec §4.14's priority
// order: urgent_triage if emergency markers; annual_summary if annual
// purpose; photo_progression if >=3 photo sessions; symptom_timeline if
// symptom focus; specialist_focused if specialist audience; else
// comprehensive.
func classify(req AnalyzeRequest) string {
	switch {
	case req.EmergencyMarkers:
		return "urgent_triage"
	case req.Purpose == "annual":
		return "annual_summary"
	case req.PhotoSessionCount >= 3:
		return "photo_progression"
	case req.SymptomFocus:
		return "symptom_timeline"
	case req.Audience == "specialist":
		return "specialist_focused"
	default:
		return "comprehensive"
	}
}

func defaultTimeRange(reportType string, supplied *models.TimeRange) models.TimeRange {
	if supplied != nil {
		return *supplied
	}
	now := time.Now()
	var span time.Duration
	switch reportType {
	case "urgent_triage":
		span = 7 * 24 * time.Hour
	case "annual_summary":
		span = 365 * 24 * time.Hour
	case "photo_progression", "symptom_timeline":
		span = 90 * 24 * time.Hour
	default:
		span = 30 * 24 * time.Hour
	}
	return models.TimeRange{Start: now.Add(-span), End: now}
}

func dataSourcesFor(reportType string) []string {
	switch reportType {
	case "photo_progression":
		return []string{"photo_analyses"}
	case "symptom_timeline":
		return []string{"quick_scans", "deep_dives", "symptom_tracking"}
	default:
		return []string{"quick_scans", "deep_dives", "symptom_tracking", "tracking_configurations", "oracle_chats", "photo_analyses"}
	}
}

// gatheredData is the union of everything a generate_* prompt draws on.
type gatheredData struct {
	QuickScans     []models.QuickScan
	DeepDives      []models.DeepDiveSession
	PhotoSessions  []models.PhotoSession
	TrackingPoints []models.TrackingDataPoint
	Conversations  []models.Conversation
}

// gather loads report data per spec §4.14's two modes: selected (any
// non-nil id list in the analysis means "load exactly these, nothing
// substituted") or comprehensive/time-ranged (load everything for the
// user within report_config.time_range).
func (e *Engine) gather(ctx context.Context, a *models.ReportAnalysis) (*gatheredData, error) {
	selected := a.QuickScanIDs != nil || a.DeepDiveIDs != nil || a.PhotoSessionIDs != nil
	if selected {
		return e.gatherSelected(ctx, a)
	}
	return e.gatherComprehensive(ctx, a)
}

func (e *Engine) gatherSelected(ctx context.Context, a *models.ReportAnalysis) (*gatheredData, error) {
	data := &gatheredData{}
	for _, id := range a.QuickScanIDs {
		s, err := e.storage.GetQuickScan(ctx, id)
		if err != nil {
			continue
		}
		data.QuickScans = append(data.QuickScans, *s)
	}
	for _, id := range a.DeepDiveIDs {
		s, err := e.storage.GetDeepDiveSession(ctx, id)
		if err != nil {
			continue
		}
		data.DeepDives = append(data.DeepDives, *s)
	}
	for _, id := range a.PhotoSessionIDs {
		s, err := e.storage.GetPhotoSession(ctx, id)
		if err != nil {
			continue
		}
		data.PhotoSessions = append(data.PhotoSessions, *s)
	}
	return data, nil
}

func (e *Engine) gatherComprehensive(ctx context.Context, a *models.ReportAnalysis) (*gatheredData, error) {
	tr := timeRangeFromConfig(a.ReportConfig)

	quickScans, err := e.storage.ListQuickScansByUserRange(ctx, a.UserID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("gathering quick scans: %w", err)
	}
	deepDives, err := e.storage.ListDeepDiveSessionsByUserRange(ctx, a.UserID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("gathering deep dives: %w", err)
	}
	photoSessions, err := e.storage.ListPhotoSessionsByUserRange(ctx, a.UserID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("gathering photo sessions: %w", err)
	}
	trackingPoints, err := e.storage.ListTrackingDataPointsByUserRange(ctx, a.UserID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("gathering tracking data points: %w", err)
	}
	conversations, err := e.storage.ListConversationsByUserRange(ctx, a.UserID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("gathering conversations: %w", err)
	}

	return &gatheredData{
		QuickScans:     quickScans,
		DeepDives:      deepDives,
		PhotoSessions:  photoSessions,
		TrackingPoints: trackingPoints,
		Conversations:  conversations,
	}, nil
}

func timeRangeFromConfig(cfg map[string]any) models.TimeRange {
	now := time.Now()
	tr := models.TimeRange{Start: now.Add(-30 * 24 * time.Hour), End: now}
	raw, ok := cfg["time_range"].(map[string]any)
	if !ok {
		return tr
	}
	if start, ok := timeFromAny(raw["start"]); ok {
		tr.Start = start
	}
	if end, ok := timeFromAny(raw["end"]); ok {
		tr.End = end
	}
	return tr
}

// timeFromAny accepts either a time.Time (the in-memory shape set by
// Analyze) or an RFC3339 string (the shape a ReportConfig comes back
// as after a JSON round-trip through storage, since encoding/json
// decodes arbitrary `any` fields to strings, never to time.Time).
func timeFromAny(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// summarize renders gathered data into a compact textual form for the
// prompt, avoiding a raw struct dump that would blow the token budget
// on large comprehensive windows.
func (d *gatheredData) summarize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quick scans (%d):\n", len(d.QuickScans))
	for _, s := range d.QuickScans {
		fmt.Fprintf(&b, "- %s: %v (confidence %.0f%%, urgency %s)\n",
			s.CreatedAt.Format("2006-01-02"), s.AnalysisResult["assessment"], s.ConfidenceScore, s.UrgencyLevel)
	}
	fmt.Fprintf(&b, "Deep dives (%d):\n", len(d.DeepDives))
	for _, s := range d.DeepDives {
		fmt.Fprintf(&b, "- %s: %v (confidence %.0f%%)\n",
			s.CreatedAt.Format("2006-01-02"), s.FinalAnalysis["primary_assessment"], s.FinalConfidence)
	}
	fmt.Fprintf(&b, "Photo sessions (%d):\n", len(d.PhotoSessions))
	for _, s := range d.PhotoSessions {
		fmt.Fprintf(&b, "- %s (last photo %s)\n", s.ConditionName, s.LastPhotoAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Tracking data points (%d):\n", len(d.TrackingPoints))
	fmt.Fprintf(&b, "Conversations (%d):\n", len(d.Conversations))
	for _, c := range d.Conversations {
		fmt.Fprintf(&b, "- %s\n", c.Title)
	}
	return b.String()
}

// GenerateRequest parameterizes a generate_* call.
type GenerateRequest struct {
	AnalysisID string
	UserID     string
	ReportType string // comprehensive, symptom_timeline, photo_progression, 30_day, annual, annual_summary, or a Specialties entry
	Specialty  string // for specialist_focused / specialty-triage calls
}

// GenerateResult is returned from every generate_* call.
type GenerateResult struct {
	ReportID         string
	ReportData       map[string]any
	ExecutiveSummary string
	ConfidenceScore  float64
	ModelUsed        string
}

// Generate implements the generate_* family (spec §4.14 step 1-4): load
// the ReportAnalysis (creating it on demand for specialist reports with
// a pre-assigned id that has no row yet), gather data per its mode,
// build a specialty/type prompt, call the LLM with a high-reasoning
// model, parse, and persist.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	reportType := req.ReportType
	if reportType == "" {
		return nil, apierr.NewValidation("report_type", "report type is required")
	}

	analysis, err := e.storage.GetReportAnalysis(ctx, req.AnalysisID)
	if err != nil {
		if req.UserID == "" {
			return nil, fmt.Errorf("%w: report analysis %s", apierr.ErrNotFound, req.AnalysisID)
		}
		// Specialist reports may arrive with a frontend-assigned analysis
		// id that has no backing row yet; create it on demand.
		created := models.ReportAnalysis{
			ID:              req.AnalysisID,
			UserID:          req.UserID,
			RecommendedType: reportType,
			ReportConfig: map[string]any{
				"time_range":    map[string]any{"start": time.Now().Add(-90 * 24 * time.Hour), "end": time.Now()},
				"primary_focus": req.Specialty,
				"data_sources":  dataSourcesFor(reportType),
			},
		}
		if _, err := e.storage.InsertReportAnalysis(ctx, created); err != nil {
			return nil, fmt.Errorf("creating report analysis on demand: %w", err)
		}
		analysis = &created
	}

	data, err := e.gather(ctx, analysis)
	if err != nil {
		return nil, err
	}

	specialty := req.Specialty
	if specialty == "" && isSpecialty(reportType) {
		specialty = reportType
	}

	systemPrompt := buildPrompt(reportType, specialty, data)

	candidates := e.models.Models(models.TierPro, config.EndpointReports, true)
	if len(candidates) == 0 {
		candidates = e.models.Models(models.TierFree, config.EndpointReports, false)
	}
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Generate the report now, following the JSON schema exactly."},
		},
		UserID:        analysis.UserID,
		Endpoint:      config.EndpointReports,
		ReasoningMode: true,
		Temperature:   0.2,
		MaxTokens:     4000,
	})
	if err != nil {
		return nil, fmt.Errorf("report generation call: %w", err)
	}

	reportData, ok := jsonx.AsObject(result.Content)
	if !ok {
		reportData = map[string]any{"executive_summary": result.Content}
	}

	executiveSummary := stringField(reportData, "executive_summary", "")
	confidence := floatField(reportData, "confidence", 0)

	tr := timeRangeFromConfig(analysis.ReportConfig)
	report := models.Report{
		UserID:           analysis.UserID,
		AnalysisID:       analysis.ID,
		ReportType:       reportType,
		Specialty:        specialty,
		ReportData:       reportData,
		ExecutiveSummary: executiveSummary,
		ConfidenceScore:  confidence,
		ModelUsed:        result.Model,
		TimeRangeStart:   &tr.Start,
		TimeRangeEnd:     &tr.End,
	}

	id, err := e.storage.InsertReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("persisting report: %w", err)
	}

	return &GenerateResult{
		ReportID:         id,
		ReportData:       reportData,
		ExecutiveSummary: executiveSummary,
		ConfidenceScore:  confidence,
		ModelUsed:        result.Model,
	}, nil
}

// buildPrompt produces a type- or specialty-specific instruction
// prompt. Every report shares the same base JSON schema (spec §4.14
// step 3); specialty reports append a focused instruction naming the
// clinical scales the model should score.
func buildPrompt(reportType, specialty string, data *gatheredData) string {
	base := fmt.Sprintf(
		"You are preparing a clinical summary report from a patient's self-reported health history.\n\n"+
			"Report type: %s\nPatient data:\n%s\n\n"+
			"Return JSON: {\"executive_summary\": string, \"clinical_summary\": string, "+
			"\"specialist_focus\": string, \"recommendations\": {\"immediate\": [string], "+
			"\"follow_up\": [string], \"lifestyle\": [string]}, \"clinical_scales\": "+
			"[{\"name\": string, \"score\": number, \"confidence\": number}], \"confidence\": number 0-100}.",
		reportType, data.summarize())

	instruction, ok := specialtyInstructions[specialty]
	if !ok {
		instruction, ok = typeInstructions[reportType]
	}
	if ok {
		base += "\n\nFocus instruction: " + instruction
	}
	return base
}

var typeInstructions = map[string]string{
	"comprehensive":     "Cover every data source gathered with equal weight; no single condition should dominate.",
	"symptom_timeline":  "Build a chronological narrative of how reported symptoms evolved across entries.",
	"photo_progression": "Describe visible changes across photo sessions over time, referencing dates.",
	"30_day":            "Limit clinical_summary to findings from the last 30 days only.",
	"annual":            "Summarize the full year, highlighting trends month over month.",
	"annual_summary":    "Produce an executive-level yearly summary suitable for a primary care visit.",
	"urgent_triage":     "Prioritize any emergency markers and red flags; keep the summary terse and action-first.",
	"specialist_focused": "Tailor clinical_summary and specialist_focus to the referral specialty implied by the data.",
}

var specialtyInstructions = map[string]string{
	"cardiology":       "Score clinical_scales using cardiovascular risk factors (chest pain character, exertional symptoms, palpitations).",
	"neurology":        "Score clinical_scales using neurological exam correlates (headache pattern, focal deficits, sensory changes).",
	"psychiatry":       "Score clinical_scales using standard mood/anxiety screening domains; avoid diagnostic labels not supported by data.",
	"dermatology":      "Describe lesion evolution and score a standardized severity scale appropriate to the condition.",
	"gastroenterology": "Score clinical_scales using GI symptom frequency/severity (bowel habit changes, pain pattern).",
	"endocrinology":    "Score clinical_scales using metabolic/hormonal trend indicators present in the tracked data.",
	"pulmonology":      "Score clinical_scales using respiratory symptom burden (dyspnea, cough frequency, trigger pattern).",
	"primary_care":     "Provide a broad, generalist summary suitable for a first point-of-contact visit.",
	"orthopedics":      "Score clinical_scales using functional/mobility impact and pain-with-movement pattern.",
	"rheumatology":      "Score clinical_scales using joint involvement pattern and systemic symptom burden.",
	"nephrology":       "Score clinical_scales using fluid balance and urinary symptom indicators.",
	"urology":          "Score clinical_scales using urinary symptom frequency/severity.",
	"gynecology":       "Score clinical_scales using cycle-related and reproductive health indicators present in the data.",
	"oncology":         "Flag any red-flag findings prominently; keep tone measured and avoid unsupported prognosis claims.",
	"physical_therapy": "Score clinical_scales using functional mobility and pain-with-activity measures.",
}

// ListReports returns a user's reports, newest first.
func (e *Engine) ListReports(ctx context.Context, userID string) ([]models.Report, error) {
	return e.storage.ListReports(ctx, userID)
}

// GetReport fetches one report by id.
func (e *Engine) GetReport(ctx context.Context, id string) (*models.Report, error) {
	return e.storage.GetReport(ctx, id)
}

// DoctorNotesRequest carries a clinician review submission.
type DoctorNotesRequest struct {
	ReportID string
	Notes    string
}

// DoctorNotes appends reviewer notes and marks the report reviewed
// (spec §4.14 doctor_notes()).
func (e *Engine) DoctorNotes(ctx context.Context, req DoctorNotesRequest) error {
	if req.Notes == "" {
		return apierr.NewValidation("notes", "notes text is required")
	}
	return e.storage.SetDoctorReview(ctx, req.ReportID, req.Notes)
}

// ShareResult returns a generated share link's token.
type ShareResult struct {
	Token string
}

// Share creates a time-limited share link for a report (spec §4.14
// share()).
func (e *Engine) Share(ctx context.Context, reportID string) (*ShareResult, error) {
	token := newShareToken()
	if err := e.storage.SetReportShareToken(ctx, reportID, token); err != nil {
		return nil, fmt.Errorf("creating share link: %w", err)
	}
	return &ShareResult{Token: token}, nil
}

// GetByShareToken resolves a report via its public share link.
func (e *Engine) GetByShareToken(ctx context.Context, token string) (*models.Report, error) {
	r, err := e.storage.GetReportByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: share token", apierr.ErrNotFound)
	}
	return r, nil
}

func newShareToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Rate records a doctor's 1-5 rating (spec §4.14 rate()).
func (e *Engine) Rate(ctx context.Context, reportID string, rating int) error {
	if rating < 1 || rating > 5 {
		return apierr.NewValidation("rating", "rating must be between 1 and 5")
	}
	return e.storage.RecordDoctorRating(ctx, reportID, rating)
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return fallback
}
