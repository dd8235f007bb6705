// Package photo implements PhotoPipeline (spec §4.11): a vision-model
// categorization/storage-routing step, a multi-photo analysis call that
// can compare against prior uploads, a deterministic photo-selection
// strategy for large sessions (SmartPhotoBatcher), and a
// trend/risk-scoring pass over a session's analysis history
// (ProgressionAnalyzer). Grounded on original_source's photo-analysis
// handlers and tarsy's pkg/mcp factory/executor staging (categorize ->
// route -> analyze mirrors tool-selection -> execution).
package photo

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/objectstore"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

const sensitiveTTL = 24 * time.Hour

// Pipeline implements Categorize/Analyze/BatchForComparison/AnalyzeProgression.
type Pipeline struct {
	storage     *storage.Client
	objects     *objectstore.Store
	llm         *llm.Orchestrator
	models      *modelselect.Selector
	maxInWindow int
}

func New(store *storage.Client, objects *objectstore.Store, orchestrator *llm.Orchestrator, selector *modelselect.Selector, maxPhotosInVisionWindow int) *Pipeline {
	if maxPhotosInVisionWindow <= 0 {
		maxPhotosInVisionWindow = 40
	}
	return &Pipeline{storage: store, objects: objects, llm: orchestrator, models: selector, maxInWindow: maxPhotosInVisionWindow}
}

// ErrInappropriate signals a photo was rejected outright (spec §4.11.1).
var ErrInappropriate = fmt.Errorf("photo: inappropriate content rejected")

// CategorizeResult is returned from Categorize.
type CategorizeResult struct {
	Category       models.PhotoCategory
	Confidence     float64
	Subcategory    string
	QualityScore   float64
	RequiresAction string // "unclear_modal" when Category == unclear
}

// Categorize classifies one image via a vision-capable model and
// reports the routing decision the caller must apply before storage
// (spec §4.11.1).
func (p *Pipeline) Categorize(ctx context.Context, userID string, tier models.Tier, imageBase64 string) (*CategorizeResult, error) {
	systemPrompt := "Classify this medical photo. Categories: medical_normal, medical_sensitive " +
		"(private/intimate body areas), medical_gore (open wounds, severe trauma), unclear " +
		"(ambiguous or low quality), non_medical, inappropriate (explicit/abusive content). " +
		"Return JSON: {\"category\": string, \"confidence\": number 0-100, \"subcategory\": string, " +
		"\"quality_score\": number 0-100}."

	candidates := p.models.Models(tier, config.EndpointPhotoAnalysis, false)
	result, err := p.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "data:image/jpeg;base64," + imageBase64},
		},
		UserID:      userID,
		Endpoint:    config.EndpointPhotoAnalysis,
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, fmt.Errorf("photo categorize call: %w", err)
	}

	data := extractMap(result.Content)
	category := models.PhotoCategory(stringField(data, "category", string(models.PhotoCategoryUnclear)))

	out := &CategorizeResult{
		Category:     category,
		Confidence:   floatField(data, "confidence", 0),
		Subcategory:  stringField(data, "subcategory", ""),
		QualityScore: floatField(data, "quality_score", 0),
	}
	switch category {
	case models.PhotoCategoryUnclear:
		out.RequiresAction = "unclear_modal"
	case models.PhotoCategoryInappropriate:
		return out, ErrInappropriate
	}
	return out, nil
}

// StoreUpload routes image bytes per the category decided by
// Categorize: non-sensitive categories go to object storage,
// medical_sensitive stays inline as base64 with no bytes ever touching
// the object store (spec §3, §4.11.1).
func (p *Pipeline) StoreUpload(ctx context.Context, session models.PhotoSession, cat CategorizeResult, imageBase64 string, contentType string, isFollowUp bool, followUpNotes string) (*models.PhotoUpload, error) {
	upload := models.PhotoUpload{
		SessionID:     session.ID,
		Category:      cat.Category,
		QualityScore:  cat.QualityScore,
		IsFollowUp:    isFollowUp,
		FollowUpNotes: followUpNotes,
	}

	switch cat.Category {
	case models.PhotoCategoryNormal, models.PhotoCategoryGore:
		raw, err := base64.StdEncoding.DecodeString(imageBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding photo bytes: %w", err)
		}
		key := fmt.Sprintf("%s/%s", session.ID, time.Now().UTC().Format("20060102T150405.000000000"))
		if err := p.objects.Put(ctx, key, raw, contentType); err != nil {
			return nil, fmt.Errorf("storing photo: %w", err)
		}
		url, err := p.objects.PresignGet(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("presigning photo url: %w", err)
		}
		upload.StorageURL = url
	case models.PhotoCategorySensitive:
		upload.TemporaryData = imageBase64
	case models.PhotoCategoryUnclear, models.PhotoCategoryNonMedical:
		// no bytes persisted; the upload row records the decision only
	default:
		return nil, fmt.Errorf("photo: cannot store category %q", cat.Category)
	}

	id, err := p.storage.InsertPhotoUpload(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("persisting photo upload: %w", err)
	}
	upload.ID = id
	if err := p.storage.TouchPhotoSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("touching photo session: %w", err)
	}
	return &upload, nil
}

const comparisonSeparator = "--- COMPARED TO PREVIOUS/BASELINE PHOTOS BELOW ---"

// AnalyzeResult is returned from Analyze.
type AnalyzeResult struct {
	Analysis models.PhotoAnalysis
}

// Analyze runs the vision comparison call over a set of new photos,
// optionally against prior comparison photos, and persists a
// PhotoAnalysis row (spec §4.11.2).
func (p *Pipeline) Analyze(ctx context.Context, userID string, tier models.Tier, sessionID string, photoIDs, comparisonPhotoIDs []string, userDescription string, temporaryAnalysis bool) (*AnalyzeResult, error) {
	photos, err := p.storage.GetPhotoUploadsByIDs(ctx, photoIDs)
	if err != nil {
		return nil, fmt.Errorf("loading photos: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("photo: no photos found for analysis")
	}

	var comparisonPhotos []models.PhotoUpload
	if len(comparisonPhotoIDs) > 0 {
		comparisonPhotos, err = p.storage.GetPhotoUploadsByIDs(ctx, comparisonPhotoIDs)
		if err != nil {
			return nil, fmt.Errorf("loading comparison photos: %w", err)
		}
	}

	var prompt strings.Builder
	prompt.WriteString("You are analyzing medical photos. User description: ")
	prompt.WriteString(userDescription)
	prompt.WriteString("\n\nPerform question detection on the user description (direct, implied, " +
		"comparative, or concern-expressing question). If one is found, include " +
		"question_detected=true and question_answer in your response.\n\n")
	if len(comparisonPhotos) > 0 {
		prompt.WriteString(fmt.Sprintf("NEW photos: %d provided below.\n%s\nOLD/baseline photos: %d provided below.\n",
			len(photos), comparisonSeparator, len(comparisonPhotos)))
	}
	prompt.WriteString("\nReturn JSON: {\"findings\": [string], \"key_measurements\": object, " +
		"\"red_flags\": [string], \"trackable_metrics\": [object], \"comparison\": object, " +
		"\"question_detected\": bool, \"question_answer\": string, \"confidence\": number 0-100, " +
		"\"next_monitoring\": object}.")

	candidates := p.models.Models(tier, config.EndpointPhotoAnalysis, false)
	if len(candidates) < 3 {
		candidates = append(candidates, "google/gemini-flash-1.5")
	}
	result, err := p.callWithImageFallback(ctx, candidates, userID, prompt.String())
	if err != nil {
		return nil, err
	}

	data := extractMap(result.Content)
	normalizeAnalysisFields(data)

	analysis := models.PhotoAnalysis{
		SessionID:       sessionID,
		PhotoIDs:        photoIDs,
		AnalysisData:    data,
		ModelUsed:       result.Model,
		ConfidenceScore: floatField(data, "confidence", 0),
		IsSensitive:     anySensitive(photos),
	}
	if comparison, ok := data["comparison"].(map[string]any); ok {
		analysis.Comparison = comparison
	}
	if temporaryAnalysis {
		expires := time.Now().Add(sensitiveTTL)
		analysis.ExpiresAt = &expires
	}

	id, err := p.storage.InsertPhotoAnalysis(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("persisting photo analysis: %w", err)
	}
	analysis.ID = id
	return &AnalyzeResult{Analysis: analysis}, nil
}

// callWithImageFallback tries every candidate model in order; Analyze
// appends a free tertiary fallback when fewer than three are configured
// (spec §4.11.2).
func (p *Pipeline) callWithImageFallback(ctx context.Context, candidates []string, userID, systemPrompt string) (*llm.CallResult, error) {
	result, err := p.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze the provided photos."},
		},
		UserID:      userID,
		Endpoint:    config.EndpointPhotoAnalysis,
		Temperature: 0.2,
		MaxTokens:   1536,
	})
	if err != nil {
		return nil, fmt.Errorf("photo analyze call: %w", err)
	}
	return result, nil
}

func anySensitive(photos []models.PhotoUpload) bool {
	for _, p := range photos {
		if p.Category == models.PhotoCategorySensitive {
			return true
		}
	}
	return false
}

// normalizeAnalysisFields defaults mandatory array fields to [] and
// string fields to "" so downstream consumers never see a missing key
// (spec §4.11.2).
func normalizeAnalysisFields(data map[string]any) {
	for _, key := range []string{"findings", "red_flags", "trackable_metrics"} {
		if _, ok := data[key].([]any); !ok {
			data[key] = []any{}
		}
	}
	for _, key := range []string{"question_answer"} {
		if _, ok := data[key].(string); !ok {
			data[key] = ""
		}
	}
}

func extractMap(content string) map[string]any {
	parsed, ok := jsonx.Extract(content)
	if m, isMap := parsed.(map[string]any); ok && isMap {
		return m
	}
	_ = ok
	return map[string]any{}
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

// BatchSelection is returned from BatchForComparison.
type BatchSelection struct {
	Selected         []models.PhotoUpload
	Total            int
	Shown            int
	SelectionReason  []string
	OmittedRanges    []string
}

// BatchForComparison implements SmartPhotoBatcher (spec §4.11.3): when
// a session exceeds the vision window, deterministically pick a
// representative subset instead of sending every photo to the model.
func (p *Pipeline) BatchForComparison(ctx context.Context, sessionID string) (*BatchSelection, error) {
	all, err := p.storage.ListPhotoUploads(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading photos for batching: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UploadedAt.Before(all[j].UploadedAt) })

	if len(all) <= p.maxInWindow {
		return &BatchSelection{Selected: all, Total: len(all), Shown: len(all)}, nil
	}

	analyses, err := p.storage.ListPhotoAnalyses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading analyses for batching: %w", err)
	}
	analysisByPhoto := indexAnalysesByPhoto(analyses)

	first := all[0]
	lastN := all[len(all)-5:]
	if len(all) < 5 {
		lastN = all[1:]
	}
	pinned := map[string]bool{first.ID: true}
	for _, u := range lastN {
		pinned[u.ID] = true
	}

	middle := make([]models.PhotoUpload, 0, len(all))
	for _, u := range all {
		if !pinned[u.ID] {
			middle = append(middle, u)
		}
	}

	slots := p.maxInWindow - 6
	if slots < 0 {
		slots = 0
	}
	idealSpacing := float64(len(middle)) / float64(maxInt(slots, 1))

	type scored struct {
		upload models.PhotoUpload
		score  float64
	}
	ranked := make([]scored, len(middle))
	for i, u := range middle {
		ranked[i] = scored{upload: u, score: importanceScore(i, idealSpacing, u, analysisByPhoto[u.ID])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	selectedMiddle := make([]models.PhotoUpload, 0, slots)
	for i := 0; i < slots && i < len(ranked); i++ {
		selectedMiddle = append(selectedMiddle, ranked[i].upload)
	}
	sort.Slice(selectedMiddle, func(i, j int) bool { return selectedMiddle[i].UploadedAt.Before(selectedMiddle[j].UploadedAt) })

	selected := make([]models.PhotoUpload, 0, p.maxInWindow)
	selected = append(selected, first)
	selected = append(selected, selectedMiddle...)
	selected = append(selected, lastN...)

	reasons := []string{
		"always included the baseline (first) photo",
		fmt.Sprintf("always included the last %d photos", len(lastN)),
		fmt.Sprintf("selected %d of %d middle photos by importance score", len(selectedMiddle), len(middle)),
	}

	return &BatchSelection{
		Selected:        selected,
		Total:           len(all),
		Shown:           len(selected),
		SelectionReason: reasons,
		OmittedRanges:   omittedRanges(middle, selectedMiddle),
	}, nil
}

func indexAnalysesByPhoto(analyses []models.PhotoAnalysis) map[string]models.PhotoAnalysis {
	out := make(map[string]models.PhotoAnalysis)
	for _, a := range analyses {
		for _, id := range a.PhotoIDs {
			out[id] = a
		}
	}
	return out
}

func importanceScore(indexInMiddle int, idealSpacing float64, upload models.PhotoUpload, analysis models.PhotoAnalysis) float64 {
	score := 0.0
	if idealSpacing > 0 {
		mod := math.Mod(float64(indexInMiddle), idealSpacing)
		score += 100 * (1 - math.Abs(mod)/idealSpacing)
	}
	if upload.QualityScore > 0 {
		score += 0.5 * upload.QualityScore
	}
	if analysis.ID != "" {
		if analysis.ConfidenceScore > 0 && analysis.ConfidenceScore < 70 {
			score += 50
		}
		if redFlags, ok := analysis.AnalysisData["red_flags"].([]any); ok && len(redFlags) > 0 {
			score += 100
		}
		if trend, ok := analysis.Comparison["trend"].(string); ok && trend == "worsening" {
			score += 80
		}
	}
	if upload.FollowUpNotes != "" {
		score += 75
	}
	return score
}

func omittedRanges(middle, selected []models.PhotoUpload) []string {
	selectedIDs := make(map[string]bool, len(selected))
	for _, u := range selected {
		selectedIDs[u.ID] = true
	}
	var ranges []string
	var rangeStart *models.PhotoUpload
	var rangeEnd *models.PhotoUpload
	flush := func() {
		if rangeStart == nil {
			return
		}
		ranges = append(ranges, fmt.Sprintf("%s to %s", rangeStart.UploadedAt.Format("2006-01-02"), rangeEnd.UploadedAt.Format("2006-01-02")))
		rangeStart, rangeEnd = nil, nil
	}
	for i := range middle {
		u := middle[i]
		if selectedIDs[u.ID] {
			flush()
			continue
		}
		if rangeStart == nil {
			rangeStart = &middle[i]
		}
		rangeEnd = &middle[i]
	}
	flush()
	return ranges
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
