// Package followup implements FollowUpEngine (spec §4.13): chain
// management for temporally related assessments, the fixed+AI-generated
// question contract, and the comprehensive re-analysis performed on
// submit. Grounded on internal/deepdive's question-generation template
// and tarsy's runner.go for the "call model, extract, persist" shape.
package followup

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

// baseQuestions are the 5 fixed questions asked on every follow-up,
// independent of the AI-generated ones (spec §4.13).
var baseQuestions = []string{
	"How are you feeling compared to your last check-in?",
	"Have your symptoms improved, worsened, or stayed the same?",
	"Have you started, stopped, or changed any treatments since then?",
	"Have any new symptoms appeared?",
	"Is there anything about your condition that concerns you right now?",
}

// Engine implements Questions and Submit.
type Engine struct {
	storage *storage.Client
	llm     *llm.Orchestrator
	models  *modelselect.Selector
}

func New(store *storage.Client, orchestrator *llm.Orchestrator, selector *modelselect.Selector) *Engine {
	return &Engine{storage: store, llm: orchestrator, models: selector}
}

// source is the original assessment, loaded by (sourceType, sourceID).
type source struct {
	kind      string
	createdAt time.Time
	assessment map[string]any
}

func (e *Engine) loadSource(ctx context.Context, sourceType, sourceID string) (*source, error) {
	switch sourceType {
	case "quick_scan":
		scan, err := e.storage.GetQuickScan(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: quick scan %s", apierr.ErrNotFound, sourceID)
		}
		return &source{kind: sourceType, createdAt: scan.CreatedAt, assessment: scan.AnalysisResult}, nil
	case "deep_dive", "general_deep_dive":
		session, err := e.storage.GetDeepDiveSession(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: deep dive %s", apierr.ErrNotFound, sourceID)
		}
		return &source{kind: sourceType, createdAt: session.CreatedAt, assessment: session.FinalAnalysis}, nil
	default:
		return nil, apierr.NewValidation("assessment_type", fmt.Sprintf("unsupported assessment type %q", sourceType))
	}
}

// QuestionsResult answers GET /api/follow-up/questions/{assessment_id}.
type QuestionsResult struct {
	ChainID        string
	BaseQuestions  []string
	AIQuestions    []string
	DaysSinceOriginal int
	DaysSinceLast  int
}

// Questions returns the 5 fixed base questions plus 3 AI-generated ones
// conditioned on the original assessment and any prior chain nodes
// (spec §4.13 questions()).
func (e *Engine) Questions(ctx context.Context, assessmentID, assessmentType, userID string) (*QuestionsResult, error) {
	if _, err := uuid.Parse(assessmentID); err != nil {
		return nil, apierr.NewValidation("assessment_id", "not a valid UUID")
	}

	src, err := e.loadSource(ctx, assessmentType, assessmentID)
	if err != nil {
		return nil, err
	}

	chainID, chain, err := e.resolveChain(ctx, assessmentType, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("resolving chain: %w", err)
	}

	daysSinceOriginal := int(time.Since(src.createdAt).Hours() / 24)
	daysSinceLast := daysSinceOriginal
	lastNote := "this is the first follow-up"
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		daysSinceLast = int(time.Since(last.CreatedAt).Hours() / 24)
		lastNote = fmt.Sprintf("the most recent follow-up was %d day(s) ago with confidence %.0f%%", daysSinceLast, last.ConfidenceScore)
	}

	hasTracking := false
	if userID != "" {
		configs, err := e.storage.ListTrackingConfigurations(ctx, userID)
		if err == nil && len(configs) > 0 {
			hasTracking = true
		}
	}

	systemPrompt := fmt.Sprintf(
		"A patient is returning for a follow-up on a prior health assessment.\n\n"+
			"Original assessment: %v\nDays since original assessment: %d\n%s\n"+
			"The patient %s actively tracking data for this condition.\n\n"+
			"Generate exactly 3 targeted follow-up questions (beyond the 5 standard check-in questions) "+
			"that would most help assess how this condition has evolved. Return JSON: "+
			"{\"questions\": [string, string, string]}.",
		src.assessment, daysSinceOriginal, lastNote, boolWord(hasTracking))

	candidates := e.models.Models(models.TierFree, config.EndpointTracking, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Generate the 3 follow-up questions."},
		},
		UserID:    userID,
		Endpoint:  config.EndpointTracking,
		MaxTokens: 600,
	})
	aiQuestions := fallbackAIQuestions
	if err == nil {
		if m, ok := jsonx.AsObject(result.Content); ok {
			if qs, ok := stringSliceField(m, "questions"); ok && len(qs) > 0 {
				aiQuestions = qs
			}
		}
	}

	return &QuestionsResult{
		ChainID:           chainID,
		BaseQuestions:     baseQuestions,
		AIQuestions:       aiQuestions,
		DaysSinceOriginal: daysSinceOriginal,
		DaysSinceLast:     daysSinceLast,
	}, nil
}

var fallbackAIQuestions = []string{
	"Have you seen any healthcare provider about this since your last check-in?",
	"On a scale of 1-10, how would you rate your current symptoms?",
	"Is there anything new you'd like the assessment to take into account?",
}

// resolveChain discovers a chain_id lazily: if no follow-ups exist yet
// for this source, it mints a fresh one (spec §4.13's "discovered
// lazily on first access" rule; chain_id is deliberately distinct from
// source_id's namespace, per the original's `uuid.uuid4()` mint).
func (e *Engine) resolveChain(ctx context.Context, sourceType, sourceID string) (string, []models.AssessmentFollowUp, error) {
	chain, err := e.storage.ListFollowUpChain(ctx, sourceID)
	if err != nil {
		return "", nil, err
	}
	if len(chain) > 0 {
		return chain[0].ChainID, chain, nil
	}
	return uuid.NewString(), nil, nil
}

// SubmitRequest carries a follow-up submission.
type SubmitRequest struct {
	AssessmentID   string
	AssessmentType string
	ChainID        string // optional; regenerated if malformed
	UserID         string
	Responses      map[string]any
}

// SubmitResult is returned from Submit.
type SubmitResult struct {
	FollowUpID          string
	ChainID             string
	PrimaryAssessment   string
	ConfidenceScore     float64
	ConfidenceChange    float64
	AssessmentEvolution map[string]any
	Patterns            []string
	Milestones          []string
	Events              []string
}

// Submit validates the request, translates any clinical jargon in the
// responses to plain language, runs the comprehensive re-analysis, and
// persists a new chain node (spec §4.13 submit()).
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if _, err := uuid.Parse(req.AssessmentID); err != nil {
		return nil, apierr.NewValidation("assessment_id", "not a valid UUID")
	}
	if len(req.Responses) == 0 {
		return nil, apierr.NewValidation("responses", "at least one response is required")
	}

	chainID := req.ChainID
	if chainID != "" {
		if _, err := uuid.Parse(chainID); err != nil {
			chainID = ""
		}
	}

	src, err := e.loadSource(ctx, req.AssessmentType, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	resolvedChainID, chain, err := e.resolveChain(ctx, req.AssessmentType, req.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("resolving chain: %w", err)
	}
	if chainID == "" {
		chainID = resolvedChainID
	}

	translated := e.translateJargon(ctx, req.UserID, req.Responses)

	originalConfidence := floatField(src.assessment, "confidence", 0)
	daysSinceOriginal := int(time.Since(src.createdAt).Hours() / 24)

	previousFollowUps := make([]map[string]any, 0, len(chain))
	for _, f := range chain {
		previousFollowUps = append(previousFollowUps, map[string]any{
			"follow_up_number": f.FollowUpNumber,
			"analysis":         f.AnalysisResult,
			"confidence":       f.ConfidenceScore,
		})
	}

	systemPrompt := fmt.Sprintf(
		"You are reassessing a patient's condition at a follow-up visit.\n\n"+
			"Original assessment: %v\nOriginal confidence: %.0f%%\nDays since original: %d\n"+
			"Prior follow-ups in this chain: %v\nPatient's responses to this follow-up: %v\n\n"+
			"Return JSON: {\"assessment\": {\"condition\": string, \"confidence\": number, \"severity\": string, "+
			"\"progression\": string}, \"assessment_evolution\": {\"original_assessment\": string, "+
			"\"current_assessment\": string, \"confidence_change\": number, \"diagnosis_refined\": boolean, "+
			"\"key_discoveries\": [string]}, \"progression_narrative\": string, \"pattern_insights\": "+
			"{\"discovered_patterns\": [string], \"concerning_patterns\": [string]}, \"treatment_efficacy\": string, "+
			"\"recommendations\": {\"immediate\": [string], \"this_week\": [string], \"consider\": [string], "+
			"\"next_follow_up\": string}, \"confidence\": number 0-100, \"primary_assessment\": string, "+
			"\"urgency\": \"low\"|\"medium\"|\"high\"|\"emergency\"}.",
		src.assessment, originalConfidence, daysSinceOriginal, previousFollowUps, translated)

	candidates := e.models.Models(models.TierFree, config.EndpointTracking, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Provide the comprehensive follow-up analysis now."},
		},
		UserID:      req.UserID,
		Endpoint:    config.EndpointTracking,
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("follow-up analysis call: %w", err)
	}

	analysis, ok := jsonx.AsObject(result.Content)
	if !ok {
		analysis = map[string]any{
			"primary_assessment": result.Content,
			"confidence":         originalConfidence,
			"urgency":            "low",
		}
	}

	newConfidence := floatField(analysis, "confidence", originalConfidence)
	confidenceChange := newConfidence - originalConfidence

	evolution, ok := mapField(analysis, "assessment_evolution")
	if !ok || evolution == nil {
		evolution = map[string]any{
			"original_assessment": src.assessment,
			"current_assessment":  analysis,
			"confidence_change":   confidenceChange,
			"diagnosis_refined":   false,
			"key_discoveries":     []string{},
		}
	}

	patterns, milestones := detectPatternsAndMilestones(chain, originalConfidence, newConfidence, confidenceChange)

	followUp := models.AssessmentFollowUp{
		ChainID:             chainID,
		SourceType:          req.AssessmentType,
		SourceID:            req.AssessmentID,
		FollowUpNumber:      0,
		BaseResponses:       translated,
		AIQuestions:         nil,
		AnalysisResult:      analysis,
		PrimaryAssessment:   stringField(analysis, "primary_assessment", ""),
		ConfidenceScore:     newConfidence,
		ConfidenceChange:    confidenceChange,
		AssessmentEvolution: evolution,
		DaysSinceOriginal:   daysSinceOriginal,
	}

	latest, err := e.storage.LatestFollowUpNumber(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("computing follow-up number: %w", err)
	}
	followUp.FollowUpNumber = latest + 1

	followUpID, err := e.storage.InsertFollowUp(ctx, followUp)
	if err != nil {
		return nil, fmt.Errorf("persisting follow-up: %w", err)
	}

	events := []string{"follow_up_scheduled", "follow_up_started", "follow_up_completed"}
	for _, p := range patterns {
		events = append(events, "pattern_discovered")
		_ = e.storage.InsertFollowUpEvent(ctx, chainID, "pattern_discovered", map[string]any{"pattern": p})
	}
	for _, m := range milestones {
		events = append(events, "confidence_milestone")
		_ = e.storage.InsertFollowUpEvent(ctx, chainID, "confidence_milestone", map[string]any{"milestone": m})
	}
	if diagnosisChanged(evolution) {
		events = append(events, "diagnosis_changed")
		_ = e.storage.InsertFollowUpEvent(ctx, chainID, "diagnosis_changed", map[string]any{
			"from": stringField(src.assessment, "assessment", ""),
			"to":   followUp.PrimaryAssessment,
		})
	}
	_ = e.storage.InsertFollowUpEvent(ctx, chainID, "follow_up_scheduled", map[string]any{"follow_up_id": followUpID})
	_ = e.storage.InsertFollowUpEvent(ctx, chainID, "follow_up_completed", map[string]any{"follow_up_id": followUpID})

	return &SubmitResult{
		FollowUpID:          followUpID,
		ChainID:             chainID,
		PrimaryAssessment:   followUp.PrimaryAssessment,
		ConfidenceScore:     newConfidence,
		ConfidenceChange:    confidenceChange,
		AssessmentEvolution: evolution,
		Patterns:            patterns,
		Milestones:          milestones,
		Events:              events,
	}, nil
}

// Chain returns every node of a chain, newest last.
func (e *Engine) Chain(ctx context.Context, assessmentID string) ([]models.AssessmentFollowUp, error) {
	if _, err := uuid.Parse(assessmentID); err != nil {
		return nil, apierr.NewValidation("assessment_id", "not a valid UUID")
	}
	return e.storage.ListFollowUpChain(ctx, assessmentID)
}

// ExplainMedicalVisit translates doctor jargon in a free-text visit
// summary into plain language (spec §6.1's
// POST /api/follow-up/medical-visit/explain).
func (e *Engine) ExplainMedicalVisit(ctx context.Context, userID, assessment string) (string, error) {
	if strings.TrimSpace(assessment) == "" {
		return "", apierr.NewValidation("assessment", "assessment text is required")
	}
	candidates := e.models.Models(models.TierFree, config.EndpointChat, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: "Translate the following doctor's note into plain, reassuring language a " +
				"patient without medical training can understand. Preserve all clinically relevant facts."},
			{Role: "user", Content: assessment},
		},
		UserID:      userID,
		Endpoint:    config.EndpointChat,
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		return "", fmt.Errorf("medical visit explanation call: %w", err)
	}
	return result.Content, nil
}

// translateJargon best-effort-rewrites any "medical_visit.assessment"
// response field into plain language via an LLM call, leaving every
// other response untouched. Failures fall back to the raw response
// (spec §9: translation quality never blocks submission).
func (e *Engine) translateJargon(ctx context.Context, userID string, responses map[string]any) map[string]any {
	visit, ok := responses["medical_visit"].(map[string]any)
	if !ok {
		return responses
	}
	raw, ok := visit["assessment"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return responses
	}

	plain, err := e.ExplainMedicalVisit(ctx, userID, raw)
	if err != nil || strings.TrimSpace(plain) == "" {
		return responses
	}

	out := make(map[string]any, len(responses))
	for k, v := range responses {
		out[k] = v
	}
	translatedVisit := make(map[string]any, len(visit))
	for k, v := range visit {
		translatedVisit[k] = v
	}
	translatedVisit["assessment"] = plain
	out["medical_visit"] = translatedVisit
	return out
}

// detectPatternsAndMilestones flags recurring confidence trends and the
// 90%-confidence crossing milestone (spec §4.13: "e.g., crossing 90%
// confidence").
func detectPatternsAndMilestones(chain []models.AssessmentFollowUp, originalConfidence, newConfidence, change float64) (patterns, milestones []string) {
	if originalConfidence < 90 && newConfidence >= 90 {
		milestones = append(milestones, "confidence_crossed_90_percent")
	}

	rising := change > 0
	consecutiveRises := 0
	if rising {
		consecutiveRises = 1
	}
	for i := len(chain) - 1; i >= 1; i-- {
		if chain[i].ConfidenceChange > 0 == rising && chain[i].ConfidenceChange != 0 {
			consecutiveRises++
		} else {
			break
		}
	}
	if consecutiveRises >= 2 {
		if rising {
			patterns = append(patterns, "sustained_confidence_improvement")
		} else {
			patterns = append(patterns, "sustained_confidence_decline")
		}
	}
	return patterns, milestones
}

func diagnosisChanged(evolution map[string]any) bool {
	v, ok := evolution["diagnosis_refined"].(bool)
	return ok && v
}

func boolWord(b bool) string {
	if b {
		return "is"
	}
	return "is not"
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

func mapField(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func stringSliceField(m map[string]any, key string) ([]string, bool) {
	raw, ok := m[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}
