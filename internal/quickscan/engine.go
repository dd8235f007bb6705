// Package quickscan implements the single-shot triage flow (spec
// §4.8): one LLM call produces an urgency-scored analysis, with
// optional think-harder/ultra-think escalation passes and an ask-more
// follow-up-question loop that mirrors internal/deepdive's duplicate
// suppression without its multi-turn state machine. Grounded on
// original_source's api/health_scan.py quick-scan handlers.
package quickscan

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

const duplicateSimilarityLimit = 0.8

const askMoreConfidenceGainEstimate = 15.0

// Engine implements Run/ThinkHarder/UltraThink/AskMore.
type Engine struct {
	storage *storage.Client
	llm     *llm.Orchestrator
	models  *modelselect.Selector
}

func New(store *storage.Client, orchestrator *llm.Orchestrator, selector *modelselect.Selector) *Engine {
	return &Engine{storage: store, llm: orchestrator, models: selector}
}

// RunResult is returned from Run.
type RunResult struct {
	ScanID     string
	Analysis   map[string]any
	Confidence float64
	Urgency    models.UrgencyLevel
	Usage      llm.Usage
	Model      string
}

// Run performs the initial triage call and persists the result (spec
// §4.8 quick_scan()). userID may be empty for an anonymous scan, in
// which case nothing is persisted and ScanID is empty.
func (e *Engine) Run(ctx context.Context, userID string, tier models.Tier, bodyParts []string, partsRelationship string, formData map[string]any) (*RunResult, error) {
	if len(bodyParts) == 0 {
		return nil, fmt.Errorf("quickscan: at least one body part is required")
	}

	symptoms, _ := formData["symptoms"].(string)
	if symptoms == "" {
		symptoms = "Health scan requested"
	}

	relationshipNote := ""
	if partsRelationship != "" {
		relationshipNote = fmt.Sprintf(" The reported body parts relate to one another as: %s.", partsRelationship)
	}

	systemPrompt := fmt.Sprintf(
		"You are performing a rapid triage assessment for: %s.%s\nReported symptoms: %s.\n\n"+
			"Return JSON: {\"assessment\": string, \"possible_causes\": [string], "+
			"\"what_this_means\": string, \"immediate_actions\": [string], "+
			"\"urgency\": \"low\"|\"medium\"|\"high\"|\"emergency\", \"confidence\": number 0-100}.",
		strings.Join(bodyParts, ", "), relationshipNote, symptoms)

	candidates := e.models.Models(tier, config.EndpointQuickScan, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyze my symptoms for %s.", strings.Join(bodyParts, ", "))},
		},
		UserID:      userID,
		Endpoint:    config.EndpointQuickScan,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("quickscan call: %w", err)
	}

	analysis := extractAnalysis(result.Content)
	urgency := models.UrgencyLevel(stringField(analysis, "urgency", "low"))
	confidence := floatField(analysis, "confidence", 0)

	out := &RunResult{
		Analysis:   analysis,
		Confidence: confidence,
		Urgency:    urgency,
		Usage:      result.Usage,
		Model:      result.Model,
	}
	if userID == "" {
		return out, nil
	}

	scan := models.QuickScan{
		UserID:          userID,
		BodyParts:       bodyParts,
		IsMultiPart:     len(bodyParts) > 1,
		FormData:        formData,
		AnalysisResult:  analysis,
		ConfidenceScore: confidence,
		UrgencyLevel:    urgency,
	}
	id, err := e.storage.InsertQuickScan(ctx, scan)
	if err != nil {
		return nil, fmt.Errorf("persisting quick scan: %w", err)
	}
	out.ScanID = id
	return out, nil
}

func extractAnalysis(content string) map[string]any {
	parsed, ok := jsonx.Extract(content)
	if m, isMap := parsed.(map[string]any); ok && isMap {
		return m
	}
	return map[string]any{"assessment": content, "urgency": "low", "confidence": 0.0}
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

// EscalationResult is returned from ThinkHarder and UltraThink.
type EscalationResult struct {
	Analysis             map[string]any
	OriginalConfidence   float64
	EnhancedConfidence   float64
	ConfidenceImprovement float64
	Model                string
}

// ThinkHarder re-examines a completed scan with a stronger model (spec
// §4.8 think_harder()).
func (e *Engine) ThinkHarder(ctx context.Context, scanID string, tier models.Tier) (*EscalationResult, error) {
	return e.escalate(ctx, scanID, tier, config.EndpointThinkHarder, false,
		"Re-examine this quick scan result more thoroughly than the first pass. Provide a detailed "+
			"differential diagnosis, red flags to watch for, diagnostic test recommendations, and "+
			"treatment options to discuss with a healthcare provider.")
}

// UltraThink applies the maximum-reasoning-effort pass (spec §4.8
// ultra_think()).
func (e *Engine) UltraThink(ctx context.Context, scanID string, tier models.Tier) (*EscalationResult, error) {
	return e.escalate(ctx, scanID, tier, config.EndpointUltraThink, true,
		"Apply maximum diagnostic reasoning effort to this quick scan result, building on any prior "+
			"enhanced analysis. Produce the most thorough differential and risk assessment possible.")
}

func (e *Engine) escalate(ctx context.Context, scanID string, tier models.Tier, endpoint config.Endpoint, ultra bool, instruction string) (*EscalationResult, error) {
	scan, err := e.storage.GetQuickScan(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("loading quick scan: %w", err)
	}

	systemPrompt := fmt.Sprintf(
		"You are an expert physician providing a deeper analysis of a patient's symptoms.\n\n"+
			"Initial analysis: %v\nBody parts: %s\nSymptoms: %v\n\n%s\n\n"+
			"Return JSON: {\"primary_diagnosis\": object, \"differential_diagnoses\": [object], "+
			"\"red_flags\": [object], \"diagnostic_recommendations\": [object], "+
			"\"confidence\": number 0-100}.",
		scan.AnalysisResult, strings.Join(scan.BodyParts, ", "), scan.FormData, instruction)

	candidates := e.models.Models(tier, endpoint, true)
	if len(candidates) == 0 {
		candidates = e.models.Models(tier, config.EndpointQuickScan, true)
	}
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Provide the enhanced analysis now."},
		},
		UserID:        scan.UserID,
		Endpoint:      endpoint,
		ReasoningMode: true,
		Temperature:   0.2,
		MaxTokens:     2000,
	})
	if err != nil {
		return nil, fmt.Errorf("quickscan escalation call: %w", err)
	}

	enhanced := extractAnalysis(result.Content)
	enhancedConfidence := floatField(enhanced, "confidence", scan.ConfidenceScore)

	if ultra {
		if err := e.storage.UpdateQuickScanUltraAnalysis(ctx, scanID, enhanced); err != nil {
			return nil, fmt.Errorf("persisting ultra analysis: %w", err)
		}
	} else {
		if err := e.storage.UpdateQuickScanEnhancedAnalysis(ctx, scanID, enhanced); err != nil {
			return nil, fmt.Errorf("persisting enhanced analysis: %w", err)
		}
	}

	return &EscalationResult{
		Analysis:              enhanced,
		OriginalConfidence:    scan.ConfidenceScore,
		EnhancedConfidence:    enhancedConfidence,
		ConfidenceImprovement: enhancedConfidence - scan.ConfidenceScore,
		Model:                 result.Model,
	}, nil
}

// AskMoreResult is returned from AskMore.
type AskMoreResult struct {
	AlreadyMet               bool
	LimitReached             bool
	Question                 string
	QuestionNumber           int
	CurrentConfidence        float64
	TargetConfidence         float64
	EstimatedQuestionsLeft   int
}

// AskMore generates one targeted follow-up question to close the gap
// to targetConfidence, capped at maxQuestions total (spec §4.8
// ask_more()).
func (e *Engine) AskMore(ctx context.Context, scanID string, targetConfidence float64, maxQuestions int, tier models.Tier) (*AskMoreResult, error) {
	scan, err := e.storage.GetQuickScan(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("loading quick scan: %w", err)
	}
	if maxQuestions <= 0 {
		maxQuestions = 5
	}

	currentConfidence := scan.ConfidenceScore
	if currentConfidence >= targetConfidence {
		return &AskMoreResult{AlreadyMet: true, CurrentConfidence: currentConfidence, TargetConfidence: targetConfidence}, nil
	}

	questionsAsked := len(scan.FollowUpQuestions)
	if questionsAsked >= maxQuestions {
		return &AskMoreResult{LimitReached: true, CurrentConfidence: currentConfidence, TargetConfidence: targetConfidence}, nil
	}

	previous := append([]string{}, scan.FollowUpQuestions...)

	systemPrompt := fmt.Sprintf(
		"Generate one highly targeted follow-up question to improve diagnostic confidence.\n\n"+
			"Current analysis: %v\nCurrent confidence: %.0f%%\nTarget confidence: %.0f%%\n"+
			"Previous follow-up questions: %s\n\n"+
			"The question must not repeat any previous question. Return JSON: {\"question\": string, "+
			"\"focus_area\": string, \"expected_confidence_gain\": number}.",
		scan.AnalysisResult, currentConfidence, targetConfidence, strings.Join(previous, "; "))

	candidates := e.models.Models(tier, config.EndpointQuickScan, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Generate the most valuable follow-up question."},
		},
		UserID:      scan.UserID,
		Endpoint:    config.EndpointQuickScan,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("quickscan ask-more call: %w", err)
	}

	data := extractAnalysis(result.Content)
	question := stringField(data, "question", "")
	bodyPart := "symptoms"
	if len(scan.BodyParts) > 0 {
		bodyPart = scan.BodyParts[0]
	}
	if question == "" {
		question = fmt.Sprintf("How long have you been experiencing these %s symptoms, and have they gotten better or worse?", bodyPart)
	}
	if isDuplicateQuestion(question, previous) {
		question = fmt.Sprintf("Are there any other symptoms or details about your %s that might be important?", bodyPart)
	}

	updated := append(previous, question)
	if err := e.storage.AppendQuickScanFollowUpQuestions(ctx, scanID, updated); err != nil {
		return nil, fmt.Errorf("persisting follow-up question: %w", err)
	}

	gap := targetConfidence - currentConfidence
	estimated := int(gap / askMoreConfidenceGainEstimate)
	if estimated < 1 {
		estimated = 1
	}
	if remaining := maxQuestions - questionsAsked - 1; estimated > remaining {
		estimated = remaining
	}

	return &AskMoreResult{
		Question:               question,
		QuestionNumber:         questionsAsked + 1,
		CurrentConfidence:      currentConfidence,
		TargetConfidence:       targetConfidence,
		EstimatedQuestionsLeft: estimated,
	}, nil
}

// isDuplicateQuestion flags a new question as a repeat when it's at
// least 80% similar to any prior question, the same Levenshtein-ratio
// substitution for difflib.SequenceMatcher used in internal/deepdive.
func isDuplicateQuestion(newQuestion string, previous []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(newQuestion))
	for _, p := range previous {
		if levenshteinRatio(normalized, strings.ToLower(strings.TrimSpace(p))) >= duplicateSimilarityLimit {
			return true
		}
	}
	return false
}

func levenshteinRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
