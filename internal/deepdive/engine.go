// Package deepdive implements the multi-turn diagnostic dialogue (spec
// §4.9): start an initial question, iterate continue() until a
// confidence/question-count threshold is met, generate a final
// analysis, and optionally escalate to think-harder/ultra-think or ask
// for additional questions. Grounded on original_source's
// api/health_scan.py deep-dive handlers, restructured from a FastAPI
// router into a storage/llm-backed Engine.
package deepdive

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/jsonx"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

// Tuning constants (spec §4.9, ported from DEEP_DIVE_CONFIG).
const (
	MaxQuestions               = 7
	MinQuestions               = 3
	TargetConfidence           = 85.0
	MinConfidenceForCompletion = 85.0
	AskMoreLimit               = 5
	MaxTotalWithAskMore        = 11
	duplicateSimilarityLimit   = 0.8
)

// Engine implements start/continue/complete/think-harder/ultra-think/ask-more.
type Engine struct {
	storage *storage.Client
	llm     *llm.Orchestrator
	models  *modelselect.Selector
}

func New(store *storage.Client, orchestrator *llm.Orchestrator, selector *modelselect.Selector) *Engine {
	return &Engine{storage: store, llm: orchestrator, models: selector}
}

// StartResult is returned from Start.
type StartResult struct {
	SessionID         string
	Question          string
	QuestionNumber    int
	QuestionType      string
	EstimatedQuestions string
}

// Start opens a new session and generates the first diagnostic
// question (spec §4.9 start()).
func (e *Engine) Start(ctx context.Context, userID string, tier models.Tier, bodyParts []string, formData map[string]any) (*StartResult, error) {
	if len(bodyParts) == 0 {
		return nil, fmt.Errorf("deepdive: at least one body part is required")
	}

	symptoms, _ := formData["symptoms"].(string)
	if symptoms == "" {
		symptoms = "Health analysis requested"
	}

	systemPrompt := fmt.Sprintf(
		"You are conducting a structured diagnostic interview about: %s.\n"+
			"Body parts involved: %s.\nReported symptoms: %s.\n\n"+
			"Ask ONE focused diagnostic question to narrow the differential. "+
			"Return JSON: {\"question\": string, \"question_type\": string, \"internal_analysis\": object}.",
		strings.Join(bodyParts, ", "), strings.Join(bodyParts, ", "), symptoms)

	candidates := e.models.Models(tier, config.EndpointDeepDive, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze symptoms and generate first diagnostic question."},
		},
		UserID:      userID,
		Endpoint:    config.EndpointDeepDive,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive start call: %w", err)
	}

	question, questionType, internalState := parseQuestionResponse(result.Content, bodyParts)

	session := models.DeepDiveSession{
		UserID:        userID,
		BodyParts:     bodyParts,
		FormData:      formData,
		ModelUsed:     result.Model,
		CurrentStep:   1,
		InternalState: internalState,
		LastQuestion:  question,
		Status:        models.DeepDiveActive,
	}
	id, err := e.storage.InsertDeepDiveSession(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("persist deep dive session: %w", err)
	}

	return &StartResult{
		SessionID:          id,
		Question:           question,
		QuestionNumber:     1,
		QuestionType:       questionType,
		EstimatedQuestions: "2-3",
	}, nil
}

// parseQuestionResponse extracts and sanity-checks a question from raw
// model output, falling back to a generic question when the model
// returns something too short or that leaks formatting instructions
// (spec §4.9's question-validation rule).
func parseQuestionResponse(content string, bodyParts []string) (question, questionType string, internalState map[string]any) {
	parsed, ok := jsonx.Extract(content)
	data, _ := parsed.(map[string]any)
	if ok && data != nil {
		question, _ = data["question"].(string)
		questionType, _ = data["question_type"].(string)
		if ia, ok := data["internal_analysis"].(map[string]any); ok {
			internalState = ia
		}
	}
	if questionType == "" {
		questionType = "differential"
	}
	if invalidQuestion(question) {
		question = fmt.Sprintf("Can you describe the %s symptoms in more detail? When did they start and what makes them better or worse?",
			strings.Join(bodyParts, " and "))
		internalState = map[string]any{"fallback": true}
	}
	return question, questionType, internalState
}

func invalidQuestion(q string) bool {
	if len(q) < 10 {
		return true
	}
	lower := strings.ToLower(q)
	for _, word := range []string{"json", "format", "response", "ensure", "```"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

var fallbackQuestions = []string{
	"Have you noticed if the symptoms change throughout the day or with certain activities?",
	"Are there any other symptoms you've experienced, even if they seem unrelated?",
	"Have you tried any treatments or medications, and did they help?",
	"Is there a family history of similar conditions?",
	"How is this affecting your daily activities and quality of life?",
}

// ContinueResult is returned from Continue.
type ContinueResult struct {
	ReadyForAnalysis   bool
	Question           string
	QuestionNumber     int
	IsFinalQuestion    bool
	CurrentConfidence  float64
	QuestionsRemaining int
	QuestionsCompleted int
	Reason             string
}

// Continue records an answer to the last question, asks the model to
// decide whether another question is warranted, and either returns the
// next question or marks the session analysis_ready (spec §4.9
// continue()).
func (e *Engine) Continue(ctx context.Context, sessionID, answer string, tier models.Tier) (*ContinueResult, error) {
	session, err := e.storage.GetDeepDiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading deep dive session: %w", err)
	}
	if session.Status != models.DeepDiveActive && session.Status != models.DeepDiveAnalysisReady {
		return nil, fmt.Errorf("deepdive: session already completed")
	}

	questionNumber := len(session.Questions) + 1
	session.Questions = append(session.Questions, models.DeepDiveQuestion{
		QuestionNumber: questionNumber,
		Question:       session.LastQuestion,
		Answer:         answer,
		Timestamp:      time.Now(),
	})

	previousQuestions := collectQuestions(session.Questions)

	systemPrompt := fmt.Sprintf(
		"You are continuing a diagnostic interview. Questions asked so far: %d.\n"+
			"Decide whether another question is needed, and if so, ask ONE more.\n"+
			"Return JSON: {\"need_another_question\": bool, \"current_confidence\": number 0-100, "+
			"\"question\": string, \"confidence_projection\": string, \"updated_analysis\": object}.",
		len(previousQuestions))

	model := session.ModelUsed
	if model == "" {
		if candidates := e.models.Models(tier, config.EndpointDeepDive, false); len(candidates) > 0 {
			model = candidates[0]
		}
	}

	result, err := e.llm.Call(ctx, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Process answer and decide next step. OUTPUT ONLY JSON."},
		},
		Model:       model,
		UserID:      session.UserID,
		Endpoint:    config.EndpointDeepDive,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive continue call: %w", err)
	}

	decision := decodeDecision(result.Content, session, questionNumber)
	if decision.question != "" && invalidQuestion(decision.question) {
		decision.question = fallbackQuestions[minInt(questionNumber-1, len(fallbackQuestions)-1)]
	}

	session.InternalState = decision.updatedAnalysis
	if err := e.storage.UpdateDeepDiveProgress(ctx, *session); err != nil {
		return nil, fmt.Errorf("updating deep dive session: %w", err)
	}

	questionCount := len(previousQuestions)
	confidence := calculateConfidence(decision.confidence, questionCount)
	if questionCount < 2 && confidence > 70 {
		confidence = minFloat(65, confidence)
	}

	shouldComplete := confidence >= TargetConfidence ||
		questionCount >= MaxQuestions ||
		(questionCount >= 5 && confidence >= MinConfidenceForCompletion)
	if questionCount >= MaxQuestions {
		shouldComplete = true
	}
	if questionCount < MinQuestions {
		shouldComplete = false
		decision.needAnother = true
	}

	if !shouldComplete && decision.needAnother {
		newQuestion := decision.question
		if isDuplicateQuestion(newQuestion, previousQuestions) {
			if questionCount >= 3 {
				if err := e.storage.UpdateDeepDiveStatus(ctx, sessionID, models.DeepDiveAnalysisReady); err != nil {
					return nil, err
				}
				return &ContinueResult{
					ReadyForAnalysis:   true,
					CurrentConfidence:  confidence,
					QuestionsCompleted: questionCount,
					Reason:             "duplicate_question_detected",
				}, nil
			}
			bodyPart := "condition"
			if len(session.BodyParts) > 0 {
				bodyPart = session.BodyParts[0]
			}
			newQuestion = fmt.Sprintf("Besides what we've discussed, are there any other symptoms or concerns about your %s?", bodyPart)
		}

		session.LastQuestion = newQuestion
		session.FinalConfidence = confidence
		if err := e.storage.UpdateDeepDiveProgress(ctx, *session); err != nil {
			return nil, fmt.Errorf("storing next question: %w", err)
		}

		return &ContinueResult{
			Question:           newQuestion,
			QuestionNumber:     questionCount,
			IsFinalQuestion:    questionCount >= MaxQuestions-1,
			CurrentConfidence:  confidence,
			QuestionsRemaining: maxInt(0, MaxQuestions-questionCount),
		}, nil
	}

	session.Status = models.DeepDiveAnalysisReady
	session.FinalConfidence = confidence
	session.InitialQuestionsCount = len(session.Questions)
	session.CurrentStep = len(session.Questions)
	if err := e.storage.UpdateDeepDiveProgress(ctx, *session); err != nil {
		return nil, fmt.Errorf("marking session analysis_ready: %w", err)
	}

	return &ContinueResult{
		ReadyForAnalysis:   true,
		CurrentConfidence:  confidence,
		QuestionsCompleted: questionCount,
	}, nil
}

type decisionData struct {
	needAnother     bool
	confidence      float64
	question        string
	updatedAnalysis map[string]any
}

func decodeDecision(content string, session *models.DeepDiveSession, questionNumber int) decisionData {
	parsed, ok := jsonx.Extract(content)
	data, _ := parsed.(map[string]any)
	if !ok || data == nil {
		return decisionData{
			needAnother:     questionNumber < 2,
			confidence:      50 + float64(questionNumber)*15,
			question:        "Have you experienced any other symptoms along with this?",
			updatedAnalysis: session.InternalState,
		}
	}
	d := decisionData{updatedAnalysis: session.InternalState}
	if v, ok := data["need_another_question"].(bool); ok {
		d.needAnother = v
	}
	if v, ok := data["current_confidence"].(float64); ok {
		d.confidence = v
	}
	if v, ok := data["question"].(string); ok {
		d.question = v
	}
	if v, ok := data["updated_analysis"].(map[string]any); ok {
		d.updatedAnalysis = v
	}
	return d
}

// calculateConfidence ports calculate_realistic_confidence: weight an
// LLM-reported confidence by diagnostic-completeness modifiers so
// scores aren't just multiples of 5, with a question-count-only
// fallback when the model reports none.
func calculateConfidence(llmConfidence float64, questionCount int) float64 {
	historyCompleteness := 0.7
	if questionCount >= 3 {
		historyCompleteness = 0.9
	}
	redFlagsAssessed := 0.8
	if questionCount >= 2 {
		redFlagsAssessed = 1.0
	}
	differentialNarrowing := minFloat(1.0, float64(questionCount)*0.25)
	modifierSum := 1.0 + historyCompleteness + redFlagsAssessed + differentialNarrowing

	if llmConfidence > 0 {
		adjusted := llmConfidence * modifierSum / 4
		variance := float64(rand.Intn(5) - 2)
		return clamp(adjusted+variance, 20, 95)
	}
	base := 25 + float64(questionCount)*15
	variance := float64(rand.Intn(7) - 3)
	return minFloat(85, base+variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isDuplicateQuestion flags a new question as a repeat when it's at
// least 80% similar to any prior question, substituting Levenshtein
// ratio for difflib.SequenceMatcher (spec §4.9, DESIGN.md decision).
func isDuplicateQuestion(newQuestion string, previous []string) bool {
	normalized := strings.TrimSpace(strings.ToLower(newQuestion))
	for _, p := range previous {
		if levenshteinRatio(normalized, strings.TrimSpace(strings.ToLower(p))) >= duplicateSimilarityLimit {
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
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func collectQuestions(qs []models.DeepDiveQuestion) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if q.Question != "" {
			out = append(out, q.Question)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// CompleteResult is returned from Complete.
type CompleteResult struct {
	Analysis   map[string]any
	Confidence float64
}

// Complete generates the final analysis from the accumulated Q&A
// history, optionally recording one last answer first (spec §4.9
// complete()). Status lands on analysis_ready, never completed, so
// Ask-Me-More stays available afterward.
func (e *Engine) Complete(ctx context.Context, sessionID, finalAnswer string, tier models.Tier) (*CompleteResult, error) {
	session, err := e.storage.GetDeepDiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading deep dive session: %w", err)
	}
	if finalAnswer != "" && len(session.Questions) > 0 {
		last := &session.Questions[len(session.Questions)-1]
		if last.Answer == "" {
			last.Answer = finalAnswer
			if err := e.storage.UpdateDeepDiveProgress(ctx, *session); err != nil {
				return nil, fmt.Errorf("recording final answer: %w", err)
			}
		}
	}

	transcript := renderTranscript(session)
	systemPrompt := fmt.Sprintf(
		"Produce a final diagnostic analysis for a %s concern based on this interview:\n%s\n\n"+
			"Return JSON: {\"primary_assessment\": string, \"differential\": [string], "+
			"\"recommendations\": [string], \"urgency\": string, \"confidence\": number 0-100}.",
		strings.Join(session.BodyParts, ", "), transcript)

	candidates := e.models.Models(tier, config.EndpointDeepDive, true)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Generate the final analysis now."},
		},
		UserID:        session.UserID,
		Endpoint:      config.EndpointDeepDive,
		ReasoningMode: true,
		Temperature:   0.3,
		MaxTokens:     2048,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive complete call: %w", err)
	}

	analysis, _ := jsonx.Extract(result.Content)
	analysisMap, _ := analysis.(map[string]any)
	if analysisMap == nil {
		analysisMap = map[string]any{"primary_assessment": result.Content}
	}

	confidence := session.FinalConfidence
	if v, ok := analysisMap["confidence"].(float64); ok && v > 0 {
		confidence = calculateConfidence(v, len(session.Questions))
	} else if confidence == 0 {
		confidence = calculateConfidence(0, len(session.Questions))
	}

	if err := e.storage.CompleteDeepDive(ctx, sessionID, analysisMap, confidence); err != nil {
		return nil, fmt.Errorf("persisting final analysis: %w", err)
	}

	return &CompleteResult{Analysis: analysisMap, Confidence: confidence}, nil
}

func renderTranscript(session *models.DeepDiveSession) string {
	var b strings.Builder
	for _, q := range session.Questions {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", q.QuestionNumber, q.Question, q.QuestionNumber, q.Answer)
	}
	return b.String()
}

// ThinkHarderResult is returned from ThinkHarder.
type ThinkHarderResult struct {
	Analysis    map[string]any
	Confidence  float64
	Improvement float64
}

// ThinkHarder re-runs the final analysis on a stronger model to try to
// raise confidence (spec §4.9 think_harder()).
func (e *Engine) ThinkHarder(ctx context.Context, sessionID string, tier models.Tier) (*ThinkHarderResult, error) {
	session, err := e.storage.GetDeepDiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading deep dive session: %w", err)
	}
	if session.FinalAnalysis == nil {
		return nil, fmt.Errorf("deepdive: session has no completed analysis to enhance")
	}

	transcript := renderTranscript(session)
	systemPrompt := fmt.Sprintf(
		"Re-examine this diagnostic interview more carefully than the first pass and refine the "+
			"assessment, looking specifically for anything the first pass may have missed:\n%s\n\n"+
			"Return JSON: {\"primary_assessment\": string, \"differential\": [string], "+
			"\"recommendations\": [string], \"urgency\": string, \"confidence\": number 0-100, "+
			"\"what_changed\": string}.", transcript)

	candidates := e.models.Models(tier, config.EndpointThinkHarder, true)
	if len(candidates) == 0 {
		candidates = e.models.Models(tier, config.EndpointDeepDive, true)
	}
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Provide the enhanced analysis now."},
		},
		UserID:        session.UserID,
		Endpoint:      config.EndpointThinkHarder,
		ReasoningMode: true,
		Temperature:   0.2,
		MaxTokens:     2048,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive think-harder call: %w", err)
	}

	analysis, _ := jsonx.Extract(result.Content)
	analysisMap, _ := analysis.(map[string]any)
	if analysisMap == nil {
		analysisMap = map[string]any{"primary_assessment": result.Content}
	}

	confidence := session.FinalConfidence
	if v, ok := analysisMap["confidence"].(float64); ok && v > 0 {
		confidence = clamp(v, session.FinalConfidence, 98)
	}
	improvement := confidence - session.FinalConfidence

	if err := e.storage.UpdateDeepDiveThinkHarder(ctx, sessionID, analysisMap, confidence, improvement); err != nil {
		return nil, fmt.Errorf("persisting think-harder analysis: %w", err)
	}

	return &ThinkHarderResult{Analysis: analysisMap, Confidence: confidence, Improvement: improvement}, nil
}

// UltraThinkResult is returned from UltraThink.
type UltraThinkResult struct {
	Analysis   map[string]any
	Confidence float64
}

// UltraThink runs the single highest-reasoning-effort pass available
// (spec §4.9 ultra_think()), layered on top of whatever ThinkHarder
// already produced.
func (e *Engine) UltraThink(ctx context.Context, sessionID string, tier models.Tier) (*UltraThinkResult, error) {
	session, err := e.storage.GetDeepDiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading deep dive session: %w", err)
	}
	if session.FinalAnalysis == nil {
		return nil, fmt.Errorf("deepdive: session has no completed analysis to escalate")
	}

	transcript := renderTranscript(session)
	priorBest := session.EnhancedAnalysis
	if priorBest == nil {
		priorBest = session.FinalAnalysis
	}
	systemPrompt := fmt.Sprintf(
		"Apply maximum diagnostic reasoning effort to this case, building on the prior assessment "+
			"%v, using the full interview:\n%s\n\n"+
			"Return JSON: {\"primary_assessment\": string, \"differential\": [string], "+
			"\"recommendations\": [string], \"urgency\": string, \"confidence\": number 0-100}.",
		priorBest, transcript)

	candidates := e.models.Models(tier, config.EndpointUltraThink, true)
	if len(candidates) == 0 {
		candidates = e.models.Models(tier, config.EndpointDeepDive, true)
	}
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Provide the maximum-effort analysis now."},
		},
		UserID:        session.UserID,
		Endpoint:      config.EndpointUltraThink,
		ReasoningMode: true,
		Temperature:   0.1,
		MaxTokens:     3072,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive ultra-think call: %w", err)
	}

	analysis, _ := jsonx.Extract(result.Content)
	analysisMap, _ := analysis.(map[string]any)
	if analysisMap == nil {
		analysisMap = map[string]any{"primary_assessment": result.Content}
	}

	base := session.FinalConfidence
	if session.EnhancedConfidence > base {
		base = session.EnhancedConfidence
	}
	confidence := base
	if v, ok := analysisMap["confidence"].(float64); ok && v > 0 {
		confidence = clamp(v, base, 99)
	}

	if err := e.storage.UpdateDeepDiveUltraThink(ctx, sessionID, analysisMap, confidence); err != nil {
		return nil, fmt.Errorf("persisting ultra-think analysis: %w", err)
	}

	return &UltraThinkResult{Analysis: analysisMap, Confidence: confidence}, nil
}

// AskMoreResult is returned from AskMore.
type AskMoreResult struct {
	ShouldFinalize bool
	Question       string
	QuestionNumber int
	MaxQuestions   int
}

// AskMore generates one additional targeted question beyond the
// initial interview when the user wants higher confidence (spec §4.9
// ask_more()). Auto-repairs sessions stuck "active" with questions
// already recorded, since complete() should have moved them to
// analysis_ready.
func (e *Engine) AskMore(ctx context.Context, sessionID string, targetConfidence float64, tier models.Tier) (*AskMoreResult, error) {
	session, err := e.storage.GetDeepDiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading deep dive session: %w", err)
	}

	if session.Status == models.DeepDiveActive && len(session.Questions) > 0 {
		if err := e.storage.UpdateDeepDiveStatus(ctx, sessionID, models.DeepDiveAnalysisReady); err != nil {
			return nil, fmt.Errorf("auto-repairing stuck session: %w", err)
		}
		session.Status = models.DeepDiveAnalysisReady
	}
	if session.Status != models.DeepDiveAnalysisReady {
		return nil, fmt.Errorf("deepdive: session not ready for additional questions")
	}

	if targetConfidence <= 0 {
		targetConfidence = TargetConfidence
	}
	currentConfidence := session.EnhancedConfidence
	if session.UltraConfidence > currentConfidence {
		currentConfidence = session.UltraConfidence
	}
	if currentConfidence == 0 {
		currentConfidence = session.FinalConfidence
	}
	if currentConfidence >= targetConfidence {
		return &AskMoreResult{ShouldFinalize: true}, nil
	}

	askedSoFar := len(session.AdditionalQuestions)
	if askedSoFar >= AskMoreLimit {
		return &AskMoreResult{ShouldFinalize: true}, nil
	}
	if len(session.Questions)+askedSoFar >= MaxTotalWithAskMore {
		return &AskMoreResult{ShouldFinalize: true}, nil
	}

	transcript := renderTranscript(session)
	previousAdditional := make([]string, 0, askedSoFar)
	for _, q := range session.AdditionalQuestions {
		previousAdditional = append(previousAdditional, q.Question)
	}

	systemPrompt := fmt.Sprintf(
		"Current diagnostic confidence is %.0f%%, target is %.0f%%. Based on this interview:\n%s\n\n"+
			"Ask ONE more targeted question that would most increase confidence. "+
			"Return JSON: {\"question\": string}.", currentConfidence, targetConfidence, transcript)

	candidates := e.models.Models(tier, config.EndpointDeepDive, false)
	result, err := e.llm.CallWithFallback(ctx, candidates, llm.CallParams{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Ask the next question."},
		},
		UserID:      session.UserID,
		Endpoint:    config.EndpointDeepDive,
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("deepdive ask-more call: %w", err)
	}

	question, _, _ := parseQuestionResponse(result.Content, session.BodyParts)
	allPrevious := append(collectQuestions(session.Questions), previousAdditional...)
	if isDuplicateQuestion(question, allPrevious) {
		return &AskMoreResult{ShouldFinalize: true}, nil
	}

	nextNumber := askedSoFar + 1
	session.AdditionalQuestions = append(session.AdditionalQuestions, models.AdditionalQuestion{
		QuestionNumber: nextNumber,
		Question:       question,
		Status:         "pending",
		Timestamp:      time.Now(),
	})
	session.AllowMoreQuestions = true
	if err := e.storage.AppendDeepDiveAdditionalQuestion(ctx, sessionID, session.AdditionalQuestions); err != nil {
		return nil, fmt.Errorf("persisting additional question: %w", err)
	}

	return &AskMoreResult{
		Question:       question,
		QuestionNumber: nextNumber,
		MaxQuestions:   AskMoreLimit,
	}, nil
}
