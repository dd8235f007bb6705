// Package models holds the domain entities of spec §3 as plain structs.
// No ORM: every struct here is read and written by hand-written SQL in
// internal/storage.
package models

import "time"

// Tier is a subscription class. It is a read-only input to this system;
// billing state machines live elsewhere.
type Tier string

const (
	TierFree     Tier = "free"
	TierBasic    Tier = "basic"
	TierPro      Tier = "pro"
	TierProPlus  Tier = "pro_plus"
	TierMax      Tier = "max"
)

// Subscription is the read-only billing row backing TierResolver.
type Subscription struct {
	UserID    string
	Tier      Tier
	Status    string
	PeriodEnd time.Time
}

// Active reports whether the subscription is currently usable.
func (s Subscription) Active(now time.Time) bool {
	return s.Status == "active" && now.Before(s.PeriodEnd)
}

// Role is a chat message author role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a foreign aggregate root owned by the external chat
// front-end; this system may update its title and reads its messages.
type Conversation struct {
	ID            string
	UserID        string
	Title         string
	TitleLocked   bool
	AutoTitled    bool
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// Message is one turn in a Conversation, ordered by CreatedAt.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	TokenCount     int
	CreatedAt      time.Time
	ModelUsed      string
}

// ContextType distinguishes the kind of long-term summary row.
type ContextType string

const (
	ContextTypeConversation ContextType = "conversation_summary"
	ContextTypeQuickScan    ContextType = "quick_scan_summary"
	ContextTypeDeepDive     ContextType = "deep_dive_summary"
)

// LLMContextSummary is an append-only long-term memory row, aggregated
// on read by ContextManager.aggregate_user_context.
type LLMContextSummary struct {
	ID             string
	UserID         string
	ConversationID string
	Summary        string
	ContextType    ContextType
	TokenCount     int
	CreatedAt      time.Time
}

// UrgencyLevel mirrors the triage urgency vocabulary used across
// QuickScan and DeepDive analyses.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyEmergent UrgencyLevel = "emergency"
)

// QuickScan is a single-shot triage result. Written once; enhancement
// tiers append sibling fields without mutating AnalysisResult.
type QuickScan struct {
	ID                string
	UserID            string
	BodyParts         []string
	IsMultiPart        bool
	FormData          map[string]any
	AnalysisResult    map[string]any
	ConfidenceScore   float64
	UrgencyLevel      UrgencyLevel
	EnhancedAnalysis  map[string]any
	UltraAnalysis     map[string]any
	FollowUpQuestions []string
	CreatedAt         time.Time
}

// DeepDiveStatus is the diagnostic state machine's status column.
type DeepDiveStatus string

const (
	DeepDiveActive        DeepDiveStatus = "active"
	DeepDiveAnalysisReady  DeepDiveStatus = "analysis_ready"
	DeepDiveCompleted     DeepDiveStatus = "completed"
	DeepDiveAbandoned     DeepDiveStatus = "abandoned"
)

// DeepDiveQuestion is one Q&A turn; QuestionNumber is strictly
// increasing within a session (spec §5, §8).
type DeepDiveQuestion struct {
	QuestionNumber int
	Question       string
	Answer         string
	Timestamp      time.Time
}

// AdditionalQuestion is an ask-more phase turn.
type AdditionalQuestion struct {
	QuestionNumber int
	Question       string
	Answer         string
	Status         string // "pending" | "answered"
	Timestamp      time.Time
}

// DeepDiveSession is the multi-turn diagnostic dialogue aggregate.
// Invariants (enforced by internal/deepdive, checked in tests):
// len(Questions) in [3,7] during the initial phase, <=11 including
// ask-more; question numbers strictly increase.
type DeepDiveSession struct {
	ID                   string
	UserID               string
	BodyParts            []string
	FormData             map[string]any
	ModelUsed            string
	Questions            []DeepDiveQuestion
	CurrentStep          int
	InternalState        map[string]any
	LastQuestion         string
	Status               DeepDiveStatus
	FinalAnalysis        map[string]any
	FinalConfidence       float64
	InitialQuestionsCount int
	AdditionalQuestions   []AdditionalQuestion
	AllowMoreQuestions    bool
	EnhancedAnalysis     map[string]any
	EnhancedConfidence    float64
	ConfidenceImprovement float64
	UltraAnalysis        map[string]any
	UltraConfidence       float64
	CreatedAt            time.Time
	CompletedAt          *time.Time
}

// PhotoCategory is the vision-categorization outcome driving storage
// routing (spec §4.11.1).
type PhotoCategory string

const (
	PhotoCategoryNormal        PhotoCategory = "medical_normal"
	PhotoCategorySensitive     PhotoCategory = "medical_sensitive"
	PhotoCategoryGore          PhotoCategory = "medical_gore"
	PhotoCategoryUnclear       PhotoCategory = "unclear"
	PhotoCategoryNonMedical    PhotoCategory = "non_medical"
	PhotoCategoryInappropriate PhotoCategory = "inappropriate"
)

// PhotoSession groups photo uploads tracking one condition over time.
type PhotoSession struct {
	ID            string
	UserID        string
	ConditionName string
	Description   string
	IsSensitive   bool
	CreatedAt     time.Time
	LastPhotoAt   time.Time
}

// PhotoUpload is one uploaded image. Exactly one of StorageURL /
// TemporaryData is populated for analyzable categories; sensitive
// photos MUST NOT set StorageURL (spec §3, §8).
type PhotoUpload struct {
	ID             string
	SessionID      string
	Category       PhotoCategory
	StorageURL     string
	TemporaryData  string // base64, ephemeral, sensitive-only
	FileMetadata   map[string]any
	QualityScore   float64
	IsFollowUp     bool
	FollowUpNotes  string
	UploadedAt     time.Time
}

// PhotoAnalysis is the vision-model result over one or more photos.
type PhotoAnalysis struct {
	ID              string
	SessionID       string
	PhotoIDs        []string
	AnalysisData    map[string]any
	ModelUsed       string
	ConfidenceScore float64
	IsSensitive     bool
	ExpiresAt       *time.Time
	Comparison      map[string]any
	CreatedAt       time.Time
}

// PhotoReminder schedules follow-up reminders for a photo session.
type PhotoReminder struct {
	SessionID        string
	AnalysisID       string
	UserID           string
	Enabled          bool
	IntervalDays     int
	ReminderMethod   string
	NextReminderDate time.Time
	AIReasoning      string
	LastSentAt       *time.Time
}

// EmailStatus is an EmailQueueItem lifecycle state (spec §4.12).
type EmailStatus string

const (
	EmailQueued    EmailStatus = "queued"
	EmailSending   EmailStatus = "sending"
	EmailSent      EmailStatus = "sent"
	EmailDelivered EmailStatus = "delivered"
	EmailBounced   EmailStatus = "bounced"
	EmailFailed    EmailStatus = "failed"
)

// EmailQueueItem is the aggregate root for one queued email send.
type EmailQueueItem struct {
	ID                  string
	UserID              string
	Recipient           string
	CC                  []string
	EmailType           string
	Subject             string
	Template            string
	TemplateData        map[string]any
	AttachmentMetadata  map[string]any
	AttachmentContent   string // base64
	IdempotencyKey      string
	Status              EmailStatus
	RetryCount          int
	NextRetryAt         *time.Time
	ProviderMessageID   string
	CreatedAt           time.Time
	SentAt              *time.Time
}

// EmailEventType enumerates append-only EmailEvent audit kinds.
type EmailEventType string

const (
	EmailEventRequested     EmailEventType = "email_requested"
	EmailEventSent          EmailEventType = "email_sent"
	EmailEventFailed        EmailEventType = "email_failed"
	EmailEventWebhookRecvd  EmailEventType = "webhook_received"
)

// EmailEvent is an append-only audit row keyed to an EmailQueueItem.
type EmailEvent struct {
	ID          string
	AggregateID string
	UserID      string
	EventType   EmailEventType
	EventData   map[string]any
	Timestamp   time.Time
}

// TrackingType classifies the kind of metric a suggestion proposes.
type TrackingType string

const (
	TrackingSeverity  TrackingType = "severity"
	TrackingFrequency TrackingType = "frequency"
	TrackingDuration  TrackingType = "duration"
	TrackingOccurrence TrackingType = "occurrence"
)

// TrackingSuggestion is an AI-derived candidate metric awaiting
// user approval (spec §4.8).
type TrackingSuggestion struct {
	ID                string
	UserID            string
	SourceType        string
	SourceID          string
	MetricName        string
	YAxisLabel        string
	YAxisType         string
	YAxisMin          float64
	YAxisMax          float64
	TrackingType      TrackingType
	SymptomKeywords   []string
	SuggestedQuestions []string
	AIReasoning       string
	ConfidenceScore   float64
	ActionTaken       string // "", approved_all, approved_some
	ActionedAt        *time.Time
	CreatedAt         time.Time
}

// TrackingConfiguration is a user-approved metric.
type TrackingConfiguration struct {
	ID              string
	UserID          string
	SuggestionID    string
	MetricName      string
	YAxisLabel      string
	YAxisType       string
	YAxisMin        float64
	YAxisMax        float64
	ShowOnHomepage  bool
	DataPointsCount int
	LastDataPoint   *time.Time
	CreatedAt       time.Time
}

// TrackingDataPoint is one recorded measurement for a configuration.
type TrackingDataPoint struct {
	ID              string
	ConfigurationID string
	UserID          string
	Value           float64
	Notes           string
	RecordedAt      time.Time
}

// AssessmentFollowUp links temporally related assessments in a chain
// (spec §4.13). FollowUpNumber strictly increases within ChainID.
type AssessmentFollowUp struct {
	ID                  string
	ChainID             string
	ParentFollowUpID    string
	SourceType          string
	SourceID            string
	FollowUpNumber      int
	BaseResponses       map[string]any
	AIQuestions         []string
	AnalysisResult      map[string]any
	PrimaryAssessment   string
	ConfidenceScore     float64
	ConfidenceChange    float64
	AssessmentEvolution map[string]any // never nil in storage
	DaysSinceOriginal   int
	CreatedAt           time.Time
}

// Report is a persisted, model-generated structured report.
type Report struct {
	ID                string
	UserID            string
	AnalysisID        string
	ReportType        string
	Specialty         string
	ReportData        map[string]any
	ExecutiveSummary  string
	ConfidenceScore   float64
	ModelUsed         string
	TimeRangeStart    *time.Time
	TimeRangeEnd      *time.Time
	DoctorReviewed    bool
	DoctorNotes       string
	ShareToken        string
	ShareExpiresAt    *time.Time
	DoctorRatingSum   int
	DoctorRatingCount int
	CreatedAt         time.Time
}

// ReportAnalysis records the classification performed by
// ReportOrchestrator.analyze and the resulting data-gathering scope.
type ReportAnalysis struct {
	ID                    string
	UserID                string
	RecommendedType       string
	ReportConfig          map[string]any // time_range, primary_focus, data_sources
	QuickScanIDs          []string
	DeepDiveIDs           []string
	PhotoSessionIDs       []string
	GeneralAssessmentIDs  []string
	GeneralDeepDiveIDs    []string
	CreatedAt             time.Time
}

// TimeRange bounds a comprehensive/time-ranged data-gathering query.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// HealthStory is a narrative weekly digest generated from a user's
// quick scans, deep dives, conversations, and tracking data.
type HealthStory struct {
	ID              string
	UserID          string
	Title           string
	Subtitle        string
	StoryText       string
	DateRangeStart  time.Time
	DateRangeEnd    time.Time
	DataSources     map[string]int
	GenerationModel string
	CreatedAt       time.Time
}
