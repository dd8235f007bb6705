// Package config loads and validates the service's YAML configuration:
// the ModelSelector tier table, tier capability table, and retention/
// queue tuning knobs. Mirrors tarsy's pkg/config layout (a single
// Initialize entrypoint, env-expanded YAML merged over compiled
// defaults, RWMutex-protected registries).
package config

import (
	"time"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// Endpoint is a ModelSelector cell key (spec §4.5).
type Endpoint string

const (
	EndpointChat          Endpoint = "chat"
	EndpointQuickScan     Endpoint = "quick_scan"
	EndpointDeepDive      Endpoint = "deep_dive"
	EndpointPhotoAnalysis Endpoint = "photo_analysis"
	EndpointReports       Endpoint = "reports"
	EndpointUltraThink    Endpoint = "ultra_think"
	EndpointThinkHarder   Endpoint = "think_harder"
	EndpointHealthAnalysis Endpoint = "health_analysis"
	EndpointTracking      Endpoint = "tracking"
)

// ModelCell holds the ordered model list for a (tier, endpoint) pair,
// plus an optional distinct list used when reasoning_mode is requested.
type ModelCell struct {
	Models          []string `yaml:"models"`
	ReasoningModels []string `yaml:"reasoning_models,omitempty"`
}

// ModelTable is the full tier -> endpoint -> ModelCell configuration.
type ModelTable map[models.Tier]map[Endpoint]ModelCell

// TierCapabilities is the supplemental read-only capability table
// (SPEC_FULL.md §C.1, grounded on original_source's get_user_tier_info).
type TierCapabilities struct {
	MaxContextTokens     int  `yaml:"max_context_tokens"`
	RateLimitPerHour     int  `yaml:"rate_limit_per_hour"`
	PhotoUploadsPerDay   int  `yaml:"photo_uploads_per_day"`
	DeepDiveQuestionsMax int  `yaml:"deep_dive_questions_max"`
	HasAdvancedReasoning bool `yaml:"has_advanced_reasoning"`
}

// TierCapabilityTable maps each tier to its capability row.
type TierCapabilityTable map[models.Tier]TierCapabilities

// RetentionConfig tunes the cleanup/background-retention loop.
type RetentionConfig struct {
	CleanupInterval         time.Duration `yaml:"cleanup_interval"`
	SensitivePhotoTTL       time.Duration `yaml:"sensitive_photo_ttl"`
	EmailRetryScanInterval  time.Duration `yaml:"email_retry_scan_interval"`
}

// QueueConfig tunes the email worker pool (spec §4.12, §5).
type QueueConfig struct {
	WorkerCount     int           `yaml:"worker_count"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollJitter      time.Duration `yaml:"poll_jitter"`
	ClaimTimeout    time.Duration `yaml:"claim_timeout"`
	MaxSendAttempts int           `yaml:"max_send_attempts"`
}

// PhotoConfig tunes PhotoPipeline/SmartPhotoBatcher (spec §4.11.3).
type PhotoConfig struct {
	MaxPhotosInVisionWindow int `yaml:"max_photos_in_vision_window"`
}

// OracleYAMLConfig is the top-level shape of the on-disk YAML file,
// the analogue of tarsy's TarsyYAMLConfig.
type OracleYAMLConfig struct {
	Models       ModelTable          `yaml:"models,omitempty"`
	Capabilities TierCapabilityTable `yaml:"capabilities,omitempty"`
	Retention    *RetentionConfig    `yaml:"retention,omitempty"`
	Queue        *QueueConfig        `yaml:"queue,omitempty"`
	Photo        *PhotoConfig        `yaml:"photo,omitempty"`
}

// Config is the umbrella runtime configuration object, the analogue of
// tarsy's pkg/config.Config.
type Config struct {
	configDir    string
	Models       *ModelRegistry
	Capabilities TierCapabilityTable
	Retention    RetentionConfig
	Queue        QueueConfig
	Photo        PhotoConfig
}

// Stats summarizes config for the health endpoint.
type Stats struct {
	Tiers      int `json:"tiers"`
	Endpoints  int `json:"endpoints"`
}

// Stats reports config-derived counters for the health endpoint.
func (c *Config) Stats() Stats {
	tiers := map[models.Tier]struct{}{}
	endpoints := map[Endpoint]struct{}{}
	for t, ends := range c.Models.snapshot() {
		tiers[t] = struct{}{}
		for e := range ends {
			endpoints[e] = struct{}{}
		}
	}
	return Stats{Tiers: len(tiers), Endpoints: len(endpoints)}
}
