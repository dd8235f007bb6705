package config

import (
	"time"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// builtinModelTable is the compiled-in fallback used when no on-disk
// YAML config is present, matching original_source's MODEL_CONFIG
// shape (tier -> endpoint -> models-or-{models,reasoning_models}).
func builtinModelTable() ModelTable {
	free := map[Endpoint]ModelCell{
		EndpointChat:          {Models: []string{"deepseek/deepseek-chat", "meta-llama/llama-3.1-8b-instruct:free"}},
		EndpointQuickScan:     {Models: []string{"deepseek/deepseek-chat"}},
		EndpointDeepDive:      {Models: []string{"deepseek/deepseek-chat"}},
		EndpointPhotoAnalysis: {Models: []string{"google/gemini-flash-1.5"}},
		EndpointReports:       {Models: []string{"deepseek/deepseek-chat"}},
		EndpointTracking:      {Models: []string{"tngtech/deepseek-r1t-chimera:free", "deepseek/deepseek-chat"}},
	}
	basic := map[Endpoint]ModelCell{
		EndpointChat:          {Models: []string{"openai/gpt-4o-mini", "deepseek/deepseek-chat"}},
		EndpointQuickScan:     {Models: []string{"openai/gpt-4o-mini"}},
		EndpointDeepDive:      {Models: []string{"openai/gpt-4o-mini", "deepseek/deepseek-chat"}},
		EndpointPhotoAnalysis: {Models: []string{"openai/gpt-4o-mini", "google/gemini-flash-1.5"}},
		EndpointReports:       {Models: []string{"openai/gpt-4o-mini"}},
		EndpointTracking:      {Models: []string{"openai/gpt-4o-mini", "deepseek/deepseek-chat"}},
	}
	pro := map[Endpoint]ModelCell{
		EndpointChat: {
			Models:          []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"},
			ReasoningModels: []string{"deepseek/deepseek-r1", "anthropic/claude-3.5-sonnet"},
		},
		EndpointQuickScan:      {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointDeepDive:       {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointPhotoAnalysis:  {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointReports:        {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointThinkHarder:    {Models: []string{"anthropic/claude-3.5-sonnet"}},
		EndpointTracking:       {Models: []string{"openai/gpt-4o", "deepseek/deepseek-chat"}},
	}
	proPlus := map[Endpoint]ModelCell{
		EndpointChat: {
			Models:          []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"},
			ReasoningModels: []string{"openai/o1", "deepseek/deepseek-r1"},
		},
		EndpointQuickScan:      {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"}},
		EndpointDeepDive:       {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"}},
		EndpointPhotoAnalysis:  {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointReports:        {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"}},
		EndpointThinkHarder:    {Models: []string{"anthropic/claude-3.5-sonnet", "openai/o1"}},
		EndpointUltraThink:     {Models: []string{"openai/o1", "anthropic/claude-3.5-sonnet"}},
		EndpointTracking:       {Models: []string{"openai/gpt-5", "deepseek/deepseek-chat"}},
	}
	max := map[Endpoint]ModelCell{
		EndpointChat: {
			Models:          []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet", "x-ai/grok-2"},
			ReasoningModels: []string{"openai/o1", "x-ai/grok-2", "deepseek/deepseek-r1"},
		},
		EndpointQuickScan:      {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"}},
		EndpointDeepDive:       {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet", "x-ai/grok-2"}},
		EndpointPhotoAnalysis:  {Models: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		EndpointReports:        {Models: []string{"openai/gpt-5", "anthropic/claude-3.5-sonnet"}},
		EndpointThinkHarder:    {Models: []string{"anthropic/claude-3.5-sonnet", "openai/o1"}},
		EndpointUltraThink:     {Models: []string{"openai/o1", "x-ai/grok-2"}},
		EndpointHealthAnalysis: {Models: []string{"openai/o1", "anthropic/claude-3.5-sonnet"}},
		EndpointTracking:       {Models: []string{"openai/gpt-5", "x-ai/grok-2", "deepseek/deepseek-chat"}},
	}

	return ModelTable{
		models.TierFree:    free,
		models.TierBasic:   basic,
		models.TierPro:     pro,
		models.TierProPlus: proPlus,
		models.TierMax:     max,
	}
}

func builtinCapabilities() TierCapabilityTable {
	return TierCapabilityTable{
		models.TierFree: {
			MaxContextTokens: 30000, RateLimitPerHour: 20, PhotoUploadsPerDay: 5,
			DeepDiveQuestionsMax: 7, HasAdvancedReasoning: false,
		},
		models.TierBasic: {
			MaxContextTokens: 60000, RateLimitPerHour: 60, PhotoUploadsPerDay: 20,
			DeepDiveQuestionsMax: 7, HasAdvancedReasoning: false,
		},
		models.TierPro: {
			MaxContextTokens: 120000, RateLimitPerHour: 200, PhotoUploadsPerDay: 100,
			DeepDiveQuestionsMax: 11, HasAdvancedReasoning: true,
		},
		models.TierProPlus: {
			MaxContextTokens: 120000, RateLimitPerHour: 500, PhotoUploadsPerDay: 250,
			DeepDiveQuestionsMax: 11, HasAdvancedReasoning: true,
		},
		models.TierMax: {
			MaxContextTokens: 200000, RateLimitPerHour: 2000, PhotoUploadsPerDay: 1000,
			DeepDiveQuestionsMax: 11, HasAdvancedReasoning: true,
		},
	}
}

func builtinRetention() RetentionConfig {
	return RetentionConfig{
		CleanupInterval:        15 * time.Minute,
		SensitivePhotoTTL:      24 * time.Hour,
		EmailRetryScanInterval: 1 * time.Minute,
	}
}

func builtinQueue() QueueConfig {
	return QueueConfig{
		WorkerCount:     4,
		PollInterval:    2 * time.Second,
		PollJitter:      500 * time.Millisecond,
		ClaimTimeout:    30 * time.Second,
		MaxSendAttempts: 3,
	}
}

func builtinPhoto() PhotoConfig {
	return PhotoConfig{MaxPhotosInVisionWindow: 40}
}
