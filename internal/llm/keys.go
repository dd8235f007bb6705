package llm

import (
	"os"
	"strings"
)

// EnvKeyProvider reads provider credentials from the environment
// variables spec §6.3 names: OPENROUTER_API_KEY as the primary router
// key, with OPENAI_API_KEY/ANTHROPIC_API_KEY as optional "bring your
// own key" passthroughs attached when the target model belongs to the
// matching family.
type EnvKeyProvider struct{}

func (EnvKeyProvider) RouterKey() string { return os.Getenv("OPENROUTER_API_KEY") }

func (EnvKeyProvider) BYOKHeader(modelID string) (name, value string, ok bool) {
	lower := strings.ToLower(modelID)
	switch {
	case strings.HasPrefix(lower, "openai/"):
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return "X-OpenAI-Api-Key", key, true
		}
	case strings.HasPrefix(lower, "anthropic/"):
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return "X-Anthropic-Api-Key", key, true
		}
	}
	return "", "", false
}
