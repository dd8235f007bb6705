// Package modelselect implements ModelSelector (spec §4.5): turns a
// (tier, endpoint, reasoning_mode) triple into an ordered candidate
// model list for LLMOrchestrator's fallback cascade, and resolves a
// single "preferred" model for a saturating retry index. Wraps
// internal/config.ModelRegistry.
package modelselect

import (
	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/models"
)

// Selector resolves model candidate lists from the live config.
type Selector struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Selector {
	return &Selector{cfg: cfg}
}

// Models returns the ordered fallback list for (tier, endpoint). If
// reasoningMode is true and the cell defines a distinct reasoning list,
// that list is returned instead. When no cell is found for (tier,
// endpoint), whether the tier has no row or its row lacks this
// endpoint, the free tier's cell for the endpoint is used (spec §4.5);
// if that is absent too, the list is empty.
func (s *Selector) Models(tier models.Tier, endpoint config.Endpoint, reasoningMode bool) []string {
	cell, ok := s.cfg.Models.Cell(tier, endpoint)
	if !ok {
		cell, ok = s.cfg.Models.Cell(models.TierFree, endpoint)
		if !ok {
			return nil
		}
	}
	if reasoningMode && len(cell.ReasoningModels) > 0 {
		return cell.ReasoningModels
	}
	return cell.Models
}

// Select resolves a single model at preferredIndex within the
// candidate list for (tier, endpoint, reasoningMode), saturating: an
// index beyond the list's end clamps to the last (most capable,
// typically most expensive) entry rather than erroring, so a caller
// retrying past the end of its own fallback budget keeps degrading
// gracefully to the strongest available model instead of failing.
func (s *Selector) Select(tier models.Tier, endpoint config.Endpoint, reasoningMode bool, preferredIndex int) (string, bool) {
	list := s.Models(tier, endpoint, reasoningMode)
	if len(list) == 0 {
		return "", false
	}
	if preferredIndex < 0 {
		preferredIndex = 0
	}
	if preferredIndex >= len(list) {
		preferredIndex = len(list) - 1
	}
	return list[preferredIndex], true
}
