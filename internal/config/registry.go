package config

import (
	"sync"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// ModelRegistry is a thread-safe tier->endpoint->ModelCell table.
// Grounded on tarsy's pkg/config/llm.go LLMProviderRegistry: an
// RWMutex-protected map with defensive-copy reads so callers can never
// mutate shared state through a returned slice/map.
type ModelRegistry struct {
	mu    sync.RWMutex
	table ModelTable
}

// NewModelRegistry builds a registry from an already-merged table.
func NewModelRegistry(table ModelTable) *ModelRegistry {
	return &ModelRegistry{table: table}
}

// Cell returns the (tier, endpoint) cell and whether it was found,
// falling back to the "free" cell per spec §4.5 when the tier itself
// is absent from the table (not when only the endpoint is absent
// within a present tier — that case is the caller's fallback to make,
// since "endpoint unconfigured for this tier" and "tier unconfigured"
// are different failure modes).
func (r *ModelRegistry) Cell(tier models.Tier, endpoint Endpoint) (ModelCell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ends, ok := r.table[tier]
	if !ok {
		ends, ok = r.table[models.TierFree]
		if !ok {
			return ModelCell{}, false
		}
	}
	cell, ok := ends[endpoint]
	if !ok {
		return ModelCell{}, false
	}
	return cell.copy(), true
}

// Reload atomically replaces the table (spec §4.5's reload capability).
func (r *ModelRegistry) Reload(table ModelTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = table
}

func (r *ModelRegistry) snapshot() ModelTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(ModelTable, len(r.table))
	for t, ends := range r.table {
		endsCopy := make(map[Endpoint]ModelCell, len(ends))
		for e, c := range ends {
			endsCopy[e] = c.copy()
		}
		out[t] = endsCopy
	}
	return out
}

func (c ModelCell) copy() ModelCell {
	out := ModelCell{}
	if c.Models != nil {
		out.Models = append([]string(nil), c.Models...)
	}
	if c.ReasoningModels != nil {
		out.ReasoningModels = append([]string(nil), c.ReasoningModels...)
	}
	return out
}
