package modelselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/models"
)

func testConfig() *config.Config {
	table := config.ModelTable{
		models.TierFree: {
			config.EndpointChat: {Models: []string{"free-a", "free-b"}},
		},
		models.TierPro: {
			config.EndpointChat: {
				Models:          []string{"pro-a", "pro-b"},
				ReasoningModels: []string{"pro-reasoning-a"},
			},
		},
	}
	return &config.Config{Models: config.NewModelRegistry(table)}
}

func TestModelsReturnsTierCell(t *testing.T) {
	s := New(testConfig())
	got := s.Models(models.TierPro, config.EndpointChat, false)
	require.Len(t, got, 2)
	assert.Equal(t, "pro-a", got[0])
}

func TestModelsReasoningModeUsesDistinctList(t *testing.T) {
	s := New(testConfig())
	got := s.Models(models.TierPro, config.EndpointChat, true)
	require.Len(t, got, 1)
	assert.Equal(t, "pro-reasoning-a", got[0])
}

func TestModelsFallsBackToFreeWhenTierAbsent(t *testing.T) {
	s := New(testConfig())
	got := s.Models(models.TierMax, config.EndpointChat, false)
	require.Len(t, got, 2, "expected free-tier fallback")
	assert.Equal(t, "free-a", got[0])
}

func TestModelsMissingEndpointReturnsEmpty(t *testing.T) {
	s := New(testConfig())
	got := s.Models(models.TierPro, config.EndpointDeepDive, false)
	assert.Empty(t, got, "expected empty list for unconfigured endpoint")
}

func TestSelectSaturatesAtListEnd(t *testing.T) {
	s := New(testConfig())
	model, ok := s.Select(models.TierPro, config.EndpointChat, false, 5)
	require.True(t, ok)
	assert.Equal(t, "pro-b", model, "expected saturation to the last model")
}

func TestSelectNegativeIndexClampsToFirst(t *testing.T) {
	s := New(testConfig())
	model, ok := s.Select(models.TierPro, config.EndpointChat, false, -3)
	require.True(t, ok)
	assert.Equal(t, "pro-a", model, "expected clamp to first model")
}

func TestSelectIsPure(t *testing.T) {
	s := New(testConfig())
	a, _ := s.Select(models.TierPro, config.EndpointChat, false, 0)
	b, _ := s.Select(models.TierPro, config.EndpointChat, false, 0)
	assert.Equal(t, a, b, "expected pure/deterministic selection")
}

func TestSelectEmptyListReturnsNotOK(t *testing.T) {
	s := New(testConfig())
	_, ok := s.Select(models.TierPro, config.EndpointDeepDive, false, 0)
	assert.False(t, ok, "expected not ok for an endpoint with no configured models")
}
