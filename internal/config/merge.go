package config

import (
	"dario.cat/mergo"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// mergeModelTable overlays user-supplied tier/endpoint cells onto the
// compiled-in defaults. User-defined cells override built-in cells for
// the same (tier, endpoint) pair; tiers/endpoints absent from the user
// file keep their built-in values. Mirrors tarsy's pkg/config/merge.go
// override-by-key semantics.
func mergeModelTable(builtin, user ModelTable) ModelTable {
	result := make(ModelTable, len(builtin))
	for t, ends := range builtin {
		endsCopy := make(map[Endpoint]ModelCell, len(ends))
		for e, c := range ends {
			endsCopy[e] = c.copy()
		}
		result[t] = endsCopy
	}
	for t, userEnds := range user {
		if _, ok := result[t]; !ok {
			result[t] = make(map[Endpoint]ModelCell, len(userEnds))
		}
		for e, c := range userEnds {
			result[t][e] = c.copy()
		}
	}
	return result
}

// mergeCapabilities overlays user-supplied tier rows onto built-in
// defaults via mergo, field-by-field, so a partial user override (e.g.
// just RateLimitPerHour) doesn't blank out the rest of the row.
func mergeCapabilities(builtin, user TierCapabilityTable) (TierCapabilityTable, error) {
	result := make(TierCapabilityTable, len(builtin))
	for t, row := range builtin {
		result[t] = row
	}
	for t, userRow := range user {
		row, ok := result[t]
		if !ok {
			result[models.Tier(t)] = userRow
			continue
		}
		if err := mergo.Merge(&row, userRow, mergo.WithOverride); err != nil {
			return nil, err
		}
		result[t] = row
	}
	return result, nil
}

func mergeRetention(builtin RetentionConfig, user *RetentionConfig) (RetentionConfig, error) {
	if user == nil {
		return builtin, nil
	}
	if err := mergo.Merge(&builtin, *user, mergo.WithOverride); err != nil {
		return RetentionConfig{}, err
	}
	return builtin, nil
}

func mergeQueue(builtin QueueConfig, user *QueueConfig) (QueueConfig, error) {
	if user == nil {
		return builtin, nil
	}
	if err := mergo.Merge(&builtin, *user, mergo.WithOverride); err != nil {
		return QueueConfig{}, err
	}
	return builtin, nil
}

func mergePhoto(builtin PhotoConfig, user *PhotoConfig) (PhotoConfig, error) {
	if user == nil {
		return builtin, nil
	}
	if err := mergo.Merge(&builtin, *user, mergo.WithOverride); err != nil {
		return PhotoConfig{}, err
	}
	return builtin, nil
}
