package emailqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKeyDeterministic(t *testing.T) {
	at := time.Date(2026, 7, 29, 10, 15, 0, 0, time.UTC)
	a := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", at)
	b := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", at)
	assert.Equal(t, a, b, "expected deterministic key")
}

func TestIdempotencyKeySameHourBucketCollapses(t *testing.T) {
	t1 := time.Date(2026, 7, 29, 10, 0, 1, 0, time.UTC)
	t2 := time.Date(2026, 7, 29, 10, 59, 59, 0, time.UTC)
	a := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", t1)
	b := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", t2)
	assert.Equal(t, a, b, "expected same hour bucket to collapse to same key")
}

func TestIdempotencyKeyCrossesHourBoundary(t *testing.T) {
	t1 := time.Date(2026, 7, 29, 10, 59, 59, 0, time.UTC)
	t2 := time.Date(2026, 7, 29, 11, 0, 0, 0, time.UTC)
	a := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", t1)
	b := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", t2)
	assert.NotEqual(t, a, b, "expected distinct keys across an hour boundary")
}

func TestIdempotencyKeyVariesWithEachInput(t *testing.T) {
	at := time.Date(2026, 7, 29, 10, 15, 0, 0, time.UTC)
	base := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", at)

	variants := []string{
		IdempotencyKey("user-2", "report", "a@example.com", "scan-1", at),
		IdempotencyKey("user-1", "scan", "a@example.com", "scan-1", at),
		IdempotencyKey("user-1", "report", "b@example.com", "scan-1", at),
		IdempotencyKey("user-1", "report", "a@example.com", "scan-2", at),
	}
	for i, v := range variants {
		assert.NotEqualf(t, base, v, "variant %d unexpectedly matched base key", i)
	}
}

func TestIdempotencyKeyIsNotAProviderMessageID(t *testing.T) {
	// Webhook() must correlate on the provider's own message id, never
	// on our idempotency key — they live in different namespaces.
	at := time.Date(2026, 7, 29, 10, 15, 0, 0, time.UTC)
	key := IdempotencyKey("user-1", "report", "a@example.com", "scan-1", at)
	assert.NotContains(t, key, "sg_", "idempotency key must not resemble a provider message id")
}
