package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// ErrDuplicateEmail names a repeated idempotency key. No function in
// this package returns it: InsertEmailQueueItem passes the unique
// index's violation error through unchanged, and the email queue looks
// a key up with FindEmailByIdempotencyKey before inserting.
var ErrDuplicateEmail = errors.New("storage: duplicate idempotency key")

// FindEmailByIdempotencyKey looks up a prior send for deduplication.
func (c *Client) FindEmailByIdempotencyKey(ctx context.Context, key string) (*models.EmailQueueItem, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, recipient, cc, email_type, subject, template, template_data,
		 attachment_metadata, attachment_content, idempotency_key, status, retry_count,
		 next_retry_at, provider_message_id, created_at, sent_at
		 FROM email_queue WHERE idempotency_key = $1`, key)
	item, err := scanEmailQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// FindEmailByProviderMessageID looks up the queue item a provider
// delivery-webhook event refers to, matching on the provider's own
// message id (distinct from our idempotency key).
func (c *Client) FindEmailByProviderMessageID(ctx context.Context, providerMessageID string) (*models.EmailQueueItem, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, recipient, cc, email_type, subject, template, template_data,
		 attachment_metadata, attachment_content, idempotency_key, status, retry_count,
		 next_retry_at, provider_message_id, created_at, sent_at
		 FROM email_queue WHERE provider_message_id = $1`, providerMessageID)
	item, err := scanEmailQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// InsertEmailQueueItem enqueues a new send, assigning an id if absent.
func (c *Client) InsertEmailQueueItem(ctx context.Context, e models.EmailQueueItem) (string, error) {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO email_queue (id, user_id, recipient, cc, email_type, subject, template, template_data,
		 attachment_metadata, attachment_content, idempotency_key, status, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, e.UserID, e.Recipient, marshalJSON(e.CC), e.EmailType, e.Subject, e.Template, marshalJSON(e.TemplateData),
		marshalJSON(e.AttachmentMetadata), e.AttachmentContent, e.IdempotencyKey, string(e.Status), e.RetryCount)
	return id, err
}

// GetEmailQueueItem fetches one item by id.
func (c *Client) GetEmailQueueItem(ctx context.Context, id string) (*models.EmailQueueItem, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT id, user_id, recipient, cc, email_type, subject, template, template_data,
		 attachment_metadata, attachment_content, idempotency_key, status, retry_count,
		 next_retry_at, provider_message_id, created_at, sent_at
		 FROM email_queue WHERE id = $1`, id)
	return scanEmailQueueItem(row)
}

func scanEmailQueueItem(row pgx.Row) (*models.EmailQueueItem, error) {
	var e models.EmailQueueItem
	var cc, templateData, attachMeta []byte
	var status string
	if err := row.Scan(&e.ID, &e.UserID, &e.Recipient, &cc, &e.EmailType, &e.Subject, &e.Template, &templateData,
		&attachMeta, &e.AttachmentContent, &e.IdempotencyKey, &status, &e.RetryCount,
		&e.NextRetryAt, &e.ProviderMessageID, &e.CreatedAt, &e.SentAt); err != nil {
		return nil, err
	}
	e.CC = unmarshalJSONStrings(cc)
	e.TemplateData = unmarshalJSONMap(templateData)
	if attachMeta != nil {
		e.AttachmentMetadata = unmarshalJSONMap(attachMeta)
	}
	e.Status = models.EmailStatus(status)
	return &e, nil
}

// ListDueEmails returns queued/retry-ready items for the worker pool to
// claim (adapted from tarsy's queue poll loop).
func (c *Client) ListDueEmails(ctx context.Context, limit int) ([]models.EmailQueueItem, error) {
	rows, err := c.Pool.Query(ctx,
		`SELECT id, user_id, recipient, cc, email_type, subject, template, template_data,
		 attachment_metadata, attachment_content, idempotency_key, status, retry_count,
		 next_retry_at, provider_message_id, created_at, sent_at
		 FROM email_queue
		 WHERE status = 'queued' OR (status = 'failed' AND next_retry_at <= now())
		 ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmailQueueItem
	for rows.Next() {
		e, err := scanEmailQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateEmailStatus transitions status and, for sending, records the
// provider message id; for failed, schedules the next retry.
func (c *Client) UpdateEmailStatus(ctx context.Context, id string, status models.EmailStatus, providerMessageID string, retryCount int, nextRetryAt *time.Time) error {
	_, err := c.Pool.Exec(ctx,
		`UPDATE email_queue SET status = $2, provider_message_id = COALESCE(NULLIF($3, ''), provider_message_id),
		 retry_count = $4, next_retry_at = $5,
		 sent_at = CASE WHEN $2 IN ('sent','delivered') THEN now() ELSE sent_at END
		 WHERE id = $1`,
		id, string(status), providerMessageID, retryCount, nextRetryAt)
	return err
}

// InsertEmailEvent appends one audit row.
func (c *Client) InsertEmailEvent(ctx context.Context, ev models.EmailEvent) error {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO email_events (id, aggregate_id, user_id, event_type, event_data)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, ev.AggregateID, ev.UserID, string(ev.EventType), marshalJSON(ev.EventData))
	return err
}
