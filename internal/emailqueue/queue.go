// Package emailqueue implements EmailQueue (spec §4.12): idempotent
// enqueue, a worker pool that claims due items and sends them with
// bounded exponential backoff, and a provider webhook handler that maps
// delivery events back onto EmailQueueItem status. Grounded on tarsy's
// pkg/queue worker-pool/poll-loop shape (NewWorkerPool/Worker.run),
// generalized from session-claiming to email-claiming.
package emailqueue

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/models"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

const maxAttachmentBytes = 10 * 1024 * 1024

// Sender delivers one queued email via the configured provider
// (transactional email API), returning its provider-assigned message
// id on success.
type Sender interface {
	Send(ctx context.Context, item models.EmailQueueItem) (providerMessageID string, err error)
}

// Engine implements SendReport/SendScan/Webhook and owns the worker
// pool that drains EmailQueueItem rows.
type Engine struct {
	storage *storage.Client
	sender  Sender
	cfg     config.QueueConfig

	workers  []*worker
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(store *storage.Client, sender Sender, cfg config.QueueConfig) *Engine {
	return &Engine{storage: store, sender: sender, cfg: cfg, stopCh: make(chan struct{})}
}

// IdempotencyKey computes md5(user_id ":" email_type ":" recipient ":"
// source_id ":" hour_bucket), the dedup key for one send attempt within
// its hour bucket (spec §4.12).
func IdempotencyKey(userID, emailType, recipient, sourceID string, at time.Time) string {
	hourBucket := at.UTC().Format("2006010215")
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s:%s:%s", userID, emailType, recipient, sourceID, hourBucket)))
	return hex.EncodeToString(sum[:])
}

// SendReportRequest is the input to SendReport.
type SendReportRequest struct {
	UserID                string
	ScanID                string // ownership must match UserID
	Recipient             string
	CC                    []string
	Subject               string
	Template              string
	TemplateData          map[string]any
	AttachmentBase64      string
	AttachmentContentType string
}

// SendResult is the shared response shape for SendReport/SendScan.
type SendResult struct {
	Success           bool
	MessageID         string
	SentAt            *time.Time
	Message           string
}

// ErrAttachmentTooLarge is returned when the decoded attachment exceeds
// the 10MB limit (spec §4.12).
var ErrAttachmentTooLarge = fmt.Errorf("emailqueue: attachment exceeds 10MB limit")

// ErrNotOwner is returned when scan_id does not belong to user_id.
var ErrNotOwner = fmt.Errorf("emailqueue: scan does not belong to user")

// SendReport enqueues (and immediately attempts) an email carrying a
// report/scan attachment, enforcing ownership and size limits and
// returning an existing item when the idempotency key already reached
// sent/delivered this hour (spec §4.12 send_report()).
func (e *Engine) SendReport(ctx context.Context, req SendReportRequest) (*SendResult, error) {
	if req.AttachmentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.AttachmentBase64)
		if err != nil {
			return nil, fmt.Errorf("emailqueue: invalid attachment encoding: %w", err)
		}
		if len(decoded) > maxAttachmentBytes {
			return nil, ErrAttachmentTooLarge
		}
	}
	if req.ScanID != "" {
		scan, err := e.storage.GetQuickScan(ctx, req.ScanID)
		if err != nil {
			return nil, fmt.Errorf("loading scan for ownership check: %w", err)
		}
		if scan.UserID != req.UserID {
			return nil, ErrNotOwner
		}
	}

	key := IdempotencyKey(req.UserID, "report", req.Recipient, req.ScanID, time.Now())
	if existing, err := e.storage.FindEmailByIdempotencyKey(ctx, key); err != nil {
		return nil, fmt.Errorf("checking idempotency: %w", err)
	} else if existing != nil && (existing.Status == models.EmailSent || existing.Status == models.EmailDelivered) {
		return &SendResult{Success: true, MessageID: existing.ProviderMessageID, SentAt: existing.SentAt,
			Message: "email already sent this hour"}, nil
	}

	attachmentMeta := map[string]any{}
	if req.AttachmentContentType != "" {
		attachmentMeta["content_type"] = req.AttachmentContentType
	} else if req.AttachmentBase64 != "" {
		attachmentMeta["content_type"] = "application/pdf"
	}

	item := models.EmailQueueItem{
		UserID:             req.UserID,
		Recipient:          req.Recipient,
		CC:                 req.CC,
		EmailType:          "report",
		Subject:            req.Subject,
		Template:           req.Template,
		TemplateData:       req.TemplateData,
		AttachmentMetadata: attachmentMeta,
		AttachmentContent:  req.AttachmentBase64,
		IdempotencyKey:      key,
		Status:              models.EmailQueued,
	}
	id, err := e.storage.InsertEmailQueueItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("enqueueing report email: %w", err)
	}
	e.recordEvent(ctx, id, req.UserID, models.EmailEventRequested, nil)

	return e.ProcessQueueItem(ctx, id)
}

// SendScanRequest is the input to SendScan.
type SendScanRequest struct {
	UserID       string
	ScanID       string
	Recipient    string
	Subject      string
	Template     string
	TemplateData map[string]any
}

// SendScan sends a scan-result notification with no attachment,
// synchronously with retry (spec §4.12 send_scan()).
func (e *Engine) SendScan(ctx context.Context, req SendScanRequest) (*SendResult, error) {
	key := IdempotencyKey(req.UserID, "scan", req.Recipient, req.ScanID, time.Now())
	if existing, err := e.storage.FindEmailByIdempotencyKey(ctx, key); err != nil {
		return nil, fmt.Errorf("checking idempotency: %w", err)
	} else if existing != nil && (existing.Status == models.EmailSent || existing.Status == models.EmailDelivered) {
		return &SendResult{Success: true, MessageID: existing.ProviderMessageID, SentAt: existing.SentAt,
			Message: "email already sent this hour"}, nil
	}

	item := models.EmailQueueItem{
		UserID:         req.UserID,
		Recipient:      req.Recipient,
		EmailType:      "scan",
		Subject:        req.Subject,
		Template:       req.Template,
		TemplateData:   req.TemplateData,
		IdempotencyKey: key,
		Status:         models.EmailQueued,
	}
	id, err := e.storage.InsertEmailQueueItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("enqueueing scan email: %w", err)
	}
	e.recordEvent(ctx, id, req.UserID, models.EmailEventRequested, nil)

	return e.ProcessQueueItem(ctx, id)
}

// ProcessQueueItem sends one item with bounded exponential backoff
// (2s -> 10s, up to MaxSendAttempts), updating status and
// provider_message_id (spec §4.12 process_queue_item()).
func (e *Engine) ProcessQueueItem(ctx context.Context, queueID string) (*SendResult, error) {
	item, err := e.storage.GetEmailQueueItem(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("loading queue item: %w", err)
	}

	if err := e.storage.UpdateEmailStatus(ctx, queueID, models.EmailSending, "", item.RetryCount, nil); err != nil {
		return nil, fmt.Errorf("marking item sending: %w", err)
	}

	backoffs := []time.Duration{2 * time.Second, 10 * time.Second}
	maxAttempts := e.cfg.MaxSendAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		providerMessageID, sendErr := e.sender.Send(ctx, *item)
		if sendErr == nil {
			now := time.Now()
			if err := e.storage.UpdateEmailStatus(ctx, queueID, models.EmailSent, providerMessageID, item.RetryCount, nil); err != nil {
				return nil, fmt.Errorf("marking item sent: %w", err)
			}
			e.recordEvent(ctx, queueID, item.UserID, models.EmailEventSent, map[string]any{"provider_message_id": providerMessageID})
			return &SendResult{Success: true, MessageID: providerMessageID, SentAt: &now}, nil
		}
		lastErr = sendErr
		if attempt < len(backoffs) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffs[attempt]):
			}
		}
	}

	item.RetryCount++
	nextRetry := time.Now().Add(time.Duration(5*item.RetryCount) * time.Minute)
	if err := e.storage.UpdateEmailStatus(ctx, queueID, models.EmailFailed, "", item.RetryCount, &nextRetry); err != nil {
		return nil, fmt.Errorf("marking item failed: %w", err)
	}
	e.recordEvent(ctx, queueID, item.UserID, models.EmailEventFailed, map[string]any{"error": lastErr.Error()})

	return &SendResult{Success: false, Message: fmt.Sprintf("send failed: %v", lastErr)}, nil
}

// WebhookEvent is one provider delivery event (spec §4.12 webhook()).
type WebhookEvent struct {
	MessageID  string
	EventType  string // "delivered" | "bounce" | "dropped" | "deferred"
	RawPayload map[string]any
}

var webhookStatusMap = map[string]models.EmailStatus{
	"delivered": models.EmailDelivered,
	"bounce":    models.EmailBounced,
	"dropped":   models.EmailFailed,
	"deferred":  models.EmailFailed,
}

// Webhook records each provider delivery event and maps it onto the
// matching EmailQueueItem's status (spec §4.12 webhook()).
func (e *Engine) Webhook(ctx context.Context, events []WebhookEvent) error {
	for _, ev := range events {
		status, ok := webhookStatusMap[ev.EventType]
		if !ok {
			continue
		}
		item, err := e.storage.FindEmailByProviderMessageID(ctx, ev.MessageID)
		if err != nil || item == nil {
			e.recordEvent(ctx, "", "", models.EmailEventWebhookRecvd, ev.RawPayload)
			continue
		}
		if err := e.storage.UpdateEmailStatus(ctx, item.ID, status, item.ProviderMessageID, item.RetryCount, item.NextRetryAt); err != nil {
			return fmt.Errorf("applying webhook status: %w", err)
		}
		e.recordEvent(ctx, item.ID, item.UserID, models.EmailEventWebhookRecvd, ev.RawPayload)
	}
	return nil
}

func (e *Engine) recordEvent(ctx context.Context, aggregateID, userID string, eventType models.EmailEventType, data map[string]any) {
	if err := e.storage.InsertEmailEvent(ctx, models.EmailEvent{
		AggregateID: aggregateID,
		UserID:      userID,
		EventType:   eventType,
		EventData:   data,
	}); err != nil {
		slog.Warn("failed to record email event", "aggregate_id", aggregateID, "event_type", eventType, "error", err)
	}
}

// Start spawns WorkerCount polling goroutines that drain ListDueEmails
// (spec §5: email queue processing is dispatched fire-and-forget, with
// next_retry_at scanned by a recurrent internal task).
func (e *Engine) Start(ctx context.Context) {
	count := e.cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		w := &worker{id: i, engine: e}
		e.workers = append(e.workers, w)
		e.wg.Add(1)
		go w.run(ctx, &e.wg)
	}
}

// Stop signals all workers to stop and waits for them to drain.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

type worker struct {
	id     int
	engine *Engine
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	log := slog.With("email_worker_id", w.id)
	log.Info("email worker started")

	for {
		select {
		case <-w.engine.stopCh:
			log.Info("email worker shutting down")
			return
		case <-ctx.Done():
			return
		default:
			if w.pollOnce(ctx) == 0 {
				w.sleep(w.pollInterval())
			}
		}
	}
}

func (w *worker) pollOnce(ctx context.Context) int {
	items, err := w.engine.storage.ListDueEmails(ctx, 10)
	if err != nil {
		slog.Error("polling due emails failed", "error", err)
		return 0
	}
	for _, item := range items {
		if _, err := w.engine.ProcessQueueItem(ctx, item.ID); err != nil {
			slog.Error("processing queued email failed", "email_id", item.ID, "error", err)
		}
	}
	return len(items)
}

func (w *worker) sleep(d time.Duration) {
	select {
	case <-w.engine.stopCh:
	case <-time.After(d):
	}
}

func (w *worker) pollInterval() time.Duration {
	base := w.engine.cfg.PollInterval
	jitter := w.engine.cfg.PollJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int63n(int64(2 * jitter)))
	return base - jitter + offset
}
