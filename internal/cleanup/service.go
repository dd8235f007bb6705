// Package cleanup provides the background retention loop (spec §4.11.2
// lifecycle rule + §5 "recurrent internal task"). Grounded on tarsy's
// pkg/cleanup/service.go: a single ticking Service with idempotent,
// independently-erroring sub-tasks.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/emailqueue"
	"github.com/oracle-health/oracle-backend/internal/storage"
)

// Service periodically enforces retention policies:
//   - Purges sensitive photo analyses past their TTL (and scrubs the
//     inline upload bytes they guarded).
//   - Scans the email queue for items whose next_retry_at has elapsed
//     and re-dispatches them.
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config   config.RetentionConfig
	storage  *storage.Client
	emails   *emailqueue.Engine

	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(cfg config.RetentionConfig, store *storage.Client, emails *emailqueue.Engine) *Service {
	return &Service{config: cfg, storage: store, emails: emails}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"sensitive_photo_ttl", s.config.SensitivePhotoTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	emailTicker := time.NewTicker(s.config.EmailRetryScanInterval)
	defer emailTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpiredSensitivePhotos(ctx)
		case <-emailTicker.C:
			s.scanEmailRetries(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeExpiredSensitivePhotos(ctx)
	s.scanEmailRetries(ctx)
}

// purgeExpiredSensitivePhotos deletes photo_analyses rows past their
// TTL and blanks any still-inline sensitive upload bytes they guarded
// (spec §3: sensitive photos never reach S3, so the TTL is the only
// thing that ever deletes their bytes).
func (s *Service) purgeExpiredSensitivePhotos(ctx context.Context) {
	ids, err := s.storage.ListExpiredSensitivePhotoAnalyses(ctx)
	if err != nil {
		slog.Error("retention: listing expired sensitive photo analyses failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := s.storage.PurgeExpiredPhotoAnalysis(ctx, id); err != nil {
			slog.Error("retention: purging photo analysis failed", "analysis_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		slog.Info("retention: purged expired sensitive photo analyses", "count", len(ids))
	}
}

// scanEmailRetries is the external scheduler spec §5 allows as an
// alternative to relying purely on the worker pool's own poll loop:
// it drives ProcessQueueItem directly over whatever is due, so a retry
// still gets dispatched even if every worker is busy or the pool
// hasn't been started in this process.
func (s *Service) scanEmailRetries(ctx context.Context) {
	if s.emails == nil {
		return
	}
	due, err := s.storage.ListDueEmails(ctx, 50)
	if err != nil {
		slog.Error("retention: listing due emails failed", "error", err)
		return
	}
	for _, item := range due {
		if _, err := s.emails.ProcessQueueItem(ctx, item.ID); err != nil {
			slog.Error("retention: processing queued email failed", "email_id", item.ID, "error", err)
		}
	}
}
