package config

import (
	"errors"
	"fmt"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// validate checks structural invariants of a loaded Config. Mirrors
// tarsy's pkg/config/validator.go posture: collect every problem and
// join them, rather than failing on the first.
func validate(cfg *Config) error {
	var errs []error

	if _, ok := cfg.Models.Cell(models.TierFree, EndpointChat); !ok {
		errs = append(errs, fmt.Errorf("model table missing required free/chat cell"))
	}
	if cfg.Queue.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("queue.worker_count must be >= 1, got %d", cfg.Queue.WorkerCount))
	}
	if cfg.Queue.MaxSendAttempts < 1 {
		errs = append(errs, fmt.Errorf("queue.max_send_attempts must be >= 1, got %d", cfg.Queue.MaxSendAttempts))
	}
	if cfg.Photo.MaxPhotosInVisionWindow < 6 {
		errs = append(errs, fmt.Errorf("photo.max_photos_in_vision_window must be >= 6 (baseline + last 5), got %d", cfg.Photo.MaxPhotosInVisionWindow))
	}
	if cfg.Retention.SensitivePhotoTTL <= 0 {
		errs = append(errs, fmt.Errorf("retention.sensitive_photo_ttl must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
