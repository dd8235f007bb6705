package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/apierr"
)

// respondError maps the eight-kind apierr taxonomy (spec §7) onto an
// HTTP status and a {status:"error", ...} JSON body, grounded on
// tarsy's pkg/api/errors.go mapServiceError.
func respondError(c *gin.Context, err error) {
	var validErr *apierr.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": validErr.Error(), "field": validErr.Field})
		return
	}

	var blocked *apierr.BlockedError
	if errors.As(err, &blocked) {
		c.JSON(http.StatusForbidden, gin.H{
			"status":         "blocked",
			"context_status": blocked.ContextStatus,
			"can_continue":   blocked.CanContinue,
			"user_tier":      blocked.UserTier,
		})
		return
	}

	var stateErr *apierr.StateError
	if errors.As(err, &stateErr) {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": stateErr.Error()})
		return
	}

	var extErr *apierr.ExternalServiceError
	if errors.As(err, &extErr) {
		if extErr.IsRateLimited() {
			c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "error": "rate limited by provider"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": "external service error"})
		return
	}

	switch {
	case errors.Is(err, apierr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "resource not found"})
	case errors.Is(err, apierr.ErrAuthorization):
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": "not authorized for this resource"})
	case errors.Is(err, apierr.ErrRateLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "error": "rate limited by provider"})
	case errors.Is(err, apierr.ErrParse):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "error", "error": "could not parse model output"})
	case errors.Is(err, apierr.ErrState):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": "operation not valid in current state"})
	default:
		slog.Error("unexpected handler error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": message})
}
