package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/emailqueue"
)

type emailSendReportBody struct {
	UserID                string         `json:"user_id" binding:"required"`
	ScanID                string         `json:"scan_id"`
	Recipient             string         `json:"recipient" binding:"required"`
	CC                    []string       `json:"cc"`
	Subject               string         `json:"subject"`
	Template              string         `json:"template"`
	TemplateData          map[string]any `json:"template_data"`
	AttachmentBase64      string         `json:"attachment_base64"`
	AttachmentContentType string         `json:"attachment_content_type"`
}

// emailSendReportHandler handles POST /api/email/send-report.
func (s *Server) emailSendReportHandler(c *gin.Context) {
	var body emailSendReportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.emails.SendReport(c.Request.Context(), emailqueue.SendReportRequest{
		UserID:                body.UserID,
		ScanID:                body.ScanID,
		Recipient:             body.Recipient,
		CC:                    body.CC,
		Subject:               body.Subject,
		Template:              body.Template,
		TemplateData:          body.TemplateData,
		AttachmentBase64:      body.AttachmentBase64,
		AttachmentContentType: body.AttachmentContentType,
	})
	if err != nil {
		if err == emailqueue.ErrAttachmentTooLarge {
			badRequest(c, "attachment exceeds 10MB limit")
			return
		}
		if err == emailqueue.ErrNotOwner {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": "scan does not belong to user"})
			return
		}
		respondError(c, fmt.Errorf("sending report email: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    result.Success,
		"message_id": result.MessageID,
		"sent_at":    result.SentAt,
		"message":    result.Message,
	})
}

type emailSendScanBody struct {
	UserID       string         `json:"user_id" binding:"required"`
	ScanID       string         `json:"scan_id"`
	Recipient    string         `json:"recipient" binding:"required"`
	Subject      string         `json:"subject"`
	Template     string         `json:"template"`
	TemplateData map[string]any `json:"template_data"`
}

// emailSendScanHandler handles POST /api/email/send-scan.
func (s *Server) emailSendScanHandler(c *gin.Context) {
	var body emailSendScanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.emails.SendScan(c.Request.Context(), emailqueue.SendScanRequest{
		UserID:       body.UserID,
		ScanID:       body.ScanID,
		Recipient:    body.Recipient,
		Subject:      body.Subject,
		Template:     body.Template,
		TemplateData: body.TemplateData,
	})
	if err != nil {
		respondError(c, fmt.Errorf("sending scan email: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    result.Success,
		"message_id": result.MessageID,
		"sent_at":    result.SentAt,
		"message":    result.Message,
	})
}

type sendgridWebhookEvent struct {
	SGMessageID string `json:"sg_message_id"`
	Event       string `json:"event"`
	Email       string `json:"email"`
	Timestamp   int64  `json:"timestamp"`
}

// emailWebhookHandler handles POST /api/email/webhooks/sendgrid: maps
// provider delivery events onto EmailQueueItem status (spec §4.12,
// §6.5). The correlating provider_message_id is the first dotted
// segment of sg_message_id.
func (s *Server) emailWebhookHandler(c *gin.Context) {
	var events []sendgridWebhookEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		badRequest(c, err.Error())
		return
	}

	mapped := make([]emailqueue.WebhookEvent, len(events))
	for i, ev := range events {
		messageID := ev.SGMessageID
		if idx := strings.Index(messageID, "."); idx >= 0 {
			messageID = messageID[:idx]
		}
		mapped[i] = emailqueue.WebhookEvent{
			MessageID: messageID,
			EventType: ev.Event,
			RawPayload: map[string]any{
				"sg_message_id": ev.SGMessageID,
				"event":         ev.Event,
				"email":         ev.Email,
				"timestamp":     ev.Timestamp,
			},
		}
	}

	if err := s.emails.Webhook(c.Request.Context(), mapped); err != nil {
		respondError(c, fmt.Errorf("processing email webhook: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
