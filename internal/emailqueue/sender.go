package emailqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// SendGridSender delivers queued emails via the SendGrid v3 mail API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail, fromName: fromName}
}

func (s *SendGridSender) Send(ctx context.Context, item models.EmailQueueItem) (string, error) {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", item.Recipient)
	body := renderTemplate(item.Template, item.TemplateData)
	message := mail.NewSingleEmail(from, item.Subject, to, body, body)

	for _, cc := range item.CC {
		message.Personalizations[0].AddCCs(mail.NewEmail("", cc))
	}

	if item.AttachmentContent != "" {
		attachment := mail.NewAttachment()
		attachment.SetContent(item.AttachmentContent)
		attachment.SetType(contentTypeOf(item.AttachmentMetadata))
		attachment.SetFilename("report.pdf")
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid rejected message: status=%d body=%s", response.StatusCode, response.Body)
	}

	for key, values := range response.Headers {
		if key == "X-Message-Id" && len(values) > 0 {
			return values[0], nil
		}
	}
	return "", nil
}

func contentTypeOf(meta map[string]any) string {
	if meta == nil {
		return "application/pdf"
	}
	if ct, ok := meta["content_type"].(string); ok && ct != "" {
		return ct
	}
	return "application/pdf"
}

func renderTemplate(template string, data map[string]any) string {
	body := template
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return body
}
