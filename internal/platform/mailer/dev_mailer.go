package mailer

import (
	"context"

	"github.com/diagnosis/leadflow/pkg/logger"
)

// DevMailer writes emails to the log instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	logger.InfoContext(ctx, "[DEV MAIL]",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return "dev", nil
}

func (d *DevMailer) SendNewLead(ctx context.Context, toEmail string, lead NewLead) error {
	subject, text, body := renderNewLead(lead)
	_, err := d.Send(ctx, toEmail, "", subject, text, body)
	return err
}
