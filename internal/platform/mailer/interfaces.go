package mailer

import (
	"context"
	"time"
)

// NewLead is what the notification email says about a submitted lead.
type NewLead struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Source    string
	CreatedAt time.Time
}

type Service interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
	SendNewLead(ctx context.Context, toEmail string, lead NewLead) error
}
