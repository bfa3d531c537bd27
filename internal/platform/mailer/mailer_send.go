package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type Mailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	Enabled bool
}

func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	m := &Mailer{
		Enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.Enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *Mailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	if !m.Enabled {
		return "", errors.New("mailer disabled (missing MAILERSEND_API_KEY or MAILER_FROM)")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	// MailerSend uses X-Message-Id
	return res.Header.Get("X-Message-Id"), nil
}

func (m *Mailer) SendNewLead(ctx context.Context, toEmail string, lead NewLead) error {
	subject, text, body := renderNewLead(lead)
	_, err := m.Send(ctx, toEmail, "", subject, text, body)
	return err
}

func renderNewLead(lead NewLead) (subject, text, body string) {
	subject = fmt.Sprintf("New lead: %s", lead.Name)

	var t strings.Builder
	fmt.Fprintf(&t, "Name: %s\nEmail: %s\n", lead.Name, lead.Email)
	if lead.Phone != "" {
		fmt.Fprintf(&t, "Phone: %s\n", lead.Phone)
	}
	if lead.Source != "" {
		fmt.Fprintf(&t, "Source: %s\n", lead.Source)
	}
	fmt.Fprintf(&t, "Received: %s\n", lead.CreatedAt.Format(time.RFC1123))

	var h strings.Builder
	fmt.Fprintf(&h, "<p><b>%s</b> &lt;%s&gt;</p>", html.EscapeString(lead.Name), html.EscapeString(lead.Email))
	if lead.Phone != "" {
		fmt.Fprintf(&h, "<p>Phone: %s</p>", html.EscapeString(lead.Phone))
	}
	if lead.Source != "" {
		fmt.Fprintf(&h, "<p>Source: %s</p>", html.EscapeString(lead.Source))
	}
	fmt.Fprintf(&h, "<p>Received %s</p>", lead.CreatedAt.Format(time.RFC1123))

	return subject, t.String(), h.String()
}
