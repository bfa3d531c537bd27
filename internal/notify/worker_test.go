package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/leadflow/internal/platform/mailer"
	"github.com/diagnosis/leadflow/pkg/events"
	"github.com/stretchr/testify/require"
)

type mockMailer struct {
	to   string
	lead mailer.NewLead
	err  error
}

func (m *mockMailer) Send(context.Context, string, string, string, string, string) (string, error) {
	return "", nil
}

func (m *mockMailer) SendNewLead(_ context.Context, to string, lead mailer.NewLead) error {
	m.to = to
	m.lead = lead
	return m.err
}

type fakeSubscriber struct {
	subject, queue string
	handler        func(*events.Message)
}

func (f *fakeSubscriber) Subscribe(string, func(*events.Message)) error { return nil }

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, handler func(*events.Message)) error {
	f.subject, f.queue, f.handler = subject, queue, handler
	return nil
}

func (f *fakeSubscriber) Close() error { return nil }

func leadCreatedMessage(t *testing.T) *events.Message {
	t.Helper()
	data, err := json.Marshal(events.LeadCreatedEvent{
		LeadID:    "l-1",
		Name:      "Ann",
		Email:     "ann@example.com",
		Source:    "landing",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return &events.Message{Subject: events.LeadCreated, Data: data}
}

func TestHandleSendsNewLead(t *testing.T) {
	m := &mockMailer{}
	w := NewWorker(m, "owner@example.com")

	require.NoError(t, w.Handle(context.Background(), leadCreatedMessage(t)))
	require.Equal(t, "owner@example.com", m.to)
	require.Equal(t, "l-1", m.lead.ID)
	require.Equal(t, "Ann", m.lead.Name)
	require.Equal(t, "landing", m.lead.Source)
}

func TestHandleErrors(t *testing.T) {
	w := NewWorker(&mockMailer{}, "owner@example.com")
	err := w.Handle(context.Background(), &events.Message{Subject: events.LeadCreated, Data: []byte("{")})
	require.Error(t, err)

	w = NewWorker(&mockMailer{err: errors.New("quota")}, "owner@example.com")
	err = w.Handle(context.Background(), leadCreatedMessage(t))
	require.ErrorContains(t, err, "quota")
}

func TestSubscribeUsesQueueGroup(t *testing.T) {
	m := &mockMailer{}
	sub := &fakeSubscriber{}
	require.NoError(t, NewWorker(m, "owner@example.com").Subscribe(sub, "notify"))

	require.Equal(t, events.LeadCreated, sub.subject)
	require.Equal(t, "notify", sub.queue)

	sub.handler(leadCreatedMessage(t))
	require.Equal(t, "l-1", m.lead.ID)
}
