package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/leadflow/internal/platform/mailer"
	"github.com/diagnosis/leadflow/pkg/events"
	"github.com/diagnosis/leadflow/pkg/logger"
)

// Worker emails the owner about every new lead.
type Worker struct {
	mailer  mailer.Service
	to      string
	timeout time.Duration
}

func NewWorker(m mailer.Service, to string) *Worker {
	return &Worker{mailer: m, to: to, timeout: 15 * time.Second}
}

// Subscribe attaches the worker to lead.created in queue group queue, so
// each event is mailed once across replicas.
func (w *Worker) Subscribe(sub events.Subscriber, queue string) error {
	return sub.QueueSubscribe(events.LeadCreated, queue, func(msg *events.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Handle(ctx, msg); err != nil {
			logger.Error("Failed to notify about lead", "subject", msg.Subject, "error", err)
		}
	})
}

func (w *Worker) Handle(ctx context.Context, msg *events.Message) error {
	var ev events.LeadCreatedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Subject, err)
	}

	err := w.mailer.SendNewLead(ctx, w.to, mailer.NewLead{
		ID:        ev.LeadID,
		Name:      ev.Name,
		Email:     ev.Email,
		Phone:     ev.Phone,
		Source:    ev.Source,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("send new lead %s: %w", ev.LeadID, err)
	}
	logger.Info("Lead notification sent", "lead_id", ev.LeadID)
	return nil
}
