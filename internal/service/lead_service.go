package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/leadflow/internal/domain"
	"github.com/diagnosis/leadflow/internal/repository"
	"github.com/diagnosis/leadflow/pkg/events"
	"github.com/diagnosis/leadflow/pkg/logger"
)

type LeadService interface {
	SubmitLead(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error)
	ListLeads(ctx context.Context) ([]domain.Lead, error)
	UpdateLead(ctx context.Context, id string, patch domain.LeadPatch, by *Identity) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id string, by *Identity) error
}

type leadService struct {
	leadRepo  repository.LeadRepository
	publisher events.Publisher
	now       func() time.Time
}

type LeadOption func(*leadService)

// WithLeadClock overrides the clock stamped on lead events.
func WithLeadClock(now func() time.Time) LeadOption {
	return func(s *leadService) { s.now = now }
}

func NewLeadService(leadRepo repository.LeadRepository, publisher events.Publisher, opts ...LeadOption) LeadService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &leadService{
		leadRepo:  leadRepo,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *leadService) SubmitLead(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead, err := s.leadRepo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	logger.InfoContext(ctx, "Lead submitted", "lead_id", lead.ID, "source", lead.Source)
	s.publish(ctx, events.LeadCreated, events.LeadCreatedEvent{
		LeadID:    lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Source:    lead.Source,
		CreatedAt: lead.CreatedAt,
	})
	return lead, nil
}

func (s *leadService) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	leads, err := s.leadRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

func (s *leadService) UpdateLead(ctx context.Context, id string, patch domain.LeadPatch, by *Identity) (*domain.Lead, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	lead, err := s.leadRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}

	s.publish(ctx, events.LeadUpdated, events.LeadUpdatedEvent{
		LeadID:    lead.ID,
		Status:    string(lead.Status),
		Changes:   patch.Fields(),
		UpdatedBy: username(by),
		UpdatedAt: s.now().UTC(),
	})
	return lead, nil
}

func (s *leadService) DeleteLead(ctx context.Context, id string, by *Identity) error {
	if err := s.leadRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead %s: %w", id, err)
	}

	logger.InfoContext(ctx, "Lead deleted", "lead_id", id)
	s.publish(ctx, events.LeadDeleted, events.LeadDeletedEvent{
		LeadID:    id,
		DeletedBy: username(by),
		DeletedAt: s.now().UTC(),
	})
	return nil
}

// Events are best effort; the write has already succeeded.
func (s *leadService) publish(ctx context.Context, subject string, event interface{}) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish lead event", "subject", subject, "error", err)
	}
}

func username(id *Identity) string {
	if id == nil {
		return ""
	}
	return id.Username
}
