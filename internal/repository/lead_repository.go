package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/leadflow/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no lead has the requested id.
	ErrNotFound = errors.New("lead not found")
	// ErrPersistence indicates the medium could not be read or written.
	ErrPersistence = errors.New("lead persistence failure")
	// ErrConflict indicates another process saved the collection first.
	ErrConflict = errors.New("lead collection modified concurrently")
)

type LeadRepository interface {
	Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
	Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error)
	Delete(ctx context.Context, id string) error
}

// leadRepository keeps no cache between calls: every operation starts from
// what the medium holds. Mutations hold mu for the whole read-modify-write
// cycle; List relies on the medium's atomic replace and takes no lock.
type leadRepository struct {
	mu     sync.Mutex
	medium Medium
	now    func() time.Time
	newID  func() string
}

type Option func(*leadRepository)

func WithClock(now func() time.Time) Option {
	return func(r *leadRepository) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *leadRepository) { r.newID = newID }
}

func NewLeadRepository(medium Medium, opts ...Option) LeadRepository {
	r := &leadRepository{
		medium: medium,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *leadRepository) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	var created domain.Lead
	err := r.withCollection(ctx, func(leads []domain.Lead) ([]domain.Lead, error) {
		created = domain.Lead{
			ID:        r.newID(),
			Name:      req.Name,
			Email:     req.Email,
			Phone:     req.Phone,
			Source:    req.Source,
			Status:    domain.LeadNew,
			Notes:     "",
			CreatedAt: r.now().UTC(),
		}
		for _, l := range leads {
			if l.ID == created.ID {
				return nil, fmt.Errorf("%w: duplicate id %s", ErrPersistence, created.ID)
			}
		}
		return append(leads, created), nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *leadRepository) List(ctx context.Context) ([]domain.Lead, error) {
	leads, _, err := r.load(ctx)
	return leads, err
}

func (r *leadRepository) Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	var updated domain.Lead
	err := r.withCollection(ctx, func(leads []domain.Lead) ([]domain.Lead, error) {
		i := indexOf(leads, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		patch.Apply(&leads[i])
		updated = leads[i]
		return leads, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	return r.withCollection(ctx, func(leads []domain.Lead) ([]domain.Lead, error) {
		i := indexOf(leads, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(leads[:i], leads[i+1:]...), nil
	})
}

// withCollection is the transaction boundary for mutations: lock, read the
// current collection, let mutate change a private copy, write the result
// back, unlock. If mutate fails nothing is written.
func (r *leadRepository) withCollection(ctx context.Context, mutate func([]domain.Lead) ([]domain.Lead, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	leads, version, err := r.load(ctx)
	if err != nil {
		return err
	}

	next, err := mutate(leads)
	if err != nil {
		return err
	}

	data, err := encodeLeads(next)
	if err != nil {
		return fmt.Errorf("%w: encode leads: %w", ErrPersistence, err)
	}
	if err := r.medium.Save(ctx, data, version); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: save leads: %w", ErrPersistence, err)
	}
	return nil
}

func (r *leadRepository) load(ctx context.Context) ([]domain.Lead, int64, error) {
	data, version, err := r.medium.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load leads: %w", ErrPersistence, err)
	}

	leads := []domain.Lead{}
	if len(bytes.TrimSpace(data)) == 0 {
		return leads, version, nil
	}
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, 0, fmt.Errorf("%w: decode leads: %w", ErrPersistence, err)
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	return leads, version, nil
}

func encodeLeads(leads []domain.Lead) ([]byte, error) {
	if leads == nil {
		leads = []domain.Lead{}
	}
	return json.MarshalIndent(leads, "", "  ")
}

func indexOf(leads []domain.Lead, id string) int {
	for i := range leads {
		if leads[i].ID == id {
			return i
		}
	}
	return -1
}
