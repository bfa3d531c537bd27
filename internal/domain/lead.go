package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation marks a request the caller can fix and resubmit.
var ErrValidation = errors.New("validation failed")

type LeadStatus string

const (
	LeadNew       LeadStatus = "New"
	LeadContacted LeadStatus = "Contacted"
	LeadConverted LeadStatus = "Converted"
)

func ParseLeadStatus(s string) (LeadStatus, bool) {
	switch LeadStatus(s) {
	case LeadNew, LeadContacted, LeadConverted:
		return LeadStatus(s), true
	default:
		return "", false
	}
}

type Lead struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Source    string     `json:"source,omitempty"`
	Status    LeadStatus `json:"status"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CreateLeadRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
}

// LeadPatch carries the fields an administrator may change. A nil field is
// left alone. An empty Status is ignored as well, while an empty Notes
// clears the notes.
type LeadPatch struct {
	Status *LeadStatus `json:"status,omitempty"`
	Notes  *string     `json:"notes,omitempty"`
}

func (r *CreateLeadRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Source = strings.TrimSpace(r.Source)
}

func (r *CreateLeadRequest) Validate() error {
	if r.Name == "" || r.Email == "" {
		return fmt.Errorf("%w: Name and Email are required", ErrValidation)
	}
	return nil
}

func (p LeadPatch) Validate() error {
	if p.Status == nil || *p.Status == "" {
		return nil
	}
	if _, ok := ParseLeadStatus(string(*p.Status)); !ok {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, *p.Status)
	}
	return nil
}

// Fields names the fields Apply sets, in order.
func (p LeadPatch) Fields() []string {
	var fields []string
	if p.Status != nil && *p.Status != "" {
		fields = append(fields, "status")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}

// Apply writes the patch onto l and returns the names of the fields it set.
func (p LeadPatch) Apply(l *Lead) []string {
	if p.Status != nil && *p.Status != "" {
		l.Status = *p.Status
	}
	if p.Notes != nil {
		l.Notes = *p.Notes
	}
	return p.Fields()
}
