package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/leadflow/internal/domain"
	"github.com/diagnosis/leadflow/internal/http/middleware"
	"github.com/diagnosis/leadflow/internal/http/response"
	"github.com/diagnosis/leadflow/internal/repository"
	"github.com/diagnosis/leadflow/pkg/logger"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) createLead(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateLeadRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	lead, err := h.Leads.SubmitLead(r.Context(), &in)
	if err != nil {
		writeLeadError(w, r, err, "Failed to save lead")
		return
	}
	response.WriteJSON(w, http.StatusCreated, lead)
}

func (h *Handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Leads.ListLeads(r.Context())
	if err != nil {
		writeLeadError(w, r, err, "Failed to read leads")
		return
	}
	response.WriteJSON(w, http.StatusOK, leads)
}

func (h *Handlers) updateLead(w http.ResponseWriter, r *http.Request) {
	var patch domain.LeadPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeDecodeError(w, err)
		return
	}

	lead, err := h.Leads.UpdateLead(r.Context(), chi.URLParam(r, "id"), patch, middleware.Identity(r))
	if err != nil {
		writeLeadError(w, r, err, "Failed to update lead")
		return
	}
	response.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handlers) deleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.Leads.DeleteLead(r.Context(), chi.URLParam(r, "id"), middleware.Identity(r)); err != nil {
		writeLeadError(w, r, err, "Failed to delete lead")
		return
	}
	response.WriteJSON(w, http.StatusOK, response.MessageResponse{Message: "Lead deleted successfully"})
}

func writeLeadError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, validationMessage(err))
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(w, "Lead not found")
	default:
		logger.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// validationMessage strips the sentinel prefix so the client sees only the
// part it can act on.
func validationMessage(err error) string {
	msg, _ := strings.CutPrefix(err.Error(), domain.ErrValidation.Error()+": ")
	return msg
}
