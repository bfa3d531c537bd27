package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/leadflow/internal/http/middleware"
	"github.com/diagnosis/leadflow/internal/http/response"
	"github.com/diagnosis/leadflow/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Leads service.LeadService
	Auth  service.AuthService
}

func New(leads service.LeadService, auth service.AuthService) *Handlers {
	return &Handlers{Leads: leads, Auth: auth}
}

// Middlewares are optional extras applied to individual routes.
type Middlewares struct {
	LoginRateLimit func(http.Handler) http.Handler
	Idempotency    func(http.Handler) http.Handler
}

func (h *Handlers) Routes(mw Middlewares) chi.Router {
	r := chi.NewRouter()

	r.With(optional(mw.LoginRateLimit)).Post("/auth/login", h.login)

	r.Route("/leads", func(r chi.Router) {
		r.With(optional(mw.Idempotency)).Post("/", h.createLead)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.Auth))
			r.Get("/", h.listLeads)
			r.Patch("/{id}", h.updateLead)
			r.Delete("/{id}", h.deleteLead)
		})
	})

	return r
}

func optional(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

var errTooLarge = errors.New("request body too large")

// decodeJSON reads at most maxBodyBytes. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return errTooLarge
	default:
		return err
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		response.PayloadTooLarge(w)
		return
	}
	response.BadRequest(w, "Invalid JSON body")
}
