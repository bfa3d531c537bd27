package handlers

import (
	"errors"
	"net/http"

	"github.com/diagnosis/leadflow/internal/http/response"
	"github.com/diagnosis/leadflow/internal/service"
	"github.com/diagnosis/leadflow/pkg/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	token, err := h.Auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logger.WarnContext(r.Context(), "Failed admin login", "username", in.Username)
			response.InvalidCredentials(w)
			return
		}
		logger.ErrorContext(r.Context(), "Login failed", "error", err)
		response.InternalError(w, "Server error")
		return
	}

	logger.InfoContext(r.Context(), "Admin logged in", "username", in.Username)
	response.NoCache(w)
	response.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}
