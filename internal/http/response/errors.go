package response

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/leadflow/pkg/logger"
)

// ErrorResponse is the body of every failed request. The dashboard reads
// message directly.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MessageResponse is used for successful calls that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Message: message,
		Code:    code,
	})
}

// NoCache marks responses carrying credentials.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Common error codes
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInvalidCreds  = "INVALID_CREDENTIALS"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeInternalError = "INTERNAL_ERROR"
	CodeExpiredToken  = "EXPIRED_TOKEN"
	CodeInvalidToken  = "INVALID_TOKEN"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
)

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func InvalidCredentials(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "Invalid credentials", CodeInvalidCreds)
}

// InvalidToken answers 403 for a token that is present but unusable.
func InvalidToken(w http.ResponseWriter, code string) {
	WriteError(w, http.StatusForbidden, "Invalid or expired token", code)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func PayloadTooLarge(w http.ResponseWriter) {
	WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", CodeTooLarge)
}
