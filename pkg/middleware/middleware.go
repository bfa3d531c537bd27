package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/diagnosis/leadflow/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging
func Logging(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{})(next)
}

type StructuredLogger struct{}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &StructuredLogEntry{
		request: r,
		start:   time.Now(),
	}
}

type StructuredLogEntry struct {
	request *http.Request
	start   time.Time
}

func (l *StructuredLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	logger.InfoContext(l.request.Context(), "HTTP request completed",
		"method", l.request.Method,
		"path", l.request.URL.Path,
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"user_agent", l.request.UserAgent(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *StructuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "HTTP request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", l.request.URL.Path,
	)
}

// Recover turns a handler panic into a JSON 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "Panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"Internal server error","code":"INTERNAL_ERROR"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS allows credentialed requests from the configured origins. Requests
// without an Origin header are not cross-origin and pass untouched.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return OriginAllowed(cfg, origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	})
}

// OriginAllowed matches origin against the allowed prefixes and suffixes.
func OriginAllowed(cfg config.CORSConfig, origin string) bool {
	if origin == "" {
		return true
	}
	for _, prefix := range cfg.AllowedOrigins {
		if prefix != "" && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	for _, suffix := range cfg.AllowedSuffixes {
		if suffix != "" && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// ServiceName adds service name to context for logging
func ServiceName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), logger.ServiceKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Health provides health check endpoint
func Health(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// A cachedResponse with Status 0 marks a request still being handled.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

const inFlightTTL = time.Minute

const inFlightMarker = `{"status":0}`

// IdempotencyMiddleware replays the first successful response to a POST
// carrying the same Idempotency-Key header. The key is claimed before the
// handler runs; a duplicate arriving meanwhile gets 409.
func IdempotencyMiddleware(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Hash the key for privacy
			hashedKey := fmt.Sprintf("idempotency:%s:%x", r.URL.Path, sha256.Sum256([]byte(key)))

			claimed, err := store.Claim(r.Context(), hashedKey, inFlightMarker, inFlightTTL)
			if err != nil {
				logger.WarnContext(r.Context(), "Idempotency claim failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				replayOrConflict(w, r, store, hashedKey)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode < 200 || recorder.statusCode >= 300 {
				if err := store.Delete(r.Context(), hashedKey); err != nil {
					logger.WarnContext(r.Context(), "Idempotency release failed", "error", err)
				}
				return
			}

			payload, err := json.Marshal(cachedResponse{
				Status:      recorder.statusCode,
				ContentType: w.Header().Get("Content-Type"),
				Body:        recorder.body.Bytes(),
			})
			if err == nil {
				err = store.Set(r.Context(), hashedKey, string(payload), ttl)
			}
			if err != nil {
				logger.WarnContext(r.Context(), "Idempotency store failed", "error", err)
			}
		})
	}
}

func replayOrConflict(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key string) {
	existing, err := store.Get(r.Context(), key)
	if err != nil {
		logger.WarnContext(r.Context(), "Idempotency lookup failed", "error", err)
	}

	var cached cachedResponse
	if existing != "" && json.Unmarshal([]byte(existing), &cached) == nil && cached.Status != 0 {
		w.Header().Set("Content-Type", cached.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(cached.Status)
		w.Write(cached.Body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	w.Write([]byte(`{"message":"A request with this Idempotency-Key is already in progress","code":"CONFLICT"}`))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.body.Write(body)
	return r.ResponseWriter.Write(body)
}
