package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"tradietalk-voice-service/internal/app"
	"tradietalk-voice-service/internal/observability"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/capture"
	"tradietalk-voice-service/internal/service/stt"
	"tradietalk-voice-service/internal/service/workflow"
	"tradietalk-voice-service/internal/storage/sqlite"
)

// AttemptLister reads the extraction audit log.
type AttemptLister interface {
	GetRecentAttempts(ctx context.Context, outcome string, limit int) ([]*sqlite.AttemptRecord, error)
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Extractor         workflow.Extractor
	Speech            stt.Availability
	Limits            capture.Limits
	PermissionTimeout time.Duration
	Attempts          AttemptLister // optional
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application != nil && !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	voice := &voiceHandler{extractor: d.Extractor}
	sessions := &sessionHandler{
		extractor:         d.Extractor,
		speech:            d.Speech,
		limits:            d.Limits,
		permissionTimeout: d.PermissionTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	// API routes
	r.Route("/api/voice", func(r chi.Router) {
		r.Post("/process", voice.process)
		r.Get("/session", sessions.serve)
		if d.Attempts != nil {
			r.Get("/attempts", attemptsHandler(d.Attempts))
		}
	})

	return r
}
