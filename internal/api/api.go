// Package api exposes the AI pipeline over HTTP.
//
//	POST /api/ai/generate  stream a completion as Server-Sent Events
//	POST /api/ai/context   preview the assembled conversation
//	GET  /api/health       liveness
//	GET  /metrics          prometheus metrics
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HendryAvila/stickyboard/internal/assist"
	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/HendryAvila/stickyboard/internal/conversation"
	"github.com/HendryAvila/stickyboard/internal/provider"
	"github.com/HendryAvila/stickyboard/internal/relay"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20

// Assistant is the pipeline surface the handlers use.
type Assistant interface {
	Prepare(ctx context.Context, req assist.Request) (*assist.Prepared, error)
	Stream(ctx context.Context, p *assist.Prepared, sink relay.Sink) error
	Assemble(ctx context.Context, req assist.Request) (*assist.Assembled, error)
}

// Handlers serves the HTTP API.
type Handlers struct {
	assistant Assistant
	logger    *zap.Logger
}

// NewRouter builds the routed handler with its middleware chain.
func NewRouter(assistant Assistant, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{assistant: assistant, logger: logger}

	r := chi.NewRouter()
	r.Use(withRequestID(logger))
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/api/health", h.health)
	r.Post("/api/ai/generate", h.generate)
	r.Post("/api/ai/context", h.preview)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) generate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assist.Request](w, r)
	if !ok {
		return
	}
	log := Logger(r.Context(), h.logger)

	prepared, err := h.assistant.Prepare(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sse, err := relay.NewSSEWriter(w)
	if err != nil {
		log.Error("response writer cannot stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The stream already reported any failure in-band.
	if err := h.assistant.Stream(r.Context(), prepared, sse); err != nil {
		log.Info("stream ended with error", zap.Error(err))
	}
}

type contextResponse struct {
	BoardID  int64                  `json:"board_id"`
	Depth    int                    `json:"depth,omitempty"`
	Reached  int                    `json:"reached"`
	Levels   []contextgraph.Level   `json:"levels"`
	Messages []conversation.Message `json:"messages"`
}

func (h *Handlers) preview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assist.Request](w, r)
	if !ok {
		return
	}

	a, err := h.assistant.Assemble(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := contextResponse{
		BoardID:  a.BoardID,
		Levels:   []contextgraph.Level{},
		Messages: a.Messages,
	}
	if a.Context != nil {
		resp.Depth = a.Context.Depth
		resp.Reached = a.Context.Reached()
		resp.Levels = a.Context.Levels
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail writes a pre-stream error.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := Logger(r.Context(), h.logger)
	if status >= 500 {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, assist.ErrMissingPrompt),
		errors.Is(err, provider.ErrConfigurationMissing):
		return http.StatusBadRequest
	case errors.Is(err, assist.ErrBoardNotFound),
		errors.Is(err, contextgraph.ErrNoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		// nginx's "client closed request".
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
