// Package http exposes the engine over a thin JSON boundary: workflow
// discovery, session lifecycle, and step submission. All workflow semantics
// live in the engine; handlers only translate between HTTP and engine calls.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// maxUploadBytes caps multipart submissions.
const maxUploadBytes = 32 << 20

// Engine is the runtime surface the HTTP boundary depends on.
type Engine interface {
	Document() *workflow.Document
	CreateSession(ctx context.Context) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Advance(ctx context.Context, id string) (*domain.Session, error)
	SubmitStep(ctx context.Context, id, stepID string, payload any) (*domain.Session, error)
}

// Server routes boundary requests to the engine.
type Server struct {
	engine   Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsGatherer exposes the given registry on /metrics.
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler builds the boundary router.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", server.health)
	if server.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/workflow", server.getWorkflow)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", server.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", server.getSession)
			r.Delete("/", server.deleteSession)
			r.Post("/advance", server.advance)
			r.Post("/steps/{stepID}", server.submitStep)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getWorkflow returns the current document. Provider entries name the env
// var holding their key, never the key itself, so the document is safe to
// expose whole.
func (s *Server) getWorkflow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Document())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.CreateSession(r.Context())
	if err != nil {
		s.writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, session.View())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.Advance(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, "advance session", err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

// submitStep accepts either a JSON body ({"data": ...}) or a multipart form
// with a "file" part and an optional "payload" field of extra JSON. File
// parts are normalized into the {name, content, contentType} payload
// interactive file steps expect.
func (s *Server) submitStep(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	stepID := chi.URLParam(r, "stepID")

	payload, err := decodeSubmission(r)
	if err != nil {
		s.logger.Warn("rejected submission body", "session_id", sessionID, "step", stepID, "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}

	session, err := s.engine.SubmitStep(r.Context(), sessionID, stepID, payload)
	if err != nil {
		s.writeError(w, "submit step", err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func decodeSubmission(r *http.Request) (any, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return decodeMultipart(r)
	}

	var body struct {
		Data any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.New("request body must be JSON with a \"data\" field")
	}
	return body.Data, nil
}

func decodeMultipart(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("multipart form must carry a \"file\" part")
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, errors.New("failed to read uploaded file")
	}

	payload := map[string]any{}
	if extra := r.FormValue("payload"); extra != "" {
		if err := json.Unmarshal([]byte(extra), &payload); err != nil {
			return nil, errors.New("\"payload\" field must be a JSON object")
		}
	}
	payload["name"] = header.Filename
	payload["content"] = base64.StdEncoding.EncodeToString(raw)
	payload["contentType"] = header.Header.Get("Content-Type")
	return payload, nil
}

// writeError maps engine errors onto status codes: unknown session is 404,
// an unexpected step target is 409, everything else is a server error.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	case errors.Is(err, domain.ErrStepNotExpected):
		writeJSON(w, http.StatusConflict, errorBody(err))
	default:
		s.logger.Error(op+" failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err))
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
