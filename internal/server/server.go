package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MalithGihan/codediagram-service/internal/credential"
	"github.com/MalithGihan/codediagram-service/internal/diagram"
	"github.com/MalithGihan/codediagram-service/internal/ingest"
	"github.com/MalithGihan/codediagram-service/pkg/types"
)

// APIKeyHeader answers the credential prompt for a single request.
const APIKeyHeader = "X-Api-Key"

const maxSourceBytes = 4 << 20

// Generator is the subset of *diagram.Generator the HTTP layer needs.
type Generator interface {
	GenerateRequest(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error)
	Model() string
}

type Pinger interface {
	Ping(ctx context.Context) bool
	Endpoint() string
}

type Config struct {
	Generator   Generator
	Credentials *credential.Manager
	Pinger      Pinger
	Logger      *slog.Logger
}

type Server struct {
	gen    Generator
	creds  *credential.Manager
	pinger Pinger
	logger *slog.Logger
	router chi.Router
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		gen:    cfg.Generator,
		creds:  cfg.Credentials,
		pinger: cfg.Pinger,
		logger: cfg.Logger,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePanel)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "codediagram-service"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Post("/diagrams", s.handleGenerate)
		r.Get("/credential", s.handleCredentialStatus)
		r.Put("/credential", s.handleCredentialUpdate)
		r.Delete("/credential", s.handleCredentialClear)
	})
}

type pingResp struct {
	OK                   bool   `json:"ok"`
	APIURL               string `json:"api_url"`
	APIReachable         bool   `json:"api_reachable"`
	CredentialConfigured bool   `json:"credential_configured"`
	Note                 string `json:"note,omitempty"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	out := pingResp{OK: true}
	if s.pinger != nil {
		out.APIURL = s.pinger.Endpoint()
		out.APIReachable = s.pinger.Ping(r.Context())
	}
	configured, err := s.creds.Configured(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "read credential status", "error", err)
	}
	out.CredentialConfigured = configured
	switch {
	case !out.APIReachable:
		out.Note = "model API not reachable"
	case !configured:
		out.Note = "API key not configured; PUT /api/credential or send " + APIKeyHeader
	}
	writeJSON(w, http.StatusOK, out)
}

type generateRequest struct {
	Source   string `json:"source"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

type generateErrorResp struct {
	Error   string `json:"error"`
	Diagram string `json:"diagram"`
}

// handleGenerate accepts JSON {source,name,language} or a raw text body with
// an optional ?name= used for language detection.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		ctx = credential.WithPrompter(ctx, credential.PromptFunc(func(context.Context) (string, error) {
			return key, nil
		}))
	}

	res, err := s.gen.GenerateRequest(ctx, req)
	if err != nil {
		writeJSON(w, statusFor(err), generateErrorResp{Error: err.Error(), Diagram: diagram.Fallback(err)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeGenerate(r *http.Request) (types.GenerationRequest, error) {
	body := io.LimitReader(r.Body, maxSourceBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req generateRequest
	if ct == "application/json" {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return types.GenerationRequest{}, errors.New("invalid JSON body")
		}
	} else {
		doc, err := ingest.ReadFrom(r.URL.Query().Get("name"), body)
		if err != nil && !errors.Is(err, ingest.ErrEmptyDocument) {
			return types.GenerationRequest{}, err
		}
		req = generateRequest{Source: doc.Text, Name: doc.Name, Language: doc.Language}
	}
	if strings.TrimSpace(req.Source) == "" {
		return types.GenerationRequest{}, errors.New("source is required")
	}
	if req.Language == "" {
		req.Language = ingest.DetectLanguage(req.Name)
	}
	return types.GenerationRequest{Source: req.Source, Name: req.Name, Language: req.Language}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, diagram.ErrConfiguration):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, diagram.ErrTransport),
		errors.Is(err, diagram.ErrResponseShape),
		errors.Is(err, diagram.ErrValidation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := s.creds.Configured(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read API key from secure storage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configured": ok, "key_name": s.creds.KeyName()})
}

func (s *Server) handleCredentialUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.creds.Update(r.Context(), body.APIKey); err != nil {
		if errors.Is(err, credential.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "api_key is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store API key in secure storage")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCredentialClear(w http.ResponseWriter, r *http.Request) {
	if err := s.creds.Clear(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "clear credential", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear API Key.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "API Key has been cleared successfully."})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.InfoContext(r.Context(), "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
