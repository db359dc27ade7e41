package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/uniqa/internal/ai"
)

// MaxBodyBytes caps the /api/chat request body
const MaxBodyBytes = 100 << 10

// Assistant answers chat messages
type Assistant interface {
	ProcessUserQuery(ctx context.Context, query string) (string, error)
	BackendModel() ai.Model
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	TrustProxy     bool
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ModelResponse struct {
	Model     ai.Model   `json:"model"`
	Available []ai.Model `json:"available"`
}

type handler struct {
	assistant Assistant
	timeout   time.Duration
}

// NewRouter builds the HTTP surface. The limiter guards /api/* only.
func NewRouter(assistant Assistant, limiter *Limiter, opts Options, logger zerolog.Logger) http.Handler {
	h := &handler{assistant: assistant, timeout: opts.RequestTimeout}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("dur", dur).
			Msg("http")
	}))
	r.Use(CORS(opts.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Post("/chat", h.chat)
		r.Get("/model", h.model)
	})
	return r
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, msgMessageRequired)
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, msgMessageRequired)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply, err := h.assistant.ProcessUserQuery(ctx, req.Message)
	if err != nil {
		m := Classify(err)
		hlog.FromRequest(r).Error().
			Err(err).
			Int("status", m.Status).
			Str("kind", string(m.Kind)).
			Str("detail", m.Detail).
			Msg("chat request failed")
		writeError(w, m.Status, m.Message)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

func (h *handler) model(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelResponse{
		Model:     h.assistant.BackendModel(),
		Available: ai.Models(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Server owns the listening http.Server
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

func NewServer(addr string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Addr() string { return s.srv.Addr }

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("api server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("api server shutting down")
	return s.srv.Shutdown(ctx)
}
