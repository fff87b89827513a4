package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxRequestBytes caps every request body accepted by the router.
const MaxRequestBytes = 1 << 20

// MCPHandler handles MCP method dispatch.
type MCPHandler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Server wires HTTP handlers.
type Server struct {
	handler MCPHandler
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware. The JSON-RPC
// endpoint is mounted at /rpc; extra routes (such as the streamable MCP
// handler) can be mounted by the caller on the returned router.
func NewServer(handler MCPHandler, defaultUser string, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(MaxRequestBytes))
	r.Use(IdentityMiddleware(defaultUser))

	srv := &Server{handler: handler, logger: logger}

	r.Post("/rpc", srv.handleRPC)
	r.Get("/health", srv.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.logger.Warn("rpc body too large", "limit", tooLarge.Limit, "remote", r.RemoteAddr)
		WriteError(w, nil, ErrInvalidReq, "request body too large", nil)
		return
	}
	if err != nil {
		WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
		return
	}

	result, err := s.handler.Handle(r.Context(), req.Method, req.Params)
	if err != nil {
		code, data := classify(err)
		if code == ErrInternal {
			s.logger.Error("rpc call failed", "method", req.Method, "error", err)
		}
		WriteError(w, req.ID, code, err.Error(), data)
		return
	}

	WriteResult(w, req.ID, result)
}
