package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"swapescrow/core"
	"swapescrow/observability"
	"swapescrow/observability/logging"
	"swapescrow/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeRateLimited    = -32020
)

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	// RequestsPerMinute and Burst bound ledger_sendTransaction per client
	// source. Zero disables the limit.
	RequestsPerMinute int
	Burst             int
	// TrustedProxies lists peer addresses whose X-Forwarded-For header
	// names the client.
	TrustedProxies []string
	// History serves escrow_history; nil disables the method.
	History modules.HistoryReader
	Logger  *slog.Logger
}

type Server struct {
	logger         *slog.Logger
	limiter        *sourceLimiter
	trustedProxies map[string]struct{}

	ledger *modules.LedgerModule
	token  *modules.TokenModule
	escrow *modules.EscrowModule
}

func NewServer(ledger *core.Ledger, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:         logger.With(slog.String("component", "rpc")),
		limiter:        newSourceLimiter(cfg.RequestsPerMinute, cfg.Burst),
		trustedProxies: trustedProxySet(cfg.TrustedProxies),
		ledger:         modules.NewLedgerModule(ledger),
		token:          modules.NewTokenModule(ledger),
		escrow:         modules.NewEscrowModule(ledger, cfg.History),
	}
}

// Handler returns the HTTP routes: JSON-RPC on "/", plus /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "escrowd.rpc")
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	module := moduleOf(req.Method)
	start := time.Now()
	result, modErr := s.dispatch(r, req)
	code := 0
	if modErr != nil {
		code = modErr.Code
	}
	observability.ModuleMetrics().Observe(module, req.Method, code, time.Since(start))

	if modErr != nil {
		s.logger.Debug("rpc request failed",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			logging.MaskField("source", s.clientSource(r)),
			slog.Int("code", modErr.Code),
			slog.String("error", modErr.Message))
		writeError(w, modErr.HTTPStatus, req.ID, modErr.Code, modErr.Message, modErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *modules.ModuleError) {
	switch req.Method {
	case "ledger_sendTransaction":
		if !s.limiter.allow(s.clientSource(r)) {
			observability.ModuleMetrics().RecordThrottle("ledger", "rate_limit")
			return nil, &modules.ModuleError{HTTPStatus: http.StatusTooManyRequests, Code: codeRateLimited, Message: "rate limit exceeded"}
		}
		return unwrap(s.ledger.SendTransaction(r.Context(), req.Params))
	case "ledger_getNonce":
		return unwrap(s.ledger.GetNonce(req.Params))
	case "token_getAsset":
		return unwrap(s.token.GetAsset(req.Params))
	case "token_getBalance":
		return unwrap(s.token.GetBalance(req.Params))
	case "escrow_get":
		return unwrap(s.escrow.Get(req.Params))
	case "escrow_find":
		return unwrap(s.escrow.Find(req.Params))
	case "escrow_derive":
		return unwrap(s.escrow.Derive(req.Params))
	case "escrow_history":
		return unwrap(s.escrow.History(r.Context(), req.Params))
	default:
		return nil, &modules.ModuleError{HTTPStatus: http.StatusNotFound, Code: codeMethodNotFound, Message: "method not found", Data: req.Method}
	}
}

// unwrap erases a typed result so a nil pointer never reaches the encoder as
// a non-nil interface.
func unwrap[T any](result T, err *modules.ModuleError) (interface{}, *modules.ModuleError) {
	if err != nil {
		return nil, err
	}
	return result, nil
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return method
}
