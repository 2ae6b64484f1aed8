// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capsentry/internal/analysis"
	"capsentry/internal/config"
)

const (
	// AnalyzePath accepts multipart capture uploads.
	AnalyzePath = "/api/analyze-network"
	// UploadField is the multipart field holding the capture.
	UploadField = "file"

	msgNoFile        = "No file uploaded"
	msgTooLarge      = "Uploaded file is too large"
	msgAnalyzeFailed = "Failed to analyze file"
)

// Server is the HTTP front end for analysis runs.
type Server struct {
	cfg      config.ServerConfig
	metrics  config.MetricsConfig
	analyzer *analysis.Analyzer
	logger   *slog.Logger
	server   *http.Server
}

// New creates a server. It does not start listening.
func New(cfg config.ServerConfig, metrics config.MetricsConfig, analyzer *analysis.Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		metrics:  metrics,
		analyzer: analyzer,
		logger:   logger.With("component", "server"),
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+AnalyzePath, s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics.Enabled {
		mux.Handle("GET "+s.metrics.Path, promhttp.Handler())
	}
	return withCORS(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server running", "addr", ln.Addr().String(), "metrics", s.metrics.Enabled)
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.logger.With("request_id", reqID)

	body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)}
	r.Body = body

	part, err := uploadPart(r)
	if err != nil {
		log.Warn("upload rejected", "error", err)
		if body.exceeded {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer part.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AnalyzeTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.analyzer.AnalyzeReader(ctx, part)
	if body.exceeded {
		log.Warn("upload exceeded limit", "file", part.FileName(), "limit", s.cfg.MaxUploadBytes)
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	if err != nil {
		log.Error("analysis failed", "file", part.FileName(), "error", err)
		writeError(w, http.StatusInternalServerError, msgAnalyzeFailed)
		return
	}

	attrs := []any{
		"file", part.FileName(),
		"status", result.Status,
		"frames", result.Frames.Total,
		"logs", len(result.NetworkLogs),
		"suspicious", len(result.SuspiciousActivity),
		"duration", time.Since(start),
	}
	if result.Complete() {
		log.Info("analysis complete", attrs...)
	} else {
		log.Warn("analysis incomplete", append(attrs, "reason", result.StopReason)...)
	}

	writeJSON(w, http.StatusOK, result)
}

// uploadPart streams the multipart body up to the capture field so the
// upload never has to be buffered or spooled to disk.
func uploadPart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("multipart field %q missing", UploadField)
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == UploadField {
			return part, nil
		}
		part.Close()
	}
}

// limitedBody remembers whether http.MaxBytesReader cut the body off.
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withCORS allows any origin, as browsers upload captures from a separate
// front end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
