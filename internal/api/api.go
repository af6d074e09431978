package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/pipeline"
	"github.com/spigell/hh-interviewer/internal/ratelimit"
	"github.com/spigell/hh-interviewer/internal/scoring"
	"github.com/spigell/hh-interviewer/internal/upload"
)

const maxAnalysisBodySize = 1 << 20

type AnalysisRequest struct {
	ConversationID string `json:"conversationId"`
	CVText         string `json:"cvText"`
}

type AnalysisAccepted struct {
	ID    string         `json:"id"`
	Phase pipeline.Phase `json:"phase"`
}

// Deps wires the HTTP surface to the pipeline. A nil Limiter disables upload
// rate limiting; a nil Gatherer serves the default Prometheus registry.
type Deps struct {
	Pipeline     pipeline.Deps
	Registry     *Registry
	Limiter      *ratelimit.Limiter
	UploadPolicy ratelimit.Policy
	Gatherer     prometheus.Gatherer
	Logger       *zap.Logger
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyses", handleCreateAnalysis(deps))
		r.Get("/analyses/{id}", handleGetAnalysis(deps))
		r.Delete("/analyses/{id}", handleDeleteAnalysis(deps))
		r.Post("/cv", handleUploadCV(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleCreateAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAnalysisBodySize)
		defer r.Body.Close()

		var req AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
			return
		}

		id, err := interview.ParseConversationID(req.ConversationID)
		if err != nil {
			writeError(w, err)
			return
		}
		if n := utf8.RuneCountInString(req.CVText); n > scoring.MaxCVChars {
			writeError(w, fmt.Errorf("%w: cv has %d characters, limit is %d", interview.ErrInvalidInput, n, scoring.MaxCVChars))
			return
		}

		p := pipeline.New(deps.Pipeline, pipeline.Input{
			ConversationID: id,
			CVText:         req.CVText,
			Identity:       callerIdentity(r),
		})
		deps.Registry.Start(p)

		w.Header().Set("Location", "/api/analyses/"+p.ID())
		writeJSON(w, http.StatusAccepted, AnalysisAccepted{ID: p.ID(), Phase: p.Snapshot().Phase})
	}
}

func handleGetAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := deps.Registry.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "analysis not found")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleDeleteAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Registry.Remove(chi.URLParam(r, "id")) {
			httpError(w, http.StatusNotFound, "not_found_error", "analysis not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUploadCV(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Limiter != nil {
			decision := deps.Limiter.Admit(ratelimit.NamespaceUpload, callerIdentity(r), deps.UploadPolicy)
			if !decision.Allowed {
				writeError(w, interview.ErrRateLimited)
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+(1<<20))
		if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
			writeError(w, fmt.Errorf("%w: invalid multipart form", interview.ErrInvalidInput))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: form field \"file\" is required", interview.ErrInvalidInput))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, upload.MaxFileSize+1))
		if err != nil {
			writeError(w, fmt.Errorf("%w: reading upload", interview.ErrInvalidInput))
			return
		}

		doc, err := upload.Extract(header.Filename, data)
		if err != nil {
			deps.Logger.Info("cv upload rejected", zap.String("file", header.Filename), zap.Error(err))
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, doc)
	}
}

// callerIdentity keys rate limits: the first X-Forwarded-For hop, otherwise
// the remote address without its port.
func callerIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, interview.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, interview.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limit_error"
	default:
		return http.StatusBadGateway, "api_error"
	}
}

// writeError sends only the public message of err.
func writeError(w http.ResponseWriter, err error) {
	code, errType := statusFor(err)
	httpError(w, code, errType, "%s", interview.PublicMessage(err))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
