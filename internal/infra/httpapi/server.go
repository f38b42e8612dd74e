package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"contest_lifecycle/internal/app"
	"contest_lifecycle/internal/infra/metrics"
)

// BatchRunner runs one orchestrated batch.
type BatchRunner interface {
	RunAll(ctx context.Context) *app.BatchResult
}

// Pinger reports store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	batchRequestLimit = 10
	batchWindow       = time.Minute
)

type Server struct {
	runner BatchRunner
	store  Pinger
	secret string
	logger logrus.FieldLogger
}

// New builds the trigger server. An empty secret leaves the batch endpoint
// answering 500 until one is provisioned.
func New(runner BatchRunner, store Pinger, secret string, logger logrus.FieldLogger) *Server {
	return &Server{
		runner: runner,
		store:  store,
		secret: strings.TrimSpace(secret),
		logger: logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.With(batchRateLimit(), s.bearerAuth).Post("/batch/run", s.handleRunBatch)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithField("request_id", middleware.GetReqID(r.Context()))
	log.Info("Batch run requested over HTTP")

	// Detached from the request: a client hanging up does not abort the batch.
	result := s.runner.RunAll(context.WithoutCancel(r.Context()))

	status := http.StatusOK
	outcome := "success"
	if !result.AllSucceeded {
		status = http.StatusMultiStatus
		outcome = "partial"
	}
	metrics.RecordTrigger("http", outcome)
	log.WithFields(logrus.Fields{"run_id": result.RunID, "status": status}).Info("Batch run answered")
	respondJSON(w, status, result)
}

// bearerAuth rejects the request before the orchestrator is touched.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			s.logger.Error("Batch trigger called but no batch secret is configured")
			metrics.RecordTrigger("http", "misconfigured")
			respondError(w, http.StatusInternalServerError, "misconfigured")
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			metrics.RecordTrigger("http", "unauthorized")
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// batchRateLimit caps trigger attempts per client IP. The key is the socket
// peer address; forwarding headers are not trusted.
func batchRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		batchRequestLimit,
		batchWindow,
		httprate.WithKeyFuncs(peerAddrKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordTrigger("http", "rate_limited")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(batchWindow.Seconds())))
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded")
		}),
	)
}

func peerAddrKey(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, nil
	}
	return host, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
