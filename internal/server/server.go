// Package server is the HTTP ingest front door: it decodes an incoming
// event document, normalizes it, optionally scrubs PII, serializes the
// result back out, and hands it to the configured upstream forwarder.
// Middleware composition is metrics innermost, tracing outermost, so the
// recorded duration excludes span setup.
package server

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rhcarvalho/relay/internal/metrics"
	"github.com/rhcarvalho/relay/internal/normalize"
	"github.com/rhcarvalho/relay/internal/scrub"
	"github.com/rhcarvalho/relay/internal/upstream"
	"github.com/rhcarvalho/relay/pkg/tracing"
)

// Config controls what the ingest server does with a decoded event beyond
// normalizing it.
type Config struct {
	Addr               string
	MaxBodyBytes       int64
	NormalizeUserAgent bool
	Scrub              scrub.Config
}

// Server is the HTTP ingest front door.
type Server struct {
	cfg       Config
	logger    *logrus.Logger
	geoip     normalize.GeoIPLookup
	ua        normalize.UserAgentParser
	forwarder upstream.Forwarder
	scrubber  *scrub.Processor
	tracer    *tracing.TracingManager
	http      *http.Server
	startTime time.Time
}

// New builds a Server. geoip/ua may be nil to disable that enrichment;
// forwarder may be nil to normalize and discard, useful for local testing.
func New(cfg Config, logger *logrus.Logger, geoip normalize.GeoIPLookup, ua normalize.UserAgentParser, forwarder upstream.Forwarder, tracer *tracing.TracingManager) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20 // 5MiB
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		geoip:     geoip,
		ua:        ua,
		forwarder: forwarder,
		tracer:    tracer,
		startTime: time.Now(),
	}
	if cfg.Scrub != (scrub.Config{}) {
		s.scrubber = scrub.New(cfg.Scrub)
	}
	return s
}

// Router builds the gorilla/mux router with every endpoint registered.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	var middleware func(http.Handler) http.Handler = metricsMiddleware
	if s.tracer != nil {
		traceMiddleware := tracing.TraceHandler(s.tracer.GetTracer(), "http_request")
		prev := middleware
		middleware = func(h http.Handler) http.Handler {
			return traceMiddleware(prev(h))
		}
	}

	router.Handle("/api/{project_id}/store/", middleware(http.HandlerFunc(s.storeHandler))).Methods(http.MethodPost)
	router.Handle("/healthz", middleware(http.HandlerFunc(s.healthHandler))).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// Run starts listening and blocks until ctx is done or ListenAndServe
// returns a non-shutdown error.
func (s *Server) Run() error {
	s.http = &http.Server{Addr: s.cfg.Addr, Handler: s.Router()}
	s.logger.WithField("addr", s.cfg.Addr).Info("ingest server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown implements controller.ShutdownFunc.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.ProcessingStepDuration.WithLabelValues("ingest", r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// storeHandler decodes, normalizes, optionally scrubs, and forwards one
// event, matching the Sentry/Relay wire contract for project store
// endpoints: POST /api/{project_id}/store/.
func (s *Server) storeHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]

	body, err := s.readBody(r)
	if err != nil {
		metrics.RecordEventRejected(projectID, "body_read_failed")
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	event, err := normalize.Decode(body)
	if err != nil {
		metrics.RecordEventRejected(projectID, "invalid_payload")
		http.Error(w, fmt.Sprintf("invalid event payload: %v", err), http.StatusBadRequest)
		return
	}

	config := normalize.StoreConfig{
		ProjectID:          projectIDUint(projectID),
		ClientIP:           clientIP(r),
		UserAgent:          r.UserAgent(),
		Client:             clientSDKIdentifier(r),
		NormalizeUserAgent: s.cfg.NormalizeUserAgent,
	}

	start := time.Now()
	if s.tracer != nil {
		tracing.NewInstrumentedFunction(s.tracer.GetTracer(), "normalize").Execute(r.Context(), func(tc *tracing.TraceableContext) error {
			event = normalize.Normalize(event, config, s.geoip, s.ua)
			return nil
		})
	} else {
		event = normalize.Normalize(event, config, s.geoip, s.ua)
	}
	metrics.NormalizeDuration.Observe(time.Since(start).Seconds())

	if s.scrubber != nil {
		event = s.scrubber.Scrub(event)
	}

	payload, err := normalize.SerializeEmbedded(event)
	if err != nil {
		metrics.RecordEventRejected(projectID, "serialize_failed")
		http.Error(w, "failed to serialize event", http.StatusInternalServerError)
		return
	}

	if s.forwarder != nil {
		forwardStart := time.Now()
		if err := s.forwarder.Send(r.Context(), projectID, payload); err != nil {
			metrics.UpstreamForwardErrorsTotal.WithLabelValues("configured").Inc()
			fields := logrus.Fields{"project_id": projectID}
			if s.tracer != nil {
				fields = tracing.InjectTraceFields(r.Context(), fields)
			}
			s.logger.WithError(err).WithFields(fields).Warn("upstream forward failed")
		}
		metrics.UpstreamForwardDuration.WithLabelValues("configured").Observe(time.Since(forwardStart).Seconds())
	}

	metrics.RecordEventIngested(projectID)

	id := ""
	if eventID, ok := event.EventID.Get(); ok {
		id = eventID.String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

// readBody enforces the body size cap and transparently decompresses
// gzip/deflate-encoded bodies, the two encodings SDKs commonly use for
// the store endpoint.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	limited := io.LimitReader(r.Body, s.cfg.MaxBodyBytes+1)
	defer r.Body.Close()

	var reader io.Reader = limited
	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		zr, err := zlib.NewReader(limited)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", s.cfg.MaxBodyBytes)
	}
	return body, nil
}

// clientSDKIdentifier prefers the "sentry_client" query parameter SDKs use
// to self-identify ("sentry-python/1.2.3") over the raw User-Agent header,
// which proxies and load balancers often rewrite or strip.
func clientSDKIdentifier(r *http.Request) string {
	if client := r.URL.Query().Get("sentry_client"); client != "" {
		return client
	}
	return r.UserAgent()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host := r.RemoteAddr
	if i := lastColon(host); i >= 0 {
		return host[:i]
	}
	return host
}

// projectIDUint parses the path's project_id segment loosely: a
// non-numeric project id (e.g. a slug-based DSN) just leaves ProjectID
// unset rather than rejecting the request.
func projectIDUint(s string) uint64 {
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + uint64(c-'0')
	}
	return n
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// healthHandler reports process and host health together, so one probe
// covers both the listener and the box it runs on.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.startTime).String(),
		"host":      metrics.CollectHostStats(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
