package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rhcarvalho/relay/internal/geoip"
	"github.com/rhcarvalho/relay/internal/useragent"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain guards against the ingest server leaking background goroutines
// across requests; the circuit breaker timers and HTTP client pools this
// package composes are the usual suspects.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer() *Server {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return New(Config{MaxBodyBytes: 1 << 20}, logger, geoip.Noop{}, useragent.Noop{}, nil, nil)
}

func TestStoreHandlerAcceptsValidEvent(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/1/store/", bytes.NewBufferString(`{"message":"hello"}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "id")
}

func TestStoreHandlerRejectsMalformedJSON(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/1/store/", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreHandlerRejectsOversizedBody(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	s := New(Config{MaxBodyBytes: 8}, logger, geoip.Noop{}, useragent.Noop{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/1/store/", bytes.NewBufferString(`{"message":"this body is far too long"}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzReportsHealthy(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "host")
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestClientSDKIdentifierPrefersQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/1/store/?sentry_client=sentry-python/1.2.3", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	assert.Equal(t, "sentry-python/1.2.3", clientSDKIdentifier(req))
}

func TestClientSDKIdentifierFallsBackToUserAgent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/1/store/", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	assert.Equal(t, "curl/8.0", clientSDKIdentifier(req))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(req))
}

func TestProjectIDUintParsesNumeric(t *testing.T) {
	assert.EqualValues(t, 42, projectIDUint("42"))
}

func TestProjectIDUintDefaultsOnNonNumeric(t *testing.T) {
	assert.EqualValues(t, 0, projectIDUint("not-a-number"))
}
