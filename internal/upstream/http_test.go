package upstream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return logger
}

func TestHTTPForwarderSendPostsToStoreEndpoint(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPForwarderConfig{URL: srv.URL, Timeout: time.Second}, testLogger())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Send(t.Context(), "42", []byte(`{"event_id":"abc"}`)))
	assert.Equal(t, "/api/42/store/", gotPath)
	assert.Equal(t, `{"event_id":"abc"}`, string(gotBody))
}

func TestHTTPForwarderSendReportsUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPForwarderConfig{URL: srv.URL, Timeout: time.Second}, testLogger())
	require.NoError(t, err)
	defer f.Close()

	err = f.Send(t.Context(), "42", []byte(`{}`))
	assert.Error(t, err)
}

func TestHTTPForwarderCompressesWhenConfigured(t *testing.T) {
	var gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPForwarderConfig{URL: srv.URL, Timeout: time.Second, Compression: "gzip"}, testLogger())
	require.NoError(t, err)
	defer f.Close()

	// Bodies under the compressor's minimum size pass through unchanged, so
	// send one large enough to actually compress.
	payload := []byte(`{"message":"` + strings.Repeat("a", 4096) + `"}`)
	require.NoError(t, f.Send(t.Context(), "1", payload))
	assert.Equal(t, "gzip", gotEncoding)
}

func TestNewHTTPForwarderRejectsInvalidURL(t *testing.T) {
	_, err := NewHTTPForwarder(HTTPForwarderConfig{URL: "not a url"}, testLogger())
	assert.Error(t, err)
}
