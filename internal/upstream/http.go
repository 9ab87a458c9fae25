package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhcarvalho/relay/pkg/circuit"
	"github.com/rhcarvalho/relay/pkg/compression"
)

// HTTPForwarderConfig configures HTTPForwarder.
type HTTPForwarderConfig struct {
	// URL is the upstream origin, e.g. "https://ingest.example.com".
	URL string
	// Timeout bounds a single forward attempt.
	Timeout time.Duration
	// Compression, when non-empty, names the algorithm to compress the
	// body with ("gzip", "snappy", "lz4", "zstd").
	Compression compression.Algorithm
}

// HTTPForwarder posts the serialized event to another relay's ingest
// endpoint (or the final store), the same shape of origin/path
// composition the descriptor parser in this package exists to support.
type HTTPForwarder struct {
	descriptor Descriptor
	client     *http.Client
	breaker    *circuit.Breaker
	compressor *compression.HTTPCompressor
	algorithm  compression.Algorithm
	logger     *logrus.Logger
}

// NewHTTPForwarder builds an HTTPForwarder from cfg.
func NewHTTPForwarder(cfg HTTPForwarderConfig, logger *logrus.Logger) (*HTTPForwarder, error) {
	descriptor, err := ParseDescriptor(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := circuit.NewBreaker(circuit.BreakerConfig{
		Name:             "upstream-http",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}, logger)

	var compressor *compression.HTTPCompressor
	if cfg.Compression != "" {
		compressor = compression.NewHTTPCompressor(compression.Config{
			DefaultAlgorithm: cfg.Compression,
		}, logger)
	}

	return &HTTPForwarder{
		descriptor: descriptor,
		client:     &http.Client{Timeout: timeout},
		breaker:    breaker,
		compressor: compressor,
		algorithm:  cfg.Compression,
		logger:     logger,
	}, nil
}

// Send implements Forwarder by POSTing payload to
// "{upstream}/api/{projectID}/store/", matching the store endpoint the
// ingest server itself exposes; this is how one relay forwards to
// another upstream relay or to the final collector.
func (f *HTTPForwarder) Send(ctx context.Context, projectID string, payload []byte) error {
	body := payload
	encoding := ""
	if f.compressor != nil {
		result, err := f.compressor.Compress(payload, f.algorithm, "http")
		if err == nil {
			body = result.Data
			encoding = result.Encoding
		}
	}

	return f.breaker.Execute(func() error {
		url := fmt.Sprintf("%s/api/%s/store/", f.descriptor.BaseURL(), projectID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if encoding != "" {
			req.Header.Set("Content-Encoding", encoding)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("upstream: store rejected event: status %d", resp.StatusCode)
		}
		return nil
	})
}

// Close releases the underlying HTTP transport's idle connections.
func (f *HTTPForwarder) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
