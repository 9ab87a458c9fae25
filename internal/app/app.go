// Package app wires together configuration, enrichment lookups, the PII
// scrubber, the HTTP ingest server, and the upstream forwarder, and owns
// their shared lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rhcarvalho/relay/internal/config"
	"github.com/rhcarvalho/relay/internal/controller"
	"github.com/rhcarvalho/relay/internal/geoip"
	"github.com/rhcarvalho/relay/internal/metrics"
	"github.com/rhcarvalho/relay/internal/normalize"
	"github.com/rhcarvalho/relay/internal/server"
	"github.com/rhcarvalho/relay/internal/upstream"
	"github.com/rhcarvalho/relay/internal/useragent"
	"github.com/rhcarvalho/relay/pkg/compression"
	"github.com/rhcarvalho/relay/pkg/tracing"
)

// App is the composed relay process: one HTTP ingest server, one upstream
// forwarder, and the controller that shuts both down in order.
type App struct {
	config     *config.Config
	logger     *logrus.Logger
	server     *server.Server
	forwarder  upstream.Forwarder
	controller *controller.Controller
	tracer     *tracing.TracingManager
	watcher    *config.Watcher
}

// New builds an App from a config file path (pass "" to use defaults and
// environment variables only). When configFile is set, edits to it are
// picked up live for the settings that can safely change without a
// restart (currently: log level).
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.App)

	creds, err := config.LoadCredentials(cfg.App.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("load agent credentials: %w", err)
	}
	logger.WithField("agent_id", creds.ID).Info("agent credentials loaded")

	geoLookup, err := newGeoIPLookup(cfg.Enrichment.GeoIPDatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}

	uaParser, err := newUserAgentParser(cfg.Enrichment.UserAgentRegexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load user-agent regexes: %w", err)
	}

	forwarder, err := newForwarder(cfg.Upstream, logger)
	if err != nil {
		return nil, fmt.Errorf("configure upstream forwarder: %w", err)
	}

	tracer, err := tracing.NewTracingManager(cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}

	srv := server.New(server.Config{
		Addr:               fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		NormalizeUserAgent: cfg.Enrichment.NormalizeUserAgent,
		Scrub:              cfg.ScrubProcessorConfig(),
	}, logger, geoLookup, uaParser, forwarder, tracer)

	ctrl := controller.New(logger, cfg.Server.ShutdownTimeout)

	var watcher *config.Watcher
	if configFile != "" {
		watcher, err = config.Watch(configFile, logger, func(reloaded *config.Config) {
			applyLogLevel(logger, reloaded.App.LogLevel)
		})
		if err != nil {
			logger.WithError(err).WithField("path", configFile).Warn("config hot-reload disabled: watcher setup failed")
			watcher = nil
		}
	}

	return &App{
		config:     cfg,
		logger:     logger,
		server:     srv,
		forwarder:  forwarder,
		controller: ctrl,
		tracer:     tracer,
		watcher:    watcher,
	}, nil
}

func applyLogLevel(logger *logrus.Logger, level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	logger.SetLevel(parsed)
}

func newLogger(cfg config.AppConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

func newGeoIPLookup(path string, logger *logrus.Logger) (normalize.GeoIPLookup, error) {
	if path == "" {
		return geoip.Noop{}, nil
	}
	reader, err := geoip.Open(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).Info("geoip database loaded")
	return reader, nil
}

func newUserAgentParser(path string, logger *logrus.Logger) (normalize.UserAgentParser, error) {
	if path == "" {
		return useragent.Noop{}, nil
	}
	parser, err := useragent.New(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).Info("user-agent regexes loaded")
	return parser, nil
}

func newForwarder(cfg config.UpstreamConfig, logger *logrus.Logger) (upstream.Forwarder, error) {
	switch cfg.Transport {
	case "", "none":
		logger.Warn("no upstream transport configured, normalized events will be discarded")
		return nil, nil
	case "http":
		f, err := upstream.NewHTTPForwarder(upstream.HTTPForwarderConfig{
			URL:         cfg.HTTP.URL,
			Timeout:     cfg.HTTP.Timeout,
			Compression: compressionAlgorithm(cfg.HTTP.Compression),
		}, logger)
		if err != nil {
			return nil, err
		}
		return upstream.NewBounded(f, 0), nil
	case "kafka":
		f, err := upstream.NewKafkaForwarder(upstream.KafkaForwarderConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			Compression: cfg.Kafka.Compression,
			TLSEnabled:  cfg.Kafka.TLSEnabled,
			Timeout:     cfg.Kafka.Timeout,
			Auth: upstream.KafkaAuthConfig{
				Enabled:   cfg.Kafka.Auth.Enabled,
				Username:  cfg.Kafka.Auth.Username,
				Password:  cfg.Kafka.Auth.Password,
				Mechanism: cfg.Kafka.Auth.Mechanism,
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return upstream.NewBounded(f, 0), nil
	default:
		return nil, fmt.Errorf("unknown upstream transport %q", cfg.Transport)
	}
}

// Run starts the ingest server, registers it for graceful shutdown, and
// blocks until the controller observes a termination signal.
func (a *App) Run() error {
	a.controller.Subscribe("ingest-server", func(ctx context.Context) error {
		return a.server.Shutdown(ctx)
	})
	if a.forwarder != nil {
		a.controller.Subscribe("upstream-forwarder", func(ctx context.Context) error {
			return a.forwarder.Close()
		})
	}
	if a.watcher != nil {
		a.controller.Subscribe("config-watcher", func(ctx context.Context) error {
			return a.watcher.Close()
		})
	}
	if a.tracer != nil {
		a.controller.Subscribe("tracing", func(ctx context.Context) error {
			return a.tracer.Shutdown(ctx)
		})
	}

	metrics.CollectHostStats() // warm gopsutil's internal sampling state before first /healthz read

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Run()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.controller.Run(ctx)
	}()

	select {
	case err := <-serveErr:
		cancel()
		return err
	case err := <-runErr:
		return err
	}
}

func compressionAlgorithm(name string) compression.Algorithm {
	switch name {
	case "gzip":
		return compression.AlgorithmGzip
	case "zstd":
		return compression.AlgorithmZstd
	case "lz4":
		return compression.AlgorithmLZ4
	case "snappy":
		return compression.AlgorithmSnappy
	default:
		return compression.AlgorithmNone
	}
}
