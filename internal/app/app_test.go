package app

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhcarvalho/relay/internal/config"
	"github.com/rhcarvalho/relay/internal/geoip"
	"github.com/rhcarvalho/relay/internal/useragent"
	"github.com/rhcarvalho/relay/pkg/compression"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewLoggerDefaultsToInfoOnBadLevel(t *testing.T) {
	logger := newLogger(config.AppConfig{LogLevel: "not-a-level", LogFormat: "json"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewLoggerTextFormat(t *testing.T) {
	logger := newLogger(config.AppConfig{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewGeoIPLookupNoopWhenPathEmpty(t *testing.T) {
	lookup, err := newGeoIPLookup("", testLogger())
	require.NoError(t, err)
	assert.IsType(t, geoip.Noop{}, lookup)
}

func TestNewUserAgentParserNoopWhenPathEmpty(t *testing.T) {
	parser, err := newUserAgentParser("", testLogger())
	require.NoError(t, err)
	assert.IsType(t, useragent.Noop{}, parser)
}

func TestNewForwarderNoneTransport(t *testing.T) {
	fwd, err := newForwarder(config.UpstreamConfig{Transport: ""}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, fwd)
}

func TestNewForwarderUnknownTransport(t *testing.T) {
	_, err := newForwarder(config.UpstreamConfig{Transport: "carrier-pigeon"}, testLogger())
	assert.Error(t, err)
}

func TestCompressionAlgorithmMapping(t *testing.T) {
	assert.Equal(t, compression.AlgorithmGzip, compressionAlgorithm("gzip"))
	assert.Equal(t, compression.AlgorithmZstd, compressionAlgorithm("zstd"))
	assert.Equal(t, compression.AlgorithmNone, compressionAlgorithm("unknown"))
}
