package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptorDefaultsPort(t *testing.T) {
	d, err := ParseDescriptor("https://ingest.example.com")
	require.NoError(t, err)
	assert.Equal(t, "ingest.example.com", d.Host)
	assert.Equal(t, 443, d.Port)
	assert.Equal(t, SchemeHTTPS, d.Scheme)
}

func TestParseDescriptorExplicitPort(t *testing.T) {
	d, err := ParseDescriptor("http://localhost:8401")
	require.NoError(t, err)
	assert.Equal(t, 8401, d.Port)
	assert.Equal(t, "http://localhost:8401", d.BaseURL())
}

func TestParseDescriptorRejectsPath(t *testing.T) {
	_, err := ParseDescriptor("https://ingest.example.com/api/1/store/")
	assert.ErrorIs(t, err, ErrNonOriginURL)
}

func TestParseDescriptorRejectsQuery(t *testing.T) {
	_, err := ParseDescriptor("https://ingest.example.com/?foo=bar")
	assert.ErrorIs(t, err, ErrNonOriginURL)
}

func TestParseDescriptorRejectsUnknownScheme(t *testing.T) {
	_, err := ParseDescriptor("ftp://ingest.example.com")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestParseDescriptorRejectsMalformed(t *testing.T) {
	_, err := ParseDescriptor("://not a url")
	assert.ErrorIs(t, err, ErrBadURL)
}

func TestBaseURLOmitsDefaultPort(t *testing.T) {
	d := Descriptor{Host: "ingest.example.com", Port: 443, Scheme: SchemeHTTPS}
	assert.Equal(t, "https://ingest.example.com", d.BaseURL())
}

func TestBaseURLKeepsNonDefaultPort(t *testing.T) {
	d := Descriptor{Host: "ingest.example.com", Port: 9401, Scheme: SchemeHTTPS}
	assert.Equal(t, "https://ingest.example.com:9401", d.BaseURL())
}
