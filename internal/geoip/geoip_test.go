package geoip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLookupAlwaysMisses(t *testing.T) {
	geo, ok, err := Noop{}.Lookup("8.8.8.8")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, geo)
}

func TestOpenMissingDatabaseReturnsError(t *testing.T) {
	_, err := Open("/nonexistent/GeoLite2-City.mmdb")
	assert.Error(t, err)
}

func TestLookupMalformedIPMissesWithoutError(t *testing.T) {
	r := &Reader{}
	geo, ok, err := r.Lookup("not-an-ip")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, geo)
}

func TestLookupClosedReaderErrors(t *testing.T) {
	r := &Reader{}
	_, _, err := r.Lookup("8.8.8.8")
	assert.Error(t, err)
}

func TestCloseOnZeroValueIsNoop(t *testing.T) {
	r := &Reader{}
	assert.NoError(t, r.Close())
}
