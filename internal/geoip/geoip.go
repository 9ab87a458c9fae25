// Package geoip backs normalize.GeoIPLookup with a MaxMind GeoLite2 City
// database, kept memory-mapped for the lifetime of the process and safe
// for concurrent reads.
package geoip

import (
	"fmt"
	"net"
	"sync"

	geoip2 "github.com/oschwald/geoip2-golang"

	"github.com/rhcarvalho/relay/internal/normalize"
)

// Reader resolves IPs against an mmdb City database. The zero value is not
// usable; construct with Open.
type Reader struct {
	mu sync.RWMutex
	db *geoip2.Reader
}

// Open loads the GeoLite2 City database at path. The reader keeps the
// database memory-mapped for the lifetime of the process; call Close when
// done.
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database %q: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// Close releases the underlying mmdb file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup implements normalize.GeoIPLookup. A malformed IP or one absent
// from the database is reported as ok=false, never as an error; only a
// genuine database read failure is an error.
func (r *Reader) Lookup(ip string) (normalize.Geo, bool, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return normalize.Geo{}, false, nil
	}

	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()
	if db == nil {
		return normalize.Geo{}, false, fmt.Errorf("geoip: reader is closed")
	}

	city, err := db.City(parsed)
	if err != nil {
		return normalize.Geo{}, false, fmt.Errorf("geoip: lookup %s: %w", ip, err)
	}
	if city.Country.IsoCode == "" && city.City.Names["en"] == "" {
		return normalize.Geo{}, false, nil
	}

	geo := normalize.Geo{}
	if code := city.Country.IsoCode; code != "" {
		geo.CountryCode = normalize.NewAnnotated(code)
	}
	if name := city.City.Names["en"]; name != "" {
		geo.City = normalize.NewAnnotated(name)
	}
	if len(city.Subdivisions) > 0 {
		if region := city.Subdivisions[0].Names["en"]; region != "" {
			geo.Region = normalize.NewAnnotated(region)
		}
	}
	return geo, true, nil
}

// Noop is a GeoIPLookup that never finds anything, used when no database
// path is configured.
type Noop struct{}

func (Noop) Lookup(string) (normalize.Geo, bool, error) { return normalize.Geo{}, false, nil }
