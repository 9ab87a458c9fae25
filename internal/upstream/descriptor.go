// Package upstream dispatches normalized events to whatever collects them
// next: an HTTP endpoint (another relay, or the final store) or a Kafka
// topic. Both forwarders implement the same Forwarder interface so the
// server package doesn't need to know which is configured.
package upstream

import (
	"errors"
	"net/url"
	"strconv"
)

// Scheme is the upstream's connection scheme.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// DefaultPort returns the scheme's conventional port.
func (s Scheme) DefaultPort() int {
	if s == SchemeHTTPS {
		return 443
	}
	return 80
}

var (
	ErrBadURL        = errors.New("upstream: invalid URL: bad URL format")
	ErrNonOriginURL  = errors.New("upstream: invalid URL: path or query given, expected origin only")
	ErrUnknownScheme = errors.New("upstream: invalid URL: unknown or unsupported scheme")
	ErrNoHost        = errors.New("upstream: invalid URL: no host")
)

// Descriptor uniquely identifies an HTTP upstream target: scheme, host,
// and port. Unlike a full URL it carries no path, so it can be combined
// with any request path (e.g. "/api/{project_id}/store/").
type Descriptor struct {
	Host   string
	Port   int
	Scheme Scheme
}

// ParseDescriptor parses s (e.g. "https://ingest.example.com") into a
// Descriptor. The URL must be an origin only: no path beyond "/", no
// query string.
func ParseDescriptor(s string) (Descriptor, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Descriptor{}, ErrBadURL
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return Descriptor{}, ErrNonOriginURL
	}

	var scheme Scheme
	switch u.Scheme {
	case "http":
		scheme = SchemeHTTP
	case "https":
		scheme = SchemeHTTPS
	default:
		return Descriptor{}, ErrUnknownScheme
	}

	if u.Hostname() == "" {
		return Descriptor{}, ErrNoHost
	}

	port := scheme.DefaultPort()
	if p := u.Port(); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	return Descriptor{Host: u.Hostname(), Port: port, Scheme: scheme}, nil
}

// BaseURL renders the descriptor back to an origin URL string.
func (d Descriptor) BaseURL() string {
	u := url.URL{Scheme: string(d.Scheme), Host: d.hostPort()}
	return u.String()
}

func (d Descriptor) hostPort() string {
	if d.Port == d.Scheme.DefaultPort() {
		return d.Host
	}
	return d.Host + ":" + strconv.Itoa(d.Port)
}
