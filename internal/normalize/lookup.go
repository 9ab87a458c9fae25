package normalize

// GeoIPLookup resolves a textual IP address to coarse geolocation data. A
// nil GeoIPLookup disables enrichment; an implementation that finds nothing
// should return a zero Geo and ok=false rather than an error, reserving the
// error return for lookup/database failures.
type GeoIPLookup interface {
	Lookup(ip string) (Geo, bool, error)
}

// UAResult is what a User-Agent database gives back for one header value;
// any field left empty means the database had no opinion on it.
type UAResult struct {
	BrowserFamily  string
	BrowserVersion string
	OSFamily       string
	OSVersion      string
	DeviceFamily   string
}

// UserAgentParser parses a raw User-Agent request header into family/version
// tuples for browser, OS, and device.
type UserAgentParser interface {
	Parse(userAgent string) UAResult
}
