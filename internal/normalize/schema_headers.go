package normalize

import "strings"

// HeaderEntry is one (name, value) pair in an HTTP request's Headers. Names
// are compared case-insensitively, per RFC 7230.
type HeaderEntry struct {
	Key   Annotated[string]
	Value Annotated[string]
}

// Headers is the ordered list of HTTP header entries.
type Headers struct {
	Entries []Annotated[HeaderEntry]
}

// Contains reports whether name is present, case-insensitively.
func (h Headers) Contains(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Get returns the first present value for name, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, e := range h.Entries {
		entry, ok := e.Get()
		if !ok {
			continue
		}
		k, ok := entry.Key.Get()
		if !ok || !strings.EqualFold(k, name) {
			continue
		}
		return entry.Value.Get()
	}
	return "", false
}

// Insert appends a new header entry, used to backfill User-Agent from
// StoreConfig during security-report normalization.
func (h *Headers) Insert(name, value string) {
	h.Entries = append(h.Entries, NewAnnotated(HeaderEntry{
		Key:   NewAnnotated(name),
		Value: NewAnnotated(value),
	}))
}

// CookieEntry is one (key, value) pair parsed out of a Cookie header.
type CookieEntry struct {
	Key   Annotated[string]
	Value Annotated[string]
}
