package normalize

import (
	"net/url"
	"strings"
)

// Request captures the HTTP request that produced the event (for
// server-side SDKs) or the page context (for browser SDKs).
type Request struct {
	URL         Annotated[string]
	Method      Annotated[string]
	Data        Annotated[Value]
	QueryString Annotated[string]
	Cookies     Annotated[[]Annotated[CookieEntry]]
	Headers     Annotated[Headers]
	Env         Annotated[map[string]Annotated[Value]]
}

// normalizeRequest trims the URL, splits a combined "url?query" form into
// its QueryString, coerces a raw "k=v; k2=v2" Cookie header into structured
// entries, and canonicalizes header names.
func normalizeRequest(req *Request) ProcessingResult {
	if u, ok := req.URL.Get(); ok {
		trimmed := strings.TrimSpace(u)
		if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
			query := trimmed[idx+1:]
			trimmed = trimmed[:idx]
			if existing, ok := req.QueryString.Get(); !ok || existing == "" {
				req.QueryString.SetValue(&query)
			}
		}
		req.URL.SetValue(&trimmed)
	}

	if qs, ok := req.QueryString.Get(); ok {
		trimmed := strings.TrimPrefix(strings.TrimSpace(qs), "?")
		req.QueryString.SetValue(&trimmed)
	}

	if headers, ok := req.Headers.Get(); ok {
		canonicalizeHeaders(&headers)
		req.Headers.SetValue(&headers)

		if req.Cookies.Value == nil {
			if cookieHeader, ok := headers.Get("Cookie"); ok {
				parsed := parseCookieHeader(cookieHeader)
				req.Cookies.SetValue(&parsed)
			}
		}
	}

	return nil
}

func canonicalizeHeaders(h *Headers) {
	for i, e := range h.Entries {
		entry, ok := e.Get()
		if !ok {
			continue
		}
		if key, ok := entry.Key.Get(); ok {
			canon := canonicalHeaderName(key)
			entry.Key.SetValue(&canon)
		}
		h.Entries[i] = NewAnnotated(entry)
	}
}

// canonicalHeaderName title-cases a header name component-by-component
// ("user-agent" -> "User-Agent"), matching HTTP/1.1 conventions without
// relying on net/textproto's MIMEHeader canonicalization (which operates on
// map keys, not on a standalone string slice here).
func canonicalHeaderName(name string) string {
	parts := strings.Split(strings.TrimSpace(name), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

func parseCookieHeader(header string) []Annotated[CookieEntry] {
	var entries []Annotated[CookieEntry]
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		value := ""
		if len(kv) == 2 {
			if unescaped, err := url.QueryUnescape(strings.TrimSpace(kv[1])); err == nil {
				value = unescaped
			} else {
				value = strings.TrimSpace(kv[1])
			}
		}
		entries = append(entries, NewAnnotated(CookieEntry{
			Key:   NewAnnotated(key),
			Value: NewAnnotated(value),
		}))
	}
	return entries
}
