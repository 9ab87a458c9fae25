// Package scrub is the PII-redaction sibling of normalize: a second
// normalize.Processor that walks the same event tree, applying two layers
// of redaction: path-driven defaults for fields the schema already knows
// are sensitive (state.Attrs().PII, set in normalize's walker for "user"
// and similar positions), and pattern-driven redaction of free text
// (messages, extra, breadcrumb data) via the shared security.Sanitizer.
package scrub

import (
	"github.com/rhcarvalho/relay/internal/normalize"
	"github.com/rhcarvalho/relay/pkg/security"
)

// Config controls which free-form fields get pattern-scanned in addition to
// the always-on path-based defaults (user IP/email/username).
type Config struct {
	ScrubMessages    bool
	ScrubExtra       bool
	ScrubBreadcrumbs bool
	RedactEmails     bool
	RedactIPs        bool
}

// Processor redacts PII in place on an event tree. Embed-and-override the
// same way NormalizeProcessor does: it only implements the hooks that touch
// sensitive data, leaving the rest to normalize.BaseProcessor's no-ops.
type Processor struct {
	normalize.BaseProcessor
	Config    Config
	sanitizer *security.Sanitizer
}

// New builds a scrubbing processor from cfg.
func New(cfg Config) *Processor {
	return &Processor{
		Config: cfg,
		sanitizer: security.NewSanitizer(security.SanitizerConfig{
			RedactEmails:      cfg.RedactEmails,
			RedactIPs:         cfg.RedactIPs,
			RedactCreditCards: true,
		}),
	}
}

// Scrub walks event, redacting in place, and returns it for chaining after
// Normalize.
func (p *Processor) Scrub(event *normalize.Event) *normalize.Event {
	state := normalize.Root()
	p.ProcessEvent(event, &event.Meta, state)
	return event
}

const redacted = "[redacted]"

// ProcessEvent scrubs top-level free text before descending into the rest
// of the tree via the shared walker; normalize's recursion contract is
// that ProcessEvent owns calling walkEventChildren, same as
// NormalizeProcessor does.
func (p *Processor) ProcessEvent(event *normalize.Event, meta *normalize.Meta, state *normalize.ProcessingState) normalize.ProcessingResult {
	if p.Config.ScrubMessages {
		if msg, ok := event.Message.Get(); ok {
			clean := p.sanitizer.Sanitize(msg)
			event.Message.SetValue(&clean)
		}
	}
	if p.Config.ScrubExtra {
		if extra, ok := event.Extra.Get(); ok {
			clean := p.scrubValue(extra).(map[string]normalize.Value)
			event.Extra.SetValue(&clean)
		}
	}
	normalize.WalkEventChildren(p, event, state)
	return nil
}

// scrubValue redacts strings found inside an arbitrarily nested Value tree
// (map[string]any / []any / scalars), the shape normalize.Decode produces
// for open-ended fields like extra and breadcrumb data.
func (p *Processor) scrubValue(v normalize.Value) normalize.Value {
	switch val := v.(type) {
	case string:
		return p.sanitizer.Sanitize(val)
	case map[string]normalize.Value:
		out := make(map[string]normalize.Value, len(val))
		for k, child := range val {
			out[k] = p.scrubValue(child)
		}
		return out
	case []normalize.Value:
		out := make([]normalize.Value, len(val))
		for i, child := range val {
			out[i] = p.scrubValue(child)
		}
		return out
	default:
		return v
	}
}

// ProcessUser redacts the fields most likely to carry a real person's
// identity outright, rather than pattern-matching them: the schema already
// marks this position PII via FieldAttrs, so there's no ambiguity to
// pattern-match around.
func (p *Processor) ProcessUser(user *normalize.User, meta *normalize.Meta, state *normalize.ProcessingState) normalize.ProcessingResult {
	if state.Attrs().PII == normalize.PIINone {
		return nil
	}
	if email, ok := user.Email.Get(); ok && email != "" {
		red := redacted
		user.Email.SetValue(&red)
	}
	if username, ok := user.Username.Get(); ok && username != "" {
		red := redacted
		user.Username.SetValue(&red)
	}
	if p.Config.RedactIPs {
		if ip, ok := user.IPAddress.Get(); ok && ip != "" {
			var red normalize.IPAddress = redacted
			user.IPAddress.SetValue(&red)
		}
	}
	return nil
}

// ProcessBreadcrumb scrubs a breadcrumb's free-form message and data map,
// the two places client SDKs most often leak secrets captured from
// application logs.
func (p *Processor) ProcessBreadcrumb(bc *normalize.Breadcrumb, meta *normalize.Meta, state *normalize.ProcessingState) normalize.ProcessingResult {
	if !p.Config.ScrubBreadcrumbs {
		return nil
	}
	if msg, ok := bc.Message.Get(); ok {
		clean := p.sanitizer.Sanitize(msg)
		bc.Message.SetValue(&clean)
	}
	if data, ok := bc.Data.Get(); ok {
		clean := p.scrubValue(data).(map[string]normalize.Value)
		bc.Data.SetValue(&clean)
	}
	return nil
}

// ProcessRequest scrubs headers, cookies, and the raw query string, the
// fields most likely to carry an Authorization header, a session cookie, or
// an API key in the URL. Headers and cookies are redacted by field name
// first (an Authorization value is secret no matter what it looks like),
// falling back to pattern matching for everything else.
func (p *Processor) ProcessRequest(req *normalize.Request, meta *normalize.Meta, state *normalize.ProcessingState) normalize.ProcessingResult {
	if qs, ok := req.QueryString.Get(); ok {
		clean := p.sanitizer.Sanitize(qs)
		req.QueryString.SetValue(&clean)
	}
	if headers, ok := req.Headers.Get(); ok {
		for i, entry := range headers.Entries {
			e, ok := entry.Get()
			if !ok {
				continue
			}
			name, _ := e.Key.Get()
			value, ok := e.Value.Get()
			if !ok {
				continue
			}
			clean := p.sanitizer.RedactByFieldName(name, value)
			e.Value.SetValue(&clean)
			entry.SetValue(&e)
			headers.Entries[i] = entry
		}
		req.Headers.SetValue(&headers)
	}
	if cookies, ok := req.Cookies.Get(); ok {
		for i, entry := range cookies {
			c, ok := entry.Get()
			if !ok {
				continue
			}
			name, _ := c.Key.Get()
			value, ok := c.Value.Get()
			if !ok {
				continue
			}
			clean := p.sanitizer.RedactByFieldName(name, value)
			c.Value.SetValue(&clean)
			entry.SetValue(&c)
			cookies[i] = entry
		}
		req.Cookies.SetValue(&cookies)
	}
	return nil
}
