package normalize

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// NormalizeProcessor implements Processor with the full rule catalogue: it
// validates and repairs an Event against the schema, moves and defaults
// fields, and enriches the tree with GeoIP/user-agent data. Construct one
// per call to Normalize; it is not safe to reuse across events because it
// carries the tag-dedup cache for the event currently in flight.
type NormalizeProcessor struct {
	BaseProcessor

	Config StoreConfig
	GeoIP  GeoIPLookup
	UA     UserAgentParser

	dedup *tagDedupCache
}

// Normalize runs the full normalization pipeline over event in place and
// returns it. It never fails: every problem is recorded as an Error on the
// offending node, per the no-crash/no-abort contract.
func Normalize(event *Event, config StoreConfig, geoip GeoIPLookup, ua UserAgentParser) *Event {
	p := &NormalizeProcessor{
		Config: config,
		GeoIP:  geoip,
		UA:     ua,
		dedup:  newTagDedupCache(),
	}
	state := Root()
	_ = p.ProcessEvent(event, &event.Meta, state)
	return event
}

// ProcessEvent is the root hook: it runs the step catalogue in the exact
// order the normalizer depends on. Do not reorder steps 1-4: geo lookup in
// step 3 depends on the IP inference done in step 2, and step 4's
// server-authoritative overrides must land before any whitelist validation
// that follows.
func (p *NormalizeProcessor) ProcessEvent(event *Event, meta *Meta, state *ProcessingState) ProcessingResult {
	// On a renormalization pass the "connecting peer" is the reprocessing
	// job, not the SDK, so peer-derived backfill must not run again.
	if !p.Config.IsRenormalize {
		p.backfillSecurityReport(event)
		p.inferIPAddresses(event)
	}

	walkEventChildren(p, event, state)

	p.overrideServerFields(event)
	p.validateEnumerations(event, meta)
	p.applyDefaults(event)
	p.normalizeReleaseDist(event)
	p.normalizeTimestamps(event, meta)
	p.validateBoundedIntegers(event)
	p.normalizeTags(event)
	p.normalizeExceptions(event)
	if p.Config.NormalizeUserAgent {
		p.normalizeEventUserAgent(event)
	}
	if p.Config.EnableTrimming {
		p.trimLongStrings(event)
	}

	event.Type.SetValue(ptr(p.inferEventType(event)))
	return nil
}

func ptr[T any](v T) *T { return &v }

// backfillSecurityReport fills in the fields a browser-generated security
// report (CSP and friends) cannot carry itself: a logger name, the
// reporting client's IP, and its User-Agent.
func (p *NormalizeProcessor) backfillSecurityReport(event *Event) {
	isSecurityReport := event.CSP.HasValue() || event.HPKP.HasValue() ||
		event.ExpectCT.HasValue() || event.ExpectStaple.HasValue()
	if !isSecurityReport {
		return
	}

	if !event.Logger.HasValue() {
		event.Logger.SetValue(ptr("csp"))
	}

	if p.Config.ClientIP != "" {
		user, hasUser := event.User.Get()
		if !hasUser {
			user = User{}
		}
		ip := IPAddress(p.Config.ClientIP)
		user.IPAddress.SetValue(&ip)
		event.User.SetValue(&user)
	}

	if p.Config.UserAgent != "" {
		req, hasReq := event.Request.Get()
		if !hasReq {
			req = Request{}
		}
		headers, hasHeaders := req.Headers.Get()
		if !hasHeaders {
			headers = Headers{}
		}
		if !headers.Contains("User-Agent") {
			headers.Insert("User-Agent", p.Config.UserAgent)
		}
		req.Headers.SetValue(&headers)
		event.Request.SetValue(&req)
	}
}

// inferIPAddresses resolves the {{auto}}/auto sentinels and fills
// user.ip_address from REMOTE_ADDR or the connecting peer. It runs before the
// recursive descent because process_user's GeoIP enrichment reads
// user.ip_address, which this step is responsible for populating.
func (p *NormalizeProcessor) inferIPAddresses(event *Event) {
	clientIP := p.Config.ClientIP

	req, hasReq := event.Request.Get()
	if hasReq {
		env, hasEnv := req.Env.Get()
		if hasEnv {
			if entry, ok := env["REMOTE_ADDR"]; ok {
				if v, ok := entry.Get(); ok && v == AutoIPSentinel && clientIP != "" {
					var resolved Value = clientIP
					entry.SetValue(&resolved)
					env["REMOTE_ADDR"] = entry
				}
			}
			req.Env.SetValue(&env)
		}
	}

	user, hasUser := event.User.Get()
	if !hasUser {
		user = User{}
	}
	if ip, ok := user.IPAddress.Get(); ok && ip.IsAuto() && clientIP != "" {
		resolved := IPAddress(clientIP)
		user.IPAddress.SetValue(&resolved)
	}

	// 2b: a valid REMOTE_ADDR always wins over the step-2a/c defaults below
	// when user.ip_address is still unset.
	if !user.IPAddress.HasValue() {
		if hasReq {
			if env, ok := req.Env.Get(); ok {
				if entry, ok := env["REMOTE_ADDR"]; ok {
					if v, ok := entry.Get(); ok {
						if s, ok := v.(string); ok && net.ParseIP(s) != nil {
							resolved := IPAddress(s)
							user.IPAddress.SetValue(&resolved)
						}
					}
				}
			}
		}
	}

	// 2c: javascript/cocoa/objc SDKs don't see their own network address;
	// fall back to the connecting peer the relay observed.
	if !user.IPAddress.HasValue() && clientIP != "" {
		if platform, ok := event.Platform.Get(); ok {
			switch platform {
			case "javascript", "cocoa", "objc":
				resolved := IPAddress(clientIP)
				user.IPAddress.SetValue(&resolved)
			}
		}
	}

	if hasReq {
		event.Request.SetValue(&req)
	}
	if hasUser || user.IPAddress.HasValue() {
		event.User.SetValue(&user)
	}
}

// overrideServerFields stamps project, key_id, version, and
// grouping_config from the ingest-time config, discarding whatever the
// client payload claimed for them.
func (p *NormalizeProcessor) overrideServerFields(event *Event) {
	event.Project.SetValue(ptr(p.Config.ProjectID))

	if p.Config.KeyID != nil {
		event.KeyID.SetValue(ptr(strconv.FormatUint(*p.Config.KeyID, 10)))
	} else {
		event.KeyID.SetValue(nil)
	}

	event.Version.SetValue(ptr(p.Config.protocolVersion()))

	if p.Config.GroupingConfig != nil {
		event.GroupingConfig.SetValue(&p.Config.GroupingConfig)
	} else {
		event.GroupingConfig.SetValue(nil)
	}
}

// validateEnumerations rejects platform/environment/release values that
// fail their whitelists.
func (p *NormalizeProcessor) validateEnumerations(event *Event, meta *Meta) {
	event.Platform.Apply(func(v *string, m *Meta) ProcessingResult {
		if !isValidPlatform(*v) {
			return DeleteValueSoft
		}
		return nil
	})
	event.Environment.Apply(func(v *string, m *Meta) ProcessingResult {
		if !isValidEnvironment(*v) {
			m.AddError(NewError(ErrorInvalidData))
			return DeleteValueSoft
		}
		return nil
	})
	event.Release.Apply(func(v *LenientString, m *Meta) ProcessingResult {
		if !isValidRelease(string(*v)) {
			m.AddError(NewError(ErrorInvalidData))
			return DeleteValueSoft
		}
		return nil
	})
}

// applyDefaults fills the fields every normalized event is guaranteed to
// carry.
func (p *NormalizeProcessor) applyDefaults(event *Event) {
	if !event.Level.HasValue() {
		event.Level.SetValue(ptr(LevelError))
	}
	if !event.EventID.HasValue() || event.EventID.Value.IsNil() {
		event.EventID.SetValue(ptr(NewEventID()))
	}
	if !event.Platform.HasValue() {
		event.Platform.SetValue(ptr("other"))
	}
	if !event.Logger.HasValue() {
		event.Logger.SetValue(ptr(""))
	}
	if !event.Extra.HasValue() {
		event.Extra.SetValue(&map[string]Value{})
	}
	if event.Errors == nil {
		event.Errors = []Error{}
	}
	if !event.SDK.HasValue() && p.Config.Client != "" {
		event.SDK.SetValue(ptr(parseClientSDKInfo(p.Config.Client)))
	}
}

// parseClientSDKInfo splits a "name/version" or "name version" client
// descriptor, matching the wire format relays pass along from the SDK's
// own User-Agent-like self-identification string.
func parseClientSDKInfo(client string) ClientSDKInfo {
	var name, version string
	if idx := strings.IndexByte(client, '/'); idx >= 0 {
		name, version = client[:idx], client[idx+1:]
	} else if idx := strings.LastIndexByte(client, ' '); idx >= 0 {
		name, version = client[:idx], client[idx+1:]
	} else {
		name = client
	}
	info := ClientSDKInfo{Name: NewAnnotated(name)}
	if version != "" {
		info.Version = NewAnnotated(version)
	}
	return info
}

// normalizeReleaseDist couples dist to release: a dist without a release
// is meaningless and gets cleared; otherwise dist is trimmed.
func (p *NormalizeProcessor) normalizeReleaseDist(event *Event) {
	dist, hasDist := event.Dist.Get()
	if !hasDist {
		return
	}
	release, hasRelease := event.Release.Get()
	if !hasRelease || release == "" {
		event.Dist.SetValue(nil)
		return
	}
	trimmed := strings.TrimSpace(dist)
	event.Dist.SetValue(&trimmed)
}

// normalizeTimestamps refreshes received, defaults a missing timestamp to
// now, and rejects timestamps outside the configured past/future window.
func (p *NormalizeProcessor) normalizeTimestamps(event *Event, meta *Meta) {
	current := now()
	event.Received.SetValue(&current)

	maxFuture := time.Duration(p.Config.maxSecsInFuture()) * time.Second
	maxPast := time.Duration(p.Config.maxSecsInPast()) * time.Second

	if !event.Timestamp.HasValue() {
		event.Timestamp.SetValue(&current)
	} else {
		event.Timestamp.Apply(func(v *time.Time, m *Meta) ProcessingResult {
			if v.After(current.Add(maxFuture)) {
				m.AddError(NewError(ErrorFutureTimestamp))
				return DeleteValueSoft
			}
			if v.Before(current.Add(-maxPast)) {
				m.AddError(NewError(ErrorPastTimestamp))
				return DeleteValueSoft
			}
			return nil
		})
	}

	if start, ok := event.StartTimestamp.Get(); ok {
		if ts, ok := event.Timestamp.Get(); ok {
			if ts.Sub(start) > timeSpentBound {
				event.StartTimestamp.SetValue(nil)
			}
		}
	}
}

// validateBoundedIntegers hard-deletes any "bounded integer" field a client
// sent a value too large for its storage column to hold. time_spent is the
// one such field that survives in this schema.
func (p *NormalizeProcessor) validateBoundedIntegers(event *Event) {
	event.TimeSpent.Apply(func(v *uint64, m *Meta) ProcessingResult {
		if *v >= maxBoundedInt {
			m.AddError(NewError(ErrorValueTooLong))
			return DeleteValueHard
		}
		return nil
	})
}

// reservedTagKeys are dropped during tag normalization: internal or
// ambiguous with fields normalized elsewhere.
var reservedTagKeys = map[string]bool{
	"":         true,
	"release":  true,
	"dist":     true,
	"user":     true,
	"filename": true,
	"function": true,
}

// normalizeTags migrates the legacy environment tag, drops reserved and
// duplicate keys, enforces length limits, and folds server_name/site into
// the tag list.
func (p *NormalizeProcessor) normalizeTags(event *Event) {
	tags, ok := event.Tags.Get()
	if !ok {
		tags = Tags{}
	}

	if IsEmpty(event.Environment) {
		if v, ok := tags.Remove("environment"); ok {
			event.Environment.SetValue(&v)
		}
	}

	// Reserved and duplicate keys are removed outright; oversize and
	// empty-value entries are hard-deleted instead, so their slot keeps
	// the recorded error while the value itself is discarded.
	var kept []Annotated[TagEntry]
	for _, entry := range tags.Entries {
		te, ok := entry.Get()
		if !ok {
			continue
		}
		key, _ := te.Key.Get()
		if reservedTagKeys[key] {
			continue
		}
		if p.dedup.seenBefore(key) {
			continue
		}
		if len(key) > MaxCharsTagKey.DefaultLimit() {
			entry.Meta.AddError(NewError(ErrorValueTooLong))
			entry.Clear(DeleteValueHard, nil)
			kept = append(kept, entry)
			continue
		}
		value, hasValue := te.Value.Get()
		if !hasValue || value == "" {
			entry.Meta.AddError(NonEmptyExpected())
			entry.Clear(DeleteValueHard, nil)
			kept = append(kept, entry)
			continue
		}
		if len(value) > MaxCharsTagValue.DefaultLimit() {
			entry.Meta.AddError(NewError(ErrorValueTooLong))
			entry.Clear(DeleteValueHard, nil)
			kept = append(kept, entry)
			continue
		}
		kept = append(kept, entry)
	}
	tags.Entries = kept

	if serverName, ok := event.ServerName.Get(); ok {
		tags.Set("server_name", serverName)
		event.ServerName.SetValue(nil)
	}
	if site, ok := event.Site.Get(); ok {
		tags.Set("site", site)
		event.Site.SetValue(nil)
	}

	event.Tags.SetValue(&tags)
}

// normalizeExceptions hoists a lone top-level stacktrace into the single
// exception and resolves mechanism codes per OS family.
func (p *NormalizeProcessor) normalizeExceptions(event *Event) {
	values, ok := event.Exception.Get()
	if !ok {
		return
	}

	if len(values.Values) == 1 {
		if st, ok := event.Stacktrace.Get(); ok {
			exc, ok := values.Values[0].Get()
			if ok && !exc.Stacktrace.HasValue() {
				exc.Stacktrace.SetValue(&st)
				values.Values[0].SetValue(&exc)
				event.Stacktrace.SetValue(nil)
			}
		}
	}

	hint := osHintFromEvent(event)
	for i := range values.Values {
		exc, ok := values.Values[i].Get()
		if !ok {
			continue
		}
		if mech, ok := exc.Mechanism.Get(); ok {
			normalizeMechanism(&mech, hint)
			exc.Mechanism.SetValue(&mech)
			values.Values[i].SetValue(&exc)
		}
	}

	event.Exception.SetValue(&values)
}

// normalizeEventUserAgent parses the request's User-Agent header and
// populates the browser/os/device contexts from it.
func (p *NormalizeProcessor) normalizeEventUserAgent(event *Event) {
	if p.UA == nil {
		return
	}
	req, ok := event.Request.Get()
	if !ok {
		return
	}
	headers, ok := req.Headers.Get()
	if !ok {
		return
	}
	uaString, ok := headers.Get("User-Agent")
	if !ok || uaString == "" {
		return
	}

	result := p.UA.Parse(uaString)
	contexts, ok := event.Contexts.Get()
	if !ok {
		contexts = Contexts{}
	}

	if result.BrowserFamily != "" {
		contexts.Set("browser", &BrowserContext{
			Name:    NewAnnotated(result.BrowserFamily),
			Version: NewAnnotated(result.BrowserVersion),
		})
	}
	if result.OSFamily != "" {
		contexts.Set("os", &OSContext{
			Name:    NewAnnotated(result.OSFamily),
			Version: NewAnnotated(result.OSVersion),
		})
	}
	if result.DeviceFamily != "" {
		contexts.Set("device", &DeviceContext{
			Family: NewAnnotated(result.DeviceFamily),
		})
	}

	event.Contexts.SetValue(&contexts)
}

// trimLongStrings truncates the free-text fields that have declared
// character budgets, annotating each truncation so the client can tell the
// value is not what it sent.
func (p *NormalizeProcessor) trimLongStrings(event *Event) {
	trim := func(a *Annotated[string], limit MaxChars) {
		a.Apply(func(v *string, m *Meta) ProcessingResult {
			max := limit.DefaultLimit()
			runes := []rune(*v)
			if len(runes) <= max {
				return nil
			}
			m.AddError(NewError(ErrorValueTooLong))
			m.SetOriginalValue(*v)
			*v = string(runes[:max])
			return nil
		})
	}
	trim(&event.Culprit, MaxCharsCulprit)
	trim(&event.Transaction, MaxCharsCulprit)
	trim(&event.Message, MaxCharsMessage)
}

// inferEventType classifies the event from the interfaces it carries:
// exceptions mean an error event, a security-report payload means that
// report's type, anything else is default. An explicit client-supplied ty
// overrides all inference.
func (p *NormalizeProcessor) inferEventType(event *Event) EventType {
	if ty, ok := event.Type.Get(); ok && ty != "" {
		return ty
	}
	if values, ok := event.Exception.Get(); ok && len(values.Values) > 0 {
		return EventTypeError
	}
	switch {
	case event.CSP.HasValue():
		return EventTypeCsp
	case event.HPKP.HasValue():
		return EventTypeHpkp
	case event.ExpectCT.HasValue():
		return EventTypeExpectCT
	case event.ExpectStaple.HasValue():
		return EventTypeExpectStaple
	}
	return EventTypeDefault
}

// --- sub-visitor hook overrides ---

func (p *NormalizeProcessor) ProcessLogEntry(entry *LogEntry, meta *Meta, state *ProcessingState) ProcessingResult {
	return normalizeLogEntry(entry, meta)
}

func (p *NormalizeProcessor) ProcessRequest(req *Request, meta *Meta, state *ProcessingState) ProcessingResult {
	return normalizeRequest(req)
}

func (p *NormalizeProcessor) ProcessUser(user *User, meta *Meta, state *ProcessingState) ProcessingResult {
	if len(user.Other) > 0 {
		data, _ := user.Data.Get()
		if data == nil {
			data = map[string]Value{}
		}
		for k, v := range user.Other {
			data[k] = v
		}
		user.Data.SetValue(&data)
		user.Other = nil
	}

	if !user.Geo.HasValue() && p.GeoIP != nil {
		if ip, ok := user.IPAddress.Get(); ok && ip != "" {
			if geo, found, err := p.GeoIP.Lookup(string(ip)); err == nil && found {
				user.Geo.SetValue(&geo)
			}
		}
	}
	return nil
}

func (p *NormalizeProcessor) ProcessBreadcrumb(bc *Breadcrumb, meta *Meta, state *ProcessingState) ProcessingResult {
	if !bc.Type.HasValue() {
		bc.Type.SetValue(ptr("default"))
	}
	if !bc.Level.HasValue() {
		bc.Level.SetValue(ptr(LevelInfo))
	}
	return nil
}

func (p *NormalizeProcessor) ProcessException(exc *Exception, meta *Meta, state *ProcessingState) ProcessingResult {
	if result := normalizeException(exc, meta); result != nil {
		return result
	}
	walkExceptionChildren(p, exc, state)
	return nil
}

func (p *NormalizeProcessor) ProcessFrame(frame *Frame, meta *Meta, state *ProcessingState) ProcessingResult {
	return normalizeFrame(frame)
}

func (p *NormalizeProcessor) ProcessStacktrace(st *Stacktrace, meta *Meta, state *ProcessingState) ProcessingResult {
	if result := normalizeStacktrace(st, meta); result != nil {
		return result
	}
	walkStacktraceChildren(p, st, state)

	frames, _ := st.Frames.Get()
	for i := range frames {
		f, ok := frames[i].Get()
		if !ok {
			continue
		}
		if abs, ok := f.AbsPath.Get(); !ok || abs == "" {
			if fn, ok := f.Filename.Get(); ok {
				f.AbsPath.SetValue(&fn)
				frames[i].SetValue(&f)
			}
		}
	}
	st.Frames.SetValue(&frames)
	return nil
}

func (p *NormalizeProcessor) ProcessContext(ctx Context, meta *Meta, state *ProcessingState) ProcessingResult {
	normalizeContext(ctx)
	return nil
}

func (p *NormalizeProcessor) ProcessTraceContext(tc *TraceContext, meta *Meta, state *ProcessingState) ProcessingResult {
	if !tc.Status.HasValue() {
		tc.Status.SetValue(ptr(SpanStatusUnknownError))
	}
	return nil
}

func (p *NormalizeProcessor) ProcessDebugImage(img DebugImage, meta *Meta, state *ProcessingState) ProcessingResult {
	if _, ok := img.(OtherDebugImage); ok {
		meta.AddError(Invalid("unsupported debug image type"))
		return DeleteValueSoft
	}
	return nil
}
