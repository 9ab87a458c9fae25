package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeAndNormalize decodes raw JSON, runs it through the full rule
// catalogue, and returns the event plus its two-document serialization for
// assertions.
func decodeAndNormalize(t *testing.T, raw string, cfg StoreConfig) (*Event, map[string]any, map[string]any) {
	t.Helper()
	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	event = Normalize(event, cfg, nil, nil)

	valueJSON, metaJSON, err := Serialize(event)
	require.NoError(t, err)

	var value, meta map[string]any
	require.NoError(t, json.Unmarshal(valueJSON, &value))
	require.NoError(t, json.Unmarshal(metaJSON, &meta))
	return event, value, meta
}

// Scenario 1: "Type: message" splits into type/value.
func TestExceptionSplitsTypeFromValue(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"exception":{"values":[{"value":"ValueError: unauthorized"}]}}`, StoreConfig{})

	exceptions := value["exception"].(map[string]any)["values"].([]any)
	require.Len(t, exceptions, 1)
	exc := exceptions[0].(map[string]any)
	assert.Equal(t, "ValueError", exc["type"])
	assert.Equal(t, "unauthorized", exc["value"])
}

// Scenario 2: a JSON-shaped value is never split on ':'.
func TestExceptionJSONShapedValueNotSplit(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"exception":{"values":[{"value":"{\"unauthorized\":true}"}]}}`, StoreConfig{})

	exceptions := value["exception"].(map[string]any)["values"].([]any)
	require.Len(t, exceptions, 1)
	exc := exceptions[0].(map[string]any)
	assert.Equal(t, `{"unauthorized":true}`, exc["value"])
	_, hasType := exc["type"]
	assert.False(t, hasType)
}

// Scenario 3: an exception with neither type nor value is soft-deleted with
// MissingAttribute. A soft delete clears the value but keeps the slot (and
// its meta) in place, unlike a hard delete which a container would remove
// entirely.
func TestEmptyExceptionIsDeleted(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"exception":{"values":[{}]}}`, StoreConfig{})

	exceptions := value["exception"].(map[string]any)["values"].([]any)
	require.Len(t, exceptions, 1)
	assert.Nil(t, exceptions[0])

	excMeta := meta["exception"].(map[string]any)["values"].(map[string]any)["0"].(map[string]any)[""].(map[string]any)
	errs := excMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "missing_attribute", errs[0].(map[string]any)["type"])
	assert.Equal(t, "type or value", errs[0].(map[string]any)["attribute"])
}

// Scenario 4: a legacy "environment" tag backfills the top-level field when
// it is absent, and is removed from tags.
func TestLegacyEnvironmentTagPromoted(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"tags":[["environment","despacito"]],"environment":""}`, StoreConfig{})

	assert.Equal(t, "despacito", value["environment"])
	tags, _ := value["tags"].([]any)
	assert.Len(t, tags, 0)
}

// Scenario 5: a valid REMOTE_ADDR populates user.ip_address.
func TestRemoteAddrPopulatesUserIP(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"request":{"env":{"REMOTE_ADDR":"213.47.147.207"}},"platform":"javascript"}`, StoreConfig{})

	user := value["user"].(map[string]any)
	assert.Equal(t, "213.47.147.207", user["ip_address"])
}

// Scenario 6: tags are deduplicated by key, first occurrence wins.
func TestTagDedupFirstOccurrenceWins(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"tags":[["foo","1"],["bar","1"],["foo","2"],["bar","2"],["foo","3"]]}`, StoreConfig{})

	tags := value["tags"].([]any)
	require.Len(t, tags, 2)
	assert.Equal(t, []any{"foo", "1"}, tags[0])
	assert.Equal(t, []any{"bar", "1"}, tags[1])
}

// Scenario 7: an invalid environment is rejected, with the original value
// preserved in meta.
func TestInvalidEnvironmentRejected(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"environment":"none"}`, StoreConfig{})

	_, hasEnv := value["environment"]
	assert.False(t, hasEnv)

	envMeta := meta["environment"].(map[string]any)[""].(map[string]any)
	errs := envMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "invalid_data", errs[0].(map[string]any)["type"])
	assert.Equal(t, "none", envMeta["val"])
}

// Scenario 8: an invalid release is rejected the same way.
func TestInvalidReleaseRejected(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"release":"Latest"}`, StoreConfig{})

	_, hasRelease := value["release"]
	assert.False(t, hasRelease)

	releaseMeta := meta["release"].(map[string]any)[""].(map[string]any)
	assert.Equal(t, "Latest", releaseMeta["val"])
}

// Scenario 9: a timestamp far in the future is cleared with FutureTimestamp,
// and received is always refreshed to now.
func TestFutureTimestampCleared(t *testing.T) {
	fixed := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	_, value, meta := decodeAndNormalize(t, `{"timestamp":696969696969}`, StoreConfig{})

	_, hasTimestamp := value["timestamp"]
	assert.False(t, hasTimestamp)

	tsMeta := meta["timestamp"].(map[string]any)[""].(map[string]any)
	errs := tsMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "future_timestamp", errs[0].(map[string]any)["type"])

	assert.Equal(t, fixed.Format(time.RFC3339Nano), value["received"])
}

// Scenario 10: server_name/site move into tags, replacing any pre-existing
// entries for those keys.
func TestServerNameAndSiteOverwriteTags(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"server_name":"foo","site":"foo","tags":[["site","old"],["server_name","old"]]}`, StoreConfig{})

	tags := value["tags"].([]any)
	got := map[string]string{}
	for _, entry := range tags {
		pair := entry.([]any)
		got[pair[0].(string)] = pair[1].(string)
	}
	assert.Equal(t, "foo", got["site"])
	assert.Equal(t, "foo", got["server_name"])

	_, hasServerName := value["server_name"]
	_, hasSite := value["site"]
	assert.False(t, hasServerName)
	assert.False(t, hasSite)
}

// Server field authority: project/key_id/grouping_config always
// come from StoreConfig, never from the client payload.
func TestGroupingConfigAlwaysFromConfig(t *testing.T) {
	cfg := StoreConfig{GroupingConfig: map[string]Value{"id": "legacy"}}
	_, value, _ := decodeAndNormalize(t, `{"grouping_config":{"id":"client-supplied"}}`, cfg)

	assert.Equal(t, map[string]any{"id": "legacy"}, value["grouping_config"])
}

// Platform whitelisting: an unknown platform is defaulted to "other".
func TestUnknownPlatformDefaultedToOther(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"platform":"definitely-not-a-platform"}`, StoreConfig{})
	assert.Equal(t, "other", value["platform"])
}

// No-crash: malformed/garbage input never panics and always returns.
func TestNoCrashOnMalformedInput(t *testing.T) {
	assert.NotPanics(t, func() {
		decodeAndNormalize(t, `{"level":123,"tags":"not-a-list","user":{"ip_address":42}}`, StoreConfig{})
	})
}

// time_spent beyond the bounded-integer ceiling is hard-deleted rather
// than merely clamped.
func TestOversizedTimeSpentHardDeleted(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"time_spent":2147483647}`, StoreConfig{})

	_, hasTimeSpent := value["time_spent"]
	assert.False(t, hasTimeSpent)

	tsMeta := meta["time_spent"].(map[string]any)[""].(map[string]any)
	errs := tsMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "value_too_long", errs[0].(map[string]any)["type"])
}

// A frame with PostContext but no ContextLine defaults ContextLine to "",
// never to the first post-context line.
func TestFrameContextLineDefaultsEmptyFromPostContext(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"exception":{"values":[{"type":"Error","stacktrace":{"frames":[
		{"post_context":["line one","line two"]}
	]}}]}}`, StoreConfig{})

	frame := value["exception"].(map[string]any)["values"].([]any)[0].(map[string]any)["stacktrace"].(map[string]any)["frames"].([]any)[0].(map[string]any)
	assert.Equal(t, "", frame["context_line"])
}

// Same default applies when only PreContext is set.
func TestFrameContextLineDefaultsEmptyFromPreContext(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"exception":{"values":[{"type":"Error","stacktrace":{"frames":[
		{"pre_context":["line one","line two"]}
	]}}]}}`, StoreConfig{})

	frame := value["exception"].(map[string]any)["values"].([]any)[0].(map[string]any)["stacktrace"].(map[string]any)["frames"].([]any)[0].(map[string]any)
	assert.Equal(t, "", frame["context_line"])
}

// Idempotence (up to the always-refreshed "received" field)
// when IsRenormalize is set on the second pass.
func TestIdempotentReNormalization(t *testing.T) {
	cfg := StoreConfig{IsRenormalize: true}
	raw := `{"platform":"python","tags":[["foo","1"]]}`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)
	first := Normalize(event, cfg, nil, nil)
	firstValue, _, err := Serialize(first)
	require.NoError(t, err)

	second := Normalize(first, cfg, nil, nil)
	secondValue, _, err := Serialize(second)
	require.NoError(t, err)

	var a, b map[string]any
	require.NoError(t, json.Unmarshal(firstValue, &a))
	require.NoError(t, json.Unmarshal(secondValue, &b))
	delete(a, "received")
	delete(b, "received")
	assert.Equal(t, a, b)
}

// Server field authority extends beyond grouping_config: project and
// version always come from StoreConfig, whatever the payload claimed.
func TestProjectAndVersionAlwaysFromConfig(t *testing.T) {
	cfg := StoreConfig{ProjectID: 42}
	_, value, _ := decodeAndNormalize(t, `{"project":99,"version":"1"}`, cfg)

	assert.EqualValues(t, 42, value["project"])
	assert.Equal(t, defaultProtocolVersion, value["version"])
}

// Security report backfill: a CSP payload defaults the logger and adopts
// the connecting client's IP and User-Agent from config.
func TestSecurityReportBackfill(t *testing.T) {
	cfg := StoreConfig{ClientIP: "203.0.113.9", UserAgent: "Mozilla/5.0"}
	_, value, _ := decodeAndNormalize(t, `{"csp":{"blocked_uri":"http://evil.example"}}`, cfg)

	assert.Equal(t, "csp", value["logger"])
	assert.Equal(t, "csp", value["type"])

	user := value["user"].(map[string]any)
	assert.Equal(t, "203.0.113.9", user["ip_address"])

	headers := value["request"].(map[string]any)["headers"].([]any)
	require.Len(t, headers, 1)
	assert.Equal(t, []any{"User-Agent", "Mozilla/5.0"}, headers[0])
}

// An oversize tag value is hard-deleted: the entry's slot stays (as null,
// keeping value/meta indices aligned) with ValueTooLong recorded and no
// original value preserved.
func TestOversizedTagValueHardDeleted(t *testing.T) {
	long := strings.Repeat("x", MaxCharsTagValue.DefaultLimit()+1)
	_, value, meta := decodeAndNormalize(t, `{"tags":[["ok","1"],["big","`+long+`"]]}`, StoreConfig{})

	tags := value["tags"].([]any)
	require.Len(t, tags, 2)
	assert.Equal(t, []any{"ok", "1"}, tags[0])
	assert.Nil(t, tags[1])

	entryMeta := meta["tags"].(map[string]any)["1"].(map[string]any)[""].(map[string]any)
	errs := entryMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "value_too_long", errs[0].(map[string]any)["type"])
	_, hasOriginal := entryMeta["val"]
	assert.False(t, hasOriginal)
}

// An empty tag value is hard-deleted with NonEmptyExpected.
func TestEmptyTagValueHardDeleted(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"tags":[["empty",""]]}`, StoreConfig{})

	tags := value["tags"].([]any)
	require.Len(t, tags, 1)
	assert.Nil(t, tags[0])

	entryMeta := meta["tags"].(map[string]any)["0"].(map[string]any)[""].(map[string]any)
	errs := entryMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "non_empty_value_expected", errs[0].(map[string]any)["type"])
}

// Reserved tag keys never survive normalization.
func TestReservedTagKeysFiltered(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"tags":[["release","1.0"],["user","jane"],["custom","kept"]]}`, StoreConfig{})

	tags := value["tags"].([]any)
	require.Len(t, tags, 1)
	assert.Equal(t, []any{"custom", "kept"}, tags[0])
}

// A context sent without an explicit "type" is typed after its key, and a
// trace context with no status defaults to unknown_error.
func TestTraceContextStatusDefaulted(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"contexts":{"trace":{"trace_id":"4c79f60c11214eb38604f4ae0781bfb2","span_id":"fa90fdead5f74053"}}}`, StoreConfig{})

	trace := value["contexts"].(map[string]any)["trace"].(map[string]any)
	assert.Equal(t, "trace", trace["type"])
	assert.Equal(t, "unknown_error", trace["status"])
}

// An unrecognized context type round-trips untouched.
func TestUnknownContextPreserved(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"contexts":{"flags":{"type":"flags","values":["abc"]}}}`, StoreConfig{})

	flags := value["contexts"].(map[string]any)["flags"].(map[string]any)
	assert.Equal(t, "flags", flags["type"])
	assert.Equal(t, []any{"abc"}, flags["values"])
}

// An unsupported debug image is soft-deleted with a reasoned error.
func TestUnsupportedDebugImageRejected(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"debug_meta":{"images":[{"type":"pe","code_file":"app.exe"}]}}`, StoreConfig{})

	images := value["debug_meta"].(map[string]any)["images"].([]any)
	require.Len(t, images, 1)
	assert.Nil(t, images[0])

	imgMeta := meta["debug_meta"].(map[string]any)["images"].(map[string]any)["0"].(map[string]any)[""].(map[string]any)
	errs := imgMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "invalid", errs[0].(map[string]any)["type"])
	assert.Equal(t, "unsupported debug image type", errs[0].(map[string]any)["reason"])
}

// Breadcrumbs get their type/level defaults.
func TestBreadcrumbDefaults(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"breadcrumbs":{"values":[{"message":"clicked checkout"}]}}`, StoreConfig{})

	bc := value["breadcrumbs"].(map[string]any)["values"].([]any)[0].(map[string]any)
	assert.Equal(t, "default", bc["type"])
	assert.Equal(t, "info", bc["level"])
}

// A logentry message with positional params resolves into formatted.
func TestLogEntryPositionalFormatting(t *testing.T) {
	_, value, _ := decodeAndNormalize(t, `{"logentry":{"message":"%s failed after %d retries","params":["checkout",3]}}`, StoreConfig{})

	entry := value["logentry"].(map[string]any)
	assert.Equal(t, "checkout failed after 3 retries", entry["formatted"])
}

// A logentry with neither message nor formatted is soft-deleted.
func TestEmptyLogEntryDeleted(t *testing.T) {
	_, value, meta := decodeAndNormalize(t, `{"logentry":{}}`, StoreConfig{})

	_, hasEntry := value["logentry"]
	assert.False(t, hasEntry)

	entryMeta := meta["logentry"].(map[string]any)[""].(map[string]any)
	errs := entryMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "missing_attribute", errs[0].(map[string]any)["type"])
}

// With trimming enabled, an oversize culprit is truncated in place with
// the original preserved in meta.
func TestTrimmingTruncatesCulprit(t *testing.T) {
	long := strings.Repeat("a", MaxCharsCulprit.DefaultLimit()+50)
	cfg := StoreConfig{EnableTrimming: true}
	_, value, meta := decodeAndNormalize(t, `{"culprit":"`+long+`"}`, cfg)

	assert.Equal(t, long[:MaxCharsCulprit.DefaultLimit()], value["culprit"])

	culpritMeta := meta["culprit"].(map[string]any)[""].(map[string]any)
	errs := culpritMeta["err"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "value_too_long", errs[0].(map[string]any)["type"])
	assert.Equal(t, long, culpritMeta["val"])
}

// stubUAParser returns a fixed parse result for enrichment tests.
type stubUAParser struct{ result UAResult }

func (s stubUAParser) Parse(string) UAResult { return s.result }

// User-agent enrichment populates browser/os/device contexts from the
// request's User-Agent header when enabled.
func TestUserAgentEnrichmentPopulatesContexts(t *testing.T) {
	raw := `{"request":{"headers":[["User-Agent","Mozilla/5.0"]]}}`
	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	ua := stubUAParser{result: UAResult{
		BrowserFamily:  "Firefox",
		BrowserVersion: "128.0",
		OSFamily:       "Mac OS X",
		OSVersion:      "14.5",
		DeviceFamily:   "Mac",
	}}
	event = Normalize(event, StoreConfig{NormalizeUserAgent: true}, nil, ua)

	contexts, ok := event.Contexts.Get()
	require.True(t, ok)

	browser, ok := contexts.Get("browser")
	require.True(t, ok)
	name, _ := browser.(*BrowserContext).Name.Get()
	assert.Equal(t, "Firefox", name)

	osCtx, ok := contexts.Get("os")
	require.True(t, ok)
	osName, _ := osCtx.(*OSContext).Name.Get()
	assert.Equal(t, "Mac OS X", osName)

	device, ok := contexts.Get("device")
	require.True(t, ok)
	family, _ := device.(*DeviceContext).Family.Get()
	assert.Equal(t, "Mac", family)
}

// stubGeoIP serves a canned Geo for any lookup.
type stubGeoIP struct{ geo Geo }

func (s stubGeoIP) Lookup(string) (Geo, bool, error) { return s.geo, true, nil }

// Geo enrichment runs during the user hook, after IP inference has
// populated user.ip_address from REMOTE_ADDR.
func TestGeoEnrichmentUsesInferredIP(t *testing.T) {
	raw := `{"request":{"env":{"REMOTE_ADDR":"213.47.147.207"}}}`
	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	geo := stubGeoIP{geo: Geo{CountryCode: NewAnnotated("AT"), City: NewAnnotated("Vienna")}}
	event = Normalize(event, StoreConfig{}, geo, nil)

	user, ok := event.User.Get()
	require.True(t, ok)
	g, ok := user.Geo.Get()
	require.True(t, ok)
	country, _ := g.CountryCode.Get()
	assert.Equal(t, "AT", country)
}

// A POSIX signal number resolves to its name; the darwin table is selected
// when the OS context says so.
func TestMechanismSignalNameResolved(t *testing.T) {
	raw := `{
		"contexts":{"os":{"name":"macOS","version":"14.5"}},
		"exception":{"values":[{"type":"EXC_BAD_ACCESS","mechanism":{"type":"mach","meta":{"signal":{"number":10},"mach_exception":{"exception":1,"code":1,"subcode":0}}}}]}
	}`
	event, err := Decode([]byte(raw))
	require.NoError(t, err)
	event = Normalize(event, StoreConfig{}, nil, nil)

	values, ok := event.Exception.Get()
	require.True(t, ok)
	exc, ok := values.Values[0].Get()
	require.True(t, ok)
	mech, ok := exc.Mechanism.Get()
	require.True(t, ok)
	mechMeta, ok := mech.Meta.Get()
	require.True(t, ok)

	name, _ := mechMeta.Signal.Name.Get()
	assert.Equal(t, "SIGBUS", name, "signal 10 is SIGBUS on darwin, SIGUSR1 on linux")
	machName, _ := mechMeta.MachException.Name.Get()
	assert.Equal(t, "EXC_BAD_ACCESS", machName)
}

// The single-exception stacktrace hoist: a top-level stacktrace moves into
// the lone exception and the top-level slot is cleared.
func TestTopLevelStacktraceMovesIntoSingleException(t *testing.T) {
	raw := `{"exception":{"values":[{"type":"ValueError"}]},"stacktrace":{"frames":[{"filename":"app.py","lineno":12}]}}`
	_, value, _ := decodeAndNormalize(t, raw, StoreConfig{})

	_, hasTopLevel := value["stacktrace"]
	assert.False(t, hasTopLevel)

	exc := value["exception"].(map[string]any)["values"].([]any)[0].(map[string]any)
	frames := exc["stacktrace"].(map[string]any)["frames"].([]any)
	require.Len(t, frames, 1)
	assert.Equal(t, "app.py", frames[0].(map[string]any)["filename"])
}

// Frames backfill abs_path from filename, and placeholder "?" symbols are
// cleared.
func TestFrameNormalization(t *testing.T) {
	raw := `{"exception":{"values":[{"type":"Error","stacktrace":{"frames":[{"filename":"index.js","function":"?"}]}}]}}`
	_, value, _ := decodeAndNormalize(t, raw, StoreConfig{})

	frame := value["exception"].(map[string]any)["values"].([]any)[0].(map[string]any)["stacktrace"].(map[string]any)["frames"].([]any)[0].(map[string]any)
	assert.Equal(t, "index.js", frame["abs_path"])
	_, hasFunction := frame["function"]
	assert.False(t, hasFunction)
}

// A request URL carrying a query string is split, headers canonicalize,
// and a Cookie header coerces into structured cookies.
func TestRequestNormalization(t *testing.T) {
	raw := `{"request":{"url":"https://example.com/checkout?step=2","headers":[["user-agent","curl/8.0"],["cookie","session=abc; theme=dark"]]}}`
	_, value, _ := decodeAndNormalize(t, raw, StoreConfig{})

	req := value["request"].(map[string]any)
	assert.Equal(t, "https://example.com/checkout", req["url"])
	assert.Equal(t, "step=2", req["query_string"])

	headers := req["headers"].([]any)
	assert.Equal(t, "User-Agent", headers[0].([]any)[0])

	cookies := req["cookies"].([]any)
	require.Len(t, cookies, 2)
	assert.Equal(t, []any{"session", "abc"}, cookies[0])
	assert.Equal(t, []any{"theme", "dark"}, cookies[1])
}

// User.other contents move into user.data.
func TestUserOtherMovesIntoData(t *testing.T) {
	raw := `{"user":{"id":"1","subscription":"pro"}}`
	event, err := Decode([]byte(raw))
	require.NoError(t, err)
	event = Normalize(event, StoreConfig{}, nil, nil)

	user, ok := event.User.Get()
	require.True(t, ok)
	assert.Empty(t, user.Other)
	data, ok := user.Data.Get()
	require.True(t, ok)
	assert.Equal(t, "pro", data["subscription"])
}

// The auto sentinels resolve to the config's client IP in both positions.
func TestAutoIPSentinelsResolved(t *testing.T) {
	raw := `{"user":{"ip_address":"auto"},"request":{"env":{"REMOTE_ADDR":"{{auto}}"}}}`
	cfg := StoreConfig{ClientIP: "198.51.100.7"}
	_, value, _ := decodeAndNormalize(t, raw, cfg)

	user := value["user"].(map[string]any)
	assert.Equal(t, "198.51.100.7", user["ip_address"])

	env := value["request"].(map[string]any)["env"].(map[string]any)
	assert.Equal(t, "198.51.100.7", env["REMOTE_ADDR"])
}

// Timestamps arrive as epoch seconds or ISO-8601 and coerce identically.
func TestTimestampCoercionBothForms(t *testing.T) {
	fixed := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	ts := time.Date(2026, 7, 29, 11, 30, 0, 0, time.UTC)
	_, numeric, _ := decodeAndNormalize(t, fmt.Sprintf(`{"timestamp":%d}`, ts.Unix()), StoreConfig{})
	_, textual, _ := decodeAndNormalize(t, `{"timestamp":"2026-07-29T11:30:00Z"}`, StoreConfig{})

	assert.Equal(t, numeric["timestamp"], textual["timestamp"])
}

// A renormalization pass must not re-derive the user's IP from the
// reprocessing job's connection.
func TestRenormalizeSkipsPeerDerivedEnrichment(t *testing.T) {
	raw := `{"platform":"javascript"}`
	event, err := Decode([]byte(raw))
	require.NoError(t, err)
	event = Normalize(event, StoreConfig{ClientIP: "10.9.8.7", IsRenormalize: true}, nil, nil)

	_, hasUser := event.User.Get()
	assert.False(t, hasUser)
}
