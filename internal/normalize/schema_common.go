package normalize

import (
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventID is a UUID identifying one event, rendered without dashes in JSON
// (matching the wire format used by the upstream collector).
type EventID uuid.UUID

// NewEventID generates a fresh random event id.
func NewEventID() EventID {
	return EventID(uuid.New())
}

func (id EventID) String() string {
	return strings.ReplaceAll(uuid.UUID(id).String(), "-", "")
}

func (id EventID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// Level is the event's severity.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// EventType classifies what kind of interfaces an event carries.
type EventType string

const (
	EventTypeDefault      EventType = "default"
	EventTypeError        EventType = "error"
	EventTypeCsp          EventType = "csp"
	EventTypeHpkp         EventType = "hpkp"
	EventTypeExpectCT     EventType = "expectct"
	EventTypeExpectStaple EventType = "expectstaple"
	EventTypeTransaction  EventType = "transaction"
)

// SpanStatus is the outcome recorded on a trace context.
type SpanStatus string

const (
	SpanStatusOK            SpanStatus = "ok"
	SpanStatusUnknownError  SpanStatus = "unknown_error"
	SpanStatusCancelled     SpanStatus = "cancelled"
	SpanStatusInternalError SpanStatus = "internal_error"
)

// AutoIPSentinel is the literal clients send when they want the collector to
// fill in the connecting peer's address.
const AutoIPSentinel = "{{auto}}"

// autoIPValue is the sentinel recognized inside User.IPAddress; its wire
// spelling differs from the request.env one.
const autoIPValue = "auto"

// IPAddress is a textual IPv4/IPv6 address, or one of the recognized auto
// sentinels before normalization resolves it.
type IPAddress string

// IsAuto reports whether this is the User.IPAddress auto-resolution
// sentinel.
func (ip IPAddress) IsAuto() bool {
	return string(ip) == autoIPValue
}

// ParseIPAddress validates s as a v4/v6 literal and returns it unchanged, or
// reports ok=false if it does not parse.
func ParseIPAddress(s string) (IPAddress, bool) {
	if net.ParseIP(s) == nil {
		return "", false
	}
	return IPAddress(s), true
}

// LenientString is a string-typed field that tolerates non-string JSON
// scalars (numbers, booleans) on the wire by coercing them to their string
// form; release is the field SDKs most often send a bare number for.
type LenientString string

// ClientSDKInfo records which SDK produced the event, either sent by the
// client or inferred from StoreConfig.Client.
type ClientSDKInfo struct {
	Name    Annotated[string]
	Version Annotated[string]
}

// Values is the generic "named list" container the schema uses for
// exceptions, breadcrumbs, and stack frames: `{"values": [...]}`.
type Values[T any] struct {
	Values []Annotated[T]
}

func (v Values[T]) Len() int {
	if v.Values == nil {
		return 0
	}
	return len(v.Values)
}

// Geo is the result of a GeoIP lookup against a user's IP address.
type Geo struct {
	CountryCode Annotated[string]
	City        Annotated[string]
	Region      Annotated[string]
}

// now is overridden in tests to produce deterministic timestamps.
var now = time.Now
