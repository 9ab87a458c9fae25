package normalize

import "time"

// Event is the root of the normalized telemetry payload: every sub-tree
// hung off it is independently annotated, so a client can always recover
// why any single field was rejected or rewritten.
type Event struct {
	EventID        Annotated[EventID]
	Type           Annotated[EventType]
	Timestamp      Annotated[time.Time]
	StartTimestamp Annotated[time.Time]
	Received       Annotated[time.Time]
	Platform       Annotated[string]
	Environment    Annotated[string]
	Release        Annotated[LenientString]
	Dist           Annotated[string]
	ServerName     Annotated[string]
	Site           Annotated[string]
	Level          Annotated[Level]
	Logger         Annotated[string]
	Culprit        Annotated[string]
	Message        Annotated[string]
	LogEntry       Annotated[LogEntry]

	Transaction Annotated[string]
	TimeSpent   Annotated[uint64]

	// Server-authoritative fields, always overwritten from StoreConfig;
	// whatever the client sent for them is discarded.
	Project Annotated[uint64]
	KeyID   Annotated[string]
	Version Annotated[string]

	Tags           Annotated[Tags]
	Extra          Annotated[map[string]Value]
	Modules        Annotated[map[string]string]
	Fingerprint    Annotated[[]string]
	GroupingConfig Annotated[map[string]Value]

	Request     Annotated[Request]
	User        Annotated[User]
	Contexts    Annotated[Contexts]
	Breadcrumbs Annotated[Values[Breadcrumb]]
	Exception   Annotated[Values[Exception]]
	Stacktrace  Annotated[Stacktrace]
	DebugMeta   Annotated[DebugMeta]

	SDK Annotated[ClientSDKInfo]

	// Security report payloads. At most one is normally present; any one
	// present marks this as a security-report event.
	CSP          Annotated[Value]
	HPKP         Annotated[Value]
	ExpectCT     Annotated[Value]
	ExpectStaple Annotated[Value]

	Errors []Error `json:"-"`

	// Other holds fields the schema does not recognize, preserved verbatim
	// so that forward-compatible SDK payloads never lose data.
	Other map[string]Value

	Meta Meta `json:"-"`
}

// timeSpentBound caps how long a transaction's start_timestamp may
// precede its timestamp: anything beyond this is clock skew or a client
// bug, not real latency.
const timeSpentBound = 24 * time.Hour

// maxBoundedInt caps any client-supplied "bounded integer" field at the
// signed 32-bit max, since the value eventually lands in a column sized
// for one. time_spent is the one field of that kind in this schema.
const maxBoundedInt uint64 = 1<<31 - 1

// StoreConfig carries project-scoped parameters that the ingest endpoint
// supplies alongside the raw payload: values the event itself cannot be
// trusted to assert about itself (project identity, API version, grouping
// strategy), plus the few client-declared fields normalization is allowed
// to read (the "sent_at"/"client" hints a relay passes through).
type StoreConfig struct {
	ProjectID       uint64
	KeyID           *uint64
	ProtocolVersion string
	GroupingConfig  map[string]Value
	IsRenormalize   bool
	ClientIP        string
	UserAgent       string
	Client          string
	SentAt          *time.Time
	MaxSecsInFuture int64
	MaxSecsInPast   int64

	NormalizeUserAgent bool
	EnableTrimming     bool
}

// defaultProtocolVersion is stamped onto events whose ingest config does
// not pin one explicitly.
const defaultProtocolVersion = "7"

func (c StoreConfig) protocolVersion() string {
	if c.ProtocolVersion != "" {
		return c.ProtocolVersion
	}
	return defaultProtocolVersion
}

// Events stamped more than an hour ahead, or 30 days behind, are flagged
// unless the config overrides these windows.
const (
	defaultMaxSecsInFuture int64 = 60 * 60
	defaultMaxSecsInPast   int64 = 30 * 24 * 60 * 60
)

func (c StoreConfig) maxSecsInFuture() int64 {
	if c.MaxSecsInFuture != 0 {
		return c.MaxSecsInFuture
	}
	return defaultMaxSecsInFuture
}

func (c StoreConfig) maxSecsInPast() int64 {
	if c.MaxSecsInPast != 0 {
		return c.MaxSecsInPast
	}
	return defaultMaxSecsInPast
}
