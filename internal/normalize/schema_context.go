package normalize

// Context is one named entry in Event.Contexts. Clients discriminate the
// concrete type with a "type" field; unrecognized types decode into
// OtherContext and pass through normalization unchanged.
type Context interface {
	Kind() string
}

// Contexts is the event's context map, keyed by context name ("os",
// "device", "runtime", "trace", ...). The key need not match Kind(): a
// custom-named context can still carry type "os", for example.
type Contexts struct {
	Entries map[string]Annotated[Context]
}

// Get returns the named context's value, if present.
func (c Contexts) Get(name string) (Context, bool) {
	if c.Entries == nil {
		return nil, false
	}
	a, ok := c.Entries[name]
	if !ok {
		return nil, false
	}
	return a.Get()
}

// Set installs a context under name, used by User-Agent enrichment to
// populate browser/os/device after UA parsing.
func (c *Contexts) Set(name string, ctx Context) {
	if c.Entries == nil {
		c.Entries = make(map[string]Annotated[Context])
	}
	c.Entries[name] = NewAnnotated(ctx)
}

type DeviceContext struct {
	Name         Annotated[string]
	Family       Annotated[string]
	Model        Annotated[string]
	Arch         Annotated[string]
	BatteryLevel Annotated[float64]
	Orientation  Annotated[string]
}

func (*DeviceContext) Kind() string { return "device" }

type OSContext struct {
	Name          Annotated[string]
	Version       Annotated[string]
	Build         Annotated[string]
	KernelVersion Annotated[string]
	Rooted        Annotated[bool]
}

func (*OSContext) Kind() string { return "os" }

type RuntimeContext struct {
	Name    Annotated[string]
	Version Annotated[string]
}

func (*RuntimeContext) Kind() string { return "runtime" }

type AppContext struct {
	AppIdentifier Annotated[string]
	AppName       Annotated[string]
	AppVersion    Annotated[string]
	AppBuild      Annotated[string]
}

func (*AppContext) Kind() string { return "app" }

type BrowserContext struct {
	Name    Annotated[string]
	Version Annotated[string]
}

func (*BrowserContext) Kind() string { return "browser" }

type GPUContext struct {
	Name       Annotated[string]
	VendorName Annotated[string]
	MemorySize Annotated[uint64]
}

func (*GPUContext) Kind() string { return "gpu" }

// TraceContext carries distributed-tracing correlation identifiers.
type TraceContext struct {
	TraceID      Annotated[string]
	SpanID       Annotated[string]
	ParentSpanID Annotated[string]
	Op           Annotated[string]
	Status       Annotated[SpanStatus]
}

func (*TraceContext) Kind() string { return "trace" }

// OtherContext preserves a context whose "type" this agent does not
// recognize, so that round-tripping never silently drops client data.
type OtherContext struct {
	Type  string
	Other map[string]Value
}

func (c *OtherContext) Kind() string { return c.Type }

// normalizeContext dispatches field-level normalization per context
// variant. Most variants need nothing beyond what unmarshaling already
// does; new variants hook their rules in here.
func normalizeContext(ctx Context) {
	switch c := ctx.(type) {
	case *DeviceContext:
		if arch, ok := c.Arch.Get(); ok && arch == "" {
			c.Arch.SetValue(nil)
		}
	case *OSContext:
		if name, ok := c.Name.Get(); ok && name == "" {
			c.Name.SetValue(nil)
		}
	default:
		// No normalization rules for this variant yet.
	}
}
