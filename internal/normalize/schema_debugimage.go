package normalize

// DebugImage is a closed set of binary image descriptors attached to
// DebugMeta. Clients send a discriminating "type" field; anything this
// agent doesn't recognize decodes into OtherDebugImage and is rejected by
// the normalizer.
type DebugImage interface {
	Kind() string
}

// AppleDebugImage describes a Mach-O binary image (macOS/iOS crash reports).
type AppleDebugImage struct {
	UUID        Annotated[string]
	Name        Annotated[string]
	ImageAddr   Annotated[string]
	ImageSize   Annotated[uint64]
	ImageVmAddr Annotated[string]
	CPUType     Annotated[uint32]
	CPUSubtype  Annotated[uint32]
}

func (AppleDebugImage) Kind() string { return "apple" }

// ProGuardDebugImage describes a ProGuard mapping file reference (Android).
type ProGuardDebugImage struct {
	UUID Annotated[string]
}

func (ProGuardDebugImage) Kind() string { return "proguard" }

// OtherDebugImage is the catch-all for unrecognized or malformed debug
// image payloads; the normalizer always rejects it.
type OtherDebugImage struct {
	Other map[string]Value
}

func (OtherDebugImage) Kind() string { return "other" }

// DebugMeta carries the SDK's debug image list for native stack symbolication.
type DebugMeta struct {
	SDKInfo Annotated[Value]
	Images  Annotated[[]Annotated[DebugImage]]
}
