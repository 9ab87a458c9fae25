package normalize

import "strings"

// OsHint is the operating system family inferred from an event's contexts,
// used to resolve OS-specific mechanism codes (e.g. mach_exception names
// only make sense on Darwin) to human-readable names.
type OsHint int

const (
	OsHintUnknown OsHint = iota
	OsHintDarwin
	OsHintLinux
	OsHintWindows
)

// osHintFromEvent inspects event.Contexts["os"] / ["device"] to guess the
// platform family, falling back to the top-level Platform field.
func osHintFromEvent(event *Event) OsHint {
	if contexts, ok := event.Contexts.Get(); ok {
		if ctx, ok := contexts.Get("os"); ok {
			if os, ok := ctx.(*OSContext); ok {
				if name, ok := os.Name.Get(); ok {
					if hint := osHintFromName(name); hint != OsHintUnknown {
						return hint
					}
				}
			}
		}
	}
	if platform, ok := event.Platform.Get(); ok {
		switch platform {
		case "cocoa", "objc":
			return OsHintDarwin
		}
	}
	return OsHintUnknown
}

func osHintFromName(name string) OsHint {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "mac"), strings.Contains(lower, "ios"), strings.Contains(lower, "darwin"), strings.Contains(lower, "watchos"), strings.Contains(lower, "tvos"):
		return OsHintDarwin
	case strings.Contains(lower, "linux"), strings.Contains(lower, "android"):
		return OsHintLinux
	case strings.Contains(lower, "windows"):
		return OsHintWindows
	default:
		return OsHintUnknown
	}
}

// Mechanism describes how an exception was captured (signal handler,
// unhandled-exception hook, ...).
type Mechanism struct {
	Type        Annotated[string]
	Description Annotated[string]
	HelpLink    Annotated[string]
	Handled     Annotated[bool]
	Synthetic   Annotated[bool]
	Data        map[string]Annotated[Value]
	Meta        Annotated[MechanismMeta]
}

// MechanismMeta carries OS-specific raw codes plus the human-readable names
// normalization resolves for them.
type MechanismMeta struct {
	Signal        *SignalMeta
	MachException *MachExceptionMeta
	Errno         *ErrnoMeta
}

type SignalMeta struct {
	Number   Annotated[int64]
	Code     Annotated[int64]
	Name     Annotated[string]
	CodeName Annotated[string]
}

type MachExceptionMeta struct {
	Exception Annotated[int64]
	Code      Annotated[int64]
	Subcode   Annotated[int64]
	Name      Annotated[string]
}

type ErrnoMeta struct {
	Number Annotated[int64]
	Name   Annotated[string]
}

var darwinSignalNames = map[int64]string{
	4:  "SIGILL",
	5:  "SIGTRAP",
	6:  "SIGABRT",
	8:  "SIGFPE",
	10: "SIGBUS",
	11: "SIGSEGV",
	12: "SIGSYS",
}

var posixSignalNames = map[int64]string{
	4:  "SIGILL",
	5:  "SIGTRAP",
	6:  "SIGABRT",
	7:  "SIGBUS",
	8:  "SIGFPE",
	11: "SIGSEGV",
	31: "SIGSYS",
}

var machExceptionNames = map[int64]string{
	1: "EXC_BAD_ACCESS",
	2: "EXC_BAD_INSTRUCTION",
	3: "EXC_ARITHMETIC",
	5: "EXC_SOFTWARE",
	6: "EXC_BREAKPOINT",
}

// normalizeMechanism resolves signal and mach-exception numeric codes into
// their canonical names, using osHint to choose the right lookup table.
func normalizeMechanism(m *Mechanism, hint OsHint) ProcessingResult {
	meta, ok := m.Meta.Get()
	if !ok {
		return nil
	}

	if meta.Signal != nil {
		if num, ok := meta.Signal.Number.Get(); ok && meta.Signal.Name.Value == nil {
			table := posixSignalNames
			if hint == OsHintDarwin {
				table = darwinSignalNames
			}
			if name, ok := table[num]; ok {
				meta.Signal.Name.SetValue(&name)
			}
		}
	}

	if meta.MachException != nil && hint == OsHintDarwin {
		if num, ok := meta.MachException.Exception.Get(); ok && meta.MachException.Name.Value == nil {
			if name, ok := machExceptionNames[num]; ok {
				meta.MachException.Name.SetValue(&name)
			}
		}
	}

	m.Meta.SetValue(&meta)
	return nil
}
