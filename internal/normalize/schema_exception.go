package normalize

import (
	"regexp"
	"strings"
)

// exceptionTypeValueSplit recognizes a combined "TypeError: foo is not a
// function" string so type/value can be normalized independently even when
// an SDK only sent one free-form field.
var exceptionTypeValueSplit = regexp.MustCompile(`^(\w+):(.*)$`)

// Exception describes one error in the event's exception chain (the
// "exceptions" list runs from oldest cause to most recent, matching the
// wire order SDKs emit for chained/aggregate errors).
type Exception struct {
	Type       Annotated[string]
	Value      Annotated[string]
	Module     Annotated[string]
	ThreadID   Annotated[Value]
	Mechanism  Annotated[Mechanism]
	Stacktrace Annotated[Stacktrace]
}

// normalizeException splits a combined "Type: message" Value into Type and
// Value when Type is still empty, unless Value already looks like JSON
// (starts with '{' or '['), in which case splitting on ':' would mangle
// structured data. Fails MissingAttribute if both ultimately remain empty.
func normalizeException(exc *Exception, meta *Meta) ProcessingResult {
	typ, hasType := exc.Type.Get()
	val, hasValue := exc.Value.Get()

	if !hasType && hasValue && !looksLikeJSON(val) {
		if m := exceptionTypeValueSplit.FindStringSubmatch(val); m != nil {
			exc.Type.SetValue(&m[1])
			rest := strings.TrimSpace(m[2])
			exc.Value.SetValue(&rest)
			hasType = true
		}
	}

	typ, hasType = exc.Type.Get()
	val, hasValue = exc.Value.Get()
	if (!hasType || typ == "") && (!hasValue || val == "") {
		meta.AddError(MissingAttribute("type or value"))
		return DeleteValueSoft
	}
	return nil
}

func looksLikeJSON(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// Stacktrace is an ordered list of Frames, outermost call first.
type Stacktrace struct {
	Frames        Annotated[[]Annotated[Frame]]
	Registers     Annotated[map[string]Value]
	FramesOmitted Annotated[[2]uint64]
}

// Frame is a single entry in a Stacktrace.
type Frame struct {
	Function    Annotated[string]
	Symbol      Annotated[string]
	Module      Annotated[string]
	Package     Annotated[string]
	Filename    Annotated[string]
	AbsPath     Annotated[string]
	LineNo      Annotated[uint64]
	ColNo       Annotated[uint64]
	ContextLine Annotated[string]
	PreContext  Annotated[[]string]
	PostContext Annotated[[]string]
	InApp       Annotated[bool]
	Vars        Annotated[map[string]Value]
}

// placeholderFunctionNames are SDK conventions for "we couldn't resolve a
// symbol name" that should be treated as absent rather than displayed.
var placeholderFunctionNames = map[string]bool{
	"?":         true,
	"<unknown>": true,
}

// normalizeFrame clears placeholder function/symbol names, turns an
// explicit null context_line into the empty string (so downstream
// rendering always has a string to index into), and defaults ContextLine
// to "" whenever either context list is non-empty but context_line itself
// is absent.
func normalizeFrame(f *Frame) ProcessingResult {
	if fn, ok := f.Function.Get(); ok && placeholderFunctionNames[fn] {
		f.Function.SetValue(nil)
	}
	if sym, ok := f.Symbol.Get(); ok && placeholderFunctionNames[sym] {
		f.Symbol.SetValue(nil)
	}
	if f.ContextLine.Meta.HasOriginalValue() && f.ContextLine.Value == nil {
		empty := ""
		f.ContextLine.SetValue(&empty)
	}
	if f.ContextLine.Value == nil {
		pre, _ := f.PreContext.Get()
		post, _ := f.PostContext.Get()
		if len(pre) > 0 || len(post) > 0 {
			empty := ""
			f.ContextLine.SetValue(&empty)
		}
	}
	return nil
}

func normalizeStacktrace(st *Stacktrace, meta *Meta) ProcessingResult {
	frames, ok := st.Frames.Get()
	if !ok || len(frames) == 0 {
		meta.AddError(MissingAttribute("frames"))
		return DeleteValueSoft
	}
	return nil
}
