package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// LogEntry is a structured message template plus its substitution
// parameters, resolved into Formatted by normalization.
type LogEntry struct {
	Message     Annotated[string]
	Params      Annotated[[]Value]
	ParamsNamed Annotated[map[string]Value]
	Formatted   Annotated[string]
}

// normalizeLogEntry resolves Message + Params(Named) into Formatted,
// supporting both positional ("%s has %d items") and named
// ("{user} logged in") substitution styles.
func normalizeLogEntry(entry *LogEntry, meta *Meta) ProcessingResult {
	message, hasMessage := entry.Message.Get()
	if !hasMessage && entry.Formatted.Value == nil {
		meta.AddError(MissingAttribute("message"))
		return DeleteValueSoft
	}

	if entry.Formatted.Value != nil {
		return nil
	}

	formatted := message
	if named, ok := entry.ParamsNamed.Get(); ok {
		for key, val := range named {
			formatted = strings.ReplaceAll(formatted, "{"+key+"}", stringifyValue(val))
		}
	} else if params, ok := entry.Params.Get(); ok && len(params) > 0 {
		formatted = formatPositional(message, params)
	}

	entry.Formatted.SetValue(&formatted)
	return nil
}

func stringifyValue(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

// formatPositional substitutes %s-style placeholders with stringified
// params, left to right, without invoking fmt.Sprintf (which would choke
// on mismatched verbs coming from untrusted client data).
func formatPositional(message string, params []Value) string {
	var b strings.Builder
	paramIdx := 0
	for i := 0; i < len(message); i++ {
		if message[i] == '%' && i+1 < len(message) && paramIdx < len(params) {
			verb := message[i+1]
			if verb == 's' || verb == 'd' || verb == 'f' {
				b.WriteString(stringifyValue(params[paramIdx]))
				paramIdx++
				i++
				continue
			}
		}
		b.WriteByte(message[i])
	}
	return b.String()
}
