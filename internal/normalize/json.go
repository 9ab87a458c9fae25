package normalize

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Serialize renders event as two parallel documents: the value tree
// (ordinary JSON, as any client would expect) and a `_meta` tree of the
// same shape whose nodes carry {err, val, rem} only at positions that have
// annotations.
//
// Both trees are built by reflection over the Annotated[T] fields rather
// than by hand-writing a MarshalJSON per schema type: the schema has dozens
// of struct types and hand-rolling each would multiply the place a new
// field has to be wired by three (struct, value marshal, meta marshal).
func Serialize(event *Event) (value, meta json.RawMessage, err error) {
	v := buildValue(reflect.ValueOf(*event))
	m := buildMeta(reflect.ValueOf(*event))

	value, err = json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		meta = []byte("{}")
	} else {
		meta, err = json.Marshal(m)
		if err != nil {
			return nil, nil, err
		}
	}
	return value, meta, nil
}

// SerializeEmbedded renders the value tree with the meta tree embedded
// under the top-level "_meta" key: the single-document form the upstream
// store endpoint accepts, so a forwarded event carries its own audit trail.
func SerializeEmbedded(event *Event) (json.RawMessage, error) {
	v, _ := buildValue(reflect.ValueOf(*event)).(map[string]any)
	if v == nil {
		v = map[string]any{}
	}
	if m := buildMeta(reflect.ValueOf(*event)); m != nil {
		v["_meta"] = m
	}
	return json.Marshal(v)
}

var metaType = reflect.TypeOf(Meta{})
var timeType = reflect.TypeOf(time.Time{})
var eventIDType = reflect.TypeOf(EventID{})

// isBookkeepingField reports whether f is one of the schema's bookkeeping
// slots (the node's own Meta record, the unknown-field Other map, the
// collected Errors list) rather than a wire field. The type check on Meta
// matters: Mechanism.Meta is a real schema field that happens to share the
// name.
func isBookkeepingField(f reflect.StructField) bool {
	if !f.IsExported() {
		return true
	}
	switch f.Name {
	case "Meta":
		return f.Type == metaType
	case "Other", "Errors":
		return true
	}
	return false
}

// isAnnotated reports whether t is some instantiation of Annotated[T]: a
// struct with exactly the fields (Value, Meta) in that shape. Checking
// structural shape instead of a type-parameter name lets this work for
// every instantiation without an exhaustive switch.
func isAnnotated(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() != 2 {
		return false
	}
	f0, f1 := t.Field(0), t.Field(1)
	return f0.Name == "Value" && f0.Type.Kind() == reflect.Ptr && f1.Name == "Meta" && f1.Type == metaType
}

// buildValue converts v into plain Go values (map[string]any, []any,
// string, float64, ...) ready for json.Marshal, dropping any Annotated
// field whose value is absent.
func buildValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	t := v.Type()

	switch {
	case t == reflect.TypeOf(Tags{}):
		// Deleted entries render as null rather than being dropped, so the
		// value tree's indices line up with the meta tree's.
		tags := v.Interface().(Tags)
		out := make([]any, 0, len(tags.Entries))
		for _, e := range tags.Entries {
			entry, ok := e.Get()
			if !ok {
				out = append(out, nil)
				continue
			}
			key, _ := entry.Key.Get()
			value, _ := entry.Value.Get()
			out = append(out, []any{key, value})
		}
		return out
	case t == reflect.TypeOf(Headers{}):
		headers := v.Interface().(Headers)
		out := make([]any, 0, len(headers.Entries))
		for _, e := range headers.Entries {
			entry, ok := e.Get()
			if !ok {
				out = append(out, nil)
				continue
			}
			name, _ := entry.Key.Get()
			value, _ := entry.Value.Get()
			out = append(out, []any{name, value})
		}
		return out
	case t == reflect.TypeOf(Contexts{}):
		contexts := v.Interface().(Contexts)
		if contexts.Entries == nil {
			return nil
		}
		out := make(map[string]any, len(contexts.Entries))
		for name, e := range contexts.Entries {
			ctx, ok := e.Get()
			if !ok {
				out[name] = nil
				continue
			}
			rendered, _ := buildValue(reflect.ValueOf(ctx)).(map[string]any)
			if rendered == nil {
				rendered = map[string]any{}
			}
			if kind := ctx.Kind(); kind != "" {
				rendered["type"] = kind
			}
			out[name] = rendered
		}
		return out
	case t == timeType:
		return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
	case t == eventIDType:
		return v.Interface().(EventID).String()
	case isAnnotated(t):
		inner := v.Field(0) // Value *T
		if inner.IsNil() {
			return nil
		}
		return buildValue(inner.Elem())
	}

	// Defer to any type's own MarshalJSON (e.g. Error's attribute
	// flattening) instead of decomposing it field-by-field.
	if rendered, ok := marshalerJSON(v); ok {
		return rendered
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return buildValue(v.Elem())

	case reflect.Struct:
		out := map[string]any{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if isBookkeepingField(f) {
				continue
			}
			rendered := buildValue(v.Field(i))
			if rendered == nil {
				continue
			}
			out[snakeCase(f.Name)] = rendered
		}
		if otherField := v.FieldByName("Other"); otherField.IsValid() {
			for _, entry := range mapEntries(otherField) {
				out[entry.key] = entry.value
			}
		}
		return out

	case reflect.Map:
		out := map[string]any{}
		for _, entry := range mapEntries(v) {
			out[entry.key] = entry.value
		}
		return out

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, buildValue(v.Index(i)))
		}
		return out

	default:
		return v.Interface()
	}
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// marshalerJSON delegates to v's own MarshalJSON when it implements
// json.Marshaler, so reflection doesn't have to re-derive encodings (like
// Error's attribute flattening) that already exist.
func marshalerJSON(v reflect.Value) (any, bool) {
	var marshaler json.Marshaler
	switch {
	case v.Type().Implements(jsonMarshalerType):
		marshaler, _ = v.Interface().(json.Marshaler)
	case v.CanAddr() && reflect.PointerTo(v.Type()).Implements(jsonMarshalerType):
		marshaler, _ = v.Addr().Interface().(json.Marshaler)
	default:
		return nil, false
	}
	raw, err := marshaler.MarshalJSON()
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

type kv struct {
	key   string
	value any
}

func mapEntries(v reflect.Value) []kv {
	if v.Kind() != reflect.Map || v.IsNil() {
		return nil
	}
	out := make([]kv, 0, v.Len())
	for _, k := range v.MapKeys() {
		out = append(out, kv{key: stringifyKey(k), value: buildValue(v.MapIndex(k))})
	}
	return out
}

func stringifyKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return strconv.FormatInt(k.Int(), 10)
}

// buildMeta mirrors buildValue's traversal but returns, at each position,
// either nil (nothing to report here or below) or a map using the same
// "" key convention the source format uses: "" holds this node's own
// {err, val, rem}, every other key holds a child's meta subtree.
func buildMeta(v reflect.Value) map[string]any {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()

	if isAnnotated(t) {
		metaField := v.Field(1).Interface().(Meta)
		var out map[string]any
		if !metaField.IsEmpty() {
			out = map[string]any{"": metaNode(metaField)}
		}
		inner := v.Field(0)
		if !inner.IsNil() {
			if child := buildMeta(inner.Elem()); child != nil {
				if out == nil {
					out = map[string]any{}
				}
				for k, val := range child {
					out[k] = val
				}
			}
		}
		return out
	}

	// Tags, Headers, and Contexts flatten their Entries field away in the
	// value tree (a bare array / name-keyed map), so their meta subtrees
	// must use the same addressing instead of the generic struct shape.
	switch {
	case t == reflect.TypeOf(Tags{}):
		return entriesMeta(v.Interface().(Tags).Entries)
	case t == reflect.TypeOf(Headers{}):
		return entriesMeta(v.Interface().(Headers).Entries)
	case t == reflect.TypeOf(Contexts{}):
		contexts := v.Interface().(Contexts)
		out := map[string]any{}
		for name, e := range contexts.Entries {
			if child := buildMeta(reflect.ValueOf(e)); child != nil {
				out[name] = child
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return buildMeta(v.Elem())

	case reflect.Struct:
		out := map[string]any{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if isBookkeepingField(f) {
				continue
			}
			if child := buildMeta(v.Field(i)); child != nil {
				out[snakeCase(f.Name)] = child
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := map[string]any{}
		for _, k := range v.MapKeys() {
			if child := buildMeta(v.MapIndex(k)); child != nil {
				out[stringifyKey(k)] = child
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case reflect.Slice, reflect.Array:
		out := map[string]any{}
		for i := 0; i < v.Len(); i++ {
			if child := buildMeta(v.Index(i)); child != nil {
				out[strconv.Itoa(i)] = child
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	default:
		return nil
	}
}

// entriesMeta renders the meta subtree for an annotated pair list (tags,
// headers), keyed by entry index.
func entriesMeta[T any](entries []Annotated[T]) map[string]any {
	out := map[string]any{}
	for i, e := range entries {
		if child := buildMeta(reflect.ValueOf(e)); child != nil {
			out[strconv.Itoa(i)] = child
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func metaNode(m Meta) map[string]any {
	node := map[string]any{}
	if len(m.Errors) > 0 {
		node["err"] = m.Errors
	}
	if m.HasOriginalValue() {
		// Render through the same reflection encoder as the value tree, so
		// a soft-deleted struct snapshots as its wire shape rather than as
		// Go field names.
		node["val"] = buildValue(reflect.ValueOf(m.OriginalValue))
	}
	if len(m.Remarks) > 0 {
		node["rem"] = m.Remarks
	}
	return node
}

// wireNameOverrides covers the handful of wire fields whose spelling does
// not follow the snake_case convention ("logentry", not "log_entry").
var wireNameOverrides = map[string]string{
	"LogEntry":     "logentry",
	"ExpectCT":     "expectct",
	"ExpectStaple": "expectstaple",
	"LineNo":       "lineno",
	"ColNo":        "colno",
}

// snakeCase converts an exported Go field name ("ServerName") to the
// lower_snake_case the wire schema uses ("server_name"), matching the field
// naming of the system this schema was ported from.
func snakeCase(name string) string {
	if override, ok := wireNameOverrides[name]; ok {
		return override
	}
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
