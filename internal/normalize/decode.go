package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Decode parses raw as a telemetry event document. Decoding never rejects
// the document for a malformed field: anything that does not coerce
// cleanly is recorded as an Invalid error on that field's Meta and left
// absent, matching the "no-crash" contract normalization as a whole
// upholds. Only a structurally broken JSON payload (not an object, or not
// valid JSON at all) returns a non-nil error.
func Decode(raw []byte) (*Event, error) {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("normalize: decode event: %w", err)
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalize: event document must be a JSON object")
	}

	event := &Event{}
	fillStruct(reflect.ValueOf(event).Elem(), obj)
	return event, nil
}

// fillStruct populates dst's exported fields from obj, matching each field
// by its snake_case wire name. Anything left over lands in dst's Other map
// if it has one.
func fillStruct(dst reflect.Value, obj map[string]any) {
	t := dst.Type()
	consumed := make(map[string]bool, len(obj))

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if isBookkeepingField(f) {
			continue
		}
		key := snakeCase(f.Name)
		raw, ok := obj[key]
		consumed[key] = true
		if !ok {
			continue
		}
		fillValue(dst.Field(i), raw)
	}

	other := dst.FieldByName("Other")
	if other.IsValid() && other.Kind() == reflect.Map {
		leftover := map[string]Value{}
		for k, v := range obj {
			if !consumed[k] {
				leftover[k] = v
			}
		}
		if len(leftover) > 0 {
			other.Set(reflect.ValueOf(leftover))
		}
	}
}

// fillValue decodes raw into dst, where dst's type may be an Annotated[T],
// a nested struct, a slice, a map, or a schema scalar. It never panics on
// mismatched input: a value that cannot be coerced to dst's type is simply
// left unset (callers that need to flag it record their own Errors, since
// decode has no Meta position to attach validation concerns to once the
// annotated wrapper itself is what is being populated here).
func fillValue(dst reflect.Value, raw any) {
	if raw == nil {
		return
	}
	t := dst.Type()

	if isAnnotated(t) {
		innerType := t.Field(0).Type.Elem()
		inner := reflect.New(innerType).Elem()
		ok := decodeInto(inner, raw)
		if ok {
			dst.Field(0).Set(inner.Addr())
		} else {
			var m Meta
			m.AddError(NewError(ErrorInvalidData))
			m.SetOriginalValue(raw)
			dst.Field(1).Set(reflect.ValueOf(m))
		}
		return
	}

	decodeInto(dst, raw)
}

// decodeInto attempts to coerce raw into dst (which is NOT an Annotated
// wrapper; that case is peeled off by fillValue). Returns false if raw's
// shape cannot be coerced to dst's type.
func decodeInto(dst reflect.Value, raw any) bool {
	t := dst.Type()

	switch {
	case t == reflect.TypeOf(Tags{}):
		tags, ok := decodeTags(raw)
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(tags))
		return true

	case t == reflect.TypeOf(Headers{}):
		headers, ok := decodeHeaders(raw)
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(headers))
		return true

	case t == reflect.TypeOf(Contexts{}):
		contexts, ok := decodeContexts(raw)
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(contexts))
		return true

	case t == timeType:
		ts, ok := coerceTimestamp(raw)
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(ts))
		return true

	case t == eventIDType:
		s, ok := raw.(string)
		if !ok {
			return false
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return false
		}
		dst.Set(reflect.ValueOf(EventID(id)))
		return true
	}

	switch t.Kind() {
	case reflect.String:
		switch v := raw.(type) {
		case string:
			dst.SetString(v)
			return true
		case float64, bool:
			dst.SetString(fmt.Sprintf("%v", v))
			return true
		}
		return false

	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return false
		}
		dst.SetBool(b)
		return true

	case reflect.Float32, reflect.Float64:
		f, ok := raw.(float64)
		if !ok {
			return false
		}
		dst.SetFloat(f)
		return true

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := raw.(float64)
		if !ok {
			return false
		}
		dst.SetInt(int64(f))
		return true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := raw.(float64)
		if !ok || f < 0 {
			return false
		}
		dst.SetUint(uint64(f))
		return true

	case reflect.Interface:
		return decodeInterface(dst, raw)

	case reflect.Ptr:
		elem := reflect.New(t.Elem())
		if !decodeInto(elem.Elem(), raw) {
			return false
		}
		dst.Set(elem)
		return true

	case reflect.Slice:
		arr, ok := raw.([]any)
		if !ok {
			return false
		}
		out := reflect.MakeSlice(t, 0, len(arr))
		for _, item := range arr {
			elem := reflect.New(t.Elem()).Elem()
			fillValue(elem, item)
			out = reflect.Append(out, elem)
		}
		dst.Set(out)
		return true

	case reflect.Array:
		arr, ok := raw.([]any)
		if !ok {
			return false
		}
		for i := 0; i < dst.Len() && i < len(arr); i++ {
			decodeInto(dst.Index(i), arr[i])
		}
		return true

	case reflect.Map:
		obj, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		out := reflect.MakeMapWithSize(t, len(obj))
		for k, v := range obj {
			elem := reflect.New(t.Elem()).Elem()
			fillValue(elem, v)
			out.SetMapIndex(reflect.ValueOf(k), elem)
		}
		dst.Set(out)
		return true

	case reflect.Struct:
		obj, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		fillStruct(dst, obj)
		return true

	default:
		return false
	}
}

// decodeTags accepts both wire shapes a tag list can arrive in: an ordered
// list of [key, value] pairs (preserves client-declared order, needed for
// "first occurrence wins" dedup) or a plain {"key": "value"} object.
func decodeTags(raw any) (Tags, bool) {
	var tags Tags
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			key, _ := pair[0].(string)
			value, _ := pair[1].(string)
			tags.Entries = append(tags.Entries, NewAnnotated(TagEntry{
				Key:   NewAnnotated(key),
				Value: NewAnnotated(value),
			}))
		}
		return tags, true
	case map[string]any:
		for key, val := range v {
			value, _ := val.(string)
			tags.Entries = append(tags.Entries, NewAnnotated(TagEntry{
				Key:   NewAnnotated(key),
				Value: NewAnnotated(value),
			}))
		}
		return tags, true
	}
	return tags, false
}

// decodeHeaders accepts the same two shapes as decodeTags: an ordered pair
// list or a flat object, matching how HTTP headers travel on either wire
// form SDKs use.
func decodeHeaders(raw any) (Headers, bool) {
	var headers Headers
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			name, _ := pair[0].(string)
			value, _ := pair[1].(string)
			headers.Entries = append(headers.Entries, NewAnnotated(HeaderEntry{
				Key:   NewAnnotated(name),
				Value: NewAnnotated(value),
			}))
		}
		return headers, true
	case map[string]any:
		for name, val := range v {
			value, _ := val.(string)
			headers.Entries = append(headers.Entries, NewAnnotated(HeaderEntry{
				Key:   NewAnnotated(name),
				Value: NewAnnotated(value),
			}))
		}
		return headers, true
	}
	return headers, false
}

// coerceTimestamp accepts either a seconds-since-epoch number or an
// RFC3339/ISO-8601 string, the two timestamp forms SDKs send.
func coerceTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case float64:
		secs := int64(v)
		nanos := int64((v - float64(secs)) * 1e9)
		return time.Unix(secs, nanos).UTC(), true
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return coerceTimestamp(n)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// decodeInterface handles the two closed-interface schema types, Context
// and DebugImage, by reading their discriminating "type" field and
// constructing the matching concrete struct.
func decodeInterface(dst reflect.Value, raw any) bool {
	switch dst.Type() {
	case reflect.TypeOf((*Context)(nil)).Elem():
		ctx, ok := decodeContext(raw, "")
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(ctx))
		return true
	case reflect.TypeOf((*DebugImage)(nil)).Elem():
		img, ok := decodeDebugImage(raw)
		if !ok {
			return false
		}
		dst.Set(reflect.ValueOf(img))
		return true
	}
	// A bare Value (any) field: keep the decoded JSON scalar/object as-is.
	dst.Set(reflect.ValueOf(raw))
	return true
}

// decodeContexts decodes the event's context map. The wire shape keys each
// context by name; a context without an explicit "type" field is typed
// after its key ({"os": {...}} is an OS context), matching the protocol's
// name-implies-type convention.
func decodeContexts(raw any) (Contexts, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Contexts{}, false
	}
	var contexts Contexts
	contexts.Entries = make(map[string]Annotated[Context], len(obj))
	for name, item := range obj {
		entry, ok := item.(map[string]any)
		if !ok {
			contexts.Entries[name] = FromError[Context](NewError(ErrorInvalidData), item)
			continue
		}
		ctx, _ := decodeContext(entry, name)
		contexts.Entries[name] = NewAnnotated(ctx)
	}
	return contexts, true
}

func decodeContext(raw any, fallbackKind string) (Context, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	kind, _ := obj["type"].(string)
	if kind == "" {
		kind = fallbackKind
	}

	var ctx Context
	switch kind {
	case "device":
		ctx = &DeviceContext{}
	case "os":
		ctx = &OSContext{}
	case "runtime":
		ctx = &RuntimeContext{}
	case "app":
		ctx = &AppContext{}
	case "browser":
		ctx = &BrowserContext{}
	case "gpu":
		ctx = &GPUContext{}
	case "trace":
		ctx = &TraceContext{}
	default:
		other := make(map[string]Value, len(obj))
		for k, v := range obj {
			if k != "type" {
				other[k] = v
			}
		}
		return &OtherContext{Type: kind, Other: other}, true
	}

	fillStruct(reflect.ValueOf(ctx).Elem(), obj)
	return ctx, true
}

func decodeDebugImage(raw any) (DebugImage, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	kind, _ := obj["type"].(string)

	switch kind {
	case "apple":
		img := AppleDebugImage{}
		fillStruct(reflect.ValueOf(&img).Elem(), obj)
		return img, true
	case "proguard":
		img := ProGuardDebugImage{}
		fillStruct(reflect.ValueOf(&img).Elem(), obj)
		return img, true
	default:
		other := make(map[string]Value, len(obj))
		for k, v := range obj {
			if k != "type" {
				other[k] = v
			}
		}
		return OtherDebugImage{Other: other}, true
	}
}
