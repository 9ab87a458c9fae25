// Package normalize implements the event normalization pipeline: it accepts a
// semi-structured telemetry event, validates and repairs it against the
// domain schema, enriches it with derived attributes, and emits a canonical,
// annotated representation where every malformed or dropped field carries
// machine-readable error metadata.
package normalize

import "encoding/json"

// Value is the open, dynamically-typed JSON node used wherever the schema
// allows arbitrary client-supplied data (extra, other, unknown headers).
// It holds whatever encoding/json produces for that position: nil, bool,
// float64, string, []any or map[string]any.
type Value = any

// ErrorKind is the closed tag set of normalization error categories.
type ErrorKind string

const (
	ErrorInvalidData      ErrorKind = "invalid_data"
	ErrorMissingAttribute ErrorKind = "missing_attribute"
	ErrorValueTooLong     ErrorKind = "value_too_long"
	ErrorFutureTimestamp  ErrorKind = "future_timestamp"
	ErrorPastTimestamp    ErrorKind = "past_timestamp"
	ErrorNonEmptyExpected ErrorKind = "non_empty_value_expected"
	ErrorInvalid          ErrorKind = "invalid"
)

// Error is a single annotation attached to a leaf or container describing
// why it was rejected, truncated, or otherwise modified.
type Error struct {
	Kind       ErrorKind      `json:"type"`
	Attributes map[string]any `json:"-"`
}

// NewError constructs an Error with no attributes.
func NewError(kind ErrorKind) Error {
	return Error{Kind: kind}
}

// Invalid constructs an Error of kind ErrorInvalid carrying a free-form
// reason string.
func Invalid(reason string) Error {
	return Error{Kind: ErrorInvalid, Attributes: map[string]any{"reason": reason}}
}

// MissingAttribute constructs an Error of kind ErrorMissingAttribute naming
// the attribute(s) that were missing. Passing more than one name means any
// one of them would have satisfied the rule (e.g. exception type/value).
func MissingAttribute(attribute ...string) Error {
	if len(attribute) == 1 {
		return Error{Kind: ErrorMissingAttribute, Attributes: map[string]any{"attribute": attribute[0]}}
	}
	return Error{Kind: ErrorMissingAttribute, Attributes: map[string]any{"attribute": attribute}}
}

// NonEmptyExpected constructs an Error of kind ErrorNonEmptyExpected.
func NonEmptyExpected() Error {
	return Error{Kind: ErrorNonEmptyExpected}
}

// With attaches an attribute to a copy of e and returns it, for chaining at
// the call site.
func (e Error) With(key string, value any) Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any, 1)
	}
	e.Attributes[key] = value
	return e
}

// MarshalJSON renders the error the way the _meta tree expects: the kind tag
// plus any attributes flattened alongside it.
func (e Error) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		out[k] = v
	}
	out["type"] = string(e.Kind)
	return json.Marshal(out)
}

// Meta carries the error annotations and audit trail for one node of the
// event tree. A node that was accepted without incident has a zero Meta.
type Meta struct {
	Errors        []Error  `json:"err,omitempty"`
	OriginalValue Value    `json:"val,omitempty"`
	Remarks       []string `json:"rem,omitempty"`

	// originalValueSet distinguishes "no original value recorded" from
	// "the original value was JSON null", which OriginalValue alone cannot.
	originalValueSet bool
}

// IsEmpty reports whether this Meta carries no information worth emitting.
func (m Meta) IsEmpty() bool {
	return len(m.Errors) == 0 && !m.originalValueSet && len(m.Remarks) == 0
}

// HasErrors reports whether any error has been recorded on this node.
func (m Meta) HasErrors() bool {
	return len(m.Errors) > 0
}

// AddError appends an error to the meta's error list.
func (m *Meta) AddError(err Error) {
	m.Errors = append(m.Errors, err)
}

// SetOriginalValue records the raw value that is about to be cleared, so
// that a debugging client can recover what was rejected.
func (m *Meta) SetOriginalValue(v Value) {
	m.OriginalValue = v
	m.originalValueSet = true
}

// HasOriginalValue reports whether an original value was recorded.
func (m Meta) HasOriginalValue() bool {
	return m.originalValueSet
}

// ProcessingAction is the outcome a visitor hook returns for the node it just
// inspected. It is carried as a Go error so that hooks can return it
// directly from an `if` guard, and so the walker can distinguish it from an
// unrelated failure via errors.Is / type assertion.
type ProcessingAction int

const (
	// Keep retains the value as-is.
	Keep ProcessingAction = iota
	// DeleteValueSoft clears the value, moves it into Meta.OriginalValue,
	// and keeps any recorded errors.
	DeleteValueSoft
	// DeleteValueHard clears the value and discards the original; only the
	// recorded errors survive.
	DeleteValueHard
)

func (a ProcessingAction) Error() string {
	switch a {
	case DeleteValueSoft:
		return "delete value (soft)"
	case DeleteValueHard:
		return "delete value (hard)"
	default:
		return "keep"
	}
}

// ProcessingResult is returned by every visitor hook: nil means Keep,
// otherwise it is a ProcessingAction describing how the walker should clear
// the node's parent slot.
type ProcessingResult = error

// Annotated is the universal leaf of the event tree: an optional value of
// type T plus metadata describing what happened to it.
type Annotated[T any] struct {
	Value *T
	Meta  Meta
}

// NewAnnotated wraps v as a present value with empty metadata.
func NewAnnotated[T any](v T) Annotated[T] {
	return Annotated[T]{Value: &v}
}

// Empty returns an annotated value with no value and no metadata.
func Empty[T any]() Annotated[T] {
	return Annotated[T]{}
}

// FromError returns an annotated value with no value, carrying err and
// (if original is non-nil) the original rejected value.
func FromError[T any](err Error, original Value) Annotated[T] {
	a := Annotated[T]{}
	a.Meta.AddError(err)
	if original != nil {
		a.Meta.SetOriginalValue(original)
	}
	return a
}

// HasValue reports whether the annotated slot currently holds a value.
func (a Annotated[T]) HasValue() bool {
	return a.Value != nil
}

// Get returns the value and whether it was present.
func (a Annotated[T]) Get() (T, bool) {
	if a.Value == nil {
		var zero T
		return zero, false
	}
	return *a.Value, true
}

// SetValue replaces the slot's value, leaving Meta untouched.
func (a *Annotated[T]) SetValue(v *T) {
	a.Value = v
}

// GetOrInsertWith lazily materializes the value using fn if it is currently
// absent, and returns a pointer to it either way.
func (a *Annotated[T]) GetOrInsertWith(fn func() T) *T {
	if a.Value == nil {
		v := fn()
		a.Value = &v
	}
	return a.Value
}

// Apply invokes fn(&value, &meta) only if a value is present. If fn returns
// a ProcessingAction, Apply clears the value according to that action and
// returns it to the caller so outer code can propagate it further (e.g. to
// delete the parent slot too).
func (a *Annotated[T]) Apply(fn func(v *T, meta *Meta) ProcessingResult) ProcessingResult {
	if a.Value == nil {
		return nil
	}
	result := fn(a.Value, &a.Meta)
	if result == nil {
		return nil
	}
	action, ok := result.(ProcessingAction)
	if !ok {
		return result
	}
	switch action {
	case DeleteValueSoft:
		var original Value = *a.Value
		a.Meta.SetOriginalValue(original)
		a.Value = nil
	case DeleteValueHard:
		a.Value = nil
	}
	return action
}

// Clear applies action to this annotated slot directly, without invoking a
// hook, used by the walker when a child hook itself returned an action.
func (a *Annotated[T]) Clear(action ProcessingAction, original Value) {
	switch action {
	case DeleteValueSoft:
		if original != nil {
			a.Meta.SetOriginalValue(original)
		} else if a.Value != nil {
			a.Meta.SetOriginalValue(*a.Value)
		}
		a.Value = nil
	case DeleteValueHard:
		a.Value = nil
	}
}

// IsEmpty reports whether the annotated value is absent or holds its
// type's zero value, so "" counts as empty for string fields.
func IsEmpty[T comparable](a Annotated[T]) bool {
	if a.Value == nil {
		return true
	}
	var zero T
	return *a.Value == zero
}
