package normalize

import (
	"fmt"
	"strings"
)

// FieldAttrs declares per-field schema hints consulted by path-driven rules
// such as the PII scrubber and, in the future, selective trimming.
type FieldAttrs struct {
	MaxChars int
	MaxDepth int
	PII      PIIKind
}

// PIIKind classifies how sensitive a field is, for the scrubber's default
// redaction rules (internal/scrub).
type PIIKind int

const (
	PIINone PIIKind = iota
	PIIMaybe
	PIITrue
)

// ProcessingState is a persistent, cheaply-cloneable stack frame describing
// the walker's current position in the tree: which field or index led here,
// from which parent, with which schema hints.
type ProcessingState struct {
	parent *ProcessingState
	key    string // field name, or "" if this frame is a list index
	index  int    // list index, or -1 if this frame is a field name
	attrs  FieldAttrs
}

// Root returns the state for the top-level node, with no parent.
func Root() *ProcessingState {
	return &ProcessingState{index: -1}
}

// EnterField pushes a new state for a named struct field.
func (s *ProcessingState) EnterField(name string, attrs FieldAttrs) *ProcessingState {
	return &ProcessingState{parent: s, key: name, index: -1, attrs: attrs}
}

// EnterIndex pushes a new state for a list element.
func (s *ProcessingState) EnterIndex(i int, attrs FieldAttrs) *ProcessingState {
	return &ProcessingState{parent: s, index: i, attrs: attrs}
}

// Attrs returns the schema hints declared for the current position.
func (s *ProcessingState) Attrs() FieldAttrs {
	return s.attrs
}

// Parent returns the enclosing state, or nil at the root.
func (s *ProcessingState) Parent() *ProcessingState {
	return s.parent
}

// Path renders a dotted/bracketed diagnostic path from the root down to this
// state, e.g. "exception.values[0].stacktrace.frames[2].filename".
func (s *ProcessingState) Path() string {
	if s == nil || (s.parent == nil && s.key == "" && s.index < 0) {
		return ""
	}
	var segments []string
	for cur := s; cur != nil && cur.parent != nil; cur = cur.parent {
		if cur.index >= 0 {
			segments = append(segments, fmt.Sprintf("[%d]", cur.index))
		} else {
			segments = append(segments, cur.key)
		}
	}
	// segments were collected leaf-to-root; reverse and join with dots,
	// except before index segments which fuse onto the prior token.
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if strings.HasPrefix(seg, "[") {
			b.WriteString(seg)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
