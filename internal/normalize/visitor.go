package normalize

// Processor is the capability set a tree walker dispatches on. A concrete
// processor (the normalizer, the PII scrubber) implements only the hooks it
// cares about and embeds BaseProcessor for the rest, which default to Keep.
//
// Each hook receives the node, its meta, and the state at that position, and
// returns nil (Keep) or a ProcessingAction. A hook that wants to recurse
// into its node's children calls the matching walkXxxChildren function,
// passing itself (as the full Processor) so that grandchildren dispatch
// back through the concrete processor's overrides rather than the base's
// no-ops: the same "virtual dispatch through self" the walker relies on
// in the source this is ported from.
type Processor interface {
	ProcessEvent(event *Event, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessException(exc *Exception, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessFrame(frame *Frame, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessStacktrace(st *Stacktrace, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessRequest(req *Request, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessUser(user *User, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessBreadcrumb(bc *Breadcrumb, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessContext(ctx Context, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessTraceContext(tc *TraceContext, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessLogEntry(entry *LogEntry, meta *Meta, state *ProcessingState) ProcessingResult
	ProcessDebugImage(img DebugImage, meta *Meta, state *ProcessingState) ProcessingResult
}

// BaseProcessor implements every hook as Keep, so embedders only override
// what they actually change.
type BaseProcessor struct{}

func (BaseProcessor) ProcessEvent(*Event, *Meta, *ProcessingState) ProcessingResult { return nil }
func (BaseProcessor) ProcessException(*Exception, *Meta, *ProcessingState) ProcessingResult {
	return nil
}
func (BaseProcessor) ProcessFrame(*Frame, *Meta, *ProcessingState) ProcessingResult { return nil }
func (BaseProcessor) ProcessStacktrace(*Stacktrace, *Meta, *ProcessingState) ProcessingResult {
	return nil
}
func (BaseProcessor) ProcessRequest(*Request, *Meta, *ProcessingState) ProcessingResult { return nil }
func (BaseProcessor) ProcessUser(*User, *Meta, *ProcessingState) ProcessingResult       { return nil }
func (BaseProcessor) ProcessBreadcrumb(*Breadcrumb, *Meta, *ProcessingState) ProcessingResult {
	return nil
}
func (BaseProcessor) ProcessContext(Context, *Meta, *ProcessingState) ProcessingResult { return nil }
func (BaseProcessor) ProcessTraceContext(*TraceContext, *Meta, *ProcessingState) ProcessingResult {
	return nil
}
func (BaseProcessor) ProcessLogEntry(*LogEntry, *Meta, *ProcessingState) ProcessingResult {
	return nil
}
func (BaseProcessor) ProcessDebugImage(DebugImage, *Meta, *ProcessingState) ProcessingResult {
	return nil
}

// WalkEventChildren is the exported entrypoint external processors (e.g.
// the PII scrubber in package scrub) use to recurse into an event's
// children from their own ProcessEvent hook, since the package-local
// walker functions aren't visible outside normalize.
func WalkEventChildren(p Processor, event *Event, state *ProcessingState) {
	walkEventChildren(p, event, state)
}

// walkEventChildren is process_child_values for Event: it visits, in
// declaration order, every sub-tree that has its own hook. Called at most
// once per event, per the traversal contract.
func walkEventChildren(p Processor, event *Event, state *ProcessingState) {
	event.LogEntry.Apply(func(v *LogEntry, meta *Meta) ProcessingResult {
		return p.ProcessLogEntry(v, meta, state.EnterField("logentry", FieldAttrs{}))
	})

	event.Request.Apply(func(v *Request, meta *Meta) ProcessingResult {
		return p.ProcessRequest(v, meta, state.EnterField("request", FieldAttrs{}))
	})

	event.User.Apply(func(v *User, meta *Meta) ProcessingResult {
		return p.ProcessUser(v, meta, state.EnterField("user", FieldAttrs{PII: PIITrue}))
	})

	event.Contexts.Apply(func(v *Contexts, meta *Meta) ProcessingResult {
		walkContextsChildren(p, v, state.EnterField("contexts", FieldAttrs{}))
		return nil
	})

	event.Breadcrumbs.Apply(func(v *Values[Breadcrumb], meta *Meta) ProcessingResult {
		walkBreadcrumbsChildren(p, v, state.EnterField("breadcrumbs", FieldAttrs{}))
		return nil
	})

	event.Exception.Apply(func(v *Values[Exception], meta *Meta) ProcessingResult {
		walkExceptionsChildren(p, v, state.EnterField("exception", FieldAttrs{}))
		return nil
	})

	event.Stacktrace.Apply(func(v *Stacktrace, meta *Meta) ProcessingResult {
		return p.ProcessStacktrace(v, meta, state.EnterField("stacktrace", FieldAttrs{}))
	})

	event.DebugMeta.Apply(func(v *DebugMeta, meta *Meta) ProcessingResult {
		walkDebugImagesChildren(p, v, state.EnterField("debug_meta", FieldAttrs{}))
		return nil
	})
}

func walkDebugImagesChildren(p Processor, debugMeta *DebugMeta, state *ProcessingState) {
	images, ok := debugMeta.Images.Get()
	if !ok {
		return
	}
	childState := state.EnterField("images", FieldAttrs{})
	for i := range images {
		entry := &images[i]
		imgState := childState.EnterIndex(i, FieldAttrs{})
		entry.Apply(func(v *DebugImage, meta *Meta) ProcessingResult {
			return p.ProcessDebugImage(*v, meta, imgState)
		})
	}
	debugMeta.Images.SetValue(&images)
}

func walkContextsChildren(p Processor, contexts *Contexts, state *ProcessingState) {
	for name, entry := range contexts.Entries {
		entry := entry
		childState := state.EnterField(name, FieldAttrs{})
		entry.Apply(func(v *Context, meta *Meta) ProcessingResult {
			if tc, ok := (*v).(*TraceContext); ok {
				return p.ProcessTraceContext(tc, meta, childState)
			}
			return p.ProcessContext(*v, meta, childState)
		})
		contexts.Entries[name] = entry
	}
}

func walkBreadcrumbsChildren(p Processor, values *Values[Breadcrumb], state *ProcessingState) {
	for i := range values.Values {
		entry := &values.Values[i]
		childState := state.EnterIndex(i, FieldAttrs{})
		entry.Apply(func(v *Breadcrumb, meta *Meta) ProcessingResult {
			return p.ProcessBreadcrumb(v, meta, childState)
		})
	}
}

func walkExceptionsChildren(p Processor, values *Values[Exception], state *ProcessingState) {
	for i := range values.Values {
		entry := &values.Values[i]
		childState := state.EnterIndex(i, FieldAttrs{})
		entry.Apply(func(v *Exception, meta *Meta) ProcessingResult {
			return p.ProcessException(v, meta, childState)
		})
	}
}

// walkExceptionChildren is process_child_values for Exception: its only
// structured child is the stacktrace.
func walkExceptionChildren(p Processor, exc *Exception, state *ProcessingState) {
	exc.Stacktrace.Apply(func(v *Stacktrace, meta *Meta) ProcessingResult {
		return p.ProcessStacktrace(v, meta, state.EnterField("stacktrace", FieldAttrs{}))
	})
}

// walkStacktraceChildren is process_child_values for Stacktrace: its frames,
// oldest call first.
func walkStacktraceChildren(p Processor, st *Stacktrace, state *ProcessingState) {
	frames, ok := st.Frames.Get()
	if !ok {
		return
	}
	for i := range frames {
		entry := &frames[i]
		childState := state.EnterIndex(i, FieldAttrs{})
		entry.Apply(func(v *Frame, meta *Meta) ProcessingResult {
			return p.ProcessFrame(v, meta, childState)
		})
	}
	st.Frames.SetValue(&frames)
}
