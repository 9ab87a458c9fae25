package normalize

// TagEntry is one (key, value) pair inside Event.Tags. It round-trips as a
// two-element JSON array, e.g. `["environment", "production"]`.
type TagEntry struct {
	Key   Annotated[string]
	Value Annotated[string]
}

// Tags is the ordered list of tag entries. Key uniqueness is enforced by
// normalization (first occurrence wins), not by this type.
type Tags struct {
	Entries []Annotated[TagEntry]
}

// Get returns the value for key, and whether it was found. Only present
// (non soft/hard-deleted) entries are considered.
func (t Tags) Get(key string) (string, bool) {
	for _, e := range t.Entries {
		entry, ok := e.Get()
		if !ok {
			continue
		}
		k, ok := entry.Key.Get()
		if !ok || k != key {
			continue
		}
		v, ok := entry.Value.Get()
		if !ok {
			return "", false
		}
		return v, true
	}
	return "", false
}

// Remove deletes the first present entry matching key and returns its
// value, used to migrate the legacy environment tag into the top-level
// field.
func (t *Tags) Remove(key string) (string, bool) {
	for i, e := range t.Entries {
		entry, ok := e.Get()
		if !ok {
			continue
		}
		k, ok := entry.Key.Get()
		if !ok || k != key {
			continue
		}
		v, _ := entry.Value.Get()
		t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
		return v, true
	}
	return "", false
}

// Set inserts or replaces the entry for key with value, used for moving
// ServerName/Site into the tag list.
func (t *Tags) Set(key, value string) {
	for i, e := range t.Entries {
		entry, ok := e.Get()
		if ok {
			if k, ok := entry.Key.Get(); ok && k == key {
				t.Entries[i] = NewAnnotated(TagEntry{
					Key:   NewAnnotated(key),
					Value: NewAnnotated(value),
				})
				return
			}
		}
	}
	t.Entries = append(t.Entries, NewAnnotated(TagEntry{
		Key:   NewAnnotated(key),
		Value: NewAnnotated(value),
	}))
}
