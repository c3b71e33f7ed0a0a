// Package document defines how configuration sources read structured objects
// out of wiki documents, and ships an in-memory store for tests and embedding.
//
// A document carries at most one object per class. The object's fields are an
// ordered set of named values; order is preserved so key listings are stable.
package document

// Record is the field set of one structured object.
type Record struct {
	names  []string
	values map[string]any
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordOf builds a record from alternating name, value pairs. A trailing
// name without a value is ignored.
func RecordOf(pairs ...any) *Record {
	r := NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Field returns the value stored under name.
func (r *Record) Field(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// FieldNames returns field names in insertion order.
func (r *Record) FieldNames() []string {
	if r == nil {
		return []string{}
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Set stores value under name. Updating an existing field keeps its position.
func (r *Record) Set(name string, value any) {
	if _, exists := r.values[name]; !exists {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Remove deletes the field and reports whether it existed.
func (r *Record) Remove(name string) bool {
	if _, exists := r.values[name]; !exists {
		return false
	}
	delete(r.values, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a copy that shares no state with r. Values are copied
// shallowly.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		names:  make([]string, len(r.names)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.names, r.names)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}
