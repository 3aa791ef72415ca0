package protocol

import "strings"

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Header is an insertion-ordered header map. Names keep the case they were
// first set with; lookups and replacements ignore case.
type Header struct {
	fields []Field
}

// Set stores value under name. An existing field with the same name (in any
// case) is replaced in place, keeping its position.
func (h *Header) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].Value = value
		return
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (h *Header) Get(name string) (string, bool) {
	if i := h.index(name); i >= 0 {
		return h.fields[i].Value, true
	}
	return "", false
}

// Has reports whether name is present.
func (h *Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Del removes name if present.
func (h *Header) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Len returns the number of fields.
func (h *Header) Len() int {
	return len(h.fields)
}

// Fields returns a copy of the fields in insertion order.
func (h *Header) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

func (h *Header) index(name string) int {
	for i, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}
