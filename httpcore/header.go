package httpcore

import "strings"

// Header is a case-insensitive mapping from header name to value, per §3.
// Request and Response share this shape. Insertion order is preserved so
// the response serializer can emit headers "in insertion order" per §4.E;
// request headers don't care about order but get it for free.
type Header struct {
	m     map[string]int // folded name -> index into order
	order []headerEntry
}

type headerEntry struct {
	name  string // canonical (as first seen) casing, for Writer output
	value string
}

func newHeader() Header {
	return Header{m: make(map[string]int, 8)}
}

func foldKey(name string) string { return strings.ToLower(name) }

// Add appends value to any existing value for name, joining with ", " per
// RFC 7230 §3.2.2, as repeated header lines on the wire are folded.
func (h *Header) Add(name, value string) {
	if h.m == nil {
		h.m = make(map[string]int, 8)
	}
	key := foldKey(name)
	if i, ok := h.m[key]; ok {
		h.order[i].value = h.order[i].value + ", " + value
		return
	}
	h.m[key] = len(h.order)
	h.order = append(h.order, headerEntry{name: name, value: value})
}

// Set overwrites any existing value for name, keeping its original
// position if it was already present.
func (h *Header) Set(name, value string) {
	if h.m == nil {
		h.m = make(map[string]int, 8)
	}
	key := foldKey(name)
	if i, ok := h.m[key]; ok {
		h.order[i] = headerEntry{name: name, value: value}
		return
	}
	h.m[key] = len(h.order)
	h.order = append(h.order, headerEntry{name: name, value: value})
}

// Get returns the value for name, or "" if absent.
func (h Header) Get(name string) string {
	if h.m == nil {
		return ""
	}
	i, ok := h.m[foldKey(name)]
	if !ok {
		return ""
	}
	return h.order[i].value
}

// Has reports whether name is present at all.
func (h Header) Has(name string) bool {
	if h.m == nil {
		return false
	}
	_, ok := h.m[foldKey(name)]
	return ok
}

// Del removes name.
func (h *Header) Del(name string) {
	if h.m == nil {
		return
	}
	i, ok := h.m[foldKey(name)]
	if !ok {
		return
	}
	delete(h.m, foldKey(name))
	h.order = append(h.order[:i], h.order[i+1:]...)
	for k, v := range h.m {
		if v > i {
			h.m[k] = v - 1
		}
	}
}

// Len reports the number of distinct header names.
func (h Header) Len() int { return len(h.order) }

// Each calls fn once per header in insertion order.
func (h Header) Each(fn func(name, value string)) {
	for _, e := range h.order {
		fn(e.name, e.value)
	}
}
