package detection

import (
	"net/http"
	"sort"
	"strings"
)

// HeaderSet is a read-only view of response headers keyed by lowercased name
type HeaderSet map[string]string

// NewHeaderSet builds a HeaderSet from an http.Header. Repeated values are
// joined with ", ", matching how browsers expose them.
func NewHeaderSet(h http.Header) HeaderSet {
	hs := make(HeaderSet, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		joined := strings.Join(values, ", ")
		if prev, ok := hs[key]; ok {
			joined = prev + ", " + joined
		}
		hs[key] = joined
	}
	return hs
}

// HeaderSetFromMap builds a HeaderSet from plain name/value pairs
func HeaderSetFromMap(m map[string]string) HeaderSet {
	hs := make(HeaderSet, len(m))
	for name, value := range m {
		hs[strings.ToLower(name)] = value
	}
	return hs
}

// Get returns the value for name, or "" when absent
func (h HeaderSet) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Lookup returns the value for name and whether it was present
func (h HeaderSet) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// Has reports whether name is present, even with an empty value
func (h HeaderSet) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Names returns the header names in sorted order
func (h HeaderSet) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
