package restclient

import (
	"slices"
	"sort"
	"strings"
)

// StringMap is the declaration form of a set of named values, used for
// default headers, static endpoint headers and NamedValues initializers.
type StringMap map[string]string

// NamedValues is an ordered, case-sensitive collection of string values
// associated to string keys. A key holds either a single value or a list
// of values; a single value is stored as a one-element list.
//
// Keys keep their insertion order, which makes query strings produced from
// a NamedValues deterministic. NamedValues is not safe for concurrent
// mutation; the binding engine builds a fresh one for every request.
type NamedValues struct {
	keys   []string
	values map[string][]string
}

// NewNamedValues creates a collection holding a copy of the initializer.
// Initializer keys are inserted in sorted order. Mutating the initializer
// afterwards does not affect the collection.
func NewNamedValues(init StringMap) *NamedValues {
	nv := &NamedValues{values: make(map[string][]string, len(init))}

	keys := make([]string, 0, len(init))
	for k := range init {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		nv.Set(k, init[k])
	}
	return nv
}

// Set adds or replaces the value associated with key.
func (nv *NamedValues) Set(key, value string) {
	nv.SetList(key, []string{value})
}

// SetList adds or replaces the list of values associated with key.
// The slice is copied.
func (nv *NamedValues) SetList(key string, values []string) {
	if nv.values == nil {
		nv.values = make(map[string][]string)
	}
	if _, ok := nv.values[key]; !ok {
		nv.keys = append(nv.keys, key)
	}
	nv.values[key] = slices.Clone(values)
}

// Get returns the string form of the value associated with key.
// List values are joined with a comma.
func (nv *NamedValues) Get(key string) (string, bool) {
	if nv == nil {
		return "", false
	}
	v, ok := nv.values[key]
	if !ok {
		return "", false
	}
	return strings.Join(v, ","), true
}

// GetList returns a copy of the values associated with key.
func (nv *NamedValues) GetList(key string) ([]string, bool) {
	if nv == nil {
		return nil, false
	}
	v, ok := nv.values[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Contains reports whether key is present in the collection.
func (nv *NamedValues) Contains(key string) bool {
	if nv == nil {
		return false
	}
	_, ok := nv.values[key]
	return ok
}

// Remove deletes key from the collection. Removing a missing key is a no-op.
func (nv *NamedValues) Remove(key string) {
	if nv == nil {
		return
	}
	if _, ok := nv.values[key]; !ok {
		return
	}
	delete(nv.values, key)
	nv.keys = slices.DeleteFunc(nv.keys, func(k string) bool { return k == key })
}

// Len returns the number of distinct keys.
func (nv *NamedValues) Len() int {
	if nv == nil {
		return 0
	}
	return len(nv.keys)
}

// Keys returns the keys in insertion order.
func (nv *NamedValues) Keys() []string {
	if nv == nil {
		return nil
	}
	return slices.Clone(nv.keys)
}

// Values returns a deep copy of the whole mapping.
func (nv *NamedValues) Values() map[string][]string {
	out := make(map[string][]string, nv.Len())
	if nv == nil {
		return out
	}
	for k, v := range nv.values {
		out[k] = slices.Clone(v)
	}
	return out
}

// Clone returns an independent copy preserving key order.
func (nv *NamedValues) Clone() *NamedValues {
	out := &NamedValues{values: make(map[string][]string, nv.Len())}
	if nv == nil {
		return out
	}
	for _, k := range nv.keys {
		out.SetList(k, nv.values[k])
	}
	return out
}

// merge overlays src onto nv; colliding keys take src's value.
func (nv *NamedValues) merge(src StringMap) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		nv.Set(k, src[k])
	}
}
