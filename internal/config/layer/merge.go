// Package layer merges nested configuration maps.
//
// Configuration sources produce map[string]any trees. Layers are applied
// lowest first: built-in defaults, then the config file, then the
// environment. Paths use dots: "page.width".
package layer

import (
	"maps"
	"reflect"
	"slices"
	"strings"
)

// DeepMerge merges src into dst and returns dst, allocating it when nil.
// Nested maps merge key by key; any other src value replaces the dst
// value with a copy.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, v := range src {
		sub, srcIsMap := v.(map[string]any)
		into, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(into, sub)
			continue
		}
		dst[key] = cloneValue(v)
	}
	return dst
}

// Merge layers maps lowest first into a new map. The inputs are not
// modified.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, l := range layers {
		DeepMerge(out, l)
	}
	return out
}

// Clone returns a deep copy of src.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	}
	return v
}

// GetByPath returns the value at a dotted path.
func GetByPath(data map[string]any, path string) (any, bool) {
	m := data
	for {
		head, rest, nested := strings.Cut(path, ".")
		v, ok := m[head]
		if !ok || !nested {
			return v, ok
		}
		if m, ok = v.(map[string]any); !ok {
			return nil, false
		}
		path = rest
	}
}

// SetByPath stores value at a dotted path, creating or replacing
// intermediate maps as needed. A nil data is left alone.
func SetByPath(data map[string]any, path string, value any) {
	if data == nil {
		return
	}
	m := data
	for {
		head, rest, nested := strings.Cut(path, ".")
		if !nested {
			m[head] = value
			return
		}
		next, ok := m[head].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[head] = next
		}
		m, path = next, rest
	}
}

// FlattenMap returns the leaves of data keyed by dotted path.
func FlattenMap(data map[string]any) map[string]any {
	out := make(map[string]any)
	walk(data, "", func(path string, v any) { out[path] = v })
	return out
}

func walk(data map[string]any, prefix string, visit func(string, any)) {
	for k, v := range data {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			walk(sub, k, visit)
			continue
		}
		visit(k, v)
	}
}

// DiffMaps compares the leaves of two maps and returns the sorted paths
// that were added, modified and removed going from old to new.
func DiffMaps(old, new map[string]any) (added, modified, removed []string) {
	before, after := FlattenMap(old), FlattenMap(new)

	for _, path := range slices.Sorted(maps.Keys(after)) {
		prev, existed := before[path]
		switch {
		case !existed:
			added = append(added, path)
		case !valuesEqual(prev, after[path]):
			modified = append(modified, path)
		}
	}
	for _, path := range slices.Sorted(maps.Keys(before)) {
		if _, ok := after[path]; !ok {
			removed = append(removed, path)
		}
	}
	return added, modified, removed
}

// valuesEqual compares decoded config values. Both sides come from the
// same decoder, so numbers of equal value share a type.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
