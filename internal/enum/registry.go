// Package enum holds the closed set of valid labels per enum type.
//
// The registry is closed-world: a type it does not list is treated as an
// opaque enum whose values pass through unvalidated. Values of unregistered
// types can therefore still be rejected by the target database.
//
// Names match case-insensitively only while that is unambiguous: with both
// "Status" and "status" registered, each resolves by its exact spelling and
// "STATUS" resolves to neither.
package enum

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps enum type names to their ordered labels. The first label of
// each type is its default. A Registry is read-only once built.
type Registry struct {
	types map[string][]string
	fold  map[string]string // lower-cased name -> registered name, "" when ambiguous
}

// New copies types into a registry. Every type needs at least one label.
func New(types map[string][]string) (*Registry, error) {
	r := &Registry{
		types: make(map[string][]string, len(types)),
		fold:  make(map[string]string, len(types)),
	}
	for name, labels := range types {
		if err := r.add(name, labels); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(name string, labels []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("enum type with empty name")
	}
	if len(labels) == 0 {
		return fmt.Errorf("enum type %s has no labels", name)
	}
	r.types[name] = append([]string(nil), labels...)
	key := strings.ToLower(name)
	if prev, ok := r.fold[key]; ok && prev != name {
		r.fold[key] = ""
	} else {
		r.fold[key] = name
	}
	return nil
}

// lookup finds a type by exact name, then case-insensitively when only one
// spelling is registered, then by the unqualified name (public."NewsStatus" -> NewsStatus).
func (r *Registry) lookup(typeName string) ([]string, bool) {
	if r == nil || typeName == "" {
		return nil, false
	}
	if labels, ok := r.types[typeName]; ok {
		return labels, true
	}
	if name := r.fold[strings.ToLower(typeName)]; name != "" {
		return r.types[name], true
	}
	if i := strings.LastIndex(typeName, "."); i >= 0 && i < len(typeName)-1 {
		return r.lookup(strings.Trim(typeName[i+1:], `"`))
	}
	if unquoted := strings.Trim(typeName, `"`); unquoted != typeName {
		return r.lookup(unquoted)
	}
	return nil, false
}

// Resolve returns the labels of typeName, or false for an unregistered type.
func (r *Registry) Resolve(typeName string) ([]string, bool) {
	labels, ok := r.lookup(typeName)
	if !ok {
		return nil, false
	}
	return append([]string(nil), labels...), true
}

// DefaultOf returns the first label of typeName.
func (r *Registry) DefaultOf(typeName string) (string, bool) {
	labels, ok := r.lookup(typeName)
	if !ok {
		return "", false
	}
	return labels[0], true
}

// IsValid reports whether value is a label of typeName. Unregistered types
// accept any value.
func (r *Registry) IsValid(typeName, value string) bool {
	labels, ok := r.lookup(typeName)
	if !ok {
		return true
	}
	for _, l := range labels {
		if l == value {
			return true
		}
	}
	return false
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	_, ok := r.lookup(typeName)
	return ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns a new registry with other's types layered over r's. A type of
// other replaces every type of r spelled the same up to case.
func (r *Registry) Merge(other *Registry) *Registry {
	out := &Registry{types: make(map[string][]string), fold: make(map[string]string)}
	shadowed := make(map[string]bool)
	if other != nil {
		for name := range other.types {
			shadowed[strings.ToLower(name)] = true
		}
	}
	if r != nil {
		for name, labels := range r.types {
			if !shadowed[strings.ToLower(name)] {
				_ = out.add(name, labels)
			}
		}
	}
	if other != nil {
		for name, labels := range other.types {
			_ = out.add(name, labels)
		}
	}
	return out
}

// FromConfig builds a registry from a decoded configuration value: a map of
// type name to a list of labels (as produced by viper or yaml).
func FromConfig(raw map[string]any) (*Registry, error) {
	types := make(map[string][]string, len(raw))
	for name, v := range raw {
		labels, err := toLabels(v)
		if err != nil {
			return nil, fmt.Errorf("enum %s: %w", name, err)
		}
		types[name] = labels
	}
	return New(types)
}

func toLabels(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		out := make([]string, len(val))
		for i, l := range val {
			if l == nil {
				return nil, fmt.Errorf("label %d is null", i)
			}
			out[i] = fmt.Sprint(l)
		}
		return out, nil
	case string:
		// comma separated, as environment variables deliver lists
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of labels, got %T", v)
	}
}
