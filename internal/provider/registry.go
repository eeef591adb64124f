package provider

import (
	"sort"
	"strings"

	"github.com/noah-isme/payhub/internal/common"
)

// Registry resolves a processor name to a concrete adapter. The adapter set
// is fixed at construction; lookups are case-insensitive.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the provided adapters, keyed by their
// lowercased names. A later adapter with the same name wins.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		m[strings.ToLower(strings.TrimSpace(a.Name()))] = a
	}
	return &Registry{adapters: m}
}

// Resolve returns the adapter registered under name.
func (r *Registry) Resolve(name string) (Adapter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r == nil || key == "" {
		return nil, common.UnsupportedProviderError(name)
	}
	a, ok := r.adapters[key]
	if !ok {
		return nil, common.UnsupportedProviderError(name)
	}
	return a, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
