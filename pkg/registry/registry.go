// Package registry holds the Unified Registry (an in-memory index of
// resources keyed by namespace, type, and tag) and its on-disk persistence
// (scan snapshots with fingerprint-based freshness checking).
package registry

import (
	"sort"
	"sync"

	"github.com/ternarybob/relay/pkg/resource"
)

// Registry indexes resources by key, type, and tag. Duplicate keys are
// resolved by priority: the higher-priority resource wins; ties are
// resolved by insertion order (earlier registration wins), matching
// project scope registered before user scope overriding it.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*resource.Resource
	order     []string
	byType    map[string][]string
	byTag     map[string][]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		resources: make(map[string]*resource.Resource),
		byType:    make(map[string][]string),
		byTag:     make(map[string][]string),
	}
}

// resourceKey returns the registry key for r: its namespace, "<type>:<name>".
// Duplicates are resolved by type+name alone; the category a resource was
// discovered under (recorded in Config["category"]) does not affect
// identity.
func resourceKey(r *resource.Resource) string {
	return r.Type + ":" + r.Name
}

// Register adds r to the registry. If a resource with the same key
// already exists, the one with the higher Priority wins; on a tie, the
// resource already registered is kept (first registration wins).
func (reg *Registry) Register(r *resource.Resource) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	key := resourceKey(r)
	r.Namespace = key

	existing, ok := reg.resources[key]
	if ok && existing.Priority >= r.Priority {
		return
	}

	if !ok {
		reg.order = append(reg.order, key)
		reg.byType[r.Type] = append(reg.byType[r.Type], key)
	} else {
		for _, tag := range existing.Tags {
			keys := reg.byTag[tag]
			for i, k := range keys {
				if k == key {
					reg.byTag[tag] = append(keys[:i:i], keys[i+1:]...)
					break
				}
			}
		}
	}
	for _, tag := range r.Tags {
		reg.byTag[tag] = append(reg.byTag[tag], key)
	}
	reg.resources[key] = r
}

// Get returns the resource registered under namespace ("<type>:<name>"),
// but only if it's enabled; a disabled resource is reported as not found.
func (reg *Registry) Get(namespace string) (*resource.Resource, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, ok := reg.resources[namespace]
	if !ok || !r.Enabled {
		return nil, false
	}
	return r, true
}

// ListByType returns every resource of the given type, in registration
// order.
func (reg *Registry) ListByType(typ string) []*resource.Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	keys := reg.byType[typ]
	out := make([]*resource.Resource, 0, len(keys))
	for _, k := range keys {
		if r, ok := reg.resources[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ListByTag returns every resource carrying the given tag.
func (reg *Registry) ListByTag(tag string) []*resource.Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	keys := reg.byTag[tag]
	out := make([]*resource.Resource, 0, len(keys))
	for _, k := range keys {
		if r, ok := reg.resources[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// All returns every resource in the registry, sorted by type then name for
// deterministic output.
func (reg *Registry) All() []*resource.Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*resource.Resource, 0, len(reg.resources))
	for _, k := range reg.order {
		if r, ok := reg.resources[k]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Count returns the number of resources currently registered.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.resources)
}

// Clear removes every resource from the registry.
func (reg *Registry) Clear() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.resources = make(map[string]*resource.Resource)
	reg.order = nil
	reg.byType = make(map[string][]string)
	reg.byTag = make(map[string][]string)
}
