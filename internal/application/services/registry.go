package services

import (
	"sync"

	"github.com/loomhost/loom/internal/domain/component"
)

// ToolRegistry is the in-memory bidirectional index between tool names and
// the component/function pairs that implement them. The top-level map
// tolerates collisions deliberately: lookup surfaces them as ambiguity
// rather than silently picking a winner.
type ToolRegistry struct {
	mu          sync.RWMutex
	byToolName  map[string][]component.ToolEntry
	byComponent map[component.ID][]string
}

// NewToolRegistry constructs an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		byToolName:  make(map[string][]component.ToolEntry),
		byComponent: make(map[component.ID][]string),
	}
}

// Register appends every entry, recording the reverse index. Callers must
// call Unregister(componentID) first to make this idempotent across reload.
func (r *ToolRegistry) Register(id component.ID, entries []component.ToolEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		r.byToolName[e.ToolName] = append(r.byToolName[e.ToolName], e)
		names = append(names, e.ToolName)
	}
	r.byComponent[id] = names
}

// Unregister removes all entries contributed by id, dropping now-empty
// tool-name keys.
func (r *ToolRegistry) Unregister(id component.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, ok := r.byComponent[id]
	if !ok {
		return
	}
	for _, name := range names {
		kept := r.byToolName[name][:0]
		for _, e := range r.byToolName[name] {
			if e.ComponentID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.byToolName, name)
		} else {
			r.byToolName[name] = kept
		}
	}
	delete(r.byComponent, id)
}

// Lookup returns every tool entry registered under name. The caller
// distinguishes Unknown (empty) from Ambiguous (len > 1).
func (r *ToolRegistry) Lookup(name string) []component.ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.byToolName[name]
	out := make([]component.ToolEntry, len(entries))
	copy(out, entries)
	return out
}

// ListSchemas returns every registered tool entry.
func (r *ToolRegistry) ListSchemas() []component.ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []component.ToolEntry
	for _, entries := range r.byToolName {
		out = append(out, entries...)
	}
	return out
}

// ToolNamesFor returns the tool names currently contributed by id.
func (r *ToolRegistry) ToolNamesFor(id component.ID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byComponent[id]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// GetComponentSchemaSnapshot returns every entry currently contributed by
// id, read under the registry's own lock.
func (r *ToolRegistry) GetComponentSchemaSnapshot(id component.ID) []component.ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []component.ToolEntry
	for _, name := range r.byComponent[id] {
		for _, e := range r.byToolName[name] {
			if e.ComponentID == id {
				out = append(out, e)
			}
		}
	}
	return out
}

// SchemaFor returns the entry for (id, toolName), if any.
func (r *ToolRegistry) SchemaFor(id component.ID, toolName string) (component.ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byToolName[toolName] {
		if e.ComponentID == id {
			return e, true
		}
	}
	return component.ToolEntry{}, false
}
