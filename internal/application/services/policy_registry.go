package services

import (
	"sync"

	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
)

// PolicyRegistry maps component id to its compiled, shared, immutable host
// state template. A missing entry implies the default empty-capability
// template. Attach/detach is an atomic replace.
type PolicyRegistry struct {
	mu        sync.RWMutex
	templates map[component.ID]*capabilities.HostStateTemplate
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{templates: make(map[component.ID]*capabilities.HostStateTemplate)}
}

// Get returns id's template, or the default empty one if none is attached.
func (p *PolicyRegistry) Get(id component.ID) *capabilities.HostStateTemplate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.templates[id]; ok {
		return t
	}
	return capabilities.NewEmptyTemplate()
}

// Attach replaces id's template atomically.
func (p *PolicyRegistry) Attach(id component.ID, template *capabilities.HostStateTemplate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[id] = template
}

// Detach removes id's template, reverting it to the default.
func (p *PolicyRegistry) Detach(id component.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.templates, id)
}

// Has reports whether id has a non-default template attached.
func (p *PolicyRegistry) Has(id component.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.templates[id]
	return ok
}
