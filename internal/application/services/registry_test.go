package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomhost/loom/internal/domain/component"
)

func TestToolRegistry_RegisterLookupUnregister(t *testing.T) {
	r := NewToolRegistry()
	r.Register("fetcher", []component.ToolEntry{
		{ToolName: "fetch", ComponentID: "fetcher"},
	})

	assert.Len(t, r.Lookup("fetch"), 1)
	assert.Empty(t, r.Lookup("missing"))

	r.Unregister("fetcher")
	assert.Empty(t, r.Lookup("fetch"))
	assert.Empty(t, r.ToolNamesFor("fetcher"))
}

func TestToolRegistry_AmbiguousAcrossComponents(t *testing.T) {
	r := NewToolRegistry()
	r.Register("a", []component.ToolEntry{{ToolName: "search", ComponentID: "a"}})
	r.Register("b", []component.ToolEntry{{ToolName: "search", ComponentID: "b"}})

	entries := r.Lookup("search")
	assert.Len(t, entries, 2)
}

func TestToolRegistry_ReloadIsIdempotent(t *testing.T) {
	r := NewToolRegistry()
	r.Register("a", []component.ToolEntry{{ToolName: "search", ComponentID: "a"}})
	r.Unregister("a")
	r.Register("a", []component.ToolEntry{{ToolName: "search", ComponentID: "a"}})

	assert.Len(t, r.Lookup("search"), 1)
}
