// Package services implements the application-layer orchestration the
// Lifecycle Manager needs: the tool/policy registries, the capability
// builder, the lifecycle manager itself, and the startup loader. This is
// the core of the host.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/schema"
)

// LifecycleManager orchestrates load/unload/reload/list/invoke and enforces
// the registry<->disk consistency invariant across every structure it owns.
type LifecycleManager struct {
	mu         sync.RWMutex
	components map[component.ID]ports.LinkedComponent

	tools      *ToolRegistry
	policies   *PolicyRegistry
	capBuilder *CapabilityBuilder

	store        ports.CacheStore
	engine       ports.ComponentEngine
	fetcher      ports.ResourceFetcher
	policyParser ports.PolicyParser
	secrets      ports.SecretsStore
	notifier     ports.Notifier

	validatorsMu sync.Mutex
	validators   map[string]*jsonschema.Schema
}

// NewLifecycleManager wires every collaborator together. notifier may be
// nil (no-op).
func NewLifecycleManager(
	store ports.CacheStore,
	engine ports.ComponentEngine,
	fetcher ports.ResourceFetcher,
	policyParser ports.PolicyParser,
	secrets ports.SecretsStore,
	capBuilder *CapabilityBuilder,
	notifier ports.Notifier,
) *LifecycleManager {
	if notifier == nil {
		notifier = ports.NotifierFunc(nil)
	}
	return &LifecycleManager{
		components:   make(map[component.ID]ports.LinkedComponent),
		tools:        NewToolRegistry(),
		policies:     NewPolicyRegistry(),
		capBuilder:   capBuilder,
		store:        store,
		engine:       engine,
		fetcher:      fetcher,
		policyParser: policyParser,
		secrets:      secrets,
		notifier:     notifier,
		validators:   make(map[string]*jsonschema.Schema),
	}
}

// Load fetches, compiles, pre-links, registers, and persists a component.
func (m *LifecycleManager) Load(ctx context.Context, uri string) (component.LoadResult, error) {
	const op = "load"

	resource, err := m.fetcher.Fetch(ctx, uri)
	if err != nil {
		return component.LoadResult{}, component.New(op, component.KindFetch, err)
	}
	id := resource.DerivedID()
	if !id.Valid() {
		return component.LoadResult{}, component.New(op, component.KindFetch, fmt.Errorf("invalid component id %q", id))
	}

	wasmBytes := resource.Bytes()

	compiled, err := m.engine.Compile(ctx, id, wasmBytes)
	if err != nil {
		return component.LoadResult{}, component.New(op, component.KindCompile, err)
	}

	linked, err := m.engine.PreLink(ctx, id, compiled)
	if err != nil {
		return component.LoadResult{}, component.New(op, component.KindInstantiation, err)
	}

	entries := toolEntriesFor(id, linked.Functions())

	previousEntries := m.tools.GetComponentSchemaSnapshot(id)
	m.mu.Lock()
	_, existed := m.components[id]
	m.mu.Unlock()

	m.tools.Unregister(id)
	m.tools.Register(id, entries)
	m.installValidators(entries)

	if err := m.store.WriteModule(id, wasmBytes); err != nil {
		// Rollback: restore whatever was registered before this attempt.
		m.tools.Unregister(id)
		if len(previousEntries) > 0 {
			m.tools.Register(id, previousEntries)
		}
		return component.LoadResult{}, component.New(op, component.KindIO, err)
	}

	if _, ok := compiled.PrecompiledBytes(); ok {
		if err := m.store.WritePrecompiledMarker(id); err != nil {
			slog.Warn("failed to persist precompiled marker", "component", id, "err", err)
		}
	}

	meta := &component.Metadata{
		ComponentID: id,
		ToolSchemas: entries,
		CreatedAt:   time.Now().UTC(),
	}
	if stamp, err := m.store.ValidationStampOf(id); err == nil {
		meta.ValidationStamp = stamp
	}
	for _, e := range entries {
		meta.FunctionIdentifiers = append(meta.FunctionIdentifiers, e.Function)
		meta.NormalizedToolNames = append(meta.NormalizedToolNames, e.ToolName)
	}
	if err := m.store.WriteMetadata(id, meta); err != nil {
		slog.Warn("failed to persist metadata sidecar", "component", id, "err", err)
	}

	m.mu.Lock()
	m.components[id] = linked
	m.mu.Unlock()

	outcome := component.LoadNew
	if existed {
		outcome = component.LoadReplaced
	}

	m.attachColocatedPolicy(ctx, id)
	m.notifier.ToolListChanged()

	return component.LoadResult{ID: id, Outcome: outcome}, nil
}

// attachColocatedPolicy is best-effort: failure leaves
// the component loaded with the default policy and only logs.
func (m *LifecycleManager) attachColocatedPolicy(ctx context.Context, id component.ID) {
	data, ok, err := m.store.ReadPolicy(id)
	if err != nil {
		slog.Warn("failed to read co-located policy", "component", id, "err", err)
		return
	}
	if !ok {
		return
	}
	if err := m.attachPolicyBytes(id, data); err != nil {
		slog.Warn("failed to attach co-located policy, using default", "component", id, "err", err)
	}
}

// Unload removes every id-related file first, then mutates in-memory state
// only on full success.
func (m *LifecycleManager) Unload(ctx context.Context, id component.ID) error {
	const op = "unload"

	m.mu.RLock()
	_, ok := m.components[id]
	m.mu.RUnlock()
	if !ok {
		return component.New(op, component.KindNotFound, fmt.Errorf("component %s not loaded", id))
	}

	if err := m.store.RemoveAll(id); err != nil {
		return component.New(op, component.KindIO, err)
	}

	m.mu.Lock()
	linked := m.components[id]
	delete(m.components, id)
	m.mu.Unlock()

	m.tools.Unregister(id)
	m.policies.Detach(id)

	if linked != nil {
		_ = linked.Close(ctx)
	}

	m.notifier.ToolListChanged()
	return nil
}

// ListComponents returns ids currently held in memory.
func (m *LifecycleManager) ListComponents() []component.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]component.ID, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	return ids
}

// ListComponentsKnown returns the union of in-memory components and
// <id>.wasm files found on disk.
func (m *LifecycleManager) ListComponentsKnown() ([]component.ID, error) {
	onDisk, err := m.store.ListModuleIDs()
	if err != nil {
		return nil, component.New("list_components_known", component.KindIO, err)
	}
	seen := make(map[component.ID]struct{}, len(onDisk))
	out := make([]component.ID, 0, len(onDisk))
	for _, id := range onDisk {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range m.ListComponents() {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// ListTools returns every registered tool entry.
func (m *LifecycleManager) ListTools() []component.ToolEntry {
	return m.tools.ListSchemas()
}

// GetComponentIDForTool resolves a tool name to exactly one component id.
func (m *LifecycleManager) GetComponentIDForTool(name string) (component.ID, error) {
	const op = "get_component_id_for_tool"
	entries := m.tools.Lookup(name)
	switch len(entries) {
	case 0:
		return "", component.New(op, component.KindUnknownTool, fmt.Errorf("no component exports tool %q", name))
	case 1:
		return entries[0].ComponentID, nil
	default:
		ids := make([]component.ID, len(entries))
		for i, e := range entries {
			ids[i] = e.ComponentID
		}
		return "", component.New(op, component.KindAmbiguousTool, fmt.Errorf("tool %q is exported by multiple components: %v", name, ids))
	}
}

// GetComponentSchema returns every tool entry contributed by id.
func (m *LifecycleManager) GetComponentSchema(id component.ID) []component.ToolEntry {
	var out []component.ToolEntry
	for _, name := range m.tools.ToolNamesFor(id) {
		if e, ok := m.tools.SchemaFor(id, name); ok {
			out = append(out, e)
		}
	}
	return out
}

// GetToolSchemaForComponent narrows GetComponentSchema to one tool name.
func (m *LifecycleManager) GetToolSchemaForComponent(id component.ID, toolName string) (component.ToolEntry, bool) {
	return m.tools.SchemaFor(id, toolName)
}

// installValidators compiles and caches an input-schema validator per tool
// entry that declares one, once at register time rather than per call.
func (m *LifecycleManager) installValidators(entries []component.ToolEntry) {
	m.validatorsMu.Lock()
	defer m.validatorsMu.Unlock()
	for _, e := range entries {
		if e.InputSchema == nil {
			continue
		}
		compiled, err := compileInputSchema(e.ToolName, e.InputSchema)
		if err != nil {
			slog.Warn("failed to compile input schema, skipping validation", "tool", e.ToolName, "err", err)
			continue
		}
		m.validators[e.ToolName] = compiled
	}
}

func toolEntriesFor(id component.ID, funcs []ports.FunctionSignature) []component.ToolEntry {
	entries := make([]component.ToolEntry, 0, len(funcs))
	for _, f := range funcs {
		var outSchema map[string]any
		if f.OutputSchema != nil {
			outSchema = schema.CanonicalizeOutputSchema(f.OutputSchema)
		}
		entries = append(entries, component.ToolEntry{
			ToolName:     f.Identifier.ToolName(),
			ComponentID:  id,
			Function:     f.Identifier,
			InputSchema:  f.InputSchema,
			OutputSchema: outSchema,
		})
	}
	return entries
}

