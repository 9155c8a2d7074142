package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/marshal"
)

// --- in-memory fakes for the collaborator ports, exercising the Lifecycle
// Manager end-to-end without a real engine or filesystem. ---

type fakeResource struct {
	data []byte
	id   component.ID
}

func (f *fakeResource) Bytes() []byte              { return f.data }
func (f *fakeResource) DerivedID() component.ID     { return f.id }
func (f *fakeResource) CopyTo(dir string) error     { return nil }

type fakeFetcher struct {
	byURI map[string]*fakeResource
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, uri string) (ports.FetchedResource, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byURI[uri]
	if !ok {
		return nil, fmt.Errorf("no such fixture uri %q", uri)
	}
	return r, nil
}

type fakeCompiled struct {
	functions []ports.FunctionSignature
}

func (c *fakeCompiled) Functions() []ports.FunctionSignature { return c.functions }
func (c *fakeCompiled) PrecompiledBytes() ([]byte, bool)      { return nil, false }

type fakeLinked struct {
	id        component.ID
	functions []ports.FunctionSignature
	closed    bool
}

func (l *fakeLinked) Functions() []ports.FunctionSignature { return l.functions }
func (l *fakeLinked) Close(context.Context) error          { l.closed = true; return nil }

// fakeEngine calls a single registered handler per tool name, returning
// canned results keyed by the tool's ToolName().
type fakeEngine struct {
	handlers map[string]func(args []marshal.Val) (ports.CallResult, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{handlers: map[string]func(args []marshal.Val) (ports.CallResult, error){}}
}

func (e *fakeEngine) Compile(_ context.Context, id component.ID, _ []byte) (ports.CompiledComponent, error) {
	return &fakeCompiled{functions: e.functionsFor(id)}, nil
}

func (e *fakeEngine) PreLink(_ context.Context, id component.ID, compiled ports.CompiledComponent) (ports.LinkedComponent, error) {
	return &fakeLinked{id: id, functions: compiled.Functions()}, nil
}

func (e *fakeEngine) Call(_ context.Context, linked ports.LinkedComponent, _ *capabilities.HostStateTemplate, fn component.FunctionIdentifier, args []marshal.Val) (ports.CallResult, error) {
	h, ok := e.handlers[fn.ToolName()]
	if !ok {
		return ports.CallResult{}, fmt.Errorf("no handler for %s", fn.ToolName())
	}
	return h(args)
}

// functionsByID lets the test wire per-component schemas independent of the
// engine's Call dispatch (which is keyed only by tool name for simplicity).
var functionsByID = map[component.ID][]ports.FunctionSignature{}

func (e *fakeEngine) functionsFor(id component.ID) []ports.FunctionSignature {
	return functionsByID[id]
}

type memCacheStore struct {
	mu        sync.Mutex
	modules   map[component.ID][]byte
	metadata  map[component.ID]*component.Metadata
	policies  map[component.ID][]byte
	failWrite bool
	failRemove bool
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{
		modules:  map[component.ID][]byte{},
		metadata: map[component.ID]*component.Metadata{},
		policies: map[component.ID][]byte{},
	}
}

func (s *memCacheStore) PluginDir() string { return "/fake/plugins" }

func (s *memCacheStore) ReadModule(id component.ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modules[id], nil
}

func (s *memCacheStore) WriteModule(id component.ID, data []byte) error {
	if s.failWrite {
		return fmt.Errorf("simulated write failure")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[id] = data
	return nil
}

func (s *memCacheStore) HasPrecompiledMarker(component.ID) bool { return false }
func (s *memCacheStore) WritePrecompiledMarker(component.ID) error { return nil }

func (s *memCacheStore) ReadMetadata(id component.ID) (*component.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[id], nil
}

func (s *memCacheStore) WriteMetadata(id component.ID, meta *component.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[id] = meta
	return nil
}

func (s *memCacheStore) ReadPolicy(id component.ID) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.policies[id]
	return data, ok, nil
}

func (s *memCacheStore) RemoveAll(id component.ID) error {
	if s.failRemove {
		return fmt.Errorf("simulated remove failure")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, id)
	delete(s.metadata, id)
	delete(s.policies, id)
	return nil
}

func (s *memCacheStore) ValidationStampOf(component.ID) (component.ValidationStamp, error) {
	return component.ValidationStamp{FileSize: 1, MtimeSeconds: 1}, nil
}

func (s *memCacheStore) ListModuleIDs() ([]component.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]component.ID, 0, len(s.modules))
	for id := range s.modules {
		out = append(out, id)
	}
	return out, nil
}

type fakePolicyParser struct{}

func (fakePolicyParser) ParseBytes([]byte) (capabilities.PolicyValue, error) {
	return capabilities.PolicyValue{}, nil
}

type fakeSecretsStore struct{}

func (fakeSecretsStore) List(component.ID) ([]string, error)            { return nil, nil }
func (fakeSecretsStore) Load(component.ID) (map[string]string, error)   { return nil, nil }
func (fakeSecretsStore) Set(component.ID, map[string]string) error      { return nil }
func (fakeSecretsStore) Delete(component.ID, []string) error            { return nil }

func newTestManager(t *testing.T) (*LifecycleManager, *memCacheStore, *fakeEngine, *fakeFetcher) {
	t.Helper()
	store := newMemCacheStore()
	engine := newFakeEngine()
	fetcher := &fakeFetcher{byURI: map[string]*fakeResource{}}
	capBuilder := NewCapabilityBuilder(store.PluginDir(), map[string]string{})
	mgr := NewLifecycleManager(store, engine, fetcher, fakePolicyParser{}, fakeSecretsStore{}, capBuilder, nil)
	return mgr, store, engine, fetcher
}

func stringResultFn(name string) component.FunctionIdentifier {
	return component.FunctionIdentifier{Function: name}
}

// Scenario 1: load, list, call, unload (SPEC §8 scenario 1).
func TestLifecycle_LoadListCallUnload(t *testing.T) {
	mgr, store, engine, fetcher := newTestManager(t)
	functionsByID["fetcher"] = []ports.FunctionSignature{
		{
			Identifier: stringResultFn("fetch"),
			ParamNames: []string{"url"},
			ParamTypes: []marshal.ValueType{{Kind: marshal.KindString}},
			ResultTypes: []marshal.ValueType{{Kind: marshal.KindString}},
		},
	}
	fetcher.byURI["file://fetcher.wasm"] = &fakeResource{data: []byte("wasm-bytes"), id: "fetcher"}
	engine.handlers["fetch"] = func(args []marshal.Val) (ports.CallResult, error) {
		require.Len(t, args, 1)
		assert.Equal(t, "https://ex", args[0].String)
		return ports.CallResult{Values: []marshal.Val{{Kind: marshal.KindString, String: "ok"}}}, nil
	}

	ctx := context.Background()
	result, err := mgr.Load(ctx, "file://fetcher.wasm")
	require.NoError(t, err)
	assert.Equal(t, component.ID("fetcher"), result.ID)
	assert.Equal(t, component.LoadNew, result.Outcome)

	tools := mgr.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "fetch", tools[0].ToolName)

	out, err := mgr.Execute(ctx, "fetcher", "fetch", `{"url":"https://ex"}`)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, out)

	require.NoError(t, mgr.Unload(ctx, "fetcher"))
	assert.Empty(t, mgr.ListTools())
	_, ok := store.modules["fetcher"]
	assert.False(t, ok)
}

// Scenario 4: two components exporting the same tool name surface
// AmbiguousTool, naming both component ids.
func TestLifecycle_AmbiguousTool(t *testing.T) {
	mgr, _, engine, fetcher := newTestManager(t)
	_ = engine
	functionsByID["a"] = []ports.FunctionSignature{{Identifier: stringResultFn("search")}}
	functionsByID["b"] = []ports.FunctionSignature{{Identifier: stringResultFn("search")}}
	fetcher.byURI["file://a.wasm"] = &fakeResource{data: []byte("a"), id: "a"}
	fetcher.byURI["file://b.wasm"] = &fakeResource{data: []byte("b"), id: "b"}

	ctx := context.Background()
	_, err := mgr.Load(ctx, "file://a.wasm")
	require.NoError(t, err)
	_, err = mgr.Load(ctx, "file://b.wasm")
	require.NoError(t, err)

	_, err = mgr.GetComponentIDForTool("search")
	require.Error(t, err)
	assert.Equal(t, component.KindAmbiguousTool, component.KindOf(err))
}

// Reload of the same id must yield Replaced and never leak stale tools.
func TestLifecycle_ReloadReplacesTools(t *testing.T) {
	mgr, _, _, fetcher := newTestManager(t)
	functionsByID["svc"] = []ports.FunctionSignature{{Identifier: stringResultFn("old_tool")}}
	fetcher.byURI["file://svc.wasm"] = &fakeResource{data: []byte("v1"), id: "svc"}

	ctx := context.Background()
	result, err := mgr.Load(ctx, "file://svc.wasm")
	require.NoError(t, err)
	assert.Equal(t, component.LoadNew, result.Outcome)
	require.Len(t, mgr.ListTools(), 1)

	functionsByID["svc"] = []ports.FunctionSignature{{Identifier: stringResultFn("new_tool")}}
	result, err = mgr.Load(ctx, "file://svc.wasm")
	require.NoError(t, err)
	assert.Equal(t, component.LoadReplaced, result.Outcome)

	tools := mgr.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "new_tool", tools[0].ToolName)
	assert.Empty(t, mgr.tools.Lookup("old_tool"))
}

// Scenario 6: unload atomicity under an unremovable file — the operation
// fails IO, leaving both the component and its tools intact.
func TestLifecycle_UnloadAtomicOnIOFailure(t *testing.T) {
	mgr, store, _, fetcher := newTestManager(t)
	functionsByID["locked"] = []ports.FunctionSignature{{Identifier: stringResultFn("do_thing")}}
	fetcher.byURI["file://locked.wasm"] = &fakeResource{data: []byte("bytes"), id: "locked"}

	ctx := context.Background()
	_, err := mgr.Load(ctx, "file://locked.wasm")
	require.NoError(t, err)

	store.failRemove = true
	err = mgr.Unload(ctx, "locked")
	require.Error(t, err)
	assert.Equal(t, component.KindIO, component.KindOf(err))

	assert.Contains(t, mgr.ListComponents(), component.ID("locked"))
	assert.Len(t, mgr.ListTools(), 1)
}

// Load whose artifact-commit fails rolls the registry back to its
// pre-attempt state rather than leaving orphaned tool entries.
func TestLifecycle_LoadRollsBackOnWriteFailure(t *testing.T) {
	mgr, store, _, fetcher := newTestManager(t)
	functionsByID["broken"] = []ports.FunctionSignature{{Identifier: stringResultFn("tool_a")}}
	fetcher.byURI["file://broken.wasm"] = &fakeResource{data: []byte("bytes"), id: "broken"}

	store.failWrite = true
	ctx := context.Background()
	_, err := mgr.Load(ctx, "file://broken.wasm")
	require.Error(t, err)
	assert.Equal(t, component.KindIO, component.KindOf(err))

	assert.Empty(t, mgr.ListTools())
	assert.NotContains(t, mgr.ListComponents(), component.ID("broken"))
}
