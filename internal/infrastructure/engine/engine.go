// Package engine adapts wazero to the ports.ComponentEngine capability the
// Lifecycle Manager consumes (SPEC_FULL.md §6). Grounded on the teacher's
// internal/infrastructure/wasm package: kept the WithMemoryLimitPages
// translation, the _initialize call-once
// convention, and the ptr+len packed-uint64 read/write helpers. Replaced
// the teacher's fixed describe/schema/observe plugin triad with
// component/tool semantics: Compile extracts every exported tool's
// signature from one describe() call, PreLink keeps the compiled module
// and its dedicated, host-function-registered wazero.Runtime as the
// reusable template, and Call instantiates a fresh store per invocation
// against a freshly built sandbox (SPEC_FULL.md §4.7/§5).
package engine

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/marshal"
	"github.com/loomhost/loom/internal/infrastructure/engine/hostfuncs"
)

// Engine is the wazero-backed ports.ComponentEngine. One Engine serves
// every component the host loads; each component gets its own
// wazero.Runtime (built once, at Compile) so host functions and the
// compiled module are registered exactly once per component, matching the
// teacher's per-plugin Runtime.
type Engine struct {
	compilationCache wazero.CompilationCache
	defaultMemoryMB  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultMemoryLimitMB sets the wazero memory cap every component's
// dedicated Runtime is built with. wazero's WithMemoryLimitPages is a
// Runtime-level (not per-instantiation) setting, so a policy's
// per-component HostStateTemplate.Limiter.MaxMemoryPages cannot be applied
// retroactively once Compile has built the Runtime — see DESIGN.md's
// "Open Question decisions" for the accepted tradeoff. 0 keeps wazero's
// built-in default.
func WithDefaultMemoryLimitMB(mb int) Option {
	return func(e *Engine) { e.defaultMemoryMB = mb }
}

// WithCompilationCacheDir persists compiled module artifacts across
// process restarts; this is the real engine-level form of §4.9's
// precompilation cache (the `<id>.cwasm` file the Cache Store manages is a
// warm marker alongside it, not the serialized bytes themselves, since
// wazero exposes no opaque Component::serialize/deserialize_file API).
func WithCompilationCacheDir(dir string) Option {
	return func(e *Engine) {
		if dir == "" {
			return
		}
		cache, err := wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			slog.Warn("engine: failed to open compilation cache dir, using in-memory cache", "dir", dir, "err", err)
			return
		}
		e.compilationCache = cache
	}
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{compilationCache: wazero.NewCompilationCache()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the engine-wide compilation cache. Call during graceful
// shutdown; CLI one-shot invocations can skip it.
func (e *Engine) Close(ctx context.Context) error {
	return e.compilationCache.Close(ctx)
}

type compiledComponent struct {
	id        component.ID
	runtime   wazero.Runtime
	module    wazero.CompiledModule
	functions []ports.FunctionSignature
}

func (c *compiledComponent) Functions() []ports.FunctionSignature { return c.functions }

func (c *compiledComponent) PrecompiledBytes() ([]byte, bool) {
	// The engine's own compilation cache (keyed by module content hash,
	// directory-backed when WithCompilationCacheDir is set) is the real
	// persistence; this return value only tells the Lifecycle Manager
	// whether to warm the Cache Store's <id>.cwasm marker file.
	return nil, true
}

type linkedComponent struct {
	id        component.ID
	runtime   wazero.Runtime
	module    wazero.CompiledModule
	functions []ports.FunctionSignature
}

func (l *linkedComponent) Functions() []ports.FunctionSignature { return l.functions }

func (l *linkedComponent) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}

// Compile parses wasmBytes, builds a dedicated Runtime with WASI and the
// capability-gated host functions registered, and extracts every tool
// signature by instantiating the module once (under the default
// empty-capability template) and calling its exported describe().
func (e *Engine) Compile(ctx context.Context, id component.ID, wasmBytes []byte) (ports.CompiledComponent, error) {
	runtimeConfig := wazero.NewRuntimeConfig().WithCompilationCache(e.compilationCache)
	if e.defaultMemoryMB > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(pagesForMB(e.defaultMemoryMB))
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine: instantiate wasi: %w", err)
	}
	if err := hostfuncs.RegisterHostFunctions(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine: register host functions: %w", err)
	}

	module, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine: compile module %s: %w", id, err)
	}

	functions, err := introspect(ctx, r, module, id)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine: introspect %s: %w", id, err)
	}

	return &compiledComponent{id: id, runtime: r, module: module, functions: functions}, nil
}

// introspect instantiates module once under an empty sandbox to call its
// describe() export, then closes that instance; the Runtime and compiled
// module persist for every subsequent Call.
func introspect(ctx context.Context, r wazero.Runtime, module wazero.CompiledModule, id component.ID) ([]ports.FunctionSignature, error) {
	instance, err := r.InstantiateModule(ctx, module, moduleConfig(id, capabilities.NewEmptyTemplate(), io.Discard))
	if err != nil {
		return nil, fmt.Errorf("instantiate for describe: %w", err)
	}
	defer func() { _ = instance.Close(ctx) }()

	if initFn := instance.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			return nil, fmt.Errorf("_initialize: %w", err)
		}
	}

	describeFn := instance.ExportedFunction("describe")
	if describeFn == nil {
		return nil, fmt.Errorf("component does not export describe()")
	}
	results, err := describeFn.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("call describe(): %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("describe() returned no results")
	}
	ptr, size := unpackPtrLen(results[0])
	if ptr == 0 || size == 0 {
		return nil, fmt.Errorf("describe() returned an empty payload")
	}
	data, err := readMemory(ctx, instance, ptr, size)
	if err != nil {
		return nil, fmt.Errorf("read describe() payload: %w", err)
	}
	return decodeFunctions(data)
}

// PreLink is the engine-side of §4.7 step 3. Because the expensive work
// (WASI/host-function setup, module compilation, export introspection)
// already happened in Compile to extract tool metadata, PreLink simply
// adopts the same Runtime and CompiledModule as the shared, read-only
// template every Call instantiates a fresh store against.
func (e *Engine) PreLink(_ context.Context, id component.ID, compiled ports.CompiledComponent) (ports.LinkedComponent, error) {
	c, ok := compiled.(*compiledComponent)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected CompiledComponent type %T", compiled)
	}
	return &linkedComponent{id: id, runtime: c.runtime, module: c.module, functions: c.functions}, nil
}

// Call instantiates a fresh store from linked's template under the
// per-invocation sandbox built from template, invokes fn, and decodes its
// JSON result back into typed values (SPEC_FULL.md §4.7 Execute algorithm,
// §5 "stores are never shared across calls").
func (e *Engine) Call(ctx context.Context, linkedAny ports.LinkedComponent, template *capabilities.HostStateTemplate, fn component.FunctionIdentifier, args []marshal.Val) (ports.CallResult, error) {
	linked, ok := linkedAny.(*linkedComponent)
	if !ok {
		return ports.CallResult{}, fmt.Errorf("engine: unexpected LinkedComponent type %T", linkedAny)
	}

	var sig *ports.FunctionSignature
	for i := range linked.functions {
		if linked.functions[i].Identifier == fn {
			sig = &linked.functions[i]
			break
		}
	}
	if sig == nil {
		return ports.CallResult{}, fmt.Errorf("function %s not found on component %s", fn.ToolName(), linked.id)
	}

	instance, err := linked.runtime.InstantiateModule(ctx, linked.module, moduleConfig(linked.id, template, os.Stderr))
	if err != nil {
		return ports.CallResult{}, fmt.Errorf("instantiate: %w", err)
	}
	defer func() { _ = instance.Close(ctx) }()

	if initFn := instance.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			return ports.CallResult{}, fmt.Errorf("_initialize: %w", err)
		}
	}

	exportName := fn.ToolName()
	callFn := instance.ExportedFunction(exportName)
	if callFn == nil {
		return ports.CallResult{}, fmt.Errorf("component %s does not export %q", linked.id, exportName)
	}

	argBytes, err := json.Marshal(marshal.ValsToJSON(args))
	if err != nil {
		return ports.CallResult{}, fmt.Errorf("marshal arguments: %w", err)
	}
	argPtr, err := writeMemory(ctx, instance, argBytes)
	if err != nil {
		return ports.CallResult{}, fmt.Errorf("write arguments: %w", err)
	}

	callCtx := hostfuncs.WithHostState(ctx, template)
	callCtx = hostfuncs.WithComponentID(callCtx, linked.id)

	results, err := callFn.Call(callCtx, packPtrLen(argPtr, uint32(len(argBytes)))) //nolint:gosec // G115: bounded by the JSON payload just written
	deallocate(ctx, instance, argPtr, uint32(len(argBytes)))                        //nolint:gosec // G115: bounded by the JSON payload just written
	if err != nil {
		return ports.CallResult{}, err
	}
	if len(results) == 0 {
		return ports.CallResult{}, fmt.Errorf("%s returned no results", exportName)
	}

	ptr, size := unpackPtrLen(results[0])
	if size == 0 {
		return ports.CallResult{Values: marshal.PlaceholderResults(sig.ResultTypes)}, nil
	}
	resultBytes, err := readMemory(ctx, instance, ptr, size)
	if err != nil {
		return ports.CallResult{}, fmt.Errorf("read result: %w", err)
	}

	var resultValue any
	if err := json.Unmarshal(resultBytes, &resultValue); err != nil {
		return ports.CallResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	vals, err := jsonResultToVals(resultValue, sig.ResultTypes)
	if err != nil {
		return ports.CallResult{}, err
	}
	return ports.CallResult{Values: vals}, nil
}

// jsonResultToVals adapts a decoded JSON value (object, array, or scalar)
// back to the positional result list marshal.JSONToVals expects, mirroring
// services.jsonArgsToVals on the argument side.
func jsonResultToVals(v any, resultTypes []marshal.ValueType) ([]marshal.Val, error) {
	if len(resultTypes) == 0 {
		return nil, nil
	}
	switch rv := v.(type) {
	case []any:
		return marshal.JSONToVals(rv, resultTypes)
	default:
		return marshal.JSONToVals([]any{rv}, resultTypes)
	}
}

func pagesForMB(mb int) uint32 {
	return uint32(mb) * 16 //nolint:gosec // G115: mb is operator-configured, far under uint32 range
}

// moduleConfig builds the per-invocation wazero.ModuleConfig from a
// HostStateTemplate: preopened directories, allow-listed environment
// variables (config vars are merged in as guest-visible env too; wazero
// has no separate "wasi-config" channel), the host's system wall and
// monotonic clocks and sleep, and crypto/rand as the randomness source.
// Grounded on the teacher's Plugin.createModuleConfig.
func moduleConfig(id component.ID, template *capabilities.HostStateTemplate, stderr io.Writer) wazero.ModuleConfig {
	fsConfig := wazero.NewFSConfig()
	for _, dir := range template.PreopenedDirs {
		switch {
		case dir.CanWrite:
			fsConfig = fsConfig.WithDirMount(dir.HostPath, dir.GuestPath)
		case dir.CanRead:
			fsConfig = fsConfig.WithReadOnlyDirMount(dir.HostPath, dir.GuestPath)
		}
	}

	cfg := wazero.NewModuleConfig().
		WithName(id.String()).
		WithFSConfig(fsConfig).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader).
		WithStdout(io.Discard).
		WithStderr(stderr)

	for k, v := range template.EnvVars {
		cfg = cfg.WithEnv(k, v)
	}
	for k, v := range template.ConfigVars {
		cfg = cfg.WithEnv(k, v)
	}

	return cfg
}

func unpackPtrLen(packed uint64) (ptr, size uint32) {
	return uint32(packed >> 32), uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: WASM32 addresses are always 32-bit
}

func packPtrLen(ptr, size uint32) uint64 {
	return uint64(ptr)<<32 | uint64(size)
}

// readMemory copies size bytes at ptr out of instance's linear memory and
// deallocates the region via the guest's exported deallocate.
func readMemory(ctx context.Context, instance api.Module, ptr, size uint32) ([]byte, error) {
	data, ok := instance.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at offset %d: out of bounds", size, ptr)
	}
	out := make([]byte, size)
	copy(out, data)
	deallocate(ctx, instance, ptr, size)
	return out, nil
}

// writeMemory allocates guest memory via the exported allocate and copies
// data into it, returning the pointer.
func writeMemory(ctx context.Context, instance api.Module, data []byte) (uint32, error) {
	allocateFn := instance.ExportedFunction("allocate")
	if allocateFn == nil {
		return 0, fmt.Errorf("component does not export allocate()")
	}
	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("allocate(%d): %w", len(data), err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate() returned no results")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("allocate() returned a null pointer")
	}
	if !instance.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at offset %d: out of bounds", len(data), ptr)
	}
	return ptr, nil
}

func deallocate(ctx context.Context, instance api.Module, ptr, size uint32) {
	dealloc := instance.ExportedFunction("deallocate")
	if dealloc == nil {
		return
	}
	//nolint:errcheck // best-effort cleanup, mirrors the teacher's Plugin.readString
	dealloc.Call(ctx, uint64(ptr), uint64(size))
}
