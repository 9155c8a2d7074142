// Package ports declares the collaborator interfaces the Lifecycle Manager
// consumes but does not own: resource fetching, the WebAssembly engine,
// policy parsing, and secret storage. Concrete adapters live under
// internal/infrastructure.
package ports

import (
	"context"

	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/marshal"
)

// FetchedResource is the result of a successful fetch: raw bytes plus
// enough information to persist them into the plugin directory.
type FetchedResource interface {
	Bytes() []byte
	DerivedID() component.ID
	CopyTo(dir string) error
}

// ResourceFetcher abstracts file://, http(s)://, and oci:// acquisition.
type ResourceFetcher interface {
	Fetch(ctx context.Context, uri string) (FetchedResource, error)
}

// FunctionSignature describes one exported function's parameter and result
// types plus its JSON Schemas, as introspected from a compiled component.
type FunctionSignature struct {
	Identifier component.FunctionIdentifier
	// ParamNames holds each parameter's declared name, aligned by index
	// with ParamTypes; used to resolve a JSON object argument's keys to
	// the guest's positional ABI instead of relying on map order.
	ParamNames   []string
	ParamTypes   []marshal.ValueType
	ResultTypes  []marshal.ValueType
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// CompiledComponent is an engine-compiled, not-yet-linked module artifact.
type CompiledComponent interface {
	// Functions lists every exported tool-callable function.
	Functions() []FunctionSignature
	// PrecompiledBytes returns the engine's best-effort serialized form for
	// warming the precompilation cache; ok is false if unsupported.
	PrecompiledBytes() (data []byte, ok bool)
}

// LinkedComponent is a compiled component pre-linked against the host
// linker: the shared, read-only artifact instantiated fresh per call.
type LinkedComponent interface {
	Functions() []FunctionSignature
	Close(ctx context.Context) error
}

// CallResult is the outcome of one guest invocation.
type CallResult struct {
	Values []marshal.Val
}

// ComponentEngine is the WebAssembly engine capability the core consumes:
// compile, pre-link, instantiate, and call, independent of which engine
// (wazero, wasmtime, ...) implements it.
type ComponentEngine interface {
	// Compile parses and validates module bytes.
	Compile(ctx context.Context, id component.ID, wasmBytes []byte) (CompiledComponent, error)

	// PreLink partially instantiates a compiled component against the host
	// linker, producing the template reused by every subsequent call.
	PreLink(ctx context.Context, id component.ID, compiled CompiledComponent) (LinkedComponent, error)

	// Call instantiates a fresh store from linked under template's sandbox
	// configuration and invokes fn with args, returning its results.
	Call(ctx context.Context, linked LinkedComponent, template *capabilities.HostStateTemplate, fn component.FunctionIdentifier, args []marshal.Val) (CallResult, error)
}

// PolicyParser parses a policy document's bytes into a PolicyValue.
type PolicyParser interface {
	ParseBytes(data []byte) (capabilities.PolicyValue, error)
}

// SecretsStore is the per-component secret map abstraction.
type SecretsStore interface {
	List(id component.ID) ([]string, error)
	Load(id component.ID) (map[string]string, error)
	Set(id component.ID, values map[string]string) error
	Delete(id component.ID, keys []string) error
}

// Notifier is invoked whenever the set of exposed tools changes: after a
// successful load/unload, and once per Startup Loader phase-2 completion.
type Notifier interface {
	ToolListChanged()
}

// CacheStore owns the on-disk plugin directory layout: raw module,
// precompiled marker, metadata sidecar, policy sidecar. It is a core
// component, not an external collaborator, but is expressed as a port so
// the Lifecycle Manager can be tested against an in-memory fake.
type CacheStore interface {
	PluginDir() string

	ReadModule(id component.ID) ([]byte, error)
	WriteModule(id component.ID, data []byte) error

	HasPrecompiledMarker(id component.ID) bool
	WritePrecompiledMarker(id component.ID) error

	ReadMetadata(id component.ID) (*component.Metadata, error)
	WriteMetadata(id component.ID, meta *component.Metadata) error

	ReadPolicy(id component.ID) ([]byte, bool, error)

	// RemoveAll deletes every id-related file. Non-existence is not an
	// error; any other I/O failure aborts before further deletions and
	// returns it.
	RemoveAll(id component.ID) error

	// ValidationStampOf reads the current {size, mtime[, hash]} of id's
	// module file.
	ValidationStampOf(id component.ID) (component.ValidationStamp, error)

	// ListModuleIDs lists every <id>.wasm file currently on disk.
	ListModuleIDs() ([]component.ID, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) ToolListChanged() {
	if f != nil {
		f()
	}
}
