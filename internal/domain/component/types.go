package component

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ID is a component's stable identifier: the file stem of its module on
// disk. Must be a valid filesystem name and unique within a store.
type ID string

var validIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Valid reports whether id is safe to use as a filesystem name component.
func (id ID) Valid() bool {
	s := string(id)
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, "/\\") {
		return false
	}
	return validIDPattern.MatchString(s)
}

func (id ID) String() string { return string(id) }

// FunctionIdentifier names one exported function, optionally scoped to an
// interface. Interface is empty for top-level exports.
type FunctionIdentifier struct {
	Interface string
	Function  string
}

// ToolName is the normalized public handle derived from a FunctionIdentifier:
// "interface#function" when scoped, otherwise just "function".
func (f FunctionIdentifier) ToolName() string {
	if f.Interface == "" {
		return f.Function
	}
	return fmt.Sprintf("%s#%s", f.Interface, f.Function)
}

func (f FunctionIdentifier) String() string { return f.ToolName() }

// ToolEntry is one row of the Tool Registry: a public tool name bound to the
// component and function that implements it, plus the schemas a caller needs
// to invoke and interpret it.
type ToolEntry struct {
	ToolName    string
	ComponentID ID
	Function    FunctionIdentifier

	// InputSchema is the raw JSON Schema object for the tool's arguments.
	InputSchema map[string]any

	// OutputSchema is the canonicalized JSON Schema object
	// ({type:object, properties:{result:...}, required:[result]}), or nil
	// if the tool declared no output schema.
	OutputSchema map[string]any
}

// ValidationStamp detects staleness of a cached sidecar relative to the
// module it describes.
type ValidationStamp struct {
	FileSize     int64  `json:"file_size"`
	MtimeSeconds int64  `json:"mtime_seconds"`
	ContentHash  string `json:"content_hash,omitempty"`
}

// Matches reports whether this stamp is still valid against other (the stamp
// freshly computed from the file on disk). A populated ContentHash on either
// side that disagrees with the other invalidates the match; an empty hash on
// either side is treated as "not checked", matching the opt-in hashing policy.
func (s ValidationStamp) Matches(other ValidationStamp) bool {
	if s.FileSize != other.FileSize || s.MtimeSeconds != other.MtimeSeconds {
		return false
	}
	if s.ContentHash != "" && other.ContentHash != "" {
		return s.ContentHash == other.ContentHash
	}
	return true
}

// Metadata is the persisted `<id>.metadata.json` sidecar: enough information
// to answer list/schema queries without recompiling the module.
type Metadata struct {
	ComponentID         ID                   `json:"component_id"`
	ToolSchemas         []ToolEntry          `json:"tool_schemas"`
	FunctionIdentifiers []FunctionIdentifier `json:"function_identifiers"`
	NormalizedToolNames []string             `json:"normalized_tool_names"`
	ValidationStamp     ValidationStamp      `json:"validation_stamp"`
	CreatedAt           time.Time            `json:"created_at"`
}

// LoadOutcome reports whether a load() created a new component or replaced
// an existing one with the same id.
type LoadOutcome int

const (
	LoadNew LoadOutcome = iota
	LoadReplaced
)

func (o LoadOutcome) String() string {
	if o == LoadReplaced {
		return "replaced"
	}
	return "new"
}

// LoadResult is the return value of Lifecycle.Load.
type LoadResult struct {
	ID      ID
	Outcome LoadOutcome
}
