// Package marshal converts between a dynamic JSON surface and the typed
// guest value ABI described by a tool's declared parameter/result types. It
// is the Go-native stand-in for wasmtime's component::Val/component::Type:
// wazero has no native component-model value representation (see
// DESIGN.md), so Val here is an intermediate representation the engine
// adapter encodes to/from the module's JSON wire ABI.
package marshal

// Kind enumerates the shapes a ValueType (and thus a Val) can take.
type Kind int

const (
	KindBool Kind = iota
	KindS8
	KindU8
	KindS16
	KindU16
	KindS32
	KindU32
	KindS64
	KindU64
	KindF32
	KindF64
	KindString
	KindList
	KindOption
	KindTuple
	KindRecord
	KindVariant
)

// Field describes one named member of a Record type.
type Field struct {
	Name string
	Type ValueType
}

// Case describes one named alternative of a Variant type. Payload is nil for
// a unit case.
type Case struct {
	Name    string
	Payload *ValueType
}

// ValueType is the declared type of one parameter, one result, or one
// nested position (list element, option payload, tuple element, record
// field, variant case payload).
type ValueType struct {
	Kind Kind

	// Element is the list/option element type (Kind == KindList/KindOption).
	Element *ValueType

	// Elements are the tuple element types (Kind == KindTuple).
	Elements []ValueType

	// Fields are the record field types (Kind == KindRecord).
	Fields []Field

	// Cases are the variant case types (Kind == KindVariant).
	Cases []Case
}

// Val is a runtime value matching some ValueType.
type Val struct {
	Kind Kind

	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	String string

	// List holds elements for KindList.
	List []Val

	// Option holds the payload for KindOption when present; nil means none.
	Option *Val

	// Tuple holds elements for KindTuple.
	Tuple []Val

	// Record holds field name -> value for KindRecord.
	Record map[string]Val

	// VariantCase/VariantPayload hold the selected case for KindVariant;
	// VariantPayload is nil for a unit case.
	VariantCase    string
	VariantPayload *Val
}
