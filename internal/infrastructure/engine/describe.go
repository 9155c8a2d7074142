package engine

import (
	"encoding/json"
	"fmt"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/marshal"
)

// describeDocument is the JSON a component's exported describe() function
// returns: the full set of tool-callable functions it exposes, each
// self-describing its ABI (since wazero has no native component-model
// value representation — see DESIGN.md's "Component Model vs. core wasm
// modules" decision). This is the wire format engine.go decodes; it has no
// counterpart in the teacher (a compliance-plugin host that called a fixed
// describe/schema/observe triad) and is this rewrite's own translation of
// §4.7 step 4 ("extract tool metadata from exports").
type describeDocument struct {
	Functions []describedFunction `json:"functions"`
}

type describedFunction struct {
	Interface    string           `json:"interface,omitempty"`
	Function     string           `json:"function"`
	Params       []describedParam `json:"params"`
	Results      []typeDescriptor `json:"results"`
	InputSchema  map[string]any   `json:"input_schema,omitempty"`
	OutputSchema map[string]any   `json:"output_schema,omitempty"`
}

type describedParam struct {
	Name string         `json:"name"`
	Type typeDescriptor `json:"type"`
}

// typeDescriptor mirrors marshal.ValueType in wire form: {"kind":"string"},
// {"kind":"list","element":...}, {"kind":"record","fields":[...]}, etc.
type typeDescriptor struct {
	Kind     string            `json:"kind"`
	Element  *typeDescriptor   `json:"element,omitempty"`
	Elements []typeDescriptor  `json:"elements,omitempty"`
	Fields   []describedField  `json:"fields,omitempty"`
	Cases    []describedCase   `json:"cases,omitempty"`
}

type describedField struct {
	Name string         `json:"name"`
	Type typeDescriptor `json:"type"`
}

type describedCase struct {
	Name    string          `json:"name"`
	Payload *typeDescriptor `json:"payload,omitempty"`
}

var kindFromWire = map[string]marshal.Kind{
	"bool": marshal.KindBool, "s8": marshal.KindS8, "u8": marshal.KindU8,
	"s16": marshal.KindS16, "u16": marshal.KindU16, "s32": marshal.KindS32,
	"u32": marshal.KindU32, "s64": marshal.KindS64, "u64": marshal.KindU64,
	"f32": marshal.KindF32, "f64": marshal.KindF64, "string": marshal.KindString,
	"list": marshal.KindList, "option": marshal.KindOption, "tuple": marshal.KindTuple,
	"record": marshal.KindRecord, "variant": marshal.KindVariant,
}

func decodeType(t typeDescriptor) (marshal.ValueType, error) {
	kind, ok := kindFromWire[t.Kind]
	if !ok {
		return marshal.ValueType{}, fmt.Errorf("unknown type kind %q", t.Kind)
	}
	vt := marshal.ValueType{Kind: kind}
	switch kind {
	case marshal.KindList, marshal.KindOption:
		if t.Element == nil {
			return marshal.ValueType{}, fmt.Errorf("%s type missing element", t.Kind)
		}
		elem, err := decodeType(*t.Element)
		if err != nil {
			return marshal.ValueType{}, err
		}
		vt.Element = &elem
	case marshal.KindTuple:
		vt.Elements = make([]marshal.ValueType, len(t.Elements))
		for i, e := range t.Elements {
			decoded, err := decodeType(e)
			if err != nil {
				return marshal.ValueType{}, err
			}
			vt.Elements[i] = decoded
		}
	case marshal.KindRecord:
		vt.Fields = make([]marshal.Field, len(t.Fields))
		for i, f := range t.Fields {
			decoded, err := decodeType(f.Type)
			if err != nil {
				return marshal.ValueType{}, err
			}
			vt.Fields[i] = marshal.Field{Name: f.Name, Type: decoded}
		}
	case marshal.KindVariant:
		vt.Cases = make([]marshal.Case, len(t.Cases))
		for i, c := range t.Cases {
			cs := marshal.Case{Name: c.Name}
			if c.Payload != nil {
				decoded, err := decodeType(*c.Payload)
				if err != nil {
					return marshal.ValueType{}, err
				}
				cs.Payload = &decoded
			}
			vt.Cases[i] = cs
		}
	}
	return vt, nil
}

// decodeFunctions parses a describe() payload into the signatures the
// Lifecycle Manager registers as tool entries.
func decodeFunctions(data []byte) ([]ports.FunctionSignature, error) {
	var doc describeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode describe(): %w", err)
	}
	out := make([]ports.FunctionSignature, 0, len(doc.Functions))
	for _, f := range doc.Functions {
		paramNames := make([]string, len(f.Params))
		paramTypes := make([]marshal.ValueType, len(f.Params))
		for i, p := range f.Params {
			t, err := decodeType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("function %s: param %q: %w", f.Function, p.Name, err)
			}
			paramNames[i] = p.Name
			paramTypes[i] = t
		}
		resultTypes := make([]marshal.ValueType, len(f.Results))
		for i, r := range f.Results {
			t, err := decodeType(r)
			if err != nil {
				return nil, fmt.Errorf("function %s: result %d: %w", f.Function, i, err)
			}
			resultTypes[i] = t
		}
		out = append(out, ports.FunctionSignature{
			Identifier:   component.FunctionIdentifier{Interface: f.Interface, Function: f.Function},
			ParamNames:   paramNames,
			ParamTypes:   paramTypes,
			ResultTypes:  resultTypes,
			InputSchema:  f.InputSchema,
			OutputSchema: f.OutputSchema,
		})
	}
	return out, nil
}
