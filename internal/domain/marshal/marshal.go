package marshal

import "fmt"

// MismatchError reports a JSON value that cannot be coerced to the declared
// type at Path. Callers wrap this as a component.Error{Kind: KindMarshal}.
type MismatchError struct {
	Path string
	Msg  string
}

func (e *MismatchError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// JSONToVals performs a recursive descent over json values driven by
// paramTypes, one value per declared parameter.
func JSONToVals(values []any, paramTypes []ValueType) ([]Val, error) {
	if len(values) != len(paramTypes) {
		return nil, &MismatchError{Msg: fmt.Sprintf("expected %d arguments, got %d", len(paramTypes), len(values))}
	}
	out := make([]Val, len(values))
	for i, t := range paramTypes {
		v, err := jsonToVal(values[i], t, fmt.Sprintf("arg%d", i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func jsonToVal(v any, t ValueType, path string) (Val, error) {
	switch t.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected bool"}
		}
		return Val{Kind: KindBool, Bool: b}, nil

	case KindS8, KindS16, KindS32, KindS64:
		n, ok := v.(float64)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected integer"}
		}
		return Val{Kind: t.Kind, Int: int64(n)}, nil

	case KindU8, KindU16, KindU32, KindU64:
		n, ok := v.(float64)
		if !ok || n < 0 {
			return Val{}, &MismatchError{Path: path, Msg: "expected unsigned integer"}
		}
		return Val{Kind: t.Kind, Uint: uint64(n)}, nil

	case KindF32, KindF64:
		n, ok := v.(float64)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected number"}
		}
		return Val{Kind: t.Kind, Float: n}, nil

	case KindString:
		s, ok := v.(string)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected string"}
		}
		return Val{Kind: KindString, String: s}, nil

	case KindList:
		list, ok := v.([]any)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected array"}
		}
		elems := make([]Val, len(list))
		for i, item := range list {
			ev, err := jsonToVal(item, *t.Element, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Val{}, err
			}
			elems[i] = ev
		}
		return Val{Kind: KindList, List: elems}, nil

	case KindOption:
		if v == nil {
			return Val{Kind: KindOption, Option: nil}, nil
		}
		inner, err := jsonToVal(v, *t.Element, path+"?")
		if err != nil {
			return Val{}, err
		}
		return Val{Kind: KindOption, Option: &inner}, nil

	case KindTuple:
		list, ok := v.([]any)
		if !ok || len(list) != len(t.Elements) {
			return Val{}, &MismatchError{Path: path, Msg: fmt.Sprintf("expected tuple of arity %d", len(t.Elements))}
		}
		elems := make([]Val, len(list))
		for i, item := range list {
			ev, err := jsonToVal(item, t.Elements[i], fmt.Sprintf("%s.%d", path, i))
			if err != nil {
				return Val{}, err
			}
			elems[i] = ev
		}
		return Val{Kind: KindTuple, Tuple: elems}, nil

	case KindRecord:
		obj, ok := v.(map[string]any)
		if !ok {
			return Val{}, &MismatchError{Path: path, Msg: "expected object"}
		}
		fields := make(map[string]Val, len(t.Fields))
		for _, f := range t.Fields {
			fv, present := obj[f.Name]
			if !present {
				if f.Type.Kind == KindOption {
					fields[f.Name] = Val{Kind: KindOption, Option: nil}
					continue
				}
				return Val{}, &MismatchError{Path: path + "." + f.Name, Msg: "missing required field"}
			}
			val, err := jsonToVal(fv, f.Type, path+"."+f.Name)
			if err != nil {
				return Val{}, err
			}
			fields[f.Name] = val
		}
		return Val{Kind: KindRecord, Record: fields}, nil

	case KindVariant:
		obj, ok := v.(map[string]any)
		if !ok || len(obj) != 1 {
			return Val{}, &MismatchError{Path: path, Msg: "expected single-key variant object"}
		}
		for caseName, payload := range obj {
			for _, c := range t.Cases {
				if c.Name != caseName {
					continue
				}
				if c.Payload == nil {
					return Val{Kind: KindVariant, VariantCase: caseName}, nil
				}
				pv, err := jsonToVal(payload, *c.Payload, path+"."+caseName)
				if err != nil {
					return Val{}, err
				}
				return Val{Kind: KindVariant, VariantCase: caseName, VariantPayload: &pv}, nil
			}
			return Val{}, &MismatchError{Path: path, Msg: fmt.Sprintf("unknown variant case %q", caseName)}
		}
	}
	return Val{}, &MismatchError{Path: path, Msg: "unsupported type"}
}

// PlaceholderResults returns a list of default-initialized values the guest
// can fill in; the ABI requires pre-allocated result slots before a call.
func PlaceholderResults(resultTypes []ValueType) []Val {
	out := make([]Val, len(resultTypes))
	for i, t := range resultTypes {
		out[i] = placeholder(t)
	}
	return out
}

func placeholder(t ValueType) Val {
	switch t.Kind {
	case KindList:
		return Val{Kind: KindList, List: nil}
	case KindOption:
		return Val{Kind: KindOption, Option: nil}
	case KindTuple:
		elems := make([]Val, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = placeholder(e)
		}
		return Val{Kind: KindTuple, Tuple: elems}
	case KindRecord:
		fields := make(map[string]Val, len(t.Fields))
		for _, f := range t.Fields {
			fields[f.Name] = placeholder(f.Type)
		}
		return Val{Kind: KindRecord, Record: fields}
	case KindVariant:
		if len(t.Cases) == 0 {
			return Val{Kind: KindVariant}
		}
		first := t.Cases[0]
		if first.Payload == nil {
			return Val{Kind: KindVariant, VariantCase: first.Name}
		}
		p := placeholder(*first.Payload)
		return Val{Kind: KindVariant, VariantCase: first.Name, VariantPayload: &p}
	case KindString:
		return Val{Kind: KindString}
	default:
		return Val{Kind: t.Kind}
	}
}

// ValsToJSON is the reverse of JSONToVals. If vals has exactly one element
// that is already a JSON string, it is returned as a bare JSON string (not
// re-wrapped in an array); otherwise a JSON value is produced for the
// Schema Canonicalizer to later align.
func ValsToJSON(vals []Val) any {
	if len(vals) == 1 && vals[0].Kind == KindString {
		return vals[0].String
	}
	if len(vals) == 1 {
		return valToJSON(vals[0])
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = valToJSON(v)
	}
	return out
}

func valToJSON(v Val) any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindS8, KindS16, KindS32, KindS64:
		return float64(v.Int)
	case KindU8, KindU16, KindU32, KindU64:
		return float64(v.Uint)
	case KindF32, KindF64:
		return v.Float
	case KindString:
		return v.String
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = valToJSON(e)
		}
		return out
	case KindOption:
		if v.Option == nil {
			return nil
		}
		return valToJSON(*v.Option)
	case KindTuple:
		out := make([]any, len(v.Tuple))
		for i, e := range v.Tuple {
			out[i] = valToJSON(e)
		}
		return out
	case KindRecord:
		out := make(map[string]any, len(v.Record))
		for k, e := range v.Record {
			out[k] = valToJSON(e)
		}
		return out
	case KindVariant:
		if v.VariantPayload == nil {
			return map[string]any{v.VariantCase: nil}
		}
		return map[string]any{v.VariantCase: valToJSON(*v.VariantPayload)}
	default:
		return nil
	}
}
