// Package schema normalizes tool input/output JSON schemas and aligns
// runtime values to the canonicalized form. It is pure: no I/O, no error
// kind, only deterministic rewriting of map[string]any trees.
package schema

import "fmt"

// CanonicalizeOutputSchema produces a schema of shape
// {type:"object", properties:{result: R}, required includes "result"}.
//
//   - If s is already {type:"object", properties:{result:...}, ...}, the
//     outer shape is kept and the inner result schema is canonicalized.
//   - If s is {type:"object", ...} without a result property, the whole of s
//     becomes the value of result.
//   - Any other schema is wrapped as {type:"object", properties:{result:s}}.
//
// Tuple-shaped arrays ({type:"array", items:[T0,T1,...]}) are rewritten,
// recursively, to {type:"object", properties:{val0:T0, val1:T1,...}}.
func CanonicalizeOutputSchema(s map[string]any) map[string]any {
	s = tupleItemsToObjectSchema(s)
	return ensureStructuredResult(s)
}

func ensureStructuredResult(s map[string]any) map[string]any {
	if isObjectSchema(s) {
		props, _ := s["properties"].(map[string]any)
		if props != nil {
			if result, ok := props["result"]; ok {
				return wrapSchemaInResult(canonicalizeResultSchema(toSchemaMap(result)), s)
			}
		}
		return buildResultWrapper(s)
	}
	return buildResultWrapper(s)
}

// wrapSchemaInResult rebuilds outer with its result property replaced by inner.
func wrapSchemaInResult(inner map[string]any, outer map[string]any) map[string]any {
	out := cloneMap(outer)
	props, _ := out["properties"].(map[string]any)
	newProps := cloneMap(props)
	newProps["result"] = inner
	out["properties"] = newProps
	out["required"] = ensureResultRequired(out["required"])
	return out
}

func canonicalizeResultSchema(s map[string]any) map[string]any {
	return tupleItemsToObjectSchema(s)
}

func buildResultWrapper(s map[string]any) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": tupleItemsToObjectSchema(s),
		},
		"required": []any{"result"},
	}
}

func ensureResultRequired(existing any) []any {
	list, _ := existing.([]any)
	for _, v := range list {
		if s, ok := v.(string); ok && s == "result" {
			return list
		}
	}
	return append(append([]any{}, list...), "result")
}

// tupleItemsToObjectSchema recursively rewrites {type:"array", items:[...]}
// tuple schemas into {type:"object", properties:{val0,val1,...}}.
func tupleItemsToObjectSchema(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	out := cloneMap(s)

	if items, ok := out["items"]; ok {
		if list, isTuple := items.([]any); isTuple {
			props := make(map[string]any, len(list))
			required := make([]any, 0, len(list))
			for i, item := range list {
				key := fmt.Sprintf("val%d", i)
				props[key] = tupleItemsToObjectSchema(toSchemaMap(item))
				required = append(required, key)
			}
			delete(out, "items")
			out["type"] = "object"
			out["properties"] = props
			out["required"] = required
			return out
		}
		out["items"] = tupleItemsToObjectSchema(toSchemaMap(items))
	}

	if props, ok := out["properties"].(map[string]any); ok {
		newProps := make(map[string]any, len(props))
		for k, v := range props {
			newProps[k] = tupleItemsToObjectSchema(toSchemaMap(v))
		}
		out["properties"] = newProps
	}

	for _, key := range []string{"oneOf", "anyOf", "allOf"} {
		if list, ok := out[key].([]any); ok {
			newList := make([]any, len(list))
			for i, v := range list {
				newList[i] = tupleItemsToObjectSchema(toSchemaMap(v))
			}
			out[key] = newList
		}
	}

	return out
}

// AlignStructuredResult coerces a runtime JSON value v into an instance of
// the canonicalized schema. If schema has no "result" property, v is
// returned unchanged (the tool declared no structured output).
func AlignStructuredResult(schema map[string]any, v any) any {
	resultSchema, ok := extractResultSchema(schema)
	if !ok {
		return v
	}

	inner := v
	if m, isMap := v.(map[string]any); isMap {
		if r, has := m["result"]; has && len(m) == 1 {
			inner = r
		}
	}

	return map[string]any{"result": normalizeResultValue(resultSchema, inner)}
}

func extractResultSchema(schema map[string]any) (map[string]any, bool) {
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		return nil, false
	}
	result, ok := props["result"]
	if !ok {
		return nil, false
	}
	return toSchemaMap(result), true
}

// normalizeResultValue aligns v to resultSchema's shape.
func normalizeResultValue(resultSchema map[string]any, v any) any {
	if resultSchema == nil {
		return v
	}

	if looksLikeTupleKeys(resultSchema) {
		props, _ := resultSchema["properties"].(map[string]any)
		switch val := v.(type) {
		case []any:
			out := make(map[string]any, len(val))
			for i, item := range val {
				out[fmt.Sprintf("val%d", i)] = item
			}
			return fillMissingAndKeep(props, out)
		case map[string]any:
			return fillMissingAndKeep(props, val)
		default:
			return fillMissingAndKeep(props, map[string]any{"val0": v})
		}
	}

	if resultSchema["type"] == "array" {
		if m, ok := v.(map[string]any); ok && looksLikeTupleValue(m) {
			return tupleObjectToArray(m)
		}
		return v
	}

	if resultSchema["type"] == "object" {
		if m, ok := v.(map[string]any); ok {
			props, _ := resultSchema["properties"].(map[string]any)
			return fillMissingAndKeep(props, m)
		}
	}

	return v
}

func fillMissingAndKeep(props map[string]any, v map[string]any) map[string]any {
	out := cloneMap(v)
	for key := range props {
		if _, present := out[key]; !present {
			out[key] = nil
		}
	}
	return out
}

func tupleObjectToArray(m map[string]any) []any {
	n := 0
	for {
		if _, ok := m[fmt.Sprintf("val%d", n)]; !ok {
			break
		}
		n++
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = m[fmt.Sprintf("val%d", i)]
	}
	return out
}

func looksLikeTupleKeys(s map[string]any) bool {
	props, ok := s["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return false
	}
	for key := range props {
		if !isValKey(key) {
			return false
		}
	}
	return true
}

func looksLikeTupleValue(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for key := range m {
		if !isValKey(key) {
			return false
		}
	}
	return true
}

func isValKey(key string) bool {
	if len(key) < 4 || key[:3] != "val" {
		return false
	}
	for _, r := range key[3:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isObjectSchema(s map[string]any) bool {
	t, _ := s["type"].(string)
	return t == "object"
}

func toSchemaMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
