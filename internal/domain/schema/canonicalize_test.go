package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeOutputSchema_WrapsScalar(t *testing.T) {
	in := map[string]any{"type": "string"}
	out := CanonicalizeOutputSchema(in)

	assert.Equal(t, "object", out["type"])
	props, ok := out["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string"}, props["result"])
	assert.Equal(t, []any{"result"}, out["required"])
}

func TestCanonicalizeOutputSchema_ObjectWithoutResult(t *testing.T) {
	in := map[string]any{
		"type":       "object",
		"properties": map[string]any{"ok": map[string]any{"type": "string"}},
		"required":   []any{"ok"},
	}
	out := CanonicalizeOutputSchema(in)

	props := out["properties"].(map[string]any)
	result := props["result"].(map[string]any)
	assert.Equal(t, in, result)
}

func TestCanonicalizeOutputSchema_AlreadyWrapped(t *testing.T) {
	in := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{"type": "string"},
		},
		"required": []any{"result"},
	}
	out := CanonicalizeOutputSchema(in)
	assert.Equal(t, in, out)
}

func TestCanonicalizeOutputSchema_Idempotent(t *testing.T) {
	in := map[string]any{
		"oneOf": []any{
			map[string]any{"type": "object", "properties": map[string]any{"ok": map[string]any{"type": "string"}}, "required": []any{"ok"}},
			map[string]any{"type": "object", "properties": map[string]any{"err": map[string]any{"type": "string"}}, "required": []any{"err"}},
		},
	}
	once := CanonicalizeOutputSchema(in)
	twice := CanonicalizeOutputSchema(once)
	assert.Equal(t, once, twice)
}

func TestCanonicalizeOutputSchema_TupleRewrite(t *testing.T) {
	in := map[string]any{
		"type": "array",
		"items": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
		},
	}
	out := CanonicalizeOutputSchema(in)

	props := out["properties"].(map[string]any)
	result := props["result"].(map[string]any)
	assert.Equal(t, "object", result["type"])
	resultProps := result["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, resultProps["val0"])
	assert.Equal(t, map[string]any{"type": "number"}, resultProps["val1"])
	assert.Equal(t, []any{"val0", "val1"}, result["required"])
}

func TestAlignStructuredResult_NoResultProperty(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{"foo": map[string]any{}}}
	v := map[string]any{"foo": "bar"}
	assert.Equal(t, v, AlignStructuredResult(schema, v))
}

func TestAlignStructuredResult_WrapsPlainValue(t *testing.T) {
	schema := CanonicalizeOutputSchema(map[string]any{
		"oneOf": []any{
			map[string]any{"type": "object", "properties": map[string]any{"ok": map[string]any{"type": "string"}}, "required": []any{"ok"}},
		},
	})
	v := map[string]any{"ok": "hi"}
	got := AlignStructuredResult(schema, v)
	assert.Equal(t, map[string]any{"result": map[string]any{"ok": "hi"}}, got)
}

func TestAlignStructuredResult_TupleArrayToObject(t *testing.T) {
	schema := CanonicalizeOutputSchema(map[string]any{
		"type":  "array",
		"items": []any{map[string]any{"type": "string"}, map[string]any{"type": "number"}},
	})
	got := AlignStructuredResult(schema, []any{"a", 1.0})
	assert.Equal(t, map[string]any{"result": map[string]any{"val0": "a", "val1": 1.0}}, got)
}

func TestAlignStructuredResult_ScalarToTuple(t *testing.T) {
	schema := CanonicalizeOutputSchema(map[string]any{
		"type":  "array",
		"items": []any{map[string]any{"type": "string"}},
	})
	got := AlignStructuredResult(schema, "solo")
	assert.Equal(t, map[string]any{"result": map[string]any{"val0": "solo"}}, got)
}

func TestAlignStructuredResult_MissingObjectPropertiesFilledWithNull(t *testing.T) {
	schema := CanonicalizeOutputSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}, "b": map[string]any{"type": "string"}},
	})
	got := AlignStructuredResult(schema, map[string]any{"a": "x"})
	assert.Equal(t, map[string]any{"result": map[string]any{"a": "x", "b": nil}}, got)
}
