package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONToVals_Primitives(t *testing.T) {
	vals, err := JSONToVals([]any{"hello", 42.0, true}, []ValueType{
		{Kind: KindString}, {Kind: KindS32}, {Kind: KindBool},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", vals[0].String)
	assert.Equal(t, int64(42), vals[1].Int)
	assert.Equal(t, true, vals[2].Bool)
}

func TestJSONToVals_ArityMismatch(t *testing.T) {
	_, err := JSONToVals([]any{"only one"}, []ValueType{{Kind: KindString}, {Kind: KindBool}})
	require.Error(t, err)
}

func TestJSONToVals_RecordMissingRequiredField(t *testing.T) {
	recordType := ValueType{Kind: KindRecord, Fields: []Field{
		{Name: "url", Type: ValueType{Kind: KindString}},
	}}
	_, err := JSONToVals([]any{map[string]any{}}, []ValueType{recordType})
	require.Error(t, err)
}

func TestJSONToVals_OptionNoneAndSome(t *testing.T) {
	optType := ValueType{Kind: KindOption, Element: &ValueType{Kind: KindString}}

	none, err := JSONToVals([]any{nil}, []ValueType{optType})
	require.NoError(t, err)
	assert.Nil(t, none[0].Option)

	some, err := JSONToVals([]any{"x"}, []ValueType{optType})
	require.NoError(t, err)
	require.NotNil(t, some[0].Option)
	assert.Equal(t, "x", some[0].Option.String)
}

func TestJSONToVals_Variant(t *testing.T) {
	variantType := ValueType{Kind: KindVariant, Cases: []Case{
		{Name: "ok", Payload: &ValueType{Kind: KindString}},
		{Name: "err", Payload: &ValueType{Kind: KindString}},
	}}
	vals, err := JSONToVals([]any{map[string]any{"ok": "done"}}, []ValueType{variantType})
	require.NoError(t, err)
	assert.Equal(t, "ok", vals[0].VariantCase)
	require.NotNil(t, vals[0].VariantPayload)
	assert.Equal(t, "done", vals[0].VariantPayload.String)
}

func TestPlaceholderResults(t *testing.T) {
	types := []ValueType{{Kind: KindString}, {Kind: KindOption, Element: &ValueType{Kind: KindS32}}}
	placeholders := PlaceholderResults(types)
	require.Len(t, placeholders, 2)
	assert.Equal(t, "", placeholders[0].String)
	assert.Nil(t, placeholders[1].Option)
}

func TestValsToJSON_SingleStringUnwrapped(t *testing.T) {
	got := ValsToJSON([]Val{{Kind: KindString, String: `{"ok":"hi"}`}})
	assert.Equal(t, `{"ok":"hi"}`, got)
}

func TestValsToJSON_RoundTripRecord(t *testing.T) {
	recordType := ValueType{Kind: KindRecord, Fields: []Field{
		{Name: "url", Type: ValueType{Kind: KindString}},
		{Name: "timeout", Type: ValueType{Kind: KindOption, Element: &ValueType{Kind: KindS32}}},
	}}
	in := map[string]any{"url": "https://example.com", "timeout": nil}
	vals, err := JSONToVals([]any{in}, []ValueType{recordType})
	require.NoError(t, err)

	got := ValsToJSON(vals)
	asMap, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", asMap["url"])
	assert.Nil(t, asMap["timeout"])
}
