package services

import (
	"context"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/domain/component"
	"github.com/loomhost/loom/internal/domain/marshal"
	"github.com/loomhost/loom/internal/domain/schema"
)

// signatureFor finds the parameter/result types fn was introspected with.
func signatureFor(linked ports.LinkedComponent, fn component.FunctionIdentifier) ([]string, []marshal.ValueType, []marshal.ValueType, error) {
	for _, f := range linked.Functions() {
		if f.Identifier == fn {
			return f.ParamNames, f.ParamTypes, f.ResultTypes, nil
		}
	}
	return nil, nil, nil, fmt.Errorf("function %s not found on linked component", fn.ToolName())
}

// Execute looks up tool on component id, marshals argsJSON into the guest's
// declared parameter types, invokes it, and returns the result serialized
// to a JSON string aligned to the tool's canonicalized output schema.
func (m *LifecycleManager) Execute(ctx context.Context, id component.ID, tool string, argsJSON string) (string, error) {
	const op = "execute"

	m.mu.RLock()
	linked, ok := m.components[id]
	m.mu.RUnlock()
	if !ok {
		return "", component.New(op, component.KindUnknownComponent, fmt.Errorf("component %s not loaded", id))
	}

	entry, ok := m.tools.SchemaFor(id, tool)
	if !ok {
		return "", component.New(op, component.KindUnknownTool, fmt.Errorf("component %s has no tool %q", id, tool))
	}

	var args any
	if argsJSON == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", component.New(op, component.KindMarshal, err)
	}

	if err := m.validateArgs(tool, args); err != nil {
		return "", component.New(op, component.KindMarshal, err)
	}

	paramNames, paramTypes, resultTypes, err := signatureFor(linked, entry.Function)
	if err != nil {
		return "", component.New(op, component.KindUnknownTool, err)
	}

	argValues, err := jsonArgsToVals(args, paramNames, paramTypes)
	if err != nil {
		return "", component.New(op, component.KindMarshal, err)
	}

	template := m.policies.Get(id)

	result, err := m.engine.Call(ctx, linked, template, entry.Function, argValues)
	if err != nil {
		return "", classifyCallError(op, err)
	}

	_ = resultTypes // results already typed by the engine adapter's decode step
	resultJSON := marshal.ValsToJSON(result.Values)

	if entry.OutputSchema != nil {
		resultJSON = schema.AlignStructuredResult(entry.OutputSchema, resultJSON)
	}

	out, err := json.Marshal(resultJSON)
	if err != nil {
		return "", component.New(op, component.KindMarshal, err)
	}
	return string(out), nil
}

// jsonArgsToVals adapts a decoded JSON args value (object, array, or scalar)
// to the positional argument list json_to_vals expects. A JSON object is
// resolved to positions by declared parameter name, never by map iteration
// order (Go map order is randomized and would silently swap same-typed
// arguments).
func jsonArgsToVals(args any, paramNames []string, paramTypes []marshal.ValueType) ([]marshal.Val, error) {
	switch v := args.(type) {
	case map[string]any:
		if len(paramTypes) == 1 && paramTypes[0].Kind == marshal.KindRecord {
			return marshal.JSONToVals([]any{v}, paramTypes)
		}
		positional := make([]any, len(paramTypes))
		for i := range positional {
			if i < len(paramNames) {
				if val, ok := v[paramNames[i]]; ok {
					positional[i] = val
				}
			}
		}
		return marshal.JSONToVals(positional, paramTypes)
	case []any:
		return marshal.JSONToVals(v, paramTypes)
	default:
		return marshal.JSONToVals([]any{v}, paramTypes)
	}
}

func classifyCallError(op string, err error) error {
	if ce, ok := err.(*component.Error); ok {
		return ce
	}
	return component.New(op, component.KindGuestTrap, err)
}

func (m *LifecycleManager) validateArgs(tool string, args any) error {
	m.validatorsMu.Lock()
	validator, ok := m.validators[tool]
	m.validatorsMu.Unlock()
	if !ok {
		return nil
	}
	return validator.Validate(args)
}

func compileInputSchema(name string, schemaDoc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := compiler.AddResource(url, jsonDecode(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func jsonDecode(data []byte) any {
	var v any
	_ = json.Unmarshal(data, &v)
	return v
}
