package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HostModuleName is the import module name every guest links its host
// functions against.
const HostModuleName = "loom_host"

// RegisterHostFunctions installs the capability-gated host functions a
// guest may import. Dropped the teacher's dns_lookup/tcp_connect/
// smtp_connect/exec_command (no scan-plugin use case exists in this
// domain; SPEC_FULL.md's capability model only names network/storage/
// environment/secrets, not raw TCP/SMTP/process primitives) in favor of a
// single http_request import, plus log_message for guest diagnostics.
// Storage and environment capabilities are realized directly through
// wazero's own FSConfig/env mechanisms at instantiation time rather than
// host functions (see engine.go's moduleConfig).
func RegisterHostFunctions(ctx context.Context, runtime wazero.Runtime) error {
	builder := runtime.NewHostModuleBuilder(HostModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			HTTPRequest(ctx, mod, stack)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("http_request")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			LogMessage(ctx, mod, stack)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}
