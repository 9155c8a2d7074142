// Package hostfuncs implements the host functions a guest component may
// import: outbound HTTP gated by the live HostStateTemplate, and a logging
// sink. Grounded on the teacher's internal/infrastructure/wasm/hostfuncs
// package, generalized from a static plugin-name-keyed CapabilityChecker to
// a per-call HostStateTemplate threaded through the call context, since the
// template in force is read again at every invocation (SPEC_FULL.md §4.5/§9).
package hostfuncs

import (
	"context"

	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
)

type contextKey struct{ name string }

var (
	hostStateKey   = &contextKey{name: "host_state_template"}
	componentIDKey = &contextKey{name: "component_id"}
)

// WithHostState binds the sandbox template active for the in-flight call.
// Host functions consult it to decide whether a requested capability is
// granted; it is never mutated once built (SPEC_FULL.md §9 "clone-heavy
// host state").
func WithHostState(ctx context.Context, template *capabilities.HostStateTemplate) context.Context {
	return context.WithValue(ctx, hostStateKey, template)
}

// HostStateFromContext retrieves the template bound by WithHostState.
func HostStateFromContext(ctx context.Context) *capabilities.HostStateTemplate {
	t, _ := ctx.Value(hostStateKey).(*capabilities.HostStateTemplate)
	return t
}

// WithComponentID tags the context with the id of the component making the
// call, for log attribution.
func WithComponentID(ctx context.Context, id component.ID) context.Context {
	return context.WithValue(ctx, componentIDKey, id)
}

// ComponentIDFromContext retrieves the id bound by WithComponentID.
func ComponentIDFromContext(ctx context.Context) component.ID {
	id, _ := ctx.Value(componentIDKey).(component.ID)
	return id
}
