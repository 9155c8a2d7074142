package hostfuncs

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
)

// HTTPRequestWire is the JSON a guest packs into memory before calling
// http_request. Context carries an optional deadline in Unix millis; zero
// means no guest-supplied deadline.
type HTTPRequestWire struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"` // base64
	Context struct {
		DeadlineUnixMilli int64 `json:"deadline_unix_milli,omitempty"`
	} `json:"context,omitempty"`
}

// ErrorDetail is returned in place of a response when the request cannot be
// made: a denied capability, an invalid URL, or a transport failure.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"` // "capability", "config", "transport", "internal"
}

// HTTPResponseWire is the JSON written back into guest memory.
type HTTPResponseWire struct {
	StatusCode    int                 `json:"status_code,omitempty"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          string              `json:"body,omitempty"` // base64
	BodyTruncated bool                `json:"body_truncated,omitempty"`
	Error         *ErrorDetail        `json:"error,omitempty"`
}

func packPtrLen(ptr, size uint32) uint64 {
	return uint64(ptr)<<32 | uint64(size)
}

func unpackPtrLen(packed uint64) (ptr, size uint32) {
	return uint32(packed >> 32), uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: WASM32 addresses are always 32-bit
}

func getPluginName(ctx context.Context, mod api.Module) string {
	if id := ComponentIDFromContext(ctx); id != "" {
		return id.String()
	}
	return mod.Name()
}

// readGuestBytes reads size bytes at ptr and deallocates the region
// afterwards via the guest's exported deallocate, mirroring the
// allocate/deallocate convention used for every ptr+len boundary crossing.
func readGuestBytes(ctx context.Context, mod api.Module, ptr, size uint32) ([]byte, bool) {
	data, ok := mod.Memory().Read(ptr, size)
	if !ok {
		return nil, false
	}
	out := make([]byte, size)
	copy(out, data)
	if dealloc := mod.ExportedFunction("deallocate"); dealloc != nil {
		//nolint:errcheck // best-effort cleanup
		dealloc.Call(ctx, uint64(ptr), uint64(size))
	}
	return out, true
}

// writeGuestJSON marshals v, allocates guest memory for it via the guest's
// exported allocate, and writes it. Returns the packed ptr+len the host
// function hands back to the guest.
func writeGuestJSON(ctx context.Context, mod api.Module, v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		return 0
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 || !mod.Memory().Write(ptr, data) {
		return 0
	}
	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by guest-declared allocation size
}
