package hostfuncs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tetratelabs/wazero/api"
)

// logMessageWire is the payload a guest sends to log_message.
type logMessageWire struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogMessage is the loom_host.log_message import: lets a guest emit a
// structured log line through the host's own slog pipeline instead of
// writing to stdout/stderr, so operators see guest diagnostics alongside
// the host's own.
func LogMessage(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, size := unpackPtrLen(stack[0])
	raw, ok := readGuestBytes(ctx, mod, ptr, size)
	if !ok {
		return
	}
	var msg logMessageWire
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	pluginName := getPluginName(ctx, mod)
	switch msg.Level {
	case "debug":
		slog.DebugContext(ctx, msg.Message, "component", pluginName)
	case "warn", "warning":
		slog.WarnContext(ctx, msg.Message, "component", pluginName)
	case "error":
		slog.ErrorContext(ctx, msg.Message, "component", pluginName)
	default:
		slog.InfoContext(ctx, msg.Message, "component", pluginName)
	}
}
