package services

import (
	"path/filepath"
	"strings"

	"github.com/loomhost/loom/internal/domain/capabilities"
)

// CapabilityBuilder converts a parsed policy value plus runtime context
// (plugin dir, frozen env snapshot, secrets) into a compiled host-state
// template. Building is O(policy size); the result is cloneable and cheap
// to instantiate per call.
type CapabilityBuilder struct {
	PluginDir string
	EnvVars   map[string]string
}

// NewCapabilityBuilder constructs a builder bound to a plugin directory and
// a frozen environment snapshot.
func NewCapabilityBuilder(pluginDir string, envVars map[string]string) *CapabilityBuilder {
	return &CapabilityBuilder{PluginDir: pluginDir, EnvVars: envVars}
}

// Build compiles policy into a host-state template. secrets, when non-nil,
// is merged into the guest env last so it shadows environment entries on
// key conflict.
func (b *CapabilityBuilder) Build(policy capabilities.PolicyValue, secrets map[string]string) *capabilities.HostStateTemplate {
	t := capabilities.NewEmptyTemplate()

	for _, rule := range policy.Network.Allow {
		if rule.Host != "" {
			t.AllowedHosts[rule.Host] = struct{}{}
		}
	}

	for _, rule := range policy.Storage.Allow {
		hostPath := b.resolveStorageURI(rule.URI)
		var canRead, canWrite bool
		for _, mode := range rule.Access {
			switch mode {
			case capabilities.AccessRead:
				canRead = true
			case capabilities.AccessWrite:
				canWrite = true
			}
		}
		t.PreopenedDirs = append(t.PreopenedDirs, capabilities.PreopenedDir{
			HostPath:  hostPath,
			GuestPath: rule.URI,
			CanRead:   canRead,
			CanWrite:  canWrite,
		})
	}

	for _, rule := range policy.Environment.Allow {
		if v, ok := b.EnvVars[rule.Key]; ok {
			t.EnvVars[rule.Key] = v
		}
	}

	for k, v := range secrets {
		t.EnvVars[k] = v
	}

	if policy.MemoryLimit != nil {
		t.Limiter = &capabilities.ResourceLimiter{
			MaxMemoryPages: uint32(*policy.MemoryLimit / (64 * 1024)),
		}
	}
	if policy.ResourceLimits != nil && policy.ResourceLimits.MaxTableElements != nil {
		if t.Limiter == nil {
			t.Limiter = &capabilities.ResourceLimiter{}
		}
		t.Limiter.MaxTableElements = *policy.ResourceLimits.MaxTableElements
	}

	return t
}

// resolveStorageURI resolves a fs:// (or bare path) URI relative to the
// plugin directory, matching the "typically fs://..." storage URI convention.
func (b *CapabilityBuilder) resolveStorageURI(uri string) string {
	path := strings.TrimPrefix(uri, "fs://")
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.PluginDir, path)
}
