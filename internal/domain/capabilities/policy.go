// Package capabilities defines the per-component capability policy and the
// sandbox host-state it compiles into. This generalizes the teacher's flat
// Capability{Kind,Pattern} glob grant into the structured sections the host
// actually needs: network, storage, environment, and resource limits.
package capabilities

// PolicyValue is the abstract, parsed form of a `<id>.policy.yaml` document.
// It is consumed read-only by the Capability Builder.
type PolicyValue struct {
	Network        NetworkSection        `yaml:"network"`
	Storage        StorageSection        `yaml:"storage"`
	Environment    EnvironmentSection    `yaml:"environment"`
	MemoryLimit    *int64                `yaml:"memory_limit,omitempty"`
	ResourceLimits *ResourceLimitsSection `yaml:"resource_limits,omitempty"`
}

// NetworkSection lists hosts a component may reach outbound.
type NetworkSection struct {
	Allow []NetworkRule `yaml:"allow"`
}

type NetworkRule struct {
	Host string `yaml:"host"`
}

// StorageSection lists filesystem URIs a component may preopen.
type StorageSection struct {
	Allow []StorageRule `yaml:"allow"`
}

// AccessMode is a single filesystem permission.
type AccessMode string

const (
	AccessRead  AccessMode = "read"
	AccessWrite AccessMode = "write"
)

type StorageRule struct {
	URI    string       `yaml:"uri"`
	Access []AccessMode `yaml:"access"`
}

// EnvironmentSection lists environment-variable keys a component may read
// from the host's frozen environment snapshot.
type EnvironmentSection struct {
	Allow []EnvironmentRule `yaml:"allow"`
}

type EnvironmentRule struct {
	Key string `yaml:"key"`
}

// ResourceLimitsSection bounds execution beyond raw memory.
type ResourceLimitsSection struct {
	MaxTableElements *uint32 `yaml:"max_table_elements,omitempty"`
}

// Empty returns the default, empty-capability policy: every section absent.
func Empty() PolicyValue {
	return PolicyValue{}
}
