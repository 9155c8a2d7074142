package capabilities

// PreopenedDir is one filesystem mount a component's sandbox exposes.
type PreopenedDir struct {
	HostPath  string
	GuestPath string
	CanRead   bool
	CanWrite  bool
}

// ResourceLimiter bounds memory growth for a single instantiation. Compiled
// once per policy attach from ResourceLimitsSection/MemoryLimit and cloned
// (shared, read-only) across every call against that component.
type ResourceLimiter struct {
	MaxMemoryPages   uint32
	MaxTableElements uint32
}

// HostStateTemplate is the compiled, immutable-after-build form of a policy:
// everything the engine adapter needs to construct a fresh per-call sandbox.
// It is built once per policy attach and cloned (not rebuilt) per invocation.
type HostStateTemplate struct {
	AllowedHosts  map[string]struct{}
	PreopenedDirs []PreopenedDir
	EnvVars       map[string]string
	ConfigVars    map[string]string
	Limiter       *ResourceLimiter
}

// NewEmptyTemplate is the default template attached to a component with no
// policy: no network, no filesystem, no environment variables.
func NewEmptyTemplate() *HostStateTemplate {
	return &HostStateTemplate{
		AllowedHosts: map[string]struct{}{},
		EnvVars:      map[string]string{},
		ConfigVars:   map[string]string{},
	}
}

// AllowsHost reports whether host is permitted by this template.
func (t *HostStateTemplate) AllowsHost(host string) bool {
	if t == nil {
		return false
	}
	_, ok := t.AllowedHosts[host]
	return ok
}

// Clone produces an independent copy safe for a single invocation to mutate
// (e.g. the engine adapter may add per-call env entries on top of this).
// The template itself is never mutated in place once built.
func (t *HostStateTemplate) Clone() *HostStateTemplate {
	if t == nil {
		return NewEmptyTemplate()
	}
	hosts := make(map[string]struct{}, len(t.AllowedHosts))
	for h := range t.AllowedHosts {
		hosts[h] = struct{}{}
	}
	dirs := make([]PreopenedDir, len(t.PreopenedDirs))
	copy(dirs, t.PreopenedDirs)
	env := make(map[string]string, len(t.EnvVars))
	for k, v := range t.EnvVars {
		env[k] = v
	}
	cfg := make(map[string]string, len(t.ConfigVars))
	for k, v := range t.ConfigVars {
		cfg[k] = v
	}
	var limiter *ResourceLimiter
	if t.Limiter != nil {
		l := *t.Limiter
		limiter = &l
	}
	return &HostStateTemplate{
		AllowedHosts:  hosts,
		PreopenedDirs: dirs,
		EnvVars:       env,
		ConfigVars:    cfg,
		Limiter:       limiter,
	}
}

// RemoveStorageByURI returns a clone without every preopen whose HostPath or
// GuestPath equals uri, used by RevokeStoragePermissionByURI. A no-op (not an error) if no
// entry matches.
func (t *HostStateTemplate) RemoveStorageByURI(uri string) *HostStateTemplate {
	clone := t.Clone()
	kept := clone.PreopenedDirs[:0]
	for _, d := range clone.PreopenedDirs {
		if d.HostPath == uri || d.GuestPath == uri {
			continue
		}
		kept = append(kept, d)
	}
	clone.PreopenedDirs = kept
	return clone
}
