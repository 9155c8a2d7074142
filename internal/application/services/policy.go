package services

import (
	"context"
	"fmt"

	"github.com/loomhost/loom/internal/domain/capabilities"
	"github.com/loomhost/loom/internal/domain/component"
)

// AttachPolicy fetches the policy document at uri, parses it, builds a host
// state template, and attaches it to id. Failure returns *Fetch or
// *PolicyParse and leaves any previously attached policy untouched.
func (m *LifecycleManager) AttachPolicy(ctx context.Context, id component.ID, uri string) error {
	const op = "attach_policy"
	resource, err := m.fetcher.Fetch(ctx, uri)
	if err != nil {
		return component.New(op, component.KindFetch, err)
	}
	return m.attachPolicyBytes(id, resource.Bytes())
}

// attachPolicyBytes parses and attaches a policy document already resident
// in memory (used by both AttachPolicy and the co-located-sidecar path at
// load time, which reads its bytes directly from the Cache Store).
func (m *LifecycleManager) attachPolicyBytes(id component.ID, data []byte) error {
	const op = "attach_policy"
	policy, err := m.policyParser.ParseBytes(data)
	if err != nil {
		return component.New(op, component.KindPolicyParse, err)
	}

	secrets, err := m.secrets.Load(id)
	if err != nil {
		secrets = nil
	}

	template := m.capBuilder.Build(policy, secrets)
	m.policies.Attach(id, template)
	return nil
}

// DetachPolicy reverts id to the default empty-capability template.
func (m *LifecycleManager) DetachPolicy(id component.ID) error {
	if !m.componentLoaded(id) {
		return component.New("detach_policy", component.KindNotFound, fmt.Errorf("component %s not loaded", id))
	}
	m.policies.Detach(id)
	return nil
}

// PermissionKind names the capability section a grant/revoke/reset targets.
type PermissionKind string

const (
	PermissionNetwork     PermissionKind = "network"
	PermissionStorage     PermissionKind = "storage"
	PermissionEnvironment PermissionKind = "environment"
)

// GrantPermission adds one capability grant to id's live template without
// requiring a full policy document round-trip.
func (m *LifecycleManager) GrantPermission(id component.ID, kind PermissionKind, detail string, access []capabilities.AccessMode) error {
	if !m.componentLoaded(id) {
		return component.New("grant_permission", component.KindNotFound, fmt.Errorf("component %s not loaded", id))
	}
	template := m.policies.Get(id).Clone()
	switch kind {
	case PermissionNetwork:
		if detail == "" {
			return component.New("grant_permission", component.KindInvalidPermission, fmt.Errorf("network grant requires a host"))
		}
		template.AllowedHosts[detail] = struct{}{}
	case PermissionStorage:
		if detail == "" {
			return component.New("grant_permission", component.KindInvalidPermission, fmt.Errorf("storage grant requires a uri"))
		}
		var canRead, canWrite bool
		for _, a := range access {
			switch a {
			case capabilities.AccessRead:
				canRead = true
			case capabilities.AccessWrite:
				canWrite = true
			}
		}
		template.PreopenedDirs = append(template.PreopenedDirs, capabilities.PreopenedDir{
			HostPath: m.capBuilder.resolveStorageURI(detail), GuestPath: detail, CanRead: canRead, CanWrite: canWrite,
		})
	case PermissionEnvironment:
		if detail == "" {
			return component.New("grant_permission", component.KindInvalidPermission, fmt.Errorf("environment grant requires a key"))
		}
		if v, ok := m.capBuilder.EnvVars[detail]; ok {
			template.EnvVars[detail] = v
		}
	default:
		return component.New("grant_permission", component.KindInvalidPermission, fmt.Errorf("unknown permission kind %q", kind))
	}
	m.policies.Attach(id, template)
	return nil
}

// RevokePermission removes one capability grant from id's live template.
func (m *LifecycleManager) RevokePermission(id component.ID, kind PermissionKind, detail string) error {
	if !m.componentLoaded(id) {
		return component.New("revoke_permission", component.KindNotFound, fmt.Errorf("component %s not loaded", id))
	}
	template := m.policies.Get(id).Clone()
	switch kind {
	case PermissionNetwork:
		delete(template.AllowedHosts, detail)
	case PermissionStorage:
		return m.RevokeStoragePermissionByURI(id, detail)
	case PermissionEnvironment:
		delete(template.EnvVars, detail)
	default:
		return component.New("revoke_permission", component.KindInvalidPermission, fmt.Errorf("unknown permission kind %q", kind))
	}
	m.policies.Attach(id, template)
	return nil
}

// RevokeStoragePermissionByURI removes every preopen whose host path or
// guest path equals uri, leaving every other grant untouched. A no-op (not an error) if
// no entry matches.
func (m *LifecycleManager) RevokeStoragePermissionByURI(id component.ID, uri string) error {
	if !m.componentLoaded(id) {
		return component.New("revoke_storage_permission_by_uri", component.KindNotFound, fmt.Errorf("component %s not loaded", id))
	}
	template := m.policies.Get(id).RemoveStorageByURI(uri)
	m.policies.Attach(id, template)
	return nil
}

// ResetPermission reverts id's template to the default empty-capability one.
func (m *LifecycleManager) ResetPermission(id component.ID) error {
	return m.DetachPolicy(id)
}

func (m *LifecycleManager) componentLoaded(id component.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.components[id]
	return ok
}
