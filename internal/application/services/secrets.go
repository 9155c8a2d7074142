package services

import "github.com/loomhost/loom/internal/domain/component"

// ListComponentSecrets returns the configured secret keys for id (never
// their values).
func (m *LifecycleManager) ListComponentSecrets(id component.ID) ([]string, error) {
	keys, err := m.secrets.List(id)
	if err != nil {
		return nil, component.New("list_component_secrets", component.KindIO, err)
	}
	return keys, nil
}

// SetComponentSecrets stores values and, when id is loaded with an attached
// policy, merges them into its live host-state template so they are visible
// to the next invocation without a policy re-attach. A component with no
// attached policy picks the stored secrets up at its next policy attach.
func (m *LifecycleManager) SetComponentSecrets(id component.ID, values map[string]string) error {
	if err := m.secrets.Set(id, values); err != nil {
		return component.New("set_component_secrets", component.KindIO, err)
	}
	return m.refreshSecretsInTemplate(id)
}

// DeleteComponentSecrets removes keys and rebuilds id's live host-state
// template.
func (m *LifecycleManager) DeleteComponentSecrets(id component.ID, keys []string) error {
	if err := m.secrets.Delete(id, keys); err != nil {
		return component.New("delete_component_secrets", component.KindIO, err)
	}
	if m.componentLoaded(id) && m.policies.Has(id) {
		template := m.policies.Get(id).Clone()
		for _, k := range keys {
			delete(template.EnvVars, k)
		}
		m.policies.Attach(id, template)
	}
	return m.refreshSecretsInTemplate(id)
}

// refreshSecretsInTemplate re-merges id's stored secrets into its currently
// attached template, leaving every other grant untouched.
func (m *LifecycleManager) refreshSecretsInTemplate(id component.ID) error {
	if !m.componentLoaded(id) || !m.policies.Has(id) {
		return nil
	}
	secrets, err := m.secrets.Load(id)
	if err != nil {
		return component.New("refresh_secrets", component.KindIO, err)
	}
	template := m.policies.Get(id).Clone()
	for k, v := range secrets {
		template.EnvVars[k] = v
	}
	m.policies.Attach(id, template)
	return nil
}
