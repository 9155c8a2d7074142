// Package policy implements the default ports.PolicyParser: YAML bytes to
// capabilities.PolicyValue. Grounded in the teacher's
// internal/infrastructure/capabilities/file_store.go, which already uses
// goccy/go-yaml for a flat capability-grant document; this generalizes the
// same library usage to the richer {network, storage, environment,
// memory_limit, resource_limits} document shape the policy value requires
// (SPEC_FULL.md §11.3).
package policy

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/loomhost/loom/internal/domain/capabilities"
)

// Parser is the default capabilities.PolicyValue decoder.
type Parser struct{}

// NewParser constructs a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseBytes decodes a `<id>.policy.yaml` (or `<id>.secrets.yaml`-adjacent
// policy) document into a PolicyValue. An empty document decodes to
// capabilities.Empty() rather than erroring.
func (p *Parser) ParseBytes(data []byte) (capabilities.PolicyValue, error) {
	var value capabilities.PolicyValue
	if len(data) == 0 {
		return capabilities.Empty(), nil
	}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return capabilities.PolicyValue{}, fmt.Errorf("policy: parse document: %w", err)
	}
	return value, nil
}
