package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhost/loom/internal/domain/capabilities"
)

func TestParser_ParseBytes(t *testing.T) {
	t.Parallel()

	doc := []byte(`
network:
  allow:
    - host: api.example.com
storage:
  allow:
    - uri: fs://data
      access: [read, write]
environment:
  allow:
    - key: HOME
memory_limit: 67108864
resource_limits:
  max_table_elements: 1024
`)

	p := NewParser()
	value, err := p.ParseBytes(doc)
	require.NoError(t, err)

	assert.Equal(t, []capabilities.NetworkRule{{Host: "api.example.com"}}, value.Network.Allow)
	require.Len(t, value.Storage.Allow, 1)
	assert.Equal(t, "fs://data", value.Storage.Allow[0].URI)
	assert.ElementsMatch(t, []capabilities.AccessMode{capabilities.AccessRead, capabilities.AccessWrite}, value.Storage.Allow[0].Access)
	assert.Equal(t, []capabilities.EnvironmentRule{{Key: "HOME"}}, value.Environment.Allow)
	require.NotNil(t, value.MemoryLimit)
	assert.Equal(t, int64(67108864), *value.MemoryLimit)
	require.NotNil(t, value.ResourceLimits)
	require.NotNil(t, value.ResourceLimits.MaxTableElements)
	assert.Equal(t, uint32(1024), *value.ResourceLimits.MaxTableElements)
}

func TestParser_ParseBytes_Empty(t *testing.T) {
	t.Parallel()

	p := NewParser()
	value, err := p.ParseBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, capabilities.Empty(), value)
}

func TestParser_ParseBytes_Invalid(t *testing.T) {
	t.Parallel()

	p := NewParser()
	_, err := p.ParseBytes([]byte("network: ---\n-"))
	require.Error(t, err)
}
