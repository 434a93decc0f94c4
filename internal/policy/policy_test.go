package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
schema: pyembed.policy/v1
default_placement: in-memory
default_bytecode_optimize_level: 0
resources:
  - pattern: "test.*"
    placement: filesystem
  - pattern: "vendored.*"
    placement: in-memory
    bytecode_optimize_level: 2
`

func writeTempPolicy(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAndDefaultPlacement(t *testing.T) {
	path := writeTempPolicy(t, sampleYAML)
	p, err := Load(path)
	require.NoError(t, err)

	resolved := p.For("mypkg.core")
	assert.Equal(t, PlacementInMemory, resolved.Placement)
	assert.Equal(t, 0, resolved.BytecodeOptimizeLevel)
}

func TestForMatchesFirstRule(t *testing.T) {
	path := writeTempPolicy(t, sampleYAML)
	p, err := Load(path)
	require.NoError(t, err)

	resolved := p.For("test.foo")
	assert.Equal(t, PlacementFilesystem, resolved.Placement)

	resolved = p.For("vendored.bar")
	assert.Equal(t, PlacementInMemory, resolved.Placement)
	assert.Equal(t, 2, resolved.BytecodeOptimizeLevel)
}

func TestLoadRejectsRuleWithoutPattern(t *testing.T) {
	path := writeTempPolicy(t, "resources:\n  - placement: filesystem\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/policy.yaml")
	require.Error(t, err)
}
