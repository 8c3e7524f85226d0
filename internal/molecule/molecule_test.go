package molecule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waterDescriptor = `atom = "O 0 0 0; H 0 0 0.96; H 0 0.75 -0.29"
basis = "6-31g"
symmetry = true
spin_sq = 0
charge = 0
n_frozen = 1
`

func writeDescriptor(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseReadsAllFields(t *testing.T) {
	spec := Parse(waterDescriptor)

	assert.Equal(t, "O 0 0 0; H 0 0 0.96; H 0 0.75 -0.29", spec.Atom)
	assert.Equal(t, "6-31g", spec.Basis)
	assert.True(t, spec.Symmetry)
	assert.Equal(t, 0, spec.SpinSq)
	assert.Equal(t, 0, spec.Charge)
	assert.Equal(t, 1, spec.NFrozen)
	assert.Equal(t, waterDescriptor, spec.Raw)
}

func TestParseAppliesDefaults(t *testing.T) {
	spec := Parse(`atom = "H 0 0 0"`)

	assert.Equal(t, DefaultBasis, spec.Basis)
	assert.Equal(t, 1, spec.NFrozen)
	assert.False(t, spec.Symmetry)
}

func TestParseIgnoresMalformedLines(t *testing.T) {
	spec := Parse("atom = \"H 0 0 0\"\nnot a field\nspin_sq = banana\n= orphan\n")

	assert.Equal(t, "H 0 0 0", spec.Atom)
	assert.Equal(t, 0, spec.SpinSq)
}

func TestLoadDirSortedByName(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "water.txt", waterDescriptor)
	writeDescriptor(t, dir, "ammonia.txt", `atom = "N 0 0 0; H 0 0 1"`)
	writeDescriptor(t, dir, "notes.md", "not a descriptor")

	specs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "ammonia", specs[0].Name)
	assert.Equal(t, "water", specs[1].Name)
}

func TestLoadDirFailsWhenEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)
}

func TestLoadDirFailsWhenMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestDegradedCopyRewritesBasis(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "water.txt", waterDescriptor)
	spec, err := Load(path)
	require.NoError(t, err)

	degraded, err := DegradedCopy(spec)
	require.NoError(t, err)

	assert.Equal(t, "water", degraded.Name)
	assert.Equal(t, DefaultBasis, degraded.Basis)
	assert.Equal(t, spec.Atom, degraded.Atom)
	assert.Equal(t, filepath.Join(dir, "water_fallback_sto3g.txt"), degraded.Path)

	written, err := os.ReadFile(degraded.Path)
	require.NoError(t, err)
	assert.Contains(t, string(written), `basis = "sto-3g"`)
	assert.NotContains(t, string(written), "6-31g")
}

func TestDegradedCopyRequiresSourceFile(t *testing.T) {
	_, err := DegradedCopy(Parse(waterDescriptor))
	assert.Error(t, err)
}

func TestMoveToFallbackDir(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, "water.txt", waterDescriptor)
	spec, err := Load(path)
	require.NoError(t, err)
	degraded, err := DegradedCopy(spec)
	require.NoError(t, err)

	target, err := MoveToFallbackDir(degraded, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FallbackDirName, "water_fallback.txt"), target)
	assert.FileExists(t, target)
	assert.NoFileExists(t, degraded.Path)
}
