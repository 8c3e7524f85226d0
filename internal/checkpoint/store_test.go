package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageState struct {
	Energy float64
	JobID  string
}

func TestNewStoreRequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}

func TestDoPersistsAndReplays(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	calls := 0
	fn := func() (stageState, error) {
		calls++
		return stageState{Energy: -1.5, JobID: "sim_abc"}, nil
	}

	first, fromCheckpoint, err := Do(store, "water", fn)
	require.NoError(t, err)
	assert.False(t, fromCheckpoint)
	assert.Equal(t, 1, calls)

	second, fromCheckpoint, err := Do(store, "water", fn)
	require.NoError(t, err)
	assert.True(t, fromCheckpoint)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestDoSurvivesStoreReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, _, err = Do(store, "water", func() (stageState, error) {
		return stageState{Energy: -2.25}, nil
	})
	require.NoError(t, err)

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	state, fromCheckpoint, err := Do(reopened, "water", func() (stageState, error) {
		t.Fatal("stage should not rerun after reopen")
		return stageState{}, nil
	})
	require.NoError(t, err)
	assert.True(t, fromCheckpoint)
	assert.Equal(t, -2.25, state.Energy)
}

func TestDoDoesNotCheckpointFailures(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	calls := 0
	_, _, err = Do(store, "water", func() (stageState, error) {
		calls++
		return stageState{}, errors.New("solver unavailable")
	})
	require.Error(t, err)

	_, fromCheckpoint, err := Do(store, "water", func() (stageState, error) {
		calls++
		return stageState{Energy: -1}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCheckpoint)
	assert.Equal(t, 2, calls)
}

func TestDoRecomputesCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water.json"), []byte("{not json"), 0o644))

	state, fromCheckpoint, err := Do(store, "water", func() (stageState, error) {
		return stageState{Energy: -3}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCheckpoint)
	assert.Equal(t, -3.0, state.Energy)
}

func TestWipeClearsEveryCheckpoint(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = Do(store, "water", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	require.NoError(t, store.Wipe())

	calls := 0
	_, fromCheckpoint, err := Do(store, "water", func() (int, error) {
		calls++
		return 2, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCheckpoint)
	assert.Equal(t, 1, calls)
}
