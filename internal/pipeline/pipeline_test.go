package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbatchproject/qbatch/internal/circuit"
	"github.com/qbatchproject/qbatch/internal/estimator"
	"github.com/qbatchproject/qbatch/internal/executor"
	"github.com/qbatchproject/qbatch/internal/molecule"
	"github.com/qbatchproject/qbatch/internal/qbatch/configuration"
	"github.com/qbatchproject/qbatch/internal/scheduler"
	"github.com/qbatchproject/qbatch/internal/solver"
)

type fakeDirectory struct {
	profiles []*scheduler.BackendProfile
}

func (d *fakeDirectory) List(ctx context.Context) ([]*scheduler.BackendProfile, error) {
	return d.profiles, nil
}

type fakeBuilder struct{}

func (b *fakeBuilder) Build(ctx context.Context, spec *molecule.Spec, est estimator.ResourceEstimate, backendName string, reps int, optLevel int) (*circuit.Artifact, error) {
	return &circuit.Artifact{
		JobName:     spec.Name,
		BackendName: backendName,
		NumQubits:   est.QubitNeed,
		Depth:       est.DepthEstimate,
		Payload:     []byte(spec.Basis),
	}, nil
}

type fakeSubmitter struct {
	failFor string
}

func (s *fakeSubmitter) Submit(ctx context.Context, artifact *circuit.Artifact, backendName string, shots int) (*executor.Execution, error) {
	if s.failFor != "" && artifact.JobName == s.failFor {
		return nil, errors.New("backend rejected the job")
	}
	return &executor.Execution{
		Mode:            executor.ModeSimulated,
		MeasurementData: map[string]int{"0101": shots},
		JobID:           "sim_" + artifact.JobName,
		BackendName:     backendName + "_sim",
	}, nil
}

// fakeProvider encodes the basis into the integral dimensions: the cheap default
// basis yields 2 orbitals, anything richer yields 4.
type fakeProvider struct{}

func (p *fakeProvider) Integrals(ctx context.Context, atom string, basis string, symmetry bool, spinSq int, charge int, nFrozen int) (*solver.Integrals, error) {
	orbitals := 4
	if basis == molecule.DefaultBasis {
		orbitals = 2
	}
	return &solver.Integrals{
		NumOrbitals:      orbitals,
		NumElecA:         1,
		NumElecB:         1,
		NuclearRepulsion: 0.5,
		OneBody:          make([]float64, orbitals*orbitals),
		TwoBody:          make([]float64, orbitals*orbitals),
	}, nil
}

// fakeSolver succeeds only for 2-orbital inputs; anything else surfaces the
// recognised result-shape failure, driving the degraded rerun path.
type fakeSolver struct{}

func (s *fakeSolver) Solve(ctx context.Context, integrals *solver.Integrals, measurements map[string]int, opts solver.Options) (*solver.Result, error) {
	if integrals.NumOrbitals != 2 {
		return nil, &solver.ErrResultShape{Detail: "subspace dimensions inconsistent with measurement width"}
	}
	return &solver.Result{Energy: -1.5, SubspaceDim: 4}, nil
}

type countingGate struct {
	calls int64
}

func (g *countingGate) Wait(ctx context.Context) error {
	atomic.AddInt64(&g.calls, 1)
	return nil
}

const cheapDescriptor = "atom = \"H 0 0 0; H 0 0 0.74\"\nbasis = \"sto-3g\"\n"
const richDescriptor = "atom = \"O 0 0 0; H 0 0 0.96; H 0 0.75 -0.29\"\nbasis = \"6-31g\"\n"

func testConfig(t *testing.T) configuration.QbatchConfig {
	config := configuration.DefaultConfig()
	config.CompoundsDir = filepath.Join(t.TempDir(), "compounds")
	config.ResultsDir = filepath.Join(t.TempDir(), "results")
	config.CacheDir = filepath.Join(t.TempDir(), "cache")
	config.Pipeline.MaxConcurrentPreparations = 2
	config.Pipeline.Shots = 128
	config.Retry.MaxTries = 2
	config.Retry.Delay = time.Millisecond
	require.NoError(t, os.MkdirAll(config.CompoundsDir, 0o755))
	return config
}

func writeCompound(t *testing.T, dir string, name string, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(content), 0o644))
}

func testCollaborators() Collaborators {
	return Collaborators{
		Directory: &fakeDirectory{profiles: []*scheduler.BackendProfile{
			{Name: "lagos", QubitCapacity: 27},
			{Name: "nairobi", QubitCapacity: 7},
		}},
		Builder:   &fakeBuilder{},
		Submitter: &fakeSubmitter{},
		Integrals: &fakeProvider{},
		Solver:    &fakeSolver{},
	}
}

func TestNewValidatesCollaborators(t *testing.T) {
	collab := testCollaborators()
	collab.Solver = nil
	_, err := New(testConfig(t), collab)
	assert.Error(t, err)
}

func TestRunCompletesAllJobs(t *testing.T) {
	config := testConfig(t)
	writeCompound(t, config.CompoundsDir, "hydrogen", cheapDescriptor)
	writeCompound(t, config.CompoundsDir, "dimer", cheapDescriptor)
	writeCompound(t, config.CompoundsDir, "trimer", cheapDescriptor)

	orchestrator, err := New(config, testCollaborators())
	require.NoError(t, err)
	summary, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Fallbacks)
	for _, record := range summary.Records {
		require.NotNil(t, record.Energy)
		assert.InDelta(t, -1.0, *record.Energy, 1e-9)
	}

	files, err := filepath.Glob(filepath.Join(config.ResultsDir, "result_*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestRunDegradedFallbackRecoversShapeFailure(t *testing.T) {
	config := testConfig(t)
	writeCompound(t, config.CompoundsDir, "water", richDescriptor)

	orchestrator, err := New(config, testCollaborators())
	require.NoError(t, err)
	summary, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Fallbacks)

	record := summary.Records[0]
	assert.Equal(t, "water", record.JobName)
	assert.True(t, record.IsFallback)
	require.NotNil(t, record.Energy)

	// The degraded descriptor is archived once consumed.
	archived := filepath.Join(config.CompoundsDir, molecule.FallbackDirName, "water_fallback.txt")
	assert.FileExists(t, archived)

	files, err := filepath.Glob(filepath.Join(config.ResultsDir, "result_water_*_fallback.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRunIsolatesPreparationFailure(t *testing.T) {
	config := testConfig(t)
	writeCompound(t, config.CompoundsDir, "hydrogen", cheapDescriptor)
	writeCompound(t, config.CompoundsDir, "poison", cheapDescriptor)
	writeCompound(t, config.CompoundsDir, "trimer", cheapDescriptor)

	collab := testCollaborators()
	collab.Submitter = &fakeSubmitter{failFor: "poison"}

	orchestrator, err := New(config, collab)
	require.NoError(t, err)
	summary, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)

	var failed *ResultRecord
	for _, record := range summary.Records {
		if record.JobName == "poison" {
			failed = record
		}
	}
	require.NotNil(t, failed)
	assert.Nil(t, failed.Energy)
}

func TestRunFailsWithoutCompounds(t *testing.T) {
	config := testConfig(t)
	orchestrator, err := New(config, testCollaborators())
	require.NoError(t, err)

	_, err = orchestrator.Run(context.Background())
	assert.Error(t, err)
}

func TestRunConsultsAdmissionGatePerPreparation(t *testing.T) {
	config := testConfig(t)
	writeCompound(t, config.CompoundsDir, "hydrogen", cheapDescriptor)
	writeCompound(t, config.CompoundsDir, "dimer", cheapDescriptor)

	gate := &countingGate{}
	collab := testCollaborators()
	collab.Gate = gate

	orchestrator, err := New(config, collab)
	require.NoError(t, err)
	_, err = orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&gate.calls))
}
