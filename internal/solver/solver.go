// Package solver defines the heavy-compute collaborator boundary: turning
// molecular integrals and measurement data into an energy value. The numerical
// method itself is external to the scheduling core; this package owns only the
// interfaces, the options record and the error taxonomy the orchestrator
// branches on.
package solver

import (
	"context"
	"fmt"
)

// Options configures one heavy-compute invocation.
type Options struct {
	EnergyTol       float64
	OccupanciesTol  float64
	MaxIterations   int
	NumBatches      int
	SamplesPerBatch int
	SymmetrizeSpin  bool
	CarryoverThresh float64
	MaxCycle        int
}

// DefaultOptions returns the solver configuration used for production batches.
func DefaultOptions() Options {
	return Options{
		EnergyTol:       1e-3,
		OccupanciesTol:  1e-3,
		MaxIterations:   5,
		NumBatches:      3,
		SamplesPerBatch: 300,
		SymmetrizeSpin:  true,
		CarryoverThresh: 1e-4,
		MaxCycle:        200,
	}
}

// Integrals are the electronic-structure inputs of the heavy-compute stage,
// derived once per job by an IntegralProvider.
type Integrals struct {
	NumOrbitals      int
	NumElecA         int
	NumElecB         int
	NuclearRepulsion float64
	// OneBody and TwoBody are the flattened integral tensors, opaque to the core.
	OneBody []float64
	TwoBody []float64
}

// Result of a successful heavy-compute invocation. Energy excludes the nuclear
// repulsion term; callers add Integrals.NuclearRepulsion for the total.
type Result struct {
	Energy      float64
	SubspaceDim int
}

// ErrResultShape marks the recognised class of compute failure where the result
// is malformed or size-inconsistent. The orchestrator reacts with a one-shot
// degraded-basis fallback instead of failing the job.
type ErrResultShape struct {
	JobName string
	Detail  string
}

func (err *ErrResultShape) Error() string {
	return fmt.Sprintf("malformed compute result for %q: %s", err.JobName, err.Detail)
}

// Solver is the heavy-compute collaborator. Implementations must be pure with
// respect to their inputs; invocations are strictly serialized by the
// orchestrator and wrapped in checkpointing.
type Solver interface {
	Solve(ctx context.Context, integrals *Integrals, measurements map[string]int, opts Options) (*Result, error)
}

// IntegralProvider derives integrals from a compound descriptor. Pure, so safe
// to cache and retry.
type IntegralProvider interface {
	Integrals(ctx context.Context, atom string, basis string, symmetry bool, spinSq int, charge int, nFrozen int) (*Integrals, error)
}
