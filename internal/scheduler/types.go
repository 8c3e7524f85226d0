// Package scheduler assigns a batch of compound jobs to compute backends. Scoring
// follows a lowest-cost-wins model; balancing is largest-first bin-packing with a
// congestion penalty so queue depth builds evenly across backends.
package scheduler

import (
	"time"

	"github.com/qbatchproject/qbatch/internal/estimator"
	"github.com/qbatchproject/qbatch/internal/molecule"
)

// Job is one compound's prepare-then-compute pipeline instance. Immutable once
// its estimate has been derived.
type Job struct {
	// Name uniquely identifies the job within a batch (the descriptor file stem).
	Name     string
	Spec     *molecule.Spec
	Estimate estimator.ResourceEstimate
}

// BackendProfile is a read-only snapshot of one backend for the duration of a
// balancing pass. It is owned by the backend directory collaborator.
type BackendProfile struct {
	Name          string
	QubitCapacity int
	// TwoQubitGateError is the representative two-qubit gate error rate.
	// Zero or negative means the metric could not be read.
	TwoQubitGateError float64
	// ReadoutError holds per-qubit readout error rates. Empty means unknown.
	ReadoutError []float64
	PendingJobs  int
	// LastCalibration is the time of the most recent calibration.
	// The zero value means unknown.
	LastCalibration time.Time
	SupportedGates  []string
}

// Assignment records the outcome of placing one job on one backend. Created once
// per job per batch and not mutated afterwards.
type Assignment struct {
	Job         *Job
	BackendName string
	// AdjustedScore is the base score plus the congestion penalty at assignment time.
	AdjustedScore float64
	BaseScore     float64
	// LoadAtAssignment is how many jobs this batch had already placed on the
	// backend when this one was assigned.
	LoadAtAssignment int
	// IsFallback marks an emergency assignment made when no backend could fit the job.
	IsFallback bool
	Reason     string
}

// Plan is the per-batch result of a balancing pass: one assignment per job plus
// the final per-backend load counters. A new pass always starts from a fresh Plan;
// counters are never decremented or carried across batches.
type Plan struct {
	// Assignments keyed by job name.
	Assignments map[string]*Assignment
	// Loads counts cumulative assignments per backend for this batch.
	Loads map[string]int
}
