// Package pipeline drives the two-phase execution model: bounded-parallel
// preparation gated on host capacity, then strictly sequential heavy compute
// with checkpointing and a one-shot degraded-basis fallback.
package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/backends"
	"github.com/qbatchproject/qbatch/internal/checkpoint"
	"github.com/qbatchproject/qbatch/internal/circuit"
	"github.com/qbatchproject/qbatch/internal/common/util"
	"github.com/qbatchproject/qbatch/internal/estimator"
	"github.com/qbatchproject/qbatch/internal/executor"
	"github.com/qbatchproject/qbatch/internal/molecule"
	"github.com/qbatchproject/qbatch/internal/qbatch/configuration"
	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
	"github.com/qbatchproject/qbatch/internal/reliability"
	"github.com/qbatchproject/qbatch/internal/scheduler"
	"github.com/qbatchproject/qbatch/internal/solver"
)

// AdmissionGate blocks Phase 1 admission while the host is overloaded.
// Satisfied by *monitor.ResourceMonitor.
type AdmissionGate interface {
	Wait(ctx context.Context) error
}

// Collaborators are the external services the orchestrator composes. All are
// required except Gate, which may be nil to disable admission control.
type Collaborators struct {
	Directory backends.Directory
	Builder   circuit.Builder
	Submitter executor.Submitter
	Integrals solver.IntegralProvider
	Solver    solver.Solver
	Gate      AdmissionGate
}

// Orchestrator runs one batch end to end: estimate, balance, prepare, compute,
// report.
type Orchestrator struct {
	config   configuration.QbatchConfig
	collab   Collaborators
	balancer *scheduler.LoadBalancer
	opts     solver.Options
	clock    util.Clock
}

func New(config configuration.QbatchConfig, collab Collaborators) (*Orchestrator, error) {
	if collab.Directory == nil || collab.Builder == nil || collab.Submitter == nil ||
		collab.Integrals == nil || collab.Solver == nil {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "collab",
			Value:   collab,
			Message: "all collaborators except Gate are required",
		})
	}
	scorer := scheduler.NewScorer(config.Scheduling.Scoring, nil)
	balancer, err := scheduler.NewLoadBalancer(scorer, config.Scheduling.LoadFactor)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		config:   config,
		collab:   collab,
		balancer: balancer,
		opts:     solver.DefaultOptions(),
		clock:    &util.DefaultClock{},
	}, nil
}

// preparedJob carries everything Phase 2 needs for one job. Created at the end
// of Phase 1 and consumed exactly once.
type preparedJob struct {
	job        *scheduler.Job
	assignment *scheduler.Assignment
	spec       *molecule.Spec
	integrals  *solver.Integrals
	execution  *executor.Execution
	degraded   bool
}

// Run executes a full batch over the configured compounds directory.
// Only enumeration, directory listing and balancing failures are batch-fatal;
// every job-local failure is isolated into that job's result record.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	batch, err := newBatch(o.config, o.clock)
	if err != nil {
		return nil, err
	}
	log.Infof("starting batch %s", batch.RunID)

	specs, err := molecule.LoadDir(o.config.CompoundsDir)
	if err != nil {
		return nil, err
	}
	jobs := make([]*scheduler.Job, 0, len(specs))
	for _, spec := range specs {
		est := estimator.Estimate(spec.Name, spec.Raw)
		log.Infof("analyzed %s: complexity %d (%d atoms, basis tier %d), needs %d qubits, depth ~%d",
			spec.Name, est.ComplexityScore, est.AtomCount, est.BasisTier, est.QubitNeed, est.DepthEstimate)
		jobs = append(jobs, &scheduler.Job{Name: spec.Name, Spec: spec, Estimate: est})
	}

	profiles, err := o.collab.Directory.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list backends")
	}
	if path, err := backends.WriteSnapshot(o.config.CacheDir, profiles, o.clock.Now()); err != nil {
		log.WithError(err).Warn("failed to write backend snapshot")
	} else {
		log.Infof("backend snapshot saved to %s", path)
	}

	plan, err := o.balancer.Assign(jobs, profiles)
	if err != nil {
		return nil, err
	}

	log.Infof("phase 1: preparing %d jobs (max %d concurrent)", len(jobs), o.config.Pipeline.MaxConcurrentPreparations)
	prepared, prepFailed := o.preparePhase(ctx, batch, jobs, plan)
	log.Infof("phase 1 completed: %d jobs prepared, %d failed", len(prepared), len(prepFailed))

	log.Infof("phase 2: running %d computations strictly sequentially", len(prepared))
	records := o.computePhase(ctx, batch, prepared)

	// Jobs that never reached Phase 2 still appear in the final report.
	failedNames := make([]string, 0, len(prepFailed))
	for name := range prepFailed {
		failedNames = append(failedNames, name)
	}
	sort.Strings(failedNames)
	for _, name := range failedNames {
		records = append(records, &ResultRecord{
			JobName:     name,
			BackendName: plan.Assignments[name].BackendName,
		})
	}

	summary := buildSummary(records)
	log.Infof("batch %s finished:\n%s", batch.RunID, summary.String())
	return summary, nil
}

// preparePhase runs preparation for every assigned job on a bounded worker pool.
// Results are collected in completion order. A job's failure is recorded and
// never aborts the batch or cancels sibling jobs.
func (o *Orchestrator) preparePhase(
	ctx context.Context,
	batch *Batch,
	jobs []*scheduler.Job,
	plan *scheduler.Plan,
) ([]*preparedJob, map[string]error) {
	concurrency := o.config.Pipeline.MaxConcurrentPreparations
	if concurrency < 1 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)
	results := make(chan *preparedJob, len(jobs))

	var mu sync.Mutex
	failures := make(map[string]error, len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		assignment := plan.Assignments[job.Name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			p, err := o.prepareOne(ctx, batch, job, assignment, false)
			if err != nil {
				log.WithError(err).Errorf("failed to prepare %s", job.Name)
				prepFailures.Inc()
				mu.Lock()
				failures[job.Name] = err
				mu.Unlock()
				return
			}
			jobsPrepared.Inc()
			results <- p
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	prepared := make([]*preparedJob, 0, len(jobs))
	for p := range results {
		log.Infof("prepared (%d/%d): %s", len(prepared)+1, len(jobs), p.job.Name)
		prepared = append(prepared, p)
	}

	if len(failures) > 0 {
		var agg *multierror.Error
		for name, err := range failures {
			agg = multierror.Append(agg, errors.Wrapf(err, "job %s", name))
		}
		log.Warnf("phase 1 failures: %v", agg.ErrorOrNil())
	}
	return prepared, failures
}

// prepareOne runs one job's preparation sequence: admission gate, integrals
// (cached, retried), artifact build (retried), submission (retried, never
// cached since it has external side effects).
func (o *Orchestrator) prepareOne(
	ctx context.Context,
	batch *Batch,
	job *scheduler.Job,
	assignment *scheduler.Assignment,
	degraded bool,
) (*preparedJob, error) {
	if o.collab.Gate != nil {
		if err := o.collab.Gate.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "admission gate")
		}
	}
	log.Infof("preparing compound %s on %s", job.Name, assignment.BackendName)

	retryConfig := reliability.RetryConfig{
		MaxTries: o.config.Retry.MaxTries,
		Delay:    o.config.Retry.Delay,
	}
	spec := job.Spec

	integrals, err := reliability.Cached(batch.Cache, "integrals",
		[]interface{}{spec.Atom, spec.Basis, spec.Symmetry, spec.SpinSq, spec.Charge, spec.NFrozen},
		func() (*solver.Integrals, error) {
			return reliability.RetryResult(ctx, "integrals for "+job.Name, retryConfig, func() (*solver.Integrals, error) {
				return o.collab.Integrals.Integrals(ctx, spec.Atom, spec.Basis, spec.Symmetry, spec.SpinSq, spec.Charge, spec.NFrozen)
			})
		})
	if err != nil {
		return nil, err
	}

	artifact, err := reliability.RetryResult(ctx, "circuit build for "+job.Name, retryConfig, func() (*circuit.Artifact, error) {
		return o.collab.Builder.Build(ctx, spec, job.Estimate, assignment.BackendName, o.config.Pipeline.Reps, o.config.Pipeline.OptimizationLevel)
	})
	if err != nil {
		return nil, err
	}

	execution, err := reliability.RetryResult(ctx, "submission of "+job.Name, retryConfig, func() (*executor.Execution, error) {
		return o.collab.Submitter.Submit(ctx, artifact, assignment.BackendName, o.config.Pipeline.Shots)
	})
	if err != nil {
		return nil, err
	}

	return &preparedJob{
		job:        job,
		assignment: assignment,
		spec:       spec,
		integrals:  integrals,
		execution:  execution,
		degraded:   degraded,
	}, nil
}

// computePhase processes prepared jobs one at a time, in the order Phase 1
// completed them. Heavy compute never runs concurrently, even across jobs.
func (o *Orchestrator) computePhase(ctx context.Context, batch *Batch, prepared []*preparedJob) []*ResultRecord {
	records := make([]*ResultRecord, 0, len(prepared))
	for i, p := range prepared {
		log.Infof("computation %d/%d: %s", i+1, len(prepared), p.job.Name)
		record := o.computeOne(ctx, batch, p)
		if record.Energy != nil {
			jobsSucceeded.Inc()
			if path, err := writeResultFile(batch.ResultsDir, record, o.clock.Now()); err != nil {
				log.WithError(err).Errorf("failed to write result file for %s", record.JobName)
			} else {
				log.Infof("result saved to %s", path)
			}
		} else {
			jobsFailed.Inc()
		}
		records = append(records, record)
	}
	return records
}

// computeOne runs the checkpointed heavy compute for one prepared job. A
// recognised result-shape error on the original attempt triggers exactly one
// degraded rerun; any other error marks the job failed. A job therefore reaches
// heavy compute at most twice.
func (o *Orchestrator) computeOne(ctx context.Context, batch *Batch, p *preparedJob) *ResultRecord {
	key := p.job.Name
	if p.degraded {
		key += "_fallback"
	}

	result, fromCheckpoint, err := checkpoint.Do(batch.Checkpoints, key, func() (*solver.Result, error) {
		return o.collab.Solver.Solve(ctx, p.integrals, p.execution.MeasurementData, o.opts)
	})
	if err == nil {
		if fromCheckpoint {
			log.Infof("reused checkpointed result for %s", key)
		}
		energy := result.Energy + p.integrals.NuclearRepulsion
		log.Infof("completed %s: %.6f (subspace dimension %d)", p.job.Name, energy, result.SubspaceDim)
		return &ResultRecord{
			JobName:     p.job.Name,
			BackendName: p.execution.BackendName,
			JobID:       p.execution.JobID,
			Energy:      &energy,
			IsFallback:  p.degraded,
		}
	}

	var shapeErr *solver.ErrResultShape
	if errors.As(err, &shapeErr) && !p.degraded {
		log.WithError(err).Warnf("result-shape error for %s; rerunning with %s basis", p.job.Name, molecule.DefaultBasis)
		fallbacksUsed.Inc()
		return o.runDegraded(ctx, batch, p)
	}

	log.WithError(err).Errorf("computation failed for %s", p.job.Name)
	return &ResultRecord{
		JobName:     p.job.Name,
		BackendName: p.execution.BackendName,
		JobID:       p.execution.JobID,
		IsFallback:  p.degraded,
	}
}

// runDegraded reruns preparation and compute once for the job's cheaper-basis
// variant, keeping the original backend assignment and job name. There is no
// second-level fallback.
func (o *Orchestrator) runDegraded(ctx context.Context, batch *Batch, p *preparedJob) *ResultRecord {
	failed := &ResultRecord{
		JobName:     p.job.Name,
		BackendName: p.execution.BackendName,
		JobID:       p.execution.JobID,
		IsFallback:  true,
	}

	degradedSpec, err := molecule.DegradedCopy(p.spec)
	if err != nil {
		log.WithError(err).Errorf("cannot create degraded descriptor for %s", p.job.Name)
		return failed
	}
	degradedJob := &scheduler.Job{
		Name:     p.job.Name,
		Spec:     degradedSpec,
		Estimate: estimator.Estimate(p.job.Name, degradedSpec.Raw),
	}

	prepared, err := o.prepareOne(ctx, batch, degradedJob, p.assignment, true)
	if err != nil {
		log.WithError(err).Errorf("degraded preparation failed for %s", p.job.Name)
		return failed
	}
	if _, err := molecule.MoveToFallbackDir(degradedSpec, o.config.CompoundsDir); err != nil {
		log.WithError(err).Warnf("failed to archive degraded descriptor for %s", p.job.Name)
	}

	return o.computeOne(ctx, batch, prepared)
}
