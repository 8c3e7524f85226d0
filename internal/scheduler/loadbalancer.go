package scheduler

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// fallbackScore is recorded as the adjusted score of an emergency assignment.
const fallbackScore = 1000.0

// LoadBalancer assigns every job in a batch to a backend. Given a fixed backend
// set and fixed estimates, a pass is fully deterministic: backends are enumerated
// in name order and jobs are processed largest-first.
type LoadBalancer struct {
	scorer *Scorer
	// loadFactor weights a backend's current batch load when adjusting its score.
	loadFactor float64
}

func NewLoadBalancer(scorer *Scorer, loadFactor float64) (*LoadBalancer, error) {
	if scorer == nil {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "scorer",
			Value:   scorer,
			Message: "scorer must be non-nil",
		})
	}
	if loadFactor < 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "loadFactor",
			Value:   loadFactor,
			Message: "loadFactor must be non-negative",
		})
	}
	return &LoadBalancer{scorer: scorer, loadFactor: loadFactor}, nil
}

// Assign produces a fresh Plan mapping every job to exactly one backend.
//
// Jobs are placed in descending qubit-need order so the biggest jobs get first
// pick of the least-loaded capable backends. For each job the feasible backend
// with the lowest load-adjusted score wins; ties go to the earlier backend in
// name order. A job no backend can fit is given an emergency assignment on the
// first backend in name order, flagged IsFallback; this is non-fatal.
func (b *LoadBalancer) Assign(jobs []*Job, profiles []*BackendProfile) (*Plan, error) {
	if len(profiles) == 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "profiles",
			Value:   profiles,
			Message: "no backends available",
		})
	}
	if len(jobs) == 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "jobs",
			Value:   jobs,
			Message: "no jobs to assign",
		})
	}

	ordered := make([]*BackendProfile, len(profiles))
	copy(ordered, profiles)
	slices.SortFunc(ordered, func(a, c *BackendProfile) bool { return a.Name < c.Name })

	// Score every feasible (job, backend) pair up front.
	baseScores := make(map[string]map[string]float64, len(jobs))
	for _, job := range jobs {
		baseScores[job.Name] = make(map[string]float64, len(ordered))
		for _, profile := range ordered {
			score := b.scorer.Score(profile, job.Estimate)
			baseScores[job.Name][profile.Name] = score
			log.Debugf("job %s on %s: base score %.2f", job.Name, profile.Name, score)
		}
	}

	// Largest jobs first; names break ties so the order is reproducible.
	queue := make([]*Job, len(jobs))
	copy(queue, jobs)
	slices.SortFunc(queue, func(a, c *Job) bool {
		if a.Estimate.QubitNeed != c.Estimate.QubitNeed {
			return a.Estimate.QubitNeed > c.Estimate.QubitNeed
		}
		return a.Name < c.Name
	})

	plan := &Plan{
		Assignments: make(map[string]*Assignment, len(jobs)),
		Loads:       make(map[string]int, len(ordered)),
	}

	for _, job := range queue {
		log.Infof("assigning %s (needs %d qubits)", job.Name, job.Estimate.QubitNeed)

		var best *Assignment
		for _, profile := range ordered {
			base := baseScores[job.Name][profile.Name]
			if base >= InfeasibleScore {
				continue
			}
			adjusted := base + float64(plan.Loads[profile.Name])*b.loadFactor
			if best == nil || adjusted < best.AdjustedScore {
				best = &Assignment{
					Job:              job,
					BackendName:      profile.Name,
					AdjustedScore:    adjusted,
					BaseScore:        base,
					LoadAtAssignment: plan.Loads[profile.Name],
				}
			}
		}

		if best == nil {
			// Emergency path: nothing can fit this job, so park it on the first
			// backend rather than failing the batch.
			name := ordered[0].Name
			log.Errorf("%v; using %s as emergency fallback", &qbatcherrors.ErrNoFeasibleBackend{
				JobName:   job.Name,
				QubitNeed: job.Estimate.QubitNeed,
			}, name)
			best = &Assignment{
				Job:              job,
				BackendName:      name,
				AdjustedScore:    fallbackScore,
				BaseScore:        baseScores[job.Name][name],
				LoadAtAssignment: plan.Loads[name],
				IsFallback:       true,
				Reason:           fmt.Sprintf("emergency fallback: no backend fits %d qubits", job.Estimate.QubitNeed),
			}
		} else {
			best.Reason = fmt.Sprintf(
				"load-balanced assignment (load: %d, score: %.2f)",
				best.LoadAtAssignment, best.AdjustedScore,
			)
		}

		plan.Assignments[job.Name] = best
		plan.Loads[best.BackendName]++

		status := "OPTIMAL"
		if best.IsFallback {
			status = "FALLBACK"
		}
		log.Infof("assigned %s to %s (%s), adjusted score %.2f, backend load now %d",
			job.Name, best.BackendName, status, best.AdjustedScore, plan.Loads[best.BackendName])
	}

	logLoadSummary(plan)
	return plan, nil
}

func logLoadSummary(plan *Plan) {
	names := make([]string, 0, len(plan.Loads))
	for name := range plan.Loads {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Info("load balancing summary:")
	for _, name := range names {
		log.Infof("  %s: %d jobs assigned", name, plan.Loads[name])
	}
}
