package scheduler

import (
	"github.com/qbatchproject/qbatch/internal/common/util"
	"github.com/qbatchproject/qbatch/internal/estimator"
)

// InfeasibleScore is the sentinel returned when a backend cannot fit a job at all.
// Any score greater than or equal to it excludes the (job, backend) pair.
const InfeasibleScore = 1e9

// ScoringConfig holds the weights and thresholds of the backend scorer. Defaults
// substitute for metrics missing from a profile so scoring degrades gracefully
// instead of excluding the backend outright; they are expressed post-scaling.
type ScoringConfig struct {
	// DepthPenalty is added once when a job's depth estimate exceeds DepthThreshold.
	DepthThreshold int
	DepthPenalty   float64
	// GateErrorWeight scales the two-qubit gate error rate.
	GateErrorWeight  float64
	DefaultGateError float64
	// ReadoutErrorWeight scales the summed readout error across needed qubits.
	ReadoutErrorWeight  float64
	DefaultReadoutError float64
	// QueueWeight scales the backend's pending-job count.
	QueueWeight float64
	// CalibrationAgeDivisor divides the calibration age in hours.
	CalibrationAgeDivisor float64
	DefaultAgePenalty     float64
}

// DefaultScoringConfig returns the scoring parameters tuned for the production
// backend pool.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DepthThreshold:        400,
		DepthPenalty:          100,
		GateErrorWeight:       1000,
		DefaultGateError:      10,
		ReadoutErrorWeight:    10,
		DefaultReadoutError:   5,
		QueueWeight:           10,
		CalibrationAgeDivisor: 6,
		DefaultAgePenalty:     2,
	}
}

// Scorer scores (job, backend) pairs. Lower is better.
type Scorer struct {
	config ScoringConfig
	clock  util.Clock
}

func NewScorer(config ScoringConfig, clock util.Clock) *Scorer {
	if clock == nil {
		clock = &util.DefaultClock{}
	}
	return &Scorer{config: config, clock: clock}
}

// Score returns the cost of running a job with the given resource estimate on the
// given backend. It returns InfeasibleScore when the backend lacks the qubits the
// job needs; otherwise it never fails, substituting documented defaults for any
// metric absent from the profile.
func (s *Scorer) Score(profile *BackendProfile, est estimator.ResourceEstimate) float64 {
	if profile.QubitCapacity < est.QubitNeed {
		return InfeasibleScore
	}

	score := 0.0
	if est.DepthEstimate > s.config.DepthThreshold {
		score += s.config.DepthPenalty
	}

	if profile.TwoQubitGateError > 0 {
		score += profile.TwoQubitGateError * s.config.GateErrorWeight
	} else {
		score += s.config.DefaultGateError
	}

	needed := est.QubitNeed
	if needed > profile.QubitCapacity {
		needed = profile.QubitCapacity
	}
	if len(profile.ReadoutError) > 0 {
		sum := 0.0
		for q := 0; q < needed && q < len(profile.ReadoutError); q++ {
			sum += profile.ReadoutError[q]
		}
		score += sum * s.config.ReadoutErrorWeight
	} else {
		score += s.config.DefaultReadoutError
	}

	score += float64(profile.PendingJobs) * s.config.QueueWeight

	if !profile.LastCalibration.IsZero() {
		ageHours := s.clock.Now().Sub(profile.LastCalibration).Hours()
		score += ageHours / s.config.CalibrationAgeDivisor
	} else {
		score += s.config.DefaultAgePenalty
	}

	return score
}
