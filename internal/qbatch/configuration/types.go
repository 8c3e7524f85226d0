package configuration

import (
	"time"

	"github.com/qbatchproject/qbatch/internal/scheduler"
)

type QbatchConfig struct {
	// CompoundsDir holds one descriptor file per compound.
	CompoundsDir string
	// ResultsDir receives one result file per completed job.
	ResultsDir string
	// CacheDir holds checkpoints and backend snapshots; wiped at each run start.
	CacheDir    string
	MetricsPort uint16

	Scheduling SchedulingConfig
	Pipeline   PipelineConfig
	Monitor    MonitorConfig
	Retry      RetryConfig

	// BackendDirectoryURL points at the backend directory service. When empty,
	// StaticBackends is used instead.
	BackendDirectoryURL string
	StaticBackends      []StaticBackendConfig
	// ExecutionEndpoint is the remote submission service. When empty, all
	// submissions run on the local simulator.
	ExecutionEndpoint string
}

type SchedulingConfig struct {
	// LoadFactor weights per-backend batch load when adjusting scores.
	LoadFactor float64
	Scoring    scheduler.ScoringConfig
}

type PipelineConfig struct {
	// MaxConcurrentPreparations caps the Phase 1 worker pool.
	MaxConcurrentPreparations int
	Shots                     int
	Reps                      int
	OptimizationLevel         int
	CacheTTL                  time.Duration
}

type MonitorConfig struct {
	// Threshold is the CPU or memory percentage above which the host counts as
	// overloaded and Phase 1 admission stalls.
	Threshold      float64
	SampleInterval time.Duration
	PollInterval   time.Duration
}

type RetryConfig struct {
	MaxTries uint
	Delay    time.Duration
}

type StaticBackendConfig struct {
	Name              string
	QubitCapacity     int
	TwoQubitGateError float64
	ReadoutError      []float64
	PendingJobs       int
	LastCalibration   time.Time
	SupportedGates    []string
}

// DefaultConfig returns the configuration used when a field is not set in the
// config file.
func DefaultConfig() QbatchConfig {
	return QbatchConfig{
		CompoundsDir: "compounds",
		ResultsDir:   "results",
		CacheDir:     ".qbatch_cache",
		MetricsPort:  9010,
		Scheduling: SchedulingConfig{
			LoadFactor: 10,
			Scoring:    scheduler.DefaultScoringConfig(),
		},
		Pipeline: PipelineConfig{
			MaxConcurrentPreparations: 3,
			Shots:                     1024,
			Reps:                      1,
			OptimizationLevel:         3,
			CacheTTL:                  24 * time.Hour,
		},
		Monitor: MonitorConfig{
			Threshold:      90,
			SampleInterval: time.Second,
			PollInterval:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxTries: 3,
			Delay:    30 * time.Second,
		},
	}
}
