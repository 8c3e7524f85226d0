package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/checkpoint"
	"github.com/qbatchproject/qbatch/internal/common/util"
	"github.com/qbatchproject/qbatch/internal/qbatch/configuration"
	"github.com/qbatchproject/qbatch/internal/reliability"
)

// Batch is the per-run context owning all mutable batch state: the checkpoint
// store, the derivation cache and the result directory. It is constructed at
// run start (wiping any state left by a previous run) and discarded at run end,
// so no process-wide mutable storage exists.
type Batch struct {
	RunID       string
	CacheDir    string
	ResultsDir  string
	Checkpoints *checkpoint.Store
	Cache       *reliability.Cache
	StartedAt   time.Time
}

func newBatch(config configuration.QbatchConfig, clock util.Clock) (*Batch, error) {
	store, err := checkpoint.NewStore(filepath.Join(config.CacheDir, "checkpoints"))
	if err != nil {
		return nil, err
	}
	// A new run never resumes a previous batch's state.
	if err := store.Wipe(); err != nil {
		return nil, err
	}
	log.Info("old cache cleared - starting fresh run")

	if err := os.MkdirAll(config.ResultsDir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Batch{
		RunID:       util.NewULID(),
		CacheDir:    config.CacheDir,
		ResultsDir:  config.ResultsDir,
		Checkpoints: store,
		Cache:       reliability.NewCache(config.Pipeline.CacheTTL),
		StartedAt:   clock.Now(),
	}, nil
}
