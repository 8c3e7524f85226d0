// Package backends provides the backend directory collaborator: listing the
// compute backends available to a batch and snapshotting their profiles for the
// run's logs.
package backends

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
	"github.com/qbatchproject/qbatch/internal/scheduler"
)

// Directory lists the compute backends available for scheduling. Profiles are
// read-only snapshots valid for the duration of one batch.
type Directory interface {
	List(ctx context.Context) ([]*scheduler.BackendProfile, error)
}

// StaticDirectory serves a fixed backend set, typically loaded from
// configuration. Used for offline runs and tests.
type StaticDirectory struct {
	Backends []*scheduler.BackendProfile
}

func (d *StaticDirectory) List(ctx context.Context) ([]*scheduler.BackendProfile, error) {
	if len(d.Backends) == 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrNotFound{
			Type:    "backend",
			Value:   "*",
			Message: "static directory is empty",
		})
	}
	return d.Backends, nil
}

// WriteSnapshot persists the backend profiles seen by a batch under
// dir/<timestamp>/backends.json, mirroring what was known at scheduling time.
func WriteSnapshot(dir string, profiles []*scheduler.BackendProfile, now time.Time) (string, error) {
	snapshotDir := filepath.Join(dir, now.Format("20060102_150405"))
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}
	path := filepath.Join(snapshotDir, "backends.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}
