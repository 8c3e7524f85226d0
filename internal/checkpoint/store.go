// Package checkpoint persists per-job partial results across process restarts.
// Entries have no TTL; the store is cleared only by an explicit wipe at the start
// of a new batch run. Concurrent workers always use distinct job keys, so no
// cross-key locking is needed.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// Store is a file-backed checkpoint store: one opaque file per job key.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "dir",
			Value:   dir,
			Message: "checkpoint directory must be non-empty",
		})
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{dir: dir}, nil
}

// Do runs a resumable stage under the given job key. If a checkpoint exists for
// the key, its persisted state is returned without invoking fn; otherwise fn is
// invoked and its result persisted before being returned. The second return
// value reports whether the result came from a checkpoint.
func Do[T any](s *Store, key string, fn func() (T, error)) (T, bool, error) {
	var result T
	path := s.path(key)

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &result); err == nil {
			log.Infof("loaded checkpoint %s", path)
			return result, true, nil
		}
		// Unreadable state is treated as absent; the stage reruns and overwrites it.
		log.Warnf("checkpoint %s is corrupt; recomputing", path)
	}

	result, err := fn()
	if err != nil {
		return result, false, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return result, false, errors.Wrapf(err, "cannot serialize checkpoint state for key %s", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return result, false, errors.WithStack(err)
	}
	log.Infof("saved checkpoint %s", path)
	return result, false, nil
}

// Wipe removes every persisted checkpoint and recreates the empty store
// directory. Called once at the start of each batch run.
func (s *Store) Wipe() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.MkdirAll(s.dir, 0o755))
}

func (s *Store) path(key string) string {
	// Keys are job names derived from filenames, but guard against separators anyway.
	safe := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}
