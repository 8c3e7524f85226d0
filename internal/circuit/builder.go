// Package circuit defines the artifact-construction collaborator boundary.
// Actual ansatz construction and backend-specific optimisation live outside the
// scheduling core; the core only needs an artifact it can submit.
package circuit

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/estimator"
	"github.com/qbatchproject/qbatch/internal/molecule"
)

// Artifact is a built, backend-optimised computational circuit ready for
// submission.
type Artifact struct {
	JobName     string
	BackendName string
	NumQubits   int
	Depth       int
	// Payload is the serialized circuit, opaque to the core.
	Payload []byte
}

// Builder constructs and optimises the artifact for one job on one backend.
type Builder interface {
	Build(ctx context.Context, spec *molecule.Spec, est estimator.ResourceEstimate, backendName string, reps int, optLevel int) (*Artifact, error)
}

// LocalBuilder produces a deterministic artifact from the job's estimate. It
// stands in for the external transpilation service in offline runs and tests.
type LocalBuilder struct{}

func (b *LocalBuilder) Build(ctx context.Context, spec *molecule.Spec, est estimator.ResourceEstimate, backendName string, reps int, optLevel int) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reps < 1 {
		reps = 1
	}
	depth := est.DepthEstimate * reps
	payload := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%d", spec.Raw, backendName, est.QubitNeed, reps, optLevel)))
	seed := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(seed, uint64(depth))
	copy(seed[8:], payload[:])
	log.Infof("circuit ready for %s: %d qubits, depth %d", spec.Name, est.QubitNeed, depth)
	return &Artifact{
		JobName:     spec.Name,
		BackendName: backendName,
		NumQubits:   est.QubitNeed,
		Depth:       depth,
		Payload:     seed,
	}, nil
}
