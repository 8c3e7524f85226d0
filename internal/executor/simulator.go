package executor

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"github.com/renstrom/shortuuid"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/circuit"
	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// simulatedJobIDPrefix tags pseudo job ids so simulated runs are recognisable in
// result files.
const simulatedJobIDPrefix = "sim_"

// Simulator executes an artifact locally, producing measurement data with the
// same shape as a remote execution. Output is deterministic for a given artifact
// payload, which keeps checkpoint resumes stable across restarts.
type Simulator struct{}

func (s *Simulator) Submit(ctx context.Context, artifact *circuit.Artifact, backendName string, shots int) (*Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shots <= 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "shots",
			Value:   shots,
			Message: "shots must be positive",
		})
	}
	if artifact.NumQubits <= 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "artifact.NumQubits",
			Value:   artifact.NumQubits,
			Message: "artifact has no qubits to measure",
		})
	}

	var seed int64
	if len(artifact.Payload) >= 8 {
		seed = int64(binary.BigEndian.Uint64(artifact.Payload[:8]))
	}
	rng := rand.New(rand.NewSource(seed))

	// Sample bitstrings from a small set of dominant configurations plus noise,
	// which is enough structure for the downstream solver.
	counts := make(map[string]int)
	dominant := make([]string, 4)
	for i := range dominant {
		dominant[i] = randomBitstring(rng, artifact.NumQubits)
	}
	for i := 0; i < shots; i++ {
		var bits string
		if rng.Float64() < 0.8 {
			bits = dominant[rng.Intn(len(dominant))]
		} else {
			bits = randomBitstring(rng, artifact.NumQubits)
		}
		counts[bits]++
	}

	jobID := simulatedJobIDPrefix + strings.ToLower(shortuuid.New())[:8]
	log.Infof("simulated execution of %s: job id %s, %d shots", artifact.JobName, jobID, shots)
	return &Execution{
		Mode:            ModeSimulated,
		MeasurementData: counts,
		JobID:           jobID,
		BackendName:     fmt.Sprintf("%s_sim", backendName),
	}, nil
}

func randomBitstring(rng *rand.Rand, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		if rng.Intn(2) == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
