// Package executor is the remote execution surface: submitting an artifact to a
// named backend and returning measurement data. When the remote path fails for
// any reason the submission falls back to a local simulator producing a
// structurally identical result.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/circuit"
	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// Mode distinguishes how an execution was carried out. The variant set is
// closed; both modes expose the same result shape.
type Mode int

const (
	ModeRemote Mode = iota
	ModeSimulated
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// Execution is the uniform result of a submission, regardless of mode.
type Execution struct {
	Mode Mode
	// MeasurementData maps measured bitstrings to counts. Counts sum to the
	// requested number of shots.
	MeasurementData map[string]int
	JobID           string
	BackendName     string
}

// Submitter submits an artifact for execution on a named backend.
type Submitter interface {
	Submit(ctx context.Context, artifact *circuit.Artifact, backendName string, shots int) (*Execution, error)
}

// Client submits to the remote execution service, falling back to the local
// simulator when the remote call fails.
type Client struct {
	endpoint string
	client   *http.Client
	sim      *Simulator
}

func NewClient(endpoint string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "endpoint",
			Value:   endpoint,
			Message: "execution endpoint must be non-empty",
		})
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{endpoint: endpoint, client: httpClient, sim: &Simulator{}}, nil
}

type submitRequest struct {
	Backend string `json:"backend"`
	Shots   int    `json:"shots"`
	Payload []byte `json:"payload"`
}

type submitResponse struct {
	JobID           string         `json:"jobId"`
	MeasurementData map[string]int `json:"measurementData"`
}

func (c *Client) Submit(ctx context.Context, artifact *circuit.Artifact, backendName string, shots int) (*Execution, error) {
	execution, err := c.submitRemote(ctx, artifact, backendName, shots)
	if err == nil {
		log.Infof("job %s submitted on %s: remote job id %s", artifact.JobName, backendName, execution.JobID)
		return execution, nil
	}

	remoteErr := &qbatcherrors.ErrRemoteUnavailable{Backend: backendName, Cause: err}
	log.WithError(remoteErr).Warnf("remote execution failed for %s; falling back to local simulator", artifact.JobName)
	execution, simErr := c.sim.Submit(ctx, artifact, backendName, shots)
	if simErr != nil {
		return nil, errors.Wrapf(simErr, "both remote and simulated execution failed (remote: %v)", remoteErr)
	}
	return execution, nil
}

func (c *Client) submitRemote(ctx context.Context, artifact *circuit.Artifact, backendName string, shots int) (*Execution, error) {
	body, err := json.Marshal(&submitRequest{
		Backend: backendName,
		Shots:   shots,
		Payload: artifact.Payload,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("execution service returned status %d", resp.StatusCode)
	}
	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "cannot decode execution response")
	}
	if len(decoded.MeasurementData) == 0 {
		return nil, errors.New("execution response carried no measurement data")
	}
	return &Execution{
		Mode:            ModeRemote,
		MeasurementData: decoded.MeasurementData,
		JobID:           decoded.JobID,
		BackendName:     backendName,
	}, nil
}
