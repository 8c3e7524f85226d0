package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
	"github.com/qbatchproject/qbatch/internal/scheduler"
)

// RESTDirectory fetches backend profiles from a directory service over HTTP.
// Simulator and fake entries are filtered out: only real hardware is eligible
// for load balancing, the local simulator being a submission-layer fallback.
type RESTDirectory struct {
	url    string
	client *http.Client
}

func NewRESTDirectory(url string, client *http.Client) (*RESTDirectory, error) {
	if url == "" {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "url",
			Value:   url,
			Message: "directory url must be non-empty",
		})
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTDirectory{url: url, client: client}, nil
}

type backendDTO struct {
	Name              string    `json:"name"`
	QubitCapacity     int       `json:"numQubits"`
	TwoQubitGateError float64   `json:"cxError"`
	ReadoutError      []float64 `json:"readoutError"`
	PendingJobs       int       `json:"pendingJobs"`
	LastCalibration   time.Time `json:"lastCalibration"`
	SupportedGates    []string  `json:"basisGates"`
}

func (d *RESTDirectory) List(ctx context.Context) ([]*scheduler.BackendProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot reach backend directory at %s", d.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("backend directory at %s returned status %d", d.url, resp.StatusCode)
	}

	var dtos []backendDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, errors.Wrap(err, "cannot decode backend directory response")
	}

	profiles := make([]*scheduler.BackendProfile, 0, len(dtos))
	for _, dto := range dtos {
		lowered := strings.ToLower(dto.Name)
		if strings.Contains(lowered, "simulator") || strings.Contains(lowered, "fake") {
			continue
		}
		profiles = append(profiles, &scheduler.BackendProfile{
			Name:              dto.Name,
			QubitCapacity:     dto.QubitCapacity,
			TwoQubitGateError: dto.TwoQubitGateError,
			ReadoutError:      dto.ReadoutError,
			PendingJobs:       dto.PendingJobs,
			LastCalibration:   dto.LastCalibration,
			SupportedGates:    dto.SupportedGates,
		})
	}
	if len(profiles) == 0 {
		return nil, errors.WithStack(&qbatcherrors.ErrNotFound{
			Type:    "backend",
			Value:   d.url,
			Message: "directory returned no usable hardware backends",
		})
	}
	log.Infof("backend directory returned %d hardware backends", len(profiles))
	return profiles, nil
}
