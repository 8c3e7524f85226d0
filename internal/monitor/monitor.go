// Package monitor samples host CPU and memory utilisation and reports overload.
// It is used only as an admission gate for preparation work; it never cancels
// work already in flight.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// Sampler reads instantaneous host utilisation. Implemented by the host itself
// in production and by fakes in tests.
type Sampler interface {
	Sample(ctx context.Context) (cpuPercent float64, memPercent float64, err error)
}

// ResourceMonitor continually samples host utilisation and answers whether the
// host is currently overloaded.
type ResourceMonitor struct {
	// Threshold above which either CPU or memory utilisation counts as overload.
	Threshold float64
	// SampleInterval is how often utilisation is sampled. Defaults to 1 second.
	SampleInterval time.Duration
	// SampleMaxAge is the age after which the last sample is considered stale.
	// Defaults to 5 minutes.
	SampleMaxAge time.Duration
	// PollInterval is how often Wait re-checks an overloaded host. Defaults to
	// 30 seconds.
	PollInterval time.Duration
	// If provided, used by Run for logging.
	Logger *logrus.Logger

	sampler Sampler
	clock   func() time.Time

	mu         sync.Mutex
	lastSample time.Time
	cpuPercent float64
	memPercent float64
}

// New returns a ResourceMonitor with the given overload threshold, sampling the
// local host. Pass a non-nil sampler to override how utilisation is read.
func New(threshold float64, sampler Sampler) (*ResourceMonitor, error) {
	if threshold <= 0 || threshold > 100 {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "threshold",
			Value:   threshold,
			Message: "threshold must be a percentage in (0, 100]",
		})
	}
	if sampler == nil {
		sampler = &hostSampler{}
	}
	return &ResourceMonitor{
		Threshold:      threshold,
		SampleInterval: time.Second,
		SampleMaxAge:   5 * time.Minute,
		PollInterval:   30 * time.Second,
		sampler:        sampler,
		clock:          time.Now,
	}, nil
}

// Run samples utilisation at SampleInterval until ctx is cancelled.
func (m *ResourceMonitor) Run(ctx context.Context) error {
	log := m.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	ticker := time.NewTicker(m.SampleInterval)
	defer ticker.Stop()
	for {
		if err := m.sampleOnce(ctx); err != nil {
			log.WithError(err).Warn("failed to sample host utilisation")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *ResourceMonitor) sampleOnce(ctx context.Context) error {
	cpuPercent, memPercent, err := m.sampler.Sample(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpuPercent = cpuPercent
	m.memPercent = memPercent
	m.lastSample = m.clock()
	return nil
}

// Overloaded reports whether either CPU or memory utilisation exceeds the
// threshold. It returns ErrStaleSample when no recent sample is available.
func (m *ResourceMonitor) Overloaded() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	age := m.clock().Sub(m.lastSample)
	if m.lastSample.IsZero() || age > m.SampleMaxAge {
		return false, errors.WithStack(&qbatcherrors.ErrStaleSample{Age: age})
	}
	return m.cpuPercent > m.Threshold || m.memPercent > m.Threshold, nil
}

// Wait blocks until the host is no longer overloaded, polling at PollInterval,
// or until ctx is cancelled. When no trustworthy sample exists the gate fails
// open with a warning: admission control must not deadlock the batch on a
// monitoring outage.
func (m *ResourceMonitor) Wait(ctx context.Context) error {
	log := m.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	for {
		overloaded, err := m.Overloaded()
		if err != nil {
			log.WithError(err).Warn("no fresh utilisation sample; admitting work anyway")
			return nil
		}
		if !overloaded {
			return nil
		}
		m.mu.Lock()
		cpuPercent, memPercent := m.cpuPercent, m.memPercent
		m.mu.Unlock()
		log.Warnf("system overloaded (cpu %.1f%%, mem %.1f%%), waiting %s", cpuPercent, memPercent, m.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.PollInterval):
		}
	}
}

// hostSampler reads utilisation of the local host. CPU and memory are read
// concurrently since the CPU reading blocks for its measurement window.
type hostSampler struct{}

func (s *hostSampler) Sample(ctx context.Context) (float64, float64, error) {
	var cpuPercent, memPercent float64
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		percentages, err := cpu.PercentWithContext(ctx, time.Second, false)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(percentages) == 0 {
			return errors.New("no cpu utilisation reported")
		}
		cpuPercent = percentages[0]
		return nil
	})
	g.Go(func() error {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		memPercent = vm.UsedPercent
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return cpuPercent, memPercent, nil
}
