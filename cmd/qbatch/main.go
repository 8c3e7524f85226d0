package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/qbatchproject/qbatch/internal/backends"
	"github.com/qbatchproject/qbatch/internal/circuit"
	"github.com/qbatchproject/qbatch/internal/common"
	"github.com/qbatchproject/qbatch/internal/executor"
	"github.com/qbatchproject/qbatch/internal/monitor"
	"github.com/qbatchproject/qbatch/internal/pipeline"
	"github.com/qbatchproject/qbatch/internal/qbatch/configuration"
	"github.com/qbatchproject/qbatch/internal/scheduler"
	"github.com/qbatchproject/qbatch/internal/solver"
)

const (
	CustomConfigLocation string = "config"
	CompoundsFlag        string = "compounds"
	LoadFactorFlag       string = "loadFactor"
)

func init() {
	pflag.String(CustomConfigLocation, "", "Fully qualified path to application configuration file")
	pflag.String(CompoundsFlag, "", "Directory of compound descriptor files")
	pflag.Float64(LoadFactorFlag, 20000, "Congestion weight applied per already-assigned job when scoring backends")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	config := configuration.DefaultConfig()
	userSpecifiedConfig := viper.GetString(CustomConfigLocation)
	common.LoadConfig(&config, "./config/qbatch", userSpecifiedConfig)
	if compounds := viper.GetString(CompoundsFlag); compounds != "" {
		config.CompoundsDir = compounds
	}
	config.Scheduling.LoadFactor = viper.GetFloat64(LoadFactorFlag)

	log.Info("Starting...")
	log.Infof("Config %+v", config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopSignal
		cancel()
	}()

	shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
	defer shutdownMetricServer()

	collab, err := buildCollaborators(ctx, config)
	if err != nil {
		log.Fatal(err)
	}

	orchestrator, err := pipeline.New(config, collab)
	if err != nil {
		log.Fatal(err)
	}
	summary, err := orchestrator.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nCompleted: %d/%d successful calculations\n", summary.Succeeded, summary.Attempted)
}

func buildCollaborators(ctx context.Context, config configuration.QbatchConfig) (pipeline.Collaborators, error) {
	var directory backends.Directory
	if config.BackendDirectoryURL != "" {
		restDirectory, err := backends.NewRESTDirectory(config.BackendDirectoryURL, nil)
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		directory = restDirectory
	} else {
		directory = &backends.StaticDirectory{Backends: staticProfiles(config.StaticBackends)}
	}

	var submitter executor.Submitter
	if config.ExecutionEndpoint != "" {
		client, err := executor.NewClient(config.ExecutionEndpoint, &http.Client{Timeout: 10 * time.Minute})
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		submitter = client
	} else {
		log.Warn("no execution endpoint configured; all submissions will run on the local simulator")
		submitter = &executor.Simulator{}
	}

	resourceMonitor, err := monitor.New(config.Monitor.Threshold, nil)
	if err != nil {
		return pipeline.Collaborators{}, err
	}
	resourceMonitor.SampleInterval = config.Monitor.SampleInterval
	resourceMonitor.PollInterval = config.Monitor.PollInterval
	go func() {
		if err := resourceMonitor.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("resource monitor stopped")
		}
	}()

	return pipeline.Collaborators{
		Directory: directory,
		Builder:   &circuit.LocalBuilder{},
		Submitter: submitter,
		Integrals: &solver.LocalProvider{},
		Solver:    &solver.LocalSolver{},
		Gate:      resourceMonitor,
	}, nil
}

func staticProfiles(configs []configuration.StaticBackendConfig) []*scheduler.BackendProfile {
	profiles := make([]*scheduler.BackendProfile, 0, len(configs))
	for _, c := range configs {
		profiles = append(profiles, &scheduler.BackendProfile{
			Name:              c.Name,
			QubitCapacity:     c.QubitCapacity,
			TwoQubitGateError: c.TwoQubitGateError,
			ReadoutError:      c.ReadoutError,
			PendingJobs:       c.PendingJobs,
			LastCalibration:   c.LastCalibration,
			SupportedGates:    c.SupportedGates,
		})
	}
	return profiles
}
