package abstractions

import (
	"context"
	"log/slog"

	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/BenMacKenzie/db-mlops/pkg/mlflowclient"
)

// JobRegistry is the remote job API as used by the training service.
type JobRegistry interface {
	WithLogger(logger *slog.Logger) JobRegistry
	WithContext(ctx context.Context) JobRegistry

	GetJob(jobID string) (*jobsclient.JobHandle, error)
	CreateJob(spec *jobsclient.JobSpec) (*jobsclient.JobHandle, error)
	EnsureJob(spec *jobsclient.JobSpec, knownJobID string) (*jobsclient.JobHandle, bool, error)
	RunNow(jobID string) (*jobsclient.RunHandle, error)
}

// RunTelemetry is the experiment tracking API as used by the training service.
type RunTelemetry interface {
	WithLogger(logger *slog.Logger) RunTelemetry
	WithContext(ctx context.Context) RunTelemetry

	ResolveExperiment(shortName string) (*mlflowclient.ExperimentRef, error)
	ListRuns(experimentID string, maxResults int) ([]mlflowclient.RunRecord, error)
}
