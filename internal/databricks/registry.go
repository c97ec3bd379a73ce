package databricks

import (
	"context"
	"log/slog"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/BenMacKenzie/db-mlops/pkg/mlflowclient"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

type jobRegistry struct {
	client *jobsclient.Client
}

// NewJobRegistry exposes the jobs client as an abstractions.JobRegistry.
func NewJobRegistry(transport *workspace.Transport) abstractions.JobRegistry {
	return &jobRegistry{client: jobsclient.NewClient(transport)}
}

func (r *jobRegistry) WithLogger(logger *slog.Logger) abstractions.JobRegistry {
	return &jobRegistry{client: r.client.WithLogger(logger)}
}

func (r *jobRegistry) WithContext(ctx context.Context) abstractions.JobRegistry {
	return &jobRegistry{client: r.client.WithContext(ctx)}
}

func (r *jobRegistry) GetJob(jobID string) (*jobsclient.JobHandle, error) {
	return r.client.GetJob(jobID)
}

func (r *jobRegistry) CreateJob(spec *jobsclient.JobSpec) (*jobsclient.JobHandle, error) {
	return r.client.CreateJob(spec)
}

func (r *jobRegistry) EnsureJob(spec *jobsclient.JobSpec, knownJobID string) (*jobsclient.JobHandle, bool, error) {
	return r.client.EnsureJob(spec, knownJobID)
}

func (r *jobRegistry) RunNow(jobID string) (*jobsclient.RunHandle, error) {
	return r.client.RunNow(jobID)
}

type runTelemetry struct {
	client *mlflowclient.Client
}

// NewRunTelemetry exposes the experiment tracking client as an
// abstractions.RunTelemetry. Short experiment names are qualified with prefix.
func NewRunTelemetry(transport *workspace.Transport, prefix string) abstractions.RunTelemetry {
	return &runTelemetry{client: mlflowclient.NewClient(transport).WithExperimentPrefix(prefix)}
}

func (r *runTelemetry) WithLogger(logger *slog.Logger) abstractions.RunTelemetry {
	return &runTelemetry{client: r.client.WithLogger(logger)}
}

func (r *runTelemetry) WithContext(ctx context.Context) abstractions.RunTelemetry {
	return &runTelemetry{client: r.client.WithContext(ctx)}
}

func (r *runTelemetry) ResolveExperiment(shortName string) (*mlflowclient.ExperimentRef, error) {
	return r.client.ResolveExperiment(shortName)
}

func (r *runTelemetry) ListRuns(experimentID string, maxResults int) ([]mlflowclient.RunRecord, error) {
	return r.client.ListRuns(experimentID, maxResults)
}
