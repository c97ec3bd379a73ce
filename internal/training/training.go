package training

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/constants"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/metrics"
	"github.com/BenMacKenzie/db-mlops/internal/serviceerrors"
	"github.com/BenMacKenzie/db-mlops/internal/telemetry"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/BenMacKenzie/db-mlops/pkg/mlflowclient"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
	"golang.org/x/sync/singleflight"
)

const (
	// Base parameters handed to the training notebook.
	ParameterExperimentName = "experiment_name"
	ParameterTarget         = "target"
	ParameterTableName      = "table_name"
)

// Service runs the training workflow of a project: find or create the project's
// remote job, remember it, and start a run.
type Service struct {
	storage  abstractions.Storage
	jobs     abstractions.JobRegistry
	runs     abstractions.RunTelemetry
	training *config.TrainingConfig
	maxRuns  int
	auditor  *telemetry.Auditor
	flights  singleflight.Group
}

func NewService(storage abstractions.Storage,
	jobs abstractions.JobRegistry,
	runs abstractions.RunTelemetry,
	training *config.TrainingConfig,
	maxRuns int,
	auditor *telemetry.Auditor) (*Service, error) {

	if storage == nil {
		return nil, fmt.Errorf("storage is required for the training service")
	}
	if jobs == nil || runs == nil {
		return nil, fmt.Errorf("the workspace clients are required for the training service")
	}
	if training == nil {
		return nil, fmt.Errorf("training configuration is required for the training service")
	}
	if maxRuns <= 0 {
		maxRuns = config.DefaultMaxRuns
	}
	return &Service{
		storage:  storage,
		jobs:     jobs,
		runs:     runs,
		training: training,
		maxRuns:  maxRuns,
		auditor:  auditor,
	}, nil
}

// JobSpec builds the training job of a project from the configured notebook.
func (s *Service) JobSpec(project *api.ProjectResource) (*jobsclient.JobSpec, error) {
	spec := &jobsclient.JobSpec{
		Name: project.ProjectName,
		Parameters: map[string]string{
			ParameterExperimentName: project.ProjectName,
			ParameterTarget:         project.Target,
			ParameterTableName:      project.TableName,
		},
		TaskKey:     s.training.TaskKey,
		Description: s.training.Description,
	}
	if s.training.UsesGit() {
		provider := jobsclient.GitProviderGitHub
		if s.training.GitProvider != "" {
			p, err := jobsclient.ParseGitProvider(s.training.GitProvider)
			if err != nil {
				return nil, err
			}
			provider = p
		}
		spec.Notebook.Git = &jobsclient.GitSource{
			URL:      s.training.GitURL,
			Provider: provider,
			Branch:   s.training.GitBranch,
			Path:     s.training.GitPath,
		}
	} else {
		spec.Notebook.WorkspacePath = s.training.NotebookPath
	}
	return spec, nil
}

type resolvedJob struct {
	jobID   string
	created bool
}

// Train starts a training run for the project. Concurrent calls for one project
// share the lookup and creation of the job, so at most one job is created.
func (s *Service) Train(ctx context.Context, logger *slog.Logger, projectID int64) (*api.TrainingResult, error) {
	logger = logger.With(constants.LOG_PROJECT_ID, projectID)
	key := strconv.FormatInt(projectID, 10)

	// the shared work must not fail because the first caller went away
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.flights.Do(key, func() (any, error) {
		return s.resolveJob(flightCtx, logger, projectID)
	})
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	job := v.(*resolvedJob)
	if shared {
		logger.Info("Shared the job lookup with a concurrent request", constants.LOG_JOB_ID, job.jobID)
	}

	run, err := s.jobs.WithContext(ctx).WithLogger(logger).RunNow(job.jobID)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues("failed").Inc()
		return nil, serviceerrors.FromWorkspaceError("run job", job.jobID, err)
	}
	metrics.TrainingRunsTotal.WithLabelValues("started").Inc()
	s.auditor.Record(ctx, telemetry.AuditRunStarted, projectID, job.jobID, run.RunID)
	logger.Info("Started training run", constants.LOG_JOB_ID, job.jobID, constants.LOG_RUN_ID, run.RunID, "job_created", job.created)

	message := "Training run started for the existing job"
	if job.created {
		message = "Training job created and run started"
	}
	return &api.TrainingResult{
		ProjectID:  projectID,
		JobID:      job.jobID,
		RunID:      run.RunID,
		JobCreated: job.created,
		Message:    message,
	}, nil
}

func (s *Service) resolveJob(ctx context.Context, logger *slog.Logger, projectID int64) (*resolvedJob, error) {
	store := s.storage.WithContext(ctx).WithLogger(logger)
	project, err := store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	spec, err := s.JobSpec(project)
	if err != nil {
		return nil, serviceerrors.FromWorkspaceError("create job", project.ProjectName, err)
	}

	knownJobID := ""
	if project.JobID != nil {
		knownJobID = *project.JobID
	}
	job, created, err := s.jobs.WithContext(ctx).WithLogger(logger).EnsureJob(spec, knownJobID)
	if err != nil {
		return nil, serviceerrors.FromWorkspaceError("create job", project.ProjectName, err)
	}
	if !created {
		return &resolvedJob{jobID: job.JobID}, nil
	}

	if knownJobID != "" {
		if _, err := store.ClearJobID(projectID, knownJobID); err != nil {
			return nil, err
		}
	}
	current, swapped, err := store.SetJobIDIfAbsent(projectID, job.JobID)
	if err != nil {
		s.recordOrphan(ctx, logger, projectID, job.JobID, "Created a job whose id could not be stored, it should be deleted", "error", err.Error())
		return nil, err
	}
	if !swapped {
		// another writer stored its job first, the job created here is never used
		s.recordOrphan(ctx, logger, projectID, job.JobID, "Created a job that lost the race to be stored, it should be deleted", constants.LOG_JOB_ID, current)
		return &resolvedJob{jobID: current}, nil
	}
	metrics.JobsCreatedTotal.Inc()
	s.auditor.Record(ctx, telemetry.AuditJobCreated, projectID, job.JobID, "")
	return &resolvedJob{jobID: job.JobID, created: true}, nil
}

// recordOrphan reports a remote job that no project refers to.
func (s *Service) recordOrphan(ctx context.Context, logger *slog.Logger, projectID int64, jobID string, msg string, args ...any) {
	metrics.OrphanedJobsTotal.Inc()
	s.auditor.Record(ctx, telemetry.AuditJobOrphaned, projectID, jobID, "")
	logger.Warn(msg, append([]any{"orphaned_job_id", jobID}, args...)...)
}

// ExperimentDetails resolves the experiment the project's runs are logged to and
// lists its runs. A run listing failure is reported inside the listing and is not
// an error.
func (s *Service) ExperimentDetails(ctx context.Context, logger *slog.Logger, projectID int64) (*api.ExperimentDetails, error) {
	logger = logger.With(constants.LOG_PROJECT_ID, projectID)
	project, err := s.storage.WithContext(ctx).WithLogger(logger).GetProject(projectID)
	if err != nil {
		return nil, err
	}

	runs := s.runs.WithContext(ctx).WithLogger(logger)
	experiment, err := runs.ResolveExperiment(project.ProjectName)
	if err != nil {
		if workspace.IsResourceDoesNotExist(err) {
			return nil, serviceerrors.NewServiceError(messages.ResourceNotFound, "Type", "experiment", "ResourceId", project.ProjectName).WithCause(err)
		}
		return nil, serviceerrors.FromWorkspaceError("get experiment", project.ProjectName, err)
	}
	if experiment.LifecycleStage == mlflowclient.LifecycleStageDeleted {
		return nil, serviceerrors.NewServiceError(messages.ResourceNotFound, "Type", "experiment", "ResourceId", project.ProjectName)
	}

	records, err := runs.ListRuns(experiment.ExperimentID, s.maxRuns)
	if err != nil {
		logger.Warn("Failed to list the experiment runs", "experiment_id", experiment.ExperimentID, "error", err.Error())
	}
	return &api.ExperimentDetails{
		ProjectID:  projectID,
		Experiment: experiment,
		Runs:       mlflowclient.NewRunListing(records, err),
	}, nil
}
