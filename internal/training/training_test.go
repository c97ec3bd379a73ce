package training_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/databricks"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/metrics"
	"github.com/BenMacKenzie/db-mlops/internal/storage"
	"github.com/BenMacKenzie/db-mlops/internal/training"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/BenMacKenzie/db-mlops/pkg/mlflowclient"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace/workspacetest"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	prefix         = "/Users/someone@example.com"
	endpointCreate = "/api/2.1/jobs/create"
)

type fixture struct {
	fake    *workspacetest.Server
	store   abstractions.Storage
	service *training.Service
}

func newStore(t *testing.T) abstractions.Storage {
	t.Helper()
	databaseConfig := map[string]any{
		"driver":         "sqlite",
		"url":            fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		"max_open_conns": 1,
	}
	store, err := storage.NewStorage(&databaseConfig, logging.FallbackLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newService(t *testing.T, fake *workspacetest.Server, store abstractions.Storage, trainingConfig *config.TrainingConfig) *training.Service {
	t.Helper()
	transport, err := databricks.NewTransport(&config.DatabricksConfig{Host: fake.URL, Token: "dapi-test", HTTPTimeout: 5 * time.Second}, logging.FallbackLogger())
	require.NoError(t, err)
	service, err := training.NewService(store, databricks.NewJobRegistry(transport), databricks.NewRunTelemetry(transport, prefix), trainingConfig, 100, nil)
	require.NoError(t, err)
	return service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := workspacetest.NewServer()
	t.Cleanup(fake.Close)
	fake.SetToken("dapi-test")
	fake.SetExperimentPrefix(prefix)
	store := newStore(t)
	return &fixture{
		fake:    fake,
		store:   store,
		service: newService(t, fake, store, &config.TrainingConfig{NotebookPath: "/Workspace/x"}),
	}
}

func (f *fixture) createProject(t *testing.T, name string) *api.ProjectResource {
	t.Helper()
	project, err := f.store.CreateProject(&api.ProjectConfig{ProjectName: name, TableName: "cat.default.titanic", Target: "Survived"})
	require.NoError(t, err)
	return project
}

func messageCode(err error) *messages.MessageCode {
	var se abstractions.ServiceError
	if errors.As(err, &se) {
		return se.MessageCode()
	}
	return nil
}

func TestJobSpec(t *testing.T) {
	project := &api.ProjectResource{ID: 1, ProjectConfig: api.ProjectConfig{ProjectName: "titanic_4", TableName: "cat.default.titanic", Target: "Survived"}}
	store := newStore(t)
	fake := workspacetest.NewServer()
	defer fake.Close()

	t.Run("workspace notebook", func(t *testing.T) {
		spec, err := newService(t, fake, store, &config.TrainingConfig{NotebookPath: "/Workspace/x"}).JobSpec(project)
		require.NoError(t, err)
		assert.Equal(t, "/Workspace/x", spec.Notebook.WorkspacePath)
		assert.Nil(t, spec.Notebook.Git)
		assert.Equal(t, map[string]string{"experiment_name": "titanic_4", "target": "Survived", "table_name": "cat.default.titanic"}, spec.Parameters)
		assert.NoError(t, spec.Validate())
	})

	t.Run("git notebook", func(t *testing.T) {
		spec, err := newService(t, fake, store, &config.TrainingConfig{
			GitURL:      "https://github.com/example/trainer",
			GitProvider: "github",
			GitBranch:   "main",
			GitPath:     "notebooks/01_Build_Model",
		}).JobSpec(project)
		require.NoError(t, err)
		require.NotNil(t, spec.Notebook.Git)
		assert.Equal(t, "gitHub", string(spec.Notebook.Git.Provider))
		assert.Empty(t, spec.Notebook.WorkspacePath)
		assert.NoError(t, spec.Validate())
	})

	t.Run("unknown git provider", func(t *testing.T) {
		_, err := newService(t, fake, store, &config.TrainingConfig{GitURL: "https://x", GitProvider: "svn", GitPath: "p"}).JobSpec(project)
		assert.Error(t, err)
	})
}

func TestTrain(t *testing.T) {
	ctx := context.Background()
	logger := logging.FallbackLogger()

	t.Run("first run creates and stores the job", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")

		result, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.True(t, result.JobCreated)
		assert.NotEmpty(t, result.RunID)
		assert.Equal(t, 1, f.fake.Calls(endpointCreate))

		stored, err := f.store.GetProject(project.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.JobID)
		assert.Equal(t, result.JobID, *stored.JobID)

		job, ok := f.fake.Job(result.JobID)
		require.True(t, ok)
		assert.Equal(t, "titanic_4", job.BaseParameters["experiment_name"])
		assert.Equal(t, jobsclient.DefaultTaskKey, job.TaskKey)
	})

	t.Run("second run reuses the stored job", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")

		first, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)
		second, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.False(t, second.JobCreated)
		assert.Equal(t, first.JobID, second.JobID)
		assert.NotEqual(t, first.RunID, second.RunID)
		assert.Equal(t, 1, f.fake.Calls(endpointCreate))
	})

	t.Run("a job deleted remotely is created again", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")

		first, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)
		f.fake.DeleteJob(first.JobID)

		second, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.True(t, second.JobCreated)
		assert.NotEqual(t, first.JobID, second.JobID)

		stored, err := f.store.GetProject(project.ID)
		require.NoError(t, err)
		assert.Equal(t, second.JobID, *stored.JobID)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Train(ctx, logger, 4242)
		assert.Equal(t, messages.ResourceNotFound, messageCode(err))
		assert.Equal(t, 0, f.fake.TotalCalls())
	})

	t.Run("a rejected create leaves the project without a job", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		f.fake.RejectCreate(http.StatusBadRequest, `{"error_code":"INVALID_PARAMETER_VALUE","message":"Invalid notebook path"}`)

		_, err := f.service.Train(ctx, logger, project.ID)
		assert.Equal(t, messages.WorkspaceRequestFailed, messageCode(err))
		assert.Contains(t, err.Error(), "Invalid notebook path")

		stored, err := f.store.GetProject(project.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.JobID)
	})

	t.Run("concurrent runs of one project create one job", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")

		const callers = 10
		results := make([]*api.TrainingResult, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = f.service.Train(ctx, logger, project.ID)
			}(i)
		}
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, results[0].JobID, results[i].JobID)
		}
		assert.Equal(t, 1, f.fake.Calls(endpointCreate))
		assert.Equal(t, 1, f.fake.JobCount())
	})

	t.Run("two instances sharing a database agree on one job", func(t *testing.T) {
		f := newFixture(t)
		other := newService(t, f.fake, f.store, &config.TrainingConfig{NotebookPath: "/Workspace/x"})
		project := f.createProject(t, "titanic_4")

		var wg sync.WaitGroup
		results := make([]*api.TrainingResult, 2)
		errs := make([]error, 2)
		for i, service := range []*training.Service{f.service, other} {
			wg.Add(1)
			go func(i int, service *training.Service) {
				defer wg.Done()
				results[i], errs[i] = service.Train(ctx, logger, project.ID)
			}(i, service)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		stored, err := f.store.GetProject(project.ID)
		require.NoError(t, err)
		assert.Equal(t, *stored.JobID, results[0].JobID)
		assert.Equal(t, *stored.JobID, results[1].JobID)
	})
}

// failingJobIDStore fails every attempt to store a job id.
type failingJobIDStore struct {
	abstractions.Storage
}

func (s *failingJobIDStore) WithContext(ctx context.Context) abstractions.Storage {
	return &failingJobIDStore{Storage: s.Storage.WithContext(ctx)}
}

func (s *failingJobIDStore) WithLogger(logger *slog.Logger) abstractions.Storage {
	return &failingJobIDStore{Storage: s.Storage.WithLogger(logger)}
}

func (s *failingJobIDStore) SetJobIDIfAbsent(id int64, jobID string) (string, bool, error) {
	return "", false, errors.New("database is locked")
}

func TestTrainJobIDNotStored(t *testing.T) {
	fake := workspacetest.NewServer()
	t.Cleanup(fake.Close)
	fake.SetToken("dapi-test")
	store := newStore(t)
	project, err := store.CreateProject(&api.ProjectConfig{ProjectName: "titanic_4", TableName: "cat.default.titanic", Target: "Survived"})
	require.NoError(t, err)
	service := newService(t, fake, &failingJobIDStore{Storage: store}, &config.TrainingConfig{NotebookPath: "/Workspace/x"})

	orphansBefore := testutil.ToFloat64(metrics.OrphanedJobsTotal)
	_, err = service.Train(context.Background(), logging.FallbackLogger(), project.ID)
	require.Error(t, err)

	assert.Equal(t, 1, fake.Calls(endpointCreate))
	assert.Equal(t, orphansBefore+1, testutil.ToFloat64(metrics.OrphanedJobsTotal))
	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.JobID)
}

func TestExperimentDetails(t *testing.T) {
	ctx := context.Background()
	logger := logging.FallbackLogger()

	t.Run("no experiment before the first run", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		_, err := f.service.ExperimentDetails(ctx, logger, project.ID)
		assert.Equal(t, messages.ResourceNotFound, messageCode(err))
	})

	t.Run("runs are listed after training", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		_, err := f.service.Train(ctx, logger, project.ID)
		require.NoError(t, err)

		details, err := f.service.ExperimentDetails(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.Equal(t, prefix+"/titanic_4", details.Experiment.Name)
		assert.Equal(t, mlflowclient.ListingStatusOK, details.Runs.Status)
		require.Len(t, details.Runs.Runs, 1)
		assert.Contains(t, []string{"RUNNING", "FINISHED"}, details.Runs.Runs[0].Status)
	})

	t.Run("an experiment without runs", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		f.fake.AddExperiment(prefix + "/titanic_4")

		details, err := f.service.ExperimentDetails(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.Equal(t, mlflowclient.ListingStatusEmpty, details.Runs.Status)
		assert.NotNil(t, details.Runs.Runs)
	})

	t.Run("a deleted experiment is not found", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		f.fake.AddExperiment(prefix + "/titanic_4")
		f.fake.SetExperimentLifecycle(prefix+"/titanic_4", mlflowclient.LifecycleStageDeleted)

		_, err := f.service.ExperimentDetails(ctx, logger, project.ID)
		assert.Equal(t, messages.ResourceNotFound, messageCode(err))
	})

	t.Run("a failed run listing is reported in the listing", func(t *testing.T) {
		f := newFixture(t)
		project := f.createProject(t, "titanic_4")
		f.fake.AddExperiment(prefix + "/titanic_4")
		f.fake.SetFailRunSearch(true)

		details, err := f.service.ExperimentDetails(ctx, logger, project.ID)
		require.NoError(t, err)
		assert.Equal(t, mlflowclient.ListingStatusFailed, details.Runs.Status)
		assert.NotEmpty(t, details.Runs.Error)
	})
}

func TestCreateStandaloneJob(t *testing.T) {
	ctx := context.Background()
	logger := logging.FallbackLogger()

	t.Run("creates and runs a job", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.service.CreateStandaloneJob(ctx, logger, &api.JobRequest{
			Name:         "DB Trainer 2",
			NotebookPath: "/Workspace/x",
			Parameters:   `{"experiment_name":"titanic_4","target":"Survived"}`,
			RunNow:       true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.JobID)
		assert.NotEmpty(t, result.RunID)

		job, ok := f.fake.Job(result.JobID)
		require.True(t, ok)
		assert.Equal(t, "Survived", job.BaseParameters["target"])
		assert.Equal(t, training.StandaloneTaskKey, job.TaskKey)
	})

	t.Run("invalid parameters are rejected before any call", func(t *testing.T) {
		f := newFixture(t)
		for _, payload := range []string{`{"target":1}`, `["a"]`, `{"target":`, `{"":"x"}`} {
			_, err := f.service.CreateStandaloneJob(ctx, logger, &api.JobRequest{Name: "job", NotebookPath: "/Workspace/x", Parameters: payload})
			assert.Equal(t, messages.InvalidJobParameters, messageCode(err), payload)
		}
		assert.Equal(t, 0, f.fake.TotalCalls())
	})
}

func TestParseJobParameters(t *testing.T) {
	params, err := training.ParseJobParameters("  ")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = training.ParseJobParameters(`{"a":"1","b":"two"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "two"}, params)
}
