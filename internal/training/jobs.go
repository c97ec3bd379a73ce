package training

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/BenMacKenzie/db-mlops/internal/constants"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/serviceerrors"
	"github.com/BenMacKenzie/db-mlops/internal/telemetry"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/xeipuuv/gojsonschema"
)

// StandaloneTaskKey names the single task of a stand-alone job, which keeps those
// jobs apart from project training jobs on the platform.
const StandaloneTaskKey = "notebook_task"

// Job parameters are passed to the notebook as widgets, which only hold strings.
const jobParametersSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {"type": "string"},
  "propertyNames": {"minLength": 1}
}`

var jobParametersLoader = gojsonschema.NewStringLoader(jobParametersSchema)

// ParseJobParameters validates a JSON object of string parameters. An empty
// payload is no parameters.
func ParseJobParameters(payload string) (map[string]string, error) {
	params := map[string]string{}
	if strings.TrimSpace(payload) == "" {
		return params, nil
	}
	result, err := gojsonschema.Validate(jobParametersLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, serviceerrors.NewServiceError(messages.InvalidJobParameters, "Error", err.Error()).WithCause(err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, serviceerrors.NewServiceError(messages.InvalidJobParameters, "Error", strings.Join(details, "; "))
	}
	if err := json.Unmarshal([]byte(payload), &params); err != nil {
		return nil, serviceerrors.NewServiceError(messages.InvalidJobParameters, "Error", err.Error()).WithCause(err)
	}
	return params, nil
}

// CreateStandaloneJob creates a notebook job that is not attached to a project and
// optionally starts it.
func (s *Service) CreateStandaloneJob(ctx context.Context, logger *slog.Logger, request *api.JobRequest) (*api.JobResult, error) {
	params, err := ParseJobParameters(request.Parameters)
	if err != nil {
		return nil, err
	}
	jobs := s.jobs.WithContext(ctx).WithLogger(logger)
	job, err := jobs.CreateJob(&jobsclient.JobSpec{
		Name:       request.Name,
		Notebook:   jobsclient.NotebookSource{WorkspacePath: request.NotebookPath},
		Parameters: params,
		TaskKey:    StandaloneTaskKey,
	})
	if err != nil {
		return nil, serviceerrors.FromWorkspaceError("create job", request.Name, err)
	}
	s.auditor.Record(ctx, telemetry.AuditJobCreated, 0, job.JobID, "")

	result := &api.JobResult{
		JobID:   job.JobID,
		Name:    request.Name,
		Message: "Job created",
	}
	if request.RunNow {
		run, err := jobs.RunNow(job.JobID)
		if err != nil {
			return nil, serviceerrors.FromWorkspaceError("run job", job.JobID, err)
		}
		s.auditor.Record(ctx, telemetry.AuditRunStarted, 0, job.JobID, run.RunID)
		result.RunID = run.RunID
		result.Message = "Job created and run started"
	}
	logger.Info("Created stand-alone job", constants.LOG_JOB_ID, job.JobID, constants.LOG_RUN_ID, result.RunID)
	return result, nil
}
