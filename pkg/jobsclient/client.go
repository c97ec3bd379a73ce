// Package jobsclient is a client for the workspace jobs API. It looks up, creates
// and runs notebook jobs and implements the create-or-reuse flow used to train a
// project.
package jobsclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

const (
	apiBasePath = "/api/2.1/jobs"

	endpointJobsGet    = apiBasePath + "/get"
	endpointJobsCreate = apiBasePath + "/create"
	endpointJobsRunNow = apiBasePath + "/run-now"

	// doesNotExistPhrase is matched in 400 responses that do not carry a usable
	// error code, e.g. {"error_code":"INVALID_PARAMETER_VALUE","message":"Job 42 does not exist."}
	doesNotExistPhrase = "does not exist"
)

// Client represents a jobs API client
type Client struct {
	ctx       context.Context
	transport *workspace.Transport
}

// NewClient creates a new jobs client on top of a workspace transport
func NewClient(transport *workspace.Transport) *Client {
	return &Client{
		ctx:       context.Background(),
		transport: transport,
	}
}

func (c *Client) WithContext(ctx context.Context) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		ctx:       ctx,
		transport: c.transport,
	}
}

func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		ctx:       c.ctx,
		transport: c.transport.WithLogger(logger),
	}
}

func (c *Client) GetLogger() *slog.Logger {
	return c.transport.GetLogger()
}

func (c *Client) GetBaseURL() string {
	return c.transport.GetBaseURL()
}

func parseJobID(jobID string) (int64, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return 0, &workspace.MalformedInputError{Field: "job id", Reason: "the job id is required"}
	}
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return 0, &workspace.MalformedInputError{Field: "job id", Reason: "the job id must be numeric", Err: err}
	}
	return id, nil
}

// isJobMissing classifies a jobs/get failure as "the job does not exist". The
// status code and error code are checked first; the message phrase is only used
// for 400 responses.
func isJobMissing(apiErr *workspace.APIError) bool {
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	if apiErr.ErrorCode == workspace.ErrorCodeResourceDoesNotExist {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest && strings.Contains(apiErr.ResponseBody, doesNotExistPhrase)
}

// GetJob looks up a job by id. A job that does not exist is reported as a
// *workspace.NotFoundError (errors.Is(err, workspace.ErrNotFound)).
func (c *Client) GetJob(jobID string) (*JobHandle, error) {
	id, err := parseJobID(jobID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("job_id", strconv.FormatInt(id, 10))
	respBody, err := c.transport.Do(c.ctx, http.MethodGet, endpointJobsGet, query, nil)
	if err != nil {
		var apiErr *workspace.APIError
		if errors.As(err, &apiErr) && isJobMissing(apiErr) {
			c.GetLogger().Info("Job not found", "job_id", jobID, "status", apiErr.StatusCode)
			return nil, &workspace.NotFoundError{Kind: "job", ID: jobID, Cause: apiErr}
		}
		return nil, err
	}

	resp, err := workspace.Decode[GetJobResponse](respBody)
	if err != nil {
		return nil, err
	}
	return &JobHandle{
		JobID:     strconv.FormatInt(resp.JobID, 10),
		Name:      resp.Settings.Name,
		CreatedAt: millisToTime(resp.CreatedTime),
		Creator:   resp.CreatorUserName,
	}, nil
}

// CreateJob submits a new single task notebook job. The spec is validated before
// any request is made.
func (c *Client) CreateJob(spec *JobSpec) (*JobHandle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	req, err := newCreateJobRequest(spec)
	if err != nil {
		return nil, err
	}
	respBody, err := c.transport.Do(c.ctx, http.MethodPost, endpointJobsCreate, nil, req)
	if err != nil {
		return nil, err
	}

	resp, err := workspace.Decode[CreateJobResponse](respBody)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	handle := &JobHandle{
		JobID:     strconv.FormatInt(resp.JobID, 10),
		Name:      spec.Name,
		CreatedAt: &now,
	}
	c.GetLogger().Info("Created new job", "job_name", spec.Name, "job_id", handle.JobID)
	return handle, nil
}

// RunNow triggers a run of an existing job.
func (c *Client) RunNow(jobID string) (*RunHandle, error) {
	id, err := parseJobID(jobID)
	if err != nil {
		return nil, err
	}
	respBody, err := c.transport.Do(c.ctx, http.MethodPost, endpointJobsRunNow, nil, &RunNowRequest{JobID: id})
	if err != nil {
		return nil, err
	}

	resp, err := workspace.Decode[RunNowResponse](respBody)
	if err != nil {
		return nil, err
	}
	c.GetLogger().Info("Started job run", "job_id", jobID, "run_id", resp.RunID)
	return &RunHandle{
		RunID:       strconv.FormatInt(resp.RunID, 10),
		JobID:       jobID,
		NumberInJob: resp.NumberInJob,
	}, nil
}

// EnsureJob returns the job identified by knownJobID when it still exists, otherwise
// it creates a new job from spec. The boolean result reports whether a job was created.
//
// EnsureJob does not protect against concurrent callers: two calls without a known
// id both create a job. Callers that need exactly one job per project must serialize
// around EnsureJob and persist the id with a compare-and-set.
func (c *Client) EnsureJob(spec *JobSpec, knownJobID string) (*JobHandle, bool, error) {
	if strings.TrimSpace(knownJobID) != "" {
		job, err := c.GetJob(knownJobID)
		if err == nil {
			c.GetLogger().Info("Found existing job", "job_id", job.JobID)
			return job, false, nil
		}
		if !workspace.IsNotFound(err) {
			return nil, false, err
		}
		c.GetLogger().Info("Known job no longer exists, creating a new job", "job_id", knownJobID)
	}

	job, err := c.CreateJob(spec)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}
