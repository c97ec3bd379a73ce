package mlflowclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

// API endpoint constants
const (
	// Base API path
	apiBasePath = "/api/2.0/mlflow"

	// Base URLs for API sections
	experimentsBaseURL = apiBasePath + "/experiments"
	runsBaseURL        = apiBasePath + "/runs"

	// Experiments endpoints
	endpointExperimentsCreate        = experimentsBaseURL + "/create"
	endpointExperimentsGetBase       = experimentsBaseURL + "/get"
	endpointExperimentsGetByNameBase = experimentsBaseURL + "/get-by-name"
	endpointExperimentsDeleteBase    = experimentsBaseURL + "/delete"

	// Runs endpoints
	endpointRunsSearch = runsBaseURL + "/search"
)

// Client represents an MLflow API client
type Client struct {
	ctx              context.Context
	transport        *workspace.Transport
	experimentPrefix string
}

// NewClient creates a new MLflow client on top of a workspace transport
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
		ctx:              ctx,
		transport:        c.transport,
		experimentPrefix: c.experimentPrefix,
	}
}

func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		ctx:              c.ctx,
		transport:        c.transport.WithLogger(logger),
		experimentPrefix: c.experimentPrefix,
	}
}

// WithExperimentPrefix sets the namespace prepended to short experiment names, for
// example "/Users/someone@example.com/".
func (c *Client) WithExperimentPrefix(prefix string) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		ctx:              c.ctx,
		transport:        c.transport,
		experimentPrefix: prefix,
	}
}

func (c *Client) GetLogger() *slog.Logger {
	return c.transport.GetLogger()
}

func (c *Client) GetBaseURL() string {
	return c.transport.GetBaseURL()
}

// ExperimentName joins a namespace prefix and a short experiment name with exactly
// one separating slash. An empty prefix returns the short name unchanged.
func ExperimentName(prefix string, shortName string) string {
	if prefix == "" {
		return shortName
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(shortName, "/")
}

// IsResourceDoesNotExistError reports whether an MLflow call failed because the
// experiment or run does not exist.
func IsResourceDoesNotExistError(err error) bool {
	return workspace.IsResourceDoesNotExist(err)
}

// Experiments API

// CreateExperiment creates a new experiment
func (c *Client) CreateExperiment(req *CreateExperimentRequest) (*CreateExperimentResponse, error) {
	if req == nil {
		return nil, &workspace.MalformedInputError{Field: "experiment", Reason: "create experiment request is nil"}
	}
	respBody, err := c.transport.Do(c.ctx, http.MethodPost, endpointExperimentsCreate, nil, req)
	if err != nil {
		return nil, err
	}

	return workspace.Decode[CreateExperimentResponse](respBody)
}

// GetExperiment gets an experiment by ID
func (c *Client) GetExperiment(experimentID string) (*GetExperimentResponse, error) {
	query := url.Values{}
	query.Set("experiment_id", experimentID)
	respBody, err := c.transport.Do(c.ctx, http.MethodGet, endpointExperimentsGetBase, query, nil)
	if err != nil {
		return nil, err
	}

	return workspace.Decode[GetExperimentResponse](respBody)
}

// GetExperimentByName gets an experiment by its fully qualified name
func (c *Client) GetExperimentByName(experimentName string) (*GetExperimentResponse, error) {
	query := url.Values{}
	query.Set("experiment_name", experimentName)
	respBody, err := c.transport.Do(c.ctx, http.MethodGet, endpointExperimentsGetByNameBase, query, nil)
	if err != nil {
		return nil, err
	}

	return workspace.Decode[GetExperimentResponse](respBody)
}

// DeleteExperiment deletes an experiment
func (c *Client) DeleteExperiment(experimentID string) error {
	req := map[string]string{
		"experiment_id": experimentID,
	}
	_, err := c.transport.Do(c.ctx, http.MethodPost, endpointExperimentsDeleteBase, nil, req)
	return err
}

// ResolveExperiment looks up an experiment by its short name, qualified with the
// client's experiment prefix.
//
// Unlike the job lookup, absence is not translated: an unknown experiment is
// returned as the *workspace.APIError of the lookup. Use IsResourceDoesNotExistError
// to tell absence apart from other failures.
func (c *Client) ResolveExperiment(shortName string) (*ExperimentRef, error) {
	if strings.TrimSpace(shortName) == "" {
		return nil, &workspace.MalformedInputError{Field: "experiment name", Reason: "the experiment name is required"}
	}
	name := ExperimentName(c.experimentPrefix, shortName)
	resp, err := c.GetExperimentByName(name)
	if err != nil {
		return nil, err
	}
	if resp.Experiment.ExperimentID == "" {
		return nil, fmt.Errorf("experiment %s was returned without an id", name)
	}
	c.GetLogger().Info("Resolved experiment", "experiment_name", name, "experiment_id", resp.Experiment.ExperimentID)
	return newExperimentRef(&resp.Experiment), nil
}
