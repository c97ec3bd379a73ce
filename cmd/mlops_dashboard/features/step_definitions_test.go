package features

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BenMacKenzie/db-mlops/cmd/mlops_dashboard/server"
	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/databricks"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/storage"
	"github.com/BenMacKenzie/db-mlops/internal/training"
	"github.com/BenMacKenzie/db-mlops/internal/validation"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace/workspacetest"
	"github.com/Jeffail/gabs/v2"
	"github.com/PaesslerAG/jsonpath"
	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

const experimentPrefix = "/Users/someone@example.com"

// scenarioConfig holds one scenario's service, its fake workspace and the last
// response, so scenarios never share data.
type scenarioConfig struct {
	scenarioName string
	fake         *workspacetest.Server
	store        abstractions.Storage
	api          *httptest.Server
	client       *http.Client

	response *http.Response
	body     []byte
	lastID   string

	concurrentJobIDs []string
}

func (tc *scenarioConfig) start(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	tc.scenarioName = sc.Name
	logger := logging.FallbackLogger()

	tc.fake = workspacetest.NewServer()
	tc.fake.SetToken("dapi-features")
	tc.fake.SetExperimentPrefix(experimentPrefix)

	serviceConfig := &config.Config{
		Service: &config.ServiceConfig{Version: "0.0.1", Build: "features"},
		Database: &map[string]any{
			"driver":         "sqlite",
			"url":            fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
			"max_open_conns": 1,
		},
		Databricks: &config.DatabricksConfig{
			Host:             tc.fake.URL,
			Token:            "dapi-features",
			HTTPTimeout:      5 * time.Second,
			ExperimentPrefix: experimentPrefix,
			MaxRuns:          100,
		},
		Training: &config.TrainingConfig{NotebookPath: "/Workspace/x"},
	}

	validate, err := validation.NewValidator()
	if err != nil {
		return ctx, fmt.Errorf("failed to create validator: %w", err)
	}
	tc.store, err = storage.NewStorage(serviceConfig.Database, logger)
	if err != nil {
		return ctx, fmt.Errorf("failed to create storage: %w", err)
	}
	transport, err := databricks.NewTransport(serviceConfig.Databricks, logger)
	if err != nil {
		return ctx, fmt.Errorf("failed to create transport: %w", err)
	}
	service, err := training.NewService(tc.store,
		databricks.NewJobRegistry(transport),
		databricks.NewRunTelemetry(transport, experimentPrefix),
		serviceConfig.Training,
		serviceConfig.Databricks.MaxRuns,
		nil)
	if err != nil {
		return ctx, fmt.Errorf("failed to create training service: %w", err)
	}
	srv, err := server.NewServer(logger, serviceConfig, tc.store, validate, service)
	if err != nil {
		return ctx, err
	}
	handler, err := srv.SetupRoutes()
	if err != nil {
		return ctx, err
	}
	tc.api = httptest.NewServer(handler)
	tc.client = &http.Client{Timeout: 10 * time.Second}
	return ctx, nil
}

func (tc *scenarioConfig) cleanup(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
	if tc.api != nil {
		tc.api.Close()
	}
	if tc.store != nil {
		_ = tc.store.Close()
	}
	if tc.fake != nil {
		tc.fake.Close()
	}
	return ctx, nil
}

func (tc *scenarioConfig) theServiceIsRunning() error {
	if err := tc.iSendARequestTo(http.MethodGet, "/api/v1/health"); err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	if tc.response.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", tc.response.StatusCode)
	}
	match := "\"status\":\"healthy\""
	if !strings.Contains(string(tc.body), match) {
		return fmt.Errorf("expected body to contain %s, got %s", match, string(tc.body))
	}
	return nil
}

func (tc *scenarioConfig) resolvePath(path string) (string, error) {
	if strings.Contains(path, "{id}") {
		if tc.lastID == "" {
			return "", fmt.Errorf("last ID is not set")
		}
		path = strings.Replace(path, "{id}", tc.lastID, 1)
	}
	return path, nil
}

func (tc *scenarioConfig) do(method string, path string, body string) (*http.Response, []byte, error) {
	path, err := tc.resolvePath(path)
	if err != nil {
		return nil, nil, err
	}
	var entity io.Reader
	if body != "" {
		entity = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, tc.api.URL+path, entity)
	if err != nil {
		return nil, nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	response, err := tc.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	return response, responseBody, err
}

func (tc *scenarioConfig) iSendARequestTo(method, path string) error {
	return tc.iSendARequestToWithBody(method, path, "")
}

func (tc *scenarioConfig) iSendARequestToWithDocString(method, path string, body *godog.DocString) error {
	return tc.iSendARequestToWithBody(method, path, body.Content)
}

func (tc *scenarioConfig) iSendARequestToWithBody(method, path, body string) error {
	var err error
	tc.response, tc.body, err = tc.do(method, path, body)
	if err != nil {
		return err
	}
	// remember the id of a created project for later steps
	if method == http.MethodPost && tc.response.StatusCode == http.StatusCreated {
		if parsed, err := gabs.ParseJSON(tc.body); err == nil {
			switch id := parsed.Path("id").Data().(type) {
			case float64:
				tc.lastID = strconv.FormatInt(int64(id), 10)
			case json.Number:
				tc.lastID = id.String()
			}
		}
	}
	return nil
}

func (tc *scenarioConfig) theResponseStatusShouldBe(status int) error {
	if tc.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.response.StatusCode, string(tc.body))
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldBeJSON() error {
	contentType := tc.response.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("expected JSON content type, got %s", contentType)
	}
	var js any
	if err := json.Unmarshal(tc.body, &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %v", err)
	}
	return nil
}

// theResponseShouldContainWithValue compares the value at a dotted path, e.g.
// "runs.status", with its string form.
func (tc *scenarioConfig) theResponseShouldContainWithValue(key, value string) error {
	parsed, err := gabs.ParseJSON(tc.body)
	if err != nil {
		return err
	}
	if !parsed.ExistsP(key) {
		return fmt.Errorf("response does not contain key: %s in %s", key, string(tc.body))
	}
	if got := fmt.Sprint(parsed.Path(key).Data()); got != value {
		return fmt.Errorf("expected %s to be %s, got %v", key, value, got)
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContain(key string) error {
	parsed, err := gabs.ParseJSON(tc.body)
	if err != nil {
		return err
	}
	if !parsed.ExistsP(key) {
		return fmt.Errorf("response does not contain key: %s", key)
	}
	return nil
}

func (tc *scenarioConfig) responseJSONPath(expression string) (any, error) {
	var data any
	if err := json.Unmarshal(tc.body, &data); err != nil {
		return nil, err
	}
	return jsonpath.Get(expression, data)
}

func (tc *scenarioConfig) theJSONPathShouldHaveLength(expression string, length int) error {
	value, err := tc.responseJSONPath(expression)
	if err != nil {
		return err
	}
	values, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%s is not a list: %v", expression, value)
	}
	if len(values) != length {
		return fmt.Errorf("expected %d values at %s, got %d", length, expression, len(values))
	}
	return nil
}

func (tc *scenarioConfig) theJSONPathShouldIncludeOneOf(expression string, candidates string) error {
	value, err := tc.responseJSONPath(expression)
	if err != nil {
		return err
	}
	values, ok := value.([]any)
	if !ok {
		values = []any{value}
	}
	for _, v := range values {
		for _, candidate := range strings.Split(candidates, ",") {
			if fmt.Sprint(v) == strings.TrimSpace(candidate) {
				return nil
			}
		}
	}
	return fmt.Errorf("none of %v at %s is one of %s", values, expression, candidates)
}

func (tc *scenarioConfig) theResponseShouldContainPrometheusMetrics() error {
	bodyStr := string(tc.body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		return fmt.Errorf("response does not appear to be Prometheus metrics format")
	}
	return nil
}

func (tc *scenarioConfig) theMetricsShouldInclude(metricName string) error {
	if !strings.Contains(string(tc.body), metricName) {
		return fmt.Errorf("metrics do not include %s", metricName)
	}
	return nil
}

func (tc *scenarioConfig) theWorkspaceRejectsJobCreation(status int, body *godog.DocString) error {
	tc.fake.RejectCreate(status, body.Content)
	return nil
}

func (tc *scenarioConfig) theWorkspaceShouldHaveReceivedJobCreations(count int) error {
	if got := tc.fake.Calls("/api/2.1/jobs/create"); got != count {
		return fmt.Errorf("expected %d job creations, got %d", count, got)
	}
	return nil
}

func (tc *scenarioConfig) theWorkspaceShouldHaveJobs(count int) error {
	if got := tc.fake.JobCount(); got != count {
		return fmt.Errorf("expected %d jobs in the workspace, got %d", count, got)
	}
	return nil
}

func (tc *scenarioConfig) iTrainTheProjectConcurrently(times int) error {
	path, err := tc.resolvePath("/api/v1/projects/{id}/train")
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	tc.concurrentJobIDs = nil
	for i := 0; i < times; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			response, body, err := tc.do(http.MethodPost, path, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if response.StatusCode != http.StatusAccepted {
				errs = append(errs, fmt.Errorf("expected status 202, got %d: %s", response.StatusCode, string(body)))
				return
			}
			parsed, err := gabs.ParseJSON(body)
			if err != nil {
				errs = append(errs, err)
				return
			}
			jobID, _ := parsed.Path("job_id").Data().(string)
			tc.concurrentJobIDs = append(tc.concurrentJobIDs, jobID)
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (tc *scenarioConfig) allTrainingRunsShouldUseTheSameJob() error {
	if len(tc.concurrentJobIDs) == 0 {
		return fmt.Errorf("no training runs were recorded")
	}
	for _, jobID := range tc.concurrentJobIDs {
		if jobID == "" || jobID != tc.concurrentJobIDs[0] {
			return fmt.Errorf("expected one job id, got %v", tc.concurrentJobIDs)
		}
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &scenarioConfig{}

	ctx.Before(tc.start)
	ctx.After(tc.cleanup)

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I send a (GET|DELETE|POST) request to "([^"]*)"$`, tc.iSendARequestTo)
	ctx.Step(`^I send a (POST|PUT|PATCH) request to "([^"]*)" with body:$`, tc.iSendARequestToWithDocString)
	ctx.Step(`^the response code should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should be JSON$`, tc.theResponseShouldBeJSON)
	ctx.Step(`^the response should contain "([^"]*)" with value "([^"]*)"$`, tc.theResponseShouldContainWithValue)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^the JSONPath "([^"]*)" should have (\d+) values?$`, tc.theJSONPathShouldHaveLength)
	ctx.Step(`^the JSONPath "([^"]*)" should include one of "([^"]*)"$`, tc.theJSONPathShouldIncludeOneOf)
	ctx.Step(`^the response should contain Prometheus metrics$`, tc.theResponseShouldContainPrometheusMetrics)
	ctx.Step(`^the metrics should include "([^"]*)"$`, tc.theMetricsShouldInclude)
	ctx.Step(`^the workspace rejects job creation with status (\d+) and body:$`, tc.theWorkspaceRejectsJobCreation)
	ctx.Step(`^the workspace should have received (\d+) job creations?$`, tc.theWorkspaceShouldHaveReceivedJobCreations)
	ctx.Step(`^the workspace should have (\d+) jobs?$`, tc.theWorkspaceShouldHaveJobs)
	ctx.Step(`^I train the project (\d+) times concurrently$`, tc.iTrainTheProjectConcurrently)
	ctx.Step(`^all training runs should use the same job$`, tc.allTrainingRunsShouldUseTheSameJob)
}
