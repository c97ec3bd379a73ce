// Package workspacetest provides an in-memory workspace platform (jobs and MLflow
// APIs) served over httptest for use in tests.
package workspacetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NotFoundStyle selects how the fake reports a missing job from jobs/get.
type NotFoundStyle int

const (
	// NotFoundAs400 mirrors the platform: 400 INVALID_PARAMETER_VALUE "Job N does not exist."
	NotFoundAs400 NotFoundStyle = iota
	NotFoundAs404
	// NotFoundAs400Plain returns a 400 with a non JSON body containing the phrase.
	NotFoundAs400Plain
)

type Job struct {
	ID             int64
	Name           string
	TaskKey        string
	NotebookPath   string
	Source         string
	GitURL         string
	GitProvider    string
	GitBranch      string
	BaseParameters map[string]string
	CreatedTime    int64
}

type Experiment struct {
	ID               string
	Name             string
	ArtifactLocation string
	LifecycleStage   string
	LastUpdateTime   int64
	CreationTime     int64
}

type Run struct {
	ID           string
	ExperimentID string
	Status       string
	StartTime    int64
	EndTime      int64
	Metrics      map[string]float64
	MetricOrder  []string
	Params       map[string]string
	ParamOrder   []string
}

// Server is a fake workspace. Its behaviour can be changed between requests with
// the Set* methods.
type Server struct {
	*httptest.Server

	mu sync.Mutex
	// token, when set, is required as a bearer token on every request.
	token string
	// experimentPrefix qualifies the experiment_name job parameter when run-now
	// records a run.
	experimentPrefix string
	notFoundStyle    NotFoundStyle
	rejectStatus     int
	rejectBody       string
	failRunSearch    bool
	runStatus        string
	pageSize         int

	nextID      int64
	jobs        map[int64]*Job
	experiments map[string]*Experiment
	runs        []*Run
	calls       map[string]int
}

func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Server) SetExperimentPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experimentPrefix = prefix
}

func (s *Server) SetNotFoundStyle(style NotFoundStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notFoundStyle = style
}

// RejectCreate makes jobs/create fail with the given status and body. A zero status
// restores normal behaviour.
func (s *Server) RejectCreate(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectStatus = status
	s.rejectBody = body
}

// SetFailRunSearch makes runs/search fail with a 500.
func (s *Server) SetFailRunSearch(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRunSearch = fail
}

// SetRunStatus sets the status of runs recorded by run-now. Defaults to RUNNING.
func (s *Server) SetRunStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runStatus = status
}

// SetPageSize caps the runs returned per runs/search page. Zero means no cap.
func (s *Server) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = size
}

func NewServer() *Server {
	s := &Server{
		nextID:      1000,
		jobs:        map[int64]*Job{},
		experiments: map[string]*Experiment{},
		calls:       map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.1/jobs/get", s.handleGetJob)
	mux.HandleFunc("/api/2.1/jobs/create", s.handleCreateJob)
	mux.HandleFunc("/api/2.1/jobs/run-now", s.handleRunNow)
	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", s.handleGetExperimentByName)
	mux.HandleFunc("/api/2.0/mlflow/experiments/get", s.handleGetExperiment)
	mux.HandleFunc("/api/2.0/mlflow/experiments/create", s.handleCreateExperiment)
	mux.HandleFunc("/api/2.0/mlflow/experiments/delete", s.handleDeleteExperiment)
	mux.HandleFunc("/api/2.0/mlflow/runs/search", s.handleSearchRuns)
	s.Server = httptest.NewServer(s.authenticate(mux))
	return s
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		token := s.token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid access token.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Calls returns how many requests were made to the given API path, e.g. "/api/2.1/jobs/create".
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests made to any path.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Server) Job(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, false
	}
	job, ok := s.jobs[n]
	return job, ok
}

func (s *Server) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// AddJob registers an existing job and returns its id.
func (s *Server) AddJob(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.jobs[s.nextID] = &Job{ID: s.nextID, Name: name, CreatedTime: time.Now().UnixMilli()}
	return strconv.FormatInt(s.nextID, 10)
}

// DeleteJob removes a job so that later lookups report it missing.
func (s *Server) DeleteJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := strconv.ParseInt(id, 10, 64)
	delete(s.jobs, n)
}

// AddExperiment registers an experiment under its fully qualified name and returns its id.
func (s *Server) AddExperiment(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addExperimentLocked(name).ID
}

// SetExperimentLifecycle changes the lifecycle stage ("active" or "deleted") of the
// named experiment.
func (s *Server) SetExperimentLifecycle(name string, stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.experiments[name]; ok {
		e.LifecycleStage = stage
	}
}

func (s *Server) addExperimentLocked(name string) *Experiment {
	if e, ok := s.experiments[name]; ok {
		return e
	}
	s.nextID++
	now := time.Now().UnixMilli()
	e := &Experiment{
		ID:               strconv.FormatInt(s.nextID, 10),
		Name:             name,
		ArtifactLocation: fmt.Sprintf("dbfs:/databricks/mlflow-tracking/%d", s.nextID),
		LifecycleStage:   "active",
		LastUpdateTime:   now,
		CreationTime:     now,
	}
	s.experiments[name] = e
	return e
}

// AddRun records a run in an experiment. Runs are returned newest first.
func (s *Server) AddRun(experimentID string, status string, metrics map[string]float64, params map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRunLocked(experimentID, status, metrics, params).ID
}

func (s *Server) addRunLocked(experimentID string, status string, metrics map[string]float64, params map[string]string) *Run {
	s.nextID++
	run := &Run{
		ID:           fmt.Sprintf("run%d", s.nextID),
		ExperimentID: experimentID,
		Status:       status,
		StartTime:    time.Now().UnixMilli(),
		Metrics:      metrics,
		Params:       params,
	}
	for k := range metrics {
		run.MetricOrder = append(run.MetricOrder, k)
	}
	for k := range params {
		run.ParamOrder = append(run.ParamOrder, k)
	}
	if status == "FINISHED" || status == "FAILED" || status == "KILLED" {
		run.EndTime = run.StartTime + 1
	}
	s.runs = append([]*Run{run}, s.runs...)
	return run
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]string{"error_code": code, "message": message})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "BAD_REQUEST", "method not allowed")
		return
	}
	raw := r.URL.Query().Get("job_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "Invalid job_id")
		return
	}
	s.mu.Lock()
	job, ok := s.jobs[id]
	style := s.notFoundStyle
	s.mu.Unlock()
	if !ok {
		msg := fmt.Sprintf("Job %d does not exist.", id)
		switch style {
		case NotFoundAs404:
			writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", msg)
		case NotFoundAs400Plain:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(msg))
		default:
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", msg)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":            job.ID,
		"creator_user_name": "someone@example.com",
		"created_time":      job.CreatedTime,
		"settings":          map[string]any{"name": job.Name},
	})
}

type createJobPayload struct {
	Name  string `json:"name"`
	Tasks []struct {
		TaskKey      string `json:"task_key"`
		Description  string `json:"description"`
		NotebookTask struct {
			NotebookPath   string            `json:"notebook_path"`
			Source         string            `json:"source"`
			BaseParameters map[string]string `json:"base_parameters"`
		} `json:"notebook_task"`
	} `json:"tasks"`
	GitSource *struct {
		GitURL      string `json:"git_url"`
		GitProvider string `json:"git_provider"`
		GitBranch   string `json:"git_branch"`
	} `json:"git_source"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "BAD_REQUEST", "method not allowed")
		return
	}
	s.mu.Lock()
	rejectStatus, rejectBody := s.rejectStatus, s.rejectBody
	s.mu.Unlock()
	if rejectStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rejectStatus)
		_, _ = w.Write([]byte(rejectBody))
		return
	}
	payload := createJobPayload{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	if payload.Name == "" || len(payload.Tasks) != 1 || payload.Tasks[0].NotebookTask.NotebookPath == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "A job requires a name and one notebook task.")
		return
	}
	t := payload.Tasks[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job := &Job{
		ID:             s.nextID,
		Name:           payload.Name,
		TaskKey:        t.TaskKey,
		NotebookPath:   t.NotebookTask.NotebookPath,
		Source:         t.NotebookTask.Source,
		BaseParameters: t.NotebookTask.BaseParameters,
		CreatedTime:    time.Now().UnixMilli(),
	}
	if payload.GitSource != nil {
		job.GitURL = payload.GitSource.GitURL
		job.GitProvider = payload.GitSource.GitProvider
		job.GitBranch = payload.GitSource.GitBranch
	}
	s.jobs[job.ID] = job
	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID})
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "BAD_REQUEST", "method not allowed")
		return
	}
	payload := struct {
		JobID int64 `json:"job_id"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[payload.JobID]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", fmt.Sprintf("Job %d does not exist.", payload.JobID))
		return
	}
	// a training notebook logs to the experiment named by its parameters
	if name := job.BaseParameters["experiment_name"]; name != "" {
		status := s.runStatus
		if status == "" {
			status = "RUNNING"
		}
		experiment := s.addExperimentLocked(qualify(s.experimentPrefix, name))
		params := map[string]string{}
		for k, v := range job.BaseParameters {
			params[k] = v
		}
		s.addRunLocked(experiment.ID, status, map[string]float64{}, params)
	}
	s.nextID++
	writeJSON(w, http.StatusOK, map[string]any{"run_id": s.nextID, "number_in_job": s.nextID})
}

func qualify(prefix string, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(name, "/")
}

func experimentJSON(e *Experiment) map[string]any {
	return map[string]any{
		"experiment_id":     e.ID,
		"name":              e.Name,
		"artifact_location": e.ArtifactLocation,
		"lifecycle_stage":   e.LifecycleStage,
		"last_update_time":  e.LastUpdateTime,
		"creation_time":     e.CreationTime,
	}
}

func (s *Server) handleGetExperimentByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("experiment_name")
	s.mu.Lock()
	e, ok := s.experiments[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", fmt.Sprintf("Node named '%s' does not exist", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": experimentJSON(e)})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("experiment_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.experiments {
		if e.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"experiment": experimentJSON(e)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", fmt.Sprintf("Could not find experiment with ID %s", id))
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Name string `json:"name"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "Missing value for required parameter 'name'.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[payload.Name]; ok {
		writeError(w, http.StatusBadRequest, "RESOURCE_ALREADY_EXISTS", fmt.Sprintf("Experiment '%s' already exists.", payload.Name))
		return
	}
	e := s.addExperimentLocked(payload.Name)
	writeJSON(w, http.StatusOK, map[string]any{"experiment_id": e.ID})
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		ExperimentID string `json:"experiment_id"`
	}{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.experiments {
		if e.ID == payload.ExperimentID {
			delete(s.experiments, name)
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
	}
	writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "No experiment with that id")
}

func (s *Server) handleSearchRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "BAD_REQUEST", "method not allowed")
		return
	}
	payload := struct {
		ExperimentIDs []string `json:"experiment_ids"`
		MaxResults    int      `json:"max_results"`
		PageToken     string   `json:"page_token"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRunSearch {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "run search is unavailable")
		return
	}
	wanted := map[string]bool{}
	for _, id := range payload.ExperimentIDs {
		wanted[id] = true
	}
	var matching []*Run
	for _, run := range s.runs {
		if wanted[run.ExperimentID] {
			matching = append(matching, run)
		}
	}
	offset, _ := strconv.Atoi(payload.PageToken)
	if offset > len(matching) {
		offset = len(matching)
	}
	limit := payload.MaxResults
	if limit <= 0 {
		limit = 1000
	}
	if s.pageSize > 0 && limit > s.pageSize {
		limit = s.pageSize
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	page := matching[offset:end]

	runs := make([]map[string]any, 0, len(page))
	for _, run := range page {
		info := map[string]any{
			"run_id":        run.ID,
			"experiment_id": run.ExperimentID,
			"status":        run.Status,
			"start_time":    run.StartTime,
		}
		if run.EndTime > 0 {
			info["end_time"] = run.EndTime
		}
		metrics := []map[string]any{}
		for _, k := range run.MetricOrder {
			metrics = append(metrics, map[string]any{"key": k, "value": run.Metrics[k]})
		}
		params := []map[string]any{}
		for _, k := range run.ParamOrder {
			params = append(params, map[string]any{"key": k, "value": run.Params[k]})
		}
		runs = append(runs, map[string]any{
			"info": info,
			"data": map[string]any{"metrics": metrics, "params": params},
		})
	}
	resp := map[string]any{}
	if len(runs) > 0 {
		resp["runs"] = runs
	}
	if end < len(matching) {
		resp["next_page_token"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}
