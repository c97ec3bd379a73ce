package jobsclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

// GitProvider is the git hosting service of a job's git source, as named by the jobs API.
type GitProvider string

const (
	GitProviderGitHub                  GitProvider = "gitHub"
	GitProviderGitHubEnterprise        GitProvider = "gitHubEnterprise"
	GitProviderGitLab                  GitProvider = "gitLab"
	GitProviderGitLabEnterpriseEdition GitProvider = "gitLabEnterpriseEdition"
	GitProviderBitbucketCloud          GitProvider = "bitbucketCloud"
	GitProviderBitbucketServer         GitProvider = "bitbucketServer"
	GitProviderAzureDevOpsServices     GitProvider = "azureDevOpsServices"
	GitProviderAWSCodeCommit           GitProvider = "awsCodeCommit"
)

var knownGitProviders = []GitProvider{
	GitProviderGitHub,
	GitProviderGitHubEnterprise,
	GitProviderGitLab,
	GitProviderGitLabEnterpriseEdition,
	GitProviderBitbucketCloud,
	GitProviderBitbucketServer,
	GitProviderAzureDevOpsServices,
	GitProviderAWSCodeCommit,
}

// ParseGitProvider matches a provider name case-insensitively, so "github" and
// "gitHub" are the same provider.
func ParseGitProvider(s string) (GitProvider, error) {
	for _, p := range knownGitProviders {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", &workspace.MalformedInputError{Field: "git provider", Reason: fmt.Sprintf("unknown git provider '%s'", s)}
}

const (
	NotebookSourceWorkspace = "WORKSPACE"
	NotebookSourceGit       = "GIT"

	DefaultTaskKey     = "MyTask"
	DefaultDescription = "train model"
)

// GitSource locates a notebook inside an external repository. Path is relative to
// the repository root.
type GitSource struct {
	URL      string
	Provider GitProvider
	Branch   string
	Path     string
}

// NotebookSource holds exactly one of WorkspacePath or Git.
type NotebookSource struct {
	WorkspacePath string
	Git           *GitSource
}

// JobSpec describes a job to create. It is treated as immutable.
type JobSpec struct {
	Name        string
	Notebook    NotebookSource
	Parameters  map[string]string
	TaskKey     string
	Description string
}

// Validate checks the job spec before it is sent to the platform.
func (s *JobSpec) Validate() error {
	if s == nil {
		return &workspace.MalformedInputError{Field: "job spec", Reason: "the job spec is required"}
	}
	if strings.TrimSpace(s.Name) == "" {
		return &workspace.MalformedInputError{Field: "job name", Reason: "the job name is required"}
	}
	hasWorkspace := strings.TrimSpace(s.Notebook.WorkspacePath) != ""
	hasGit := s.Notebook.Git != nil
	switch {
	case hasWorkspace && hasGit:
		return &workspace.MalformedInputError{Field: "notebook location", Reason: "a workspace path and a git source are mutually exclusive"}
	case !hasWorkspace && !hasGit:
		return &workspace.MalformedInputError{Field: "notebook location", Reason: "either a workspace path or a git source is required"}
	}
	if hasGit {
		git := s.Notebook.Git
		if strings.TrimSpace(git.URL) == "" {
			return &workspace.MalformedInputError{Field: "git url", Reason: "the git url is required"}
		}
		if strings.TrimSpace(git.Path) == "" {
			return &workspace.MalformedInputError{Field: "git path", Reason: "the notebook path in the repository is required"}
		}
		if _, err := ParseGitProvider(string(git.Provider)); err != nil {
			return err
		}
	}
	return nil
}

// JobHandle identifies a remote job. The optional metadata is what the platform
// reported at lookup or creation time.
type JobHandle struct {
	JobID     string     `json:"job_id"`
	Name      string     `json:"name,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Creator   string     `json:"creator,omitempty"`
}

// RunHandle identifies a single run started by RunNow.
type RunHandle struct {
	RunID       string `json:"run_id"`
	JobID       string `json:"job_id"`
	NumberInJob int64  `json:"number_in_job,omitempty"`
}

// wire types for the jobs API

type notebookTask struct {
	NotebookPath   string            `json:"notebook_path"`
	Source         string            `json:"source,omitempty"`
	BaseParameters map[string]string `json:"base_parameters,omitempty"`
}

type task struct {
	TaskKey      string       `json:"task_key"`
	NotebookTask notebookTask `json:"notebook_task"`
	Description  string       `json:"description,omitempty"`
}

type gitSource struct {
	GitURL      string `json:"git_url"`
	GitProvider string `json:"git_provider"`
	GitBranch   string `json:"git_branch,omitempty"`
}

// CreateJobRequest is the jobs/create payload. No cluster block is sent, so the job
// runs on the platform's default serverless compute.
type CreateJobRequest struct {
	Name      string     `json:"name"`
	Tasks     []task     `json:"tasks"`
	GitSource *gitSource `json:"git_source,omitempty"`
}

type CreateJobResponse struct {
	JobID int64 `json:"job_id"`
}

type JobSettings struct {
	Name string `json:"name"`
}

type GetJobResponse struct {
	JobID           int64       `json:"job_id"`
	CreatorUserName string      `json:"creator_user_name,omitempty"`
	CreatedTime     int64       `json:"created_time,omitempty"`
	Settings        JobSettings `json:"settings"`
}

type RunNowRequest struct {
	JobID int64 `json:"job_id"`
}

type RunNowResponse struct {
	RunID       int64 `json:"run_id"`
	NumberInJob int64 `json:"number_in_job,omitempty"`
}

func newCreateJobRequest(spec *JobSpec) (*CreateJobRequest, error) {
	taskKey := spec.TaskKey
	if taskKey == "" {
		taskKey = DefaultTaskKey
	}
	description := spec.Description
	if description == "" {
		description = DefaultDescription
	}
	req := &CreateJobRequest{
		Name: spec.Name,
	}
	t := task{
		TaskKey:     taskKey,
		Description: description,
		NotebookTask: notebookTask{
			BaseParameters: spec.Parameters,
		},
	}
	if git := spec.Notebook.Git; git != nil {
		provider, err := ParseGitProvider(string(git.Provider))
		if err != nil {
			return nil, err
		}
		t.NotebookTask.NotebookPath = git.Path
		t.NotebookTask.Source = NotebookSourceGit
		req.GitSource = &gitSource{
			GitURL:      git.URL,
			GitProvider: string(provider),
			GitBranch:   git.Branch,
		}
	} else {
		t.NotebookTask.NotebookPath = spec.Notebook.WorkspacePath
		t.NotebookTask.Source = NotebookSourceWorkspace
	}
	req.Tasks = []task{t}
	return req, nil
}

func millisToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
