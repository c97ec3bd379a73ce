package abstractions

import (
	"context"
	"log/slog"
	"time"

	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

type QueryResults[T any] struct {
	Items       []T
	TotalStored int
}

type Storage interface {
	WithLogger(logger *slog.Logger) Storage
	WithContext(ctx context.Context) Storage

	// This is used to identify the storage implementation in the logs and error messages
	GetDatasourceName() string

	Ping(timeout time.Duration) error

	// EnsureSchema creates the projects table and adds columns introduced after the
	// table was first created. It is safe to call on every start.
	EnsureSchema() error

	// Project operations
	CreateProject(project *api.ProjectConfig) (*api.ProjectResource, error)
	GetProject(id int64) (*api.ProjectResource, error)
	GetProjects(limit int, offset int) (*QueryResults[api.ProjectResource], error)
	UpdateProject(id int64, project *api.ProjectConfig) (*api.ProjectResource, error)
	DeleteProject(id int64) error

	// SetJobIDIfAbsent stores jobID for the project unless a job id is already
	// stored. It returns the job id stored after the call and whether jobID was the
	// one written.
	SetJobIDIfAbsent(id int64, jobID string) (current string, swapped bool, err error)
	// ClearJobID removes the stored job id if it is still staleJobID.
	ClearJobID(id int64, staleJobID string) (cleared bool, err error)

	// Close the storage connection
	Close() error
}

// This interface must be decoupled from the service HTTP layer.
// Do not pass ExecutionContext, Request or Response wrappers either.
