package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/serviceerrors"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

const projectType = "project"

// timestamp scans the created_at column, which sqlite may hand back as text.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

func (t *timestamp) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp format %q", s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*api.ProjectResource, error) {
	var project api.ProjectResource
	var jobID sql.NullString
	var createdAt timestamp
	if err := row.Scan(&project.ID, &project.ProjectName, &project.TableName, &project.Target, &jobID, &createdAt); err != nil {
		return nil, err
	}
	if jobID.Valid && jobID.String != "" {
		project.JobID = &jobID.String
	}
	project.CreatedAt = createdAt.UTC()
	return &project, nil
}

func resourceID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *SQLStorage) notFound(id int64) error {
	return serviceerrors.NewServiceError(messages.ResourceNotFound, "Type", projectType, "ResourceId", id)
}

func (s *SQLStorage) databaseError(id int64, err error) error {
	return serviceerrors.NewServiceError(messages.DatabaseOperationFailed, "Type", projectType, "ResourceId", id, "Error", err.Error()).WithCause(err)
}

func (s *SQLStorage) CreateProject(project *api.ProjectConfig) (*api.ProjectResource, error) {
	var createdAt timestamp
	resource := &api.ProjectResource{ProjectConfig: *project}
	err := s.queryRow(s.pool, INSERT_PROJECT_STATEMENT, project.ProjectName, project.TableName, project.Target).Scan(&resource.ID, &createdAt)
	if err != nil {
		s.logger.Error("Failed to create project", "project_name", project.ProjectName, "error", err.Error())
		return nil, serviceerrors.NewServiceError(messages.QueryFailed, "Type", "project creation", "Error", err.Error()).WithCause(err)
	}
	resource.CreatedAt = createdAt.UTC()
	s.logger.Info("Created project", "id", resource.ID, "project_name", project.ProjectName)
	return resource, nil
}

func (s *SQLStorage) getProject(q queryer, id int64) (*api.ProjectResource, error) {
	project, err := scanProject(s.queryRow(q, SELECT_PROJECT_STATEMENT, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.notFound(id)
		}
		s.logger.Error("Failed to get project", "id", id, "error", err.Error())
		return nil, s.databaseError(id, err)
	}
	return project, nil
}

func (s *SQLStorage) GetProject(id int64) (*api.ProjectResource, error) {
	return s.getProject(s.pool, id)
}

func (s *SQLStorage) GetProjects(limit int, offset int) (*abstractions.QueryResults[api.ProjectResource], error) {
	var total int
	if err := s.queryRow(s.pool, COUNT_PROJECTS_STATEMENT).Scan(&total); err != nil {
		s.logger.Error("Failed to count projects", "error", err.Error())
		return nil, serviceerrors.NewServiceError(messages.QueryFailed, "Type", "projects", "Error", err.Error()).WithCause(err)
	}

	rows, err := s.query(s.pool, LIST_PROJECTS_STATEMENT, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list projects", "error", err.Error())
		return nil, serviceerrors.NewServiceError(messages.QueryFailed, "Type", "projects", "Error", err.Error()).WithCause(err)
	}
	defer rows.Close()

	items := []api.ProjectResource{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			s.logger.Error("Failed to scan project row", "error", err.Error())
			return nil, serviceerrors.NewServiceError(messages.QueryFailed, "Type", "projects", "Error", err.Error()).WithCause(err)
		}
		items = append(items, *project)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Error iterating project rows", "error", err.Error())
		return nil, serviceerrors.NewServiceError(messages.QueryFailed, "Type", "projects", "Error", err.Error()).WithCause(err)
	}

	return &abstractions.QueryResults[api.ProjectResource]{
		Items:       items,
		TotalStored: total,
	}, nil
}

// UpdateProject replaces the user supplied fields. When any of them changes the
// stored job id is dropped, so the next training run creates a job with the new
// parameters.
func (s *SQLStorage) UpdateProject(id int64, project *api.ProjectConfig) (*api.ProjectResource, error) {
	var updated *api.ProjectResource
	err := s.withTransaction("update project", resourceID(id), func(tx *sql.Tx) error {
		result, err := s.exec(tx, UPDATE_PROJECT_STATEMENT,
			project.ProjectName, project.TableName, project.Target,
			project.ProjectName, project.TableName, project.Target,
			id)
		if err != nil {
			s.logger.Error("Failed to update project", "id", id, "error", err.Error())
			return serviceerrors.WithRollback(s.databaseError(id, err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return serviceerrors.WithRollback(s.databaseError(id, err))
		}
		if affected == 0 {
			return s.notFound(id)
		}
		updated, err = s.getProject(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Updated project", "id", id, "job_id_kept", updated.JobID != nil)
	return updated, nil
}

func (s *SQLStorage) DeleteProject(id int64) error {
	result, err := s.exec(s.pool, DELETE_PROJECT_STATEMENT, id)
	if err != nil {
		s.logger.Error("Failed to delete project", "id", id, "error", err.Error())
		return s.databaseError(id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return s.databaseError(id, err)
	}
	if affected == 0 {
		return s.notFound(id)
	}
	s.logger.Info("Deleted project", "id", id)
	return nil
}

// SetJobIDIfAbsent writes jobID only where no job id is stored, in one statement,
// and reads back the value that won.
func (s *SQLStorage) SetJobIDIfAbsent(id int64, jobID string) (string, bool, error) {
	current := ""
	swapped := false
	err := s.withTransaction("set job id", resourceID(id), func(tx *sql.Tx) error {
		result, err := s.exec(tx, SET_JOB_ID_IF_ABSENT_STATEMENT, jobID, id)
		if err != nil {
			s.logger.Error("Failed to set job id", "id", id, "job_id", jobID, "error", err.Error())
			return serviceerrors.WithRollback(s.databaseError(id, err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return serviceerrors.WithRollback(s.databaseError(id, err))
		}
		var stored sql.NullString
		if err := s.queryRow(tx, SELECT_JOB_ID_STATEMENT, id).Scan(&stored); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return s.notFound(id)
			}
			return serviceerrors.WithRollback(s.databaseError(id, err))
		}
		current = stored.String
		swapped = affected == 1
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if swapped {
		s.logger.Info("Stored job id", "id", id, "job_id", jobID)
	} else {
		s.logger.Info("Job id already stored", "id", id, "job_id", current, "rejected_job_id", jobID)
	}
	return current, swapped, nil
}

func (s *SQLStorage) ClearJobID(id int64, staleJobID string) (bool, error) {
	result, err := s.exec(s.pool, CLEAR_JOB_ID_STATEMENT, id, staleJobID)
	if err != nil {
		s.logger.Error("Failed to clear job id", "id", id, "job_id", staleJobID, "error", err.Error())
		return false, s.databaseError(id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, s.databaseError(id, err)
	}
	if affected == 1 {
		s.logger.Info("Cleared stale job id", "id", id, "job_id", staleJobID)
	}
	return affected == 1, nil
}
