package api

import "time"

// ProjectConfig is the user supplied part of a project.
type ProjectConfig struct {
	ProjectName string `json:"project_name" validate:"required,max=255,experiment_name"`
	TableName   string `json:"table_name" validate:"required,max=255,table_name"`
	Target      string `json:"target" validate:"required,max=255"`
}

// ProjectResource is a stored project. JobID is set once a training job has been
// created for the project and is nil until then.
type ProjectResource struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobID     *string   `json:"job_id"`
	ProjectConfig
}

type ProjectResourceList struct {
	Page
	Items []ProjectResource `json:"items"`
}
