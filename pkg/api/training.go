package api

// TrainingResult is returned when a training run of a project has been started.
type TrainingResult struct {
	ProjectID  int64  `json:"project_id"`
	JobID      string `json:"job_id"`
	RunID      string `json:"run_id"`
	JobCreated bool   `json:"job_created"`
	Message    string `json:"message"`
}
