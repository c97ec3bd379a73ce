package api

// JobRequest creates a notebook job that is not attached to a project. Parameters
// is a JSON object of string values passed to the notebook as base parameters.
type JobRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	NotebookPath string `json:"notebook_path" validate:"required,startswith=/"`
	Parameters   string `json:"parameters,omitempty"`
	// RunNow starts a run as soon as the job is created.
	RunNow bool `json:"run_now,omitempty"`
}

type JobResult struct {
	JobID   string `json:"job_id"`
	Name    string `json:"name"`
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
}
