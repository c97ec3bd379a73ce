package config

// TrainingConfig describes the notebook every project trains with. Either
// NotebookPath (a workspace path) or GitURL with GitPath must be set.
type TrainingConfig struct {
	NotebookPath string `mapstructure:"notebook_path"`
	GitURL       string `mapstructure:"git_url"`
	GitProvider  string `mapstructure:"git_provider"`
	GitBranch    string `mapstructure:"git_branch"`
	GitPath      string `mapstructure:"git_path"`
	TaskKey      string `mapstructure:"task_key"`
	Description  string `mapstructure:"description"`
}

// UsesGit reports whether the training notebook is taken from a git repository.
func (t *TrainingConfig) UsesGit() bool {
	return t != nil && t.GitURL != ""
}
