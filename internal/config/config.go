package config

import (
	"fmt"
)

// Config is built once at start up and handed to every component that needs it.
type Config struct {
	Service    *ServiceConfig    `mapstructure:"service"`
	Database   *map[string]any   `mapstructure:"database"`
	Databricks *DatabricksConfig `mapstructure:"databricks"`
	Training   *TrainingConfig   `mapstructure:"training"`
	OTEL       *OTELConfig       `mapstructure:"otel"`
}

func (c *Config) IsOTELEnabled() bool {
	return c != nil && c.OTEL.IsEnabled()
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("the service configuration is missing")
	}
	if c.Databricks == nil || c.Databricks.Host == "" {
		return fmt.Errorf("the workspace host is not configured, set DATABRICKS_HOST")
	}
	if c.Training == nil {
		return fmt.Errorf("the training configuration is missing")
	}
	hasGit := c.Training.UsesGit()
	hasPath := c.Training.NotebookPath != ""
	if hasGit == hasPath {
		return fmt.Errorf("exactly one of training.notebook_path and training.git_url must be set")
	}
	if hasGit && c.Training.GitPath == "" {
		return fmt.Errorf("training.git_path is required with training.git_url")
	}
	return nil
}
