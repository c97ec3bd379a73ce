package config

import (
	"crypto/tls"
	"time"
)

// DatabricksConfig locates the workspace that hosts the training jobs and the
// experiment tracking server.
type DatabricksConfig struct {
	Host  string `mapstructure:"host"`
	Token string `mapstructure:"token"`
	// TokenPath is read when Token is empty, e.g. a mounted service account token.
	TokenPath   string        `mapstructure:"token_path"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	// ExperimentPrefix qualifies short experiment names, e.g. /Users/someone@example.com
	ExperimentPrefix   string      `mapstructure:"experiment_prefix"`
	MaxRuns            int         `mapstructure:"max_runs"`
	CACertPath         string      `mapstructure:"ca_cert_path"`
	InsecureSkipVerify bool        `mapstructure:"insecure_skip_verify"`
	TLSConfig          *tls.Config // not serialized
}
