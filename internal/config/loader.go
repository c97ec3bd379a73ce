package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath names an operator supplied config file merged over the bundled one.
	EnvConfigPath = "CONFIG_PATH"

	DefaultPort        = 8080
	DefaultHTTPTimeout = 30 * time.Second
	DefaultMaxRuns     = 1000
)

var defaultConfigDirs = []string{"config", "./config", "../../config"}

type EnvMap struct {
	EnvMappings map[string]string `mapstructure:"env_mappings,omitempty"`
}

type SecretMap struct {
	Dir      string            `mapstructure:"dir,omitempty"`
	Mappings map[string]string `mapstructure:"mappings,omitempty"`
}

type secretsSection struct {
	Secrets SecretMap `mapstructure:"secrets,omitempty"`
}

// readConfig locates and reads a configuration file using Viper. It searches for
// a file named "{name}.{ext}" in each of the given directories in order; the first
// found file is read.
//
// Parameters:
//   - logger: Logger for config load messages (success and failure).
//   - name: Config file base name without extension (e.g., "config").
//   - ext: Config file extension/type (e.g., "yaml"); used by Viper as config type.
//   - dirs: One or more directories to search for the file; first match wins.
//
// Returns:
//   - *viper.Viper: Viper instance with the config loaded, or a new Viper if no file was read.
//   - error: Non-nil if no config file was found in any dir or if reading failed.
func readConfig(logger *slog.Logger, name string, ext string, dirs ...string) (*viper.Viper, error) {
	logger.Info("Reading the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs))

	configValues := viper.New()

	configValues.SetConfigName(name)
	configValues.SetConfigType(ext)
	for _, dir := range dirs {
		configValues.AddConfigPath(dir)
	}
	err := configValues.ReadInConfig()

	if err != nil {
		logger.Error("Failed to read the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs), "error", err.Error())
	} else {
		logger.Info("Read the configuration file", "file", configValues.ConfigFileUsed())
	}

	return configValues, err
}

// mergeOperatorConfig merges the file named by CONFIG_PATH over the bundled
// configuration. Sections are merged key by key, except secrets which the operator
// file replaces as a whole so that bundled secret mappings never leak into an
// operator deployment.
func mergeOperatorConfig(logger *slog.Logger, configValues *viper.Viper) (*viper.Viper, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return configValues, nil
	}
	operatorValues := viper.New()
	operatorValues.SetConfigFile(path)
	if err := operatorValues.ReadInConfig(); err != nil {
		logger.Error("Failed to read the operator configuration file", "file", path, "error", err.Error())
		return nil, err
	}
	logger.Info("Merging the operator configuration file", "file", path)

	merged := configValues.AllSettings()
	for key, value := range operatorValues.AllSettings() {
		if key == "secrets" {
			merged[key] = value
			continue
		}
		merged[key] = mergeValues(merged[key], value)
	}

	result := viper.New()
	if err := result.MergeConfigMap(merged); err != nil {
		return nil, err
	}
	return result, nil
}

func mergeValues(base any, override any) any {
	baseMap, baseOK := base.(map[string]any)
	overrideMap, overrideOK := override.(map[string]any)
	if !baseOK || !overrideOK {
		return override
	}
	out := make(map[string]any, len(baseMap)+len(overrideMap))
	for k, v := range baseMap {
		out[k] = v
	}
	for k, v := range overrideMap {
		out[k] = mergeValues(out[k], v)
	}
	return out
}

// loadDotEnv loads .env files into the process environment. Variables that are
// already set win, and a missing file is not an error.
func loadDotEnv(logger *slog.Logger, files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			logger.Error("Failed to load the environment file", "file", file, "error", err.Error())
			return err
		}
		logger.Info("Loaded the environment file", "file", file)
	}
	return nil
}

// LoadConfig loads configuration using a layered system with Viper.
//
// Configuration loading order (later sources override earlier ones):
//  1. config.yaml, the first found in dirs (default config, ./config, ../../config)
//  2. The file named by CONFIG_PATH, merged on top
//  3. Environment variables (including those from .env) mapped via env_mappings
//  4. Secrets from files mapped via secrets.mappings within secrets.dir
//
// Optional secrets: append :optional to the secret file name. A missing optional
// secret file is skipped silently.
//
// Example configuration structure:
//
//	env_mappings:
//	  databricks_host: databricks.host
//	secrets:
//	  dir: /var/run/secrets/mlops
//	  mappings:
//	    db_password: database.password
//	    token:optional: databricks.token
//
// The --local flag is parsed by the caller, which sets Service.LocalMode on the
// returned configuration.
func LoadConfig(logger *slog.Logger, version string, build string, buildDate string, dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = defaultConfigDirs
	}
	if err := loadDotEnv(logger, ".env"); err != nil {
		return nil, err
	}

	configValues, err := readConfig(logger, "config", "yaml", dirs...)
	if err != nil {
		return nil, err
	}
	configValues, err = mergeOperatorConfig(logger, configValues)
	if err != nil {
		return nil, err
	}

	configValues.SetDefault("service.port", DefaultPort)
	configValues.SetDefault("databricks.http_timeout", DefaultHTTPTimeout)
	configValues.SetDefault("databricks.max_runs", DefaultMaxRuns)
	configValues.SetDefault("otel.exporter", OTELExporterNone)

	// set up the environment variable mappings
	envMappings := EnvMap{}
	if err := configValues.Unmarshal(&envMappings); err != nil {
		return nil, err
	}
	for envName, field := range envMappings.EnvMappings {
		if err := configValues.BindEnv(field, strings.ToUpper(envName)); err != nil {
			return nil, err
		}
		logger.Info("Mapped environment variable", "field_name", field, "env_name", strings.ToUpper(envName))
	}

	// secrets from files take precedence over everything else
	secrets := secretsSection{}
	if err := configValues.Unmarshal(&secrets); err != nil {
		return nil, err
	}
	if secrets.Secrets.Dir != "" {
		if _, err := os.Stat(secrets.Secrets.Dir); !os.IsNotExist(err) {
			for fileName, fieldName := range secrets.Secrets.Mappings {
				optional := strings.HasSuffix(fileName, ":optional")
				if optional {
					fileName = strings.TrimSuffix(fileName, ":optional")
				}
				secret, err := getSecret(secrets.Secrets.Dir, fileName, optional)
				if err != nil {
					logger.Error("Failed to read secret file", "file", fmt.Sprintf("%s/%s", secrets.Secrets.Dir, fileName), "error", err.Error())
					return nil, err
				}
				if secret != "" {
					configValues.Set(fieldName, secret)
				}
			}
		}
	}

	conf := Config{}
	if err := configValues.Unmarshal(&conf); err != nil {
		return nil, err
	}
	if conf.Service == nil {
		conf.Service = &ServiceConfig{Port: DefaultPort}
	}
	if conf.Databricks == nil {
		conf.Databricks = &DatabricksConfig{HTTPTimeout: DefaultHTTPTimeout, MaxRuns: DefaultMaxRuns}
	}
	if conf.Databricks.Token == "" && conf.Databricks.TokenPath != "" {
		token, err := os.ReadFile(conf.Databricks.TokenPath)
		if err != nil {
			logger.Error("Failed to read the workspace token file", "file", conf.Databricks.TokenPath, "error", err.Error())
			return nil, err
		}
		conf.Databricks.Token = strings.TrimSpace(string(token))
	}

	conf.Service.Version = version
	conf.Service.Build = build
	conf.Service.BuildDate = buildDate
	return &conf, nil
}

// getSecret reads a secret from a file and returns the value as a string with
// surrounding whitespace removed. A missing optional file yields an empty string
// and no error.
func getSecret(secretsDir string, secretName string, optional bool) (string, error) {
	secret, err := os.ReadFile(fmt.Sprintf("%s/%s", secretsDir, secretName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && optional {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
