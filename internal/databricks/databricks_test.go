package databricks_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/databricks"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/pkg/jobsclient"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace/workspacetest"
)

const prefix = "/Users/someone@example.com"

func TestNewTransport(t *testing.T) {
	logger := logging.FallbackLogger()

	t.Run("missing host", func(t *testing.T) {
		if _, err := databricks.NewTransport(&config.DatabricksConfig{}, logger); err == nil {
			t.Fatalf("Expected an error without a host")
		}
	})

	t.Run("unreadable CA certificate", func(t *testing.T) {
		_, err := databricks.NewTransport(&config.DatabricksConfig{Host: "adb-1.azuredatabricks.net", CACertPath: filepath.Join(t.TempDir(), "missing.pem")}, logger)
		if err == nil {
			t.Fatalf("Expected an error for a missing CA certificate")
		}
	})

	t.Run("CA file without certificates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.pem")
		if err := os.WriteFile(path, []byte("not a certificate"), 0600); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := databricks.NewTransport(&config.DatabricksConfig{Host: "adb-1.azuredatabricks.net", CACertPath: path}, logger); err == nil {
			t.Fatalf("Expected an error for an empty CA file")
		}
	})

	t.Run("host is normalized", func(t *testing.T) {
		transport, err := databricks.NewTransport(&config.DatabricksConfig{Host: "adb-1.azuredatabricks.net/", HTTPTimeout: time.Second}, logger)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if transport.GetBaseURL() != "https://adb-1.azuredatabricks.net" {
			t.Errorf("Unexpected base url %s", transport.GetBaseURL())
		}
	})
}

func TestRegistryAndTelemetry(t *testing.T) {
	fake := workspacetest.NewServer()
	defer fake.Close()
	fake.SetToken("dapi-test")
	fake.SetExperimentPrefix(prefix)

	transport, err := databricks.NewTransport(&config.DatabricksConfig{Host: fake.URL, Token: "dapi-test", HTTPTimeout: 5 * time.Second}, logging.FallbackLogger())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ctx := context.Background()
	registry := databricks.NewJobRegistry(transport).WithContext(ctx)
	runs := databricks.NewRunTelemetry(transport, prefix).WithContext(ctx)

	job, created, err := registry.EnsureJob(&jobsclient.JobSpec{
		Name:       "titanic",
		Notebook:   jobsclient.NotebookSource{WorkspacePath: "/Workspace/x"},
		Parameters: map[string]string{"experiment_name": "titanic"},
	}, "")
	if err != nil || !created {
		t.Fatalf("Expected a new job, got %v %v", created, err)
	}
	if _, err := registry.RunNow(job.JobID); err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}

	experiment, err := runs.ResolveExperiment("titanic")
	if err != nil {
		t.Fatalf("Unexpected resolve error: %v", err)
	}
	records, err := runs.ListRuns(experiment.ExperimentID, 10)
	if err != nil {
		t.Fatalf("Unexpected list error: %v", err)
	}
	if len(records) != 1 || records[0].Status != "RUNNING" {
		t.Fatalf("Expected one running run, got %+v", records)
	}

	if _, err := runs.ResolveExperiment("unknown"); !workspace.IsResourceDoesNotExist(err) {
		t.Errorf("Expected a resource does not exist error, got %v", err)
	}
}
