package serialization_test

import (
	"context"
	"testing"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/serialization"
	"github.com/BenMacKenzie/db-mlops/internal/validation"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

func newContext() *executioncontext.ExecutionContext {
	return executioncontext.NewExecutionContext(context.Background(), "test-request", logging.FallbackLogger(), time.Second)
}

func TestUnmarshal(t *testing.T) {
	validate, err := validation.NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	project := api.ProjectConfig{}
	if err := serialization.Unmarshal(validate, newContext(), []byte(`{"project_name":"titanic_4","table_name":"cat.default.titanic","target":"Survived"}`), &project); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if project.ProjectName != "titanic_4" {
		t.Errorf("Expected project name titanic_4, got %s", project.ProjectName)
	}

	if err := serialization.Unmarshal(validate, newContext(), []byte(`{"project_name":`), &api.ProjectConfig{}); err == nil {
		t.Errorf("Expected an error for truncated JSON")
	}
	if err := serialization.Unmarshal(validate, newContext(), []byte(`{"project_name":"x"}`), &api.ProjectConfig{}); err == nil {
		t.Errorf("Expected a validation error for a partial project")
	}
}

func TestMergePatch(t *testing.T) {
	validate, err := validation.NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	current := api.ProjectConfig{ProjectName: "titanic_4", TableName: "cat.default.titanic", Target: "Survived"}

	t.Run("changes only the patched fields", func(t *testing.T) {
		patched := api.ProjectConfig{}
		if err := serialization.MergePatch(validate, newContext(), &current, []byte(`{"target":"Pclass"}`), &patched); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if patched.Target != "Pclass" || patched.ProjectName != "titanic_4" || patched.TableName != "cat.default.titanic" {
			t.Errorf("Unexpected patch result %+v", patched)
		}
		if current.Target != "Survived" {
			t.Errorf("The current value must not change")
		}
	})

	t.Run("null removes a field and fails validation", func(t *testing.T) {
		patched := api.ProjectConfig{}
		if err := serialization.MergePatch(validate, newContext(), &current, []byte(`{"target":null}`), &patched); err == nil {
			t.Fatalf("Expected a validation error")
		}
	})

	t.Run("invalid patch", func(t *testing.T) {
		patched := api.ProjectConfig{}
		if err := serialization.MergePatch(validate, newContext(), &current, []byte(`{"target"`), &patched); err == nil {
			t.Fatalf("Expected an error for an invalid patch")
		}
	})
}
