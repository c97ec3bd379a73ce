package validation_test

import (
	"errors"
	"testing"

	"github.com/BenMacKenzie/db-mlops/internal/validation"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
	"github.com/go-playground/validator/v10"
)

func TestProjectConfigValidation(t *testing.T) {
	validate, err := validation.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() returned error: %v", err)
	}

	tests := []struct {
		name    string
		project api.ProjectConfig
		field   string
	}{
		{"valid", api.ProjectConfig{ProjectName: "titanic_4", TableName: "cat.default.titanic", Target: "Survived"}, ""},
		{"missing name", api.ProjectConfig{TableName: "cat.default.titanic", Target: "Survived"}, "project_name"},
		{"name with slash", api.ProjectConfig{ProjectName: "a/b", TableName: "t", Target: "Survived"}, "project_name"},
		{"blank name", api.ProjectConfig{ProjectName: "   ", TableName: "t", Target: "Survived"}, "project_name"},
		{"bad table", api.ProjectConfig{ProjectName: "p", TableName: "cat..titanic", Target: "Survived"}, "table_name"},
		{"four part table", api.ProjectConfig{ProjectName: "p", TableName: "a.b.c.d", Target: "Survived"}, "table_name"},
		{"missing target", api.ProjectConfig{ProjectName: "p", TableName: "titanic"}, "target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(&tt.project)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var validationErrors validator.ValidationErrors
			if !errors.As(err, &validationErrors) {
				t.Fatalf("Expected validation errors, got %v", err)
			}
			if validationErrors[0].Field() != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, validationErrors[0].Field())
			}
		})
	}
}

func TestJobRequestValidation(t *testing.T) {
	validate, err := validation.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() returned error: %v", err)
	}
	if err := validate.Struct(&api.JobRequest{Name: "nightly", NotebookPath: "/Workspace/Shared/train"}); err != nil {
		t.Errorf("Expected a valid job request, got %v", err)
	}
	if err := validate.Struct(&api.JobRequest{Name: "nightly", NotebookPath: "Workspace/train"}); err == nil {
		t.Errorf("Expected a relative notebook path to be rejected")
	}
}
