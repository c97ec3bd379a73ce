package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// catalog.schema.table, each part a plain identifier
	tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+){0,2}$`)
)

// NewValidator creates the request validator. Field names in validation errors are
// the JSON names, and the project specific tags are registered:
//   - experiment_name: usable as a short experiment and job name (no slashes, not blank)
//   - table_name: a one to three part table identifier
func NewValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("experiment_name", validateExperimentName); err != nil {
		return nil, err
	}
	if err := validate.RegisterValidation("table_name", validateTableName); err != nil {
		return nil, err
	}
	return validate, nil
}

func validateExperimentName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return strings.TrimSpace(name) != "" && !strings.Contains(name, "/")
}

func validateTableName(fl validator.FieldLevel) bool {
	return tableNamePattern.MatchString(fl.Field().String())
}
