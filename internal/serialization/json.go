package serialization

import (
	"encoding/json"
	"errors"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	validator "github.com/go-playground/validator/v10"
	jsonpatch "gopkg.in/evanphx/json-patch.v4"
)

// Unmarshal decodes jsonBytes into v and validates the result. Validation errors are
// logged field by field and returned as validator.ValidationErrors.
func Unmarshal(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, jsonBytes []byte, v any) error {
	err := json.Unmarshal(jsonBytes, v)
	if err != nil {
		return err
	}
	// now validate the unmarshalled data
	err = validate.StructCtx(executionContext.Ctx, v)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, validationError := range validationErrors {
				executionContext.Logger.Info("Validation error", "field", validationError.Field(), "tag", validationError.Tag(), "value", validationError.Value())
			}
		}
		return err
	}
	return nil
}

// MergePatch applies a JSON merge patch (RFC 7386) to current, then decodes and
// validates the patched document into v. current is left untouched.
func MergePatch(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, current any, patch []byte, v any) error {
	original, err := json.Marshal(current)
	if err != nil {
		return err
	}
	patched, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return err
	}
	return Unmarshal(validate, executionContext, patched, v)
}
