package handlers

import (
	"errors"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/training"
	"github.com/go-playground/validator/v10"
)

type Handlers struct {
	storage       abstractions.Storage
	validate      *validator.Validate
	training      *training.Service
	serviceConfig *config.Config
}

func New(storage abstractions.Storage, validate *validator.Validate, trainingService *training.Service, serviceConfig *config.Config) *Handlers {
	return &Handlers{
		storage:       storage,
		validate:      validate,
		training:      trainingService,
		serviceConfig: serviceConfig,
	}
}

// storageFor returns the storage bound to the request context and logger.
func (h *Handlers) storageFor(ctx *executioncontext.ExecutionContext) abstractions.Storage {
	return h.storage.WithContext(ctx.Ctx).WithLogger(ctx.Logger)
}

// bodyError reports a request body that could not be decoded or did not validate.
func (h *Handlers) bodyError(ctx *executioncontext.ExecutionContext, w http_wrappers.ResponseWrapper, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		w.ErrorWithMessageCode(ctx.RequestID, messages.RequestValidationFailed, "Error", validationErrors.Error())
		return
	}
	w.ErrorWithMessageCode(ctx.RequestID, messages.InvalidJSONRequest, "Error", err.Error())
}
