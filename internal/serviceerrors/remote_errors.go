package serviceerrors

import (
	"errors"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

// FromWorkspaceError translates an error from the workspace clients into a service
// error. requestType names the remote operation ("create job", "list runs", ...)
// and resourceID the entity it concerned. Service errors pass through unchanged.
func FromWorkspaceError(requestType string, resourceID string, err error) error {
	if err == nil {
		return nil
	}
	var se abstractions.ServiceError
	if errors.As(err, &se) {
		return err
	}

	var notFound *workspace.NotFoundError
	var apiErr *workspace.APIError
	switch {
	case errors.As(err, &notFound):
		return NewServiceError(messages.ResourceNotFound, "Type", notFound.Kind, "ResourceId", notFound.ID).WithCause(err)
	case workspace.IsMalformedInput(err):
		return NewServiceError(messages.InvalidWorkspaceInput, "Type", requestType, "Error", err.Error()).WithCause(err)
	case workspace.IsTransport(err):
		return NewServiceError(messages.WorkspaceUnavailable, "Type", requestType, "Error", err.Error()).WithCause(err)
	case errors.As(err, &apiErr):
		detail := apiErr.Message
		if detail == "" {
			detail = apiErr.ResponseBody
		}
		return NewServiceError(messages.WorkspaceRequestFailed, "Type", requestType, "Status", apiErr.StatusCode, "Error", detail).WithCause(err)
	default:
		return NewServiceError(messages.InternalServerError, "Error", err.Error()).WithCause(err)
	}
}
