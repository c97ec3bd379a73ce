package messages

import (
	"fmt"
	"net/http"
	"strings"
)

// This package provides all the error messages that should be reported to the user.
// Note that we add a comment with the message parameters so that it is possible
// to see the parameters in the IDE when creating an error message.
var (
	// API errors that are not storage specific

	// MissingPathParameter The path parameter '{{.ParameterName}}' is required.
	MissingPathParameter = createMessage(
		http.StatusNotFound,
		"missing_path_parameter",
		"The path parameter '{{.ParameterName}}' is required.",
	)

	// InvalidPathParameter The path parameter '{{.ParameterName}}' is not a valid {{.Type}}: '{{.Value}}'.
	InvalidPathParameter = createMessage(
		http.StatusBadRequest,
		"invalid_path_parameter",
		"The path parameter '{{.ParameterName}}' is not a valid {{.Type}}: '{{.Value}}'.",
	)

	// ResourceNotFound The {{.Type}} resource {{.ResourceId}} was not found.
	ResourceNotFound = createMessage(
		http.StatusNotFound,
		"resource_not_found",
		"The {{.Type}} resource {{.ResourceId}} was not found.",
	)

	// QueryParameterInvalid The query parameter '{{.ParameterName}}' is not a valid {{.Type}}: '{{.Value}}'.
	QueryParameterInvalid = createMessage(
		http.StatusBadRequest,
		"query_parameter_invalid",
		"The query parameter '{{.ParameterName}}' is not a valid {{.Type}}: '{{.Value}}'.",
	)

	// Request body errors

	// InvalidJSONRequest The request JSON is invalid: '{{.Error}}'. Please check the request and try again.
	InvalidJSONRequest = createMessage(
		http.StatusBadRequest,
		"invalid_json_request",
		"The request JSON is invalid: '{{.Error}}'. Please check the request and try again.",
	)

	// RequestValidationFailed The request validation failed: '{{.Error}}'.
	RequestValidationFailed = createMessage(
		http.StatusBadRequest,
		"request_validation_failed",
		"The request validation failed: '{{.Error}}'.",
	)

	// InvalidJobParameters The job parameters are invalid: '{{.Error}}'.
	InvalidJobParameters = createMessage(
		http.StatusBadRequest,
		"invalid_job_parameters",
		"The job parameters are invalid: '{{.Error}}'.",
	)

	// Workspace related errors

	// InvalidWorkspaceInput The {{.Type}} request was rejected before it was sent to the workspace: '{{.Error}}'.
	InvalidWorkspaceInput = createMessage(
		http.StatusBadRequest,
		"invalid_workspace_input",
		"The {{.Type}} request was rejected before it was sent to the workspace: '{{.Error}}'.",
	)

	// WorkspaceRequestFailed The workspace {{.Type}} request failed with status {{.Status}}: '{{.Error}}'.
	WorkspaceRequestFailed = createMessage(
		http.StatusBadGateway,
		"workspace_request_failed",
		"The workspace {{.Type}} request failed with status {{.Status}}: '{{.Error}}'.",
	)

	// WorkspaceUnavailable The workspace could not be reached for the {{.Type}} request: '{{.Error}}'.
	WorkspaceUnavailable = createMessage(
		http.StatusGatewayTimeout,
		"workspace_unavailable",
		"The workspace could not be reached for the {{.Type}} request: '{{.Error}}'.",
	)

	// Configuration related errors

	// ConfigurationFailed The service startup failed: '{{.Error}}'.
	ConfigurationFailed = createMessage(
		http.StatusInternalServerError,
		"configuration_failed",
		"The service startup failed: '{{.Error}}'.",
	)

	// JSON errors that are not coming from user input

	// JSONUnmarshalFailed The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.
	JSONUnmarshalFailed = createMessage(
		http.StatusInternalServerError,
		"json_unmarshal_failed",
		"The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.",
	)

	// Storage related errors

	// DatabaseOperationFailed The request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.
	DatabaseOperationFailed = createMessage(
		http.StatusInternalServerError,
		"database_operation_failed",
		"The request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.",
	)
	// QueryFailed The request for the {{.Type}} failed: '{{.Error}}'.
	QueryFailed = createMessage(
		http.StatusInternalServerError,
		"query_failed",
		"The request for the {{.Type}} failed: '{{.Error}}'.",
	)

	// InternalServerError An internal server error occurred: '{{.Error}}'.
	InternalServerError = createMessage(
		http.StatusInternalServerError,
		"internal_server_error",
		"An internal server error occurred: '{{.Error}}'.",
	)

	// MethodNotAllowed The HTTP method {{.Method}} is not allowed for the API {{.Api}}.
	MethodNotAllowed = createMessage(
		http.StatusMethodNotAllowed,
		"method_not_allowed",
		"The HTTP method {{.Method}} is not allowed for the API {{.Api}}.",
	)

	// UnknownError An unknown error occurred: '{{.Error}}'. This is a fallback error if the error is not a service error.
	UnknownError = createMessage(
		http.StatusInternalServerError,
		"unknown_error",
		"An unknown error occurred: {{.Error}}.",
	)
)

type MessageCode struct {
	status int
	code   string
	one    string
}

func (m *MessageCode) GetCode() int {
	return m.status
}

// GetID returns the stable identifier reported to clients as message_code.
func (m *MessageCode) GetID() string {
	return m.code
}

func (m *MessageCode) GetMessage() string {
	return m.one
}

func createMessage(status int, code string, one string) *MessageCode {
	return &MessageCode{
		status,
		code,
		one,
	}
}

func GetErrorMessage(messageCode *MessageCode, messageParams ...any) string {
	msg := messageCode.GetMessage()
	for i := 0; i < len(messageParams); i += 2 {
		param := messageParams[i]
		var paramValue any
		if i+1 < len(messageParams) {
			paramValue = messageParams[i+1]
		} else {
			paramValue = "NOT_DEFINED" // this is a placeholder for a missing parameter value - if you see this value then the code needs to be fixed
		}
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{{.%v}}", param), fmt.Sprintf("%v", paramValue))
	}
	return msg
}
