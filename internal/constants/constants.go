package constants

// logger field names
const (
	LOG_REQUEST_ID = "request_id"
	LOG_METHOD     = "method"
	LOG_URI        = "uri"
	LOG_USER_AGENT = "user_agent"
	LOG_REMOTE_ADR = "remote_addr"
	LOG_USER       = "remote_user"
	LOG_REFERER    = "referer"
	LOG_PROJECT_ID = "project_id"
	LOG_JOB_ID     = "job_id"
	LOG_RUN_ID     = "run_id"
)

const (
	PATH_PARAMETER_PROJECT_ID = "project_id"

	QUERY_PARAMETER_LIMIT  = "limit"
	QUERY_PARAMETER_OFFSET = "offset"

	DEFAULT_PAGE_LIMIT = 50
	MAX_PAGE_LIMIT     = 500
)

const (
	EnvVarTerminationFile = "TERMINATION_FILE"

	HeaderTransactionID = "X-Global-Transaction-Id"
)
