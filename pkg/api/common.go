package api

// ------------------------------------------------------------------------------------------------
// General naming conventions:
// ------------------------------------------------------------------------------------------------
// - ...Config - represents an object specified by the user when creating or updating a resource.
// - ...Resource - represents an object stored in the database. This is the REST resource.
// - ...ResourceList - represents a list of REST resources
// - ...Request/...Result - the input and output of an action that is not a resource
// - ...Error - represents an error response
// ------------------------------------------------------------------------------------------------

type HRef struct {
	Href string `json:"href"`
}

// Error represents an error response
type Error struct {
	MessageCode string `json:"message_code"`
	Message     string `json:"message"`
	Trace       string `json:"trace"`
}

// Page represents generic pagination schema
type Page struct {
	First      *HRef `json:"first"`
	Next       *HRef `json:"next,omitempty"`
	Limit      int   `json:"limit"`
	TotalCount int   `json:"total_count"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
	Build     string `json:"build,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}
