package server

import (
	"net/http"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
)

// newExecutionContext creates the ExecutionContext for a request. It is called at
// the route level before the handler runs.
//
// The logger is enhanced with the request fields (see loggerWithRequest) and the
// context is the request context, so work stops when the client goes away. The
// handlers derive their deadline from RequestTimeout.
func (s *Server) newExecutionContext(r *http.Request) *executioncontext.ExecutionContext {
	requestID, enhancedLogger := s.loggerWithRequest(r)
	return executioncontext.NewExecutionContext(r.Context(), requestID, enhancedLogger, RequestTimeout)
}
