package executioncontext

import (
	"context"
	"log/slog"
	"time"
)

// ExecutionContext carries the request scoped values handed from the HTTP layer to
// the handlers: the request id, a logger already enriched with the request fields
// and the deadline for the work done on behalf of the request.
type ExecutionContext struct {
	Ctx       context.Context
	RequestID string
	Logger    *slog.Logger
	Timeout   time.Duration
	StartedAt time.Time
}

func NewExecutionContext(ctx context.Context, requestID string, logger *slog.Logger, timeout time.Duration) *ExecutionContext {
	return &ExecutionContext{
		Ctx:       ctx,
		RequestID: requestID,
		Logger:    logger,
		Timeout:   timeout,
		StartedAt: time.Now(),
	}
}

// WithDeadline returns a context that expires after the request timeout. A zero
// timeout returns a context without a deadline.
func (e *ExecutionContext) WithDeadline() (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(e.Ctx)
	}
	return context.WithTimeout(e.Ctx, e.Timeout)
}
