package handlers

import (
	"net/http"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/serialization"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

// HandleCreateJob handles POST /api/v1/jobs
func (h *Handlers) HandleCreateJob(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	request := &api.JobRequest{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, request); err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	deadline, cancel := ctx.WithDeadline()
	defer cancel()

	result, err := h.training.CreateStandaloneJob(deadline, ctx.Logger, request)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(result, http.StatusCreated)
}
