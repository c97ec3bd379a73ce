package handlers

import (
	"net/http"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
)

// HandleTrainProject handles POST /api/v1/projects/{project_id}/train
func (h *Handlers) HandleTrainProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	deadline, cancel := ctx.WithDeadline()
	defer cancel()

	result, err := h.training.Train(deadline, ctx.Logger, id)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(result, http.StatusAccepted)
}

// HandleGetExperiment handles GET /api/v1/projects/{project_id}/experiment
func (h *Handlers) HandleGetExperiment(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	deadline, cancel := ctx.WithDeadline()
	defer cancel()

	details, err := h.training.ExperimentDetails(deadline, ctx.Logger, id)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(details, http.StatusOK)
}
