package handlers

import (
	"net/http"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/serialization"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

// HandleListProjects handles GET /api/v1/projects
func (h *Handlers) HandleListProjects(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	limit, offset, err := getPaging(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	results, err := h.storageFor(ctx).GetProjects(limit, offset)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	page, err := CreatePage(results.TotalStored, offset, limit, ctx, r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(api.ProjectResourceList{
		Page:  *page,
		Items: results.Items,
	}, http.StatusOK)
}

// HandleCreateProject handles POST /api/v1/projects
func (h *Handlers) HandleCreateProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	project := &api.ProjectConfig{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, project); err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	response, err := h.storageFor(ctx).CreateProject(project)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(response, http.StatusCreated)
}

// HandleGetProject handles GET /api/v1/projects/{project_id}
func (h *Handlers) HandleGetProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	response, err := h.storageFor(ctx).GetProject(id)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(response, http.StatusOK)
}

// HandleUpdateProject handles PUT /api/v1/projects/{project_id}
func (h *Handlers) HandleUpdateProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	project := &api.ProjectConfig{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, project); err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	response, err := h.storageFor(ctx).UpdateProject(id, project)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(response, http.StatusOK)
}

// HandlePatchProject handles PATCH /api/v1/projects/{project_id}. The body is a
// JSON merge patch of the project config.
func (h *Handlers) HandlePatchProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	store := h.storageFor(ctx)
	current, err := store.GetProject(id)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	patched := &api.ProjectConfig{}
	if err := serialization.MergePatch(h.validate, ctx, current.ProjectConfig, bodyBytes, patched); err != nil {
		h.bodyError(ctx, w, err)
		return
	}
	response, err := store.UpdateProject(id, patched)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(response, http.StatusOK)
}

// HandleDeleteProject handles DELETE /api/v1/projects/{project_id}
func (h *Handlers) HandleDeleteProject(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	id, err := getProjectID(r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	if err := h.storageFor(ctx).DeleteProject(id); err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.SetStatusCode(http.StatusNoContent)
	logging.LogRequestSuccess(ctx, http.StatusNoContent, nil)
}
