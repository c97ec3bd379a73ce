package handlers

import (
	"net/http"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

const (
	STATUS_HEALTHY = "healthy"
)

func (h *Handlers) HandleHealth(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	healthInfo := api.HealthResponse{
		Status:    STATUS_HEALTHY,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.serviceConfig != nil && h.serviceConfig.Service != nil {
		healthInfo.Version = h.serviceConfig.Service.Version
		healthInfo.Build = h.serviceConfig.Service.Build
		healthInfo.BuildDate = h.serviceConfig.Service.BuildDate
	}
	w.WriteJSON(healthInfo, http.StatusOK)
}
