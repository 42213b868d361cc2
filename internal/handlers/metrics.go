package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// MetricsHandler serves the admin usage overview.
type MetricsHandler struct {
	metering *services.MeteringService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metering *services.MeteringService) *MetricsHandler {
	return &MetricsHandler{metering: metering}
}

// Overview returns per-organization usage counters.
func (h *MetricsHandler) Overview(c *gin.Context) {
	counters, err := h.metering.Overview(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, counters)
}
