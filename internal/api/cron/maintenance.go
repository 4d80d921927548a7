package cron

import (
	"net/http"

	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/service"
	"github.com/gin-gonic/gin"
)

// MaintenanceHandler exposes the maintenance sweeps over HTTP so an
// external scheduler can trigger them in addition to the in-process cron
type MaintenanceHandler struct {
	service service.MaintenanceService
	logger  *logger.Logger
}

func NewMaintenanceHandler(service service.MaintenanceService, logger *logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{service: service, logger: logger}
}

func (h *MaintenanceHandler) ProcessDueBilling(c *gin.Context) {
	response, err := h.service.ProcessDueBilling(c.Request.Context())
	if err != nil {
		h.logger.Errorw("billing sweep failed", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *MaintenanceHandler) ProcessExpiredTrials(c *gin.Context) {
	response, err := h.service.ProcessExpiredTrials(c.Request.Context())
	if err != nil {
		h.logger.Errorw("trial expiry sweep failed", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *MaintenanceHandler) ProcessUsageResets(c *gin.Context) {
	response, err := h.service.ProcessUsageResets(c.Request.Context())
	if err != nil {
		h.logger.Errorw("usage reset sweep failed", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, response)
}
