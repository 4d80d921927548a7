package v1

import (
	"net/http"

	"github.com/billforge/billforge/internal/api/dto"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/service"
	"github.com/billforge/billforge/internal/types"
	"github.com/gin-gonic/gin"
)

type UsageHandler struct {
	service service.UsageService
	log     *logger.Logger
}

func NewUsageHandler(service service.UsageService, log *logger.Logger) *UsageHandler {
	return &UsageHandler{service: service, log: log}
}

// @Summary Check usage
// @Description Check a usage increment against the current period quota, optionally applying it
// @Tags Usage
// @Accept json
// @Produce json
// @Param request body dto.CheckUsageRequest true "Usage check"
// @Success 200 {object} dto.CheckUsageResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /usage/check [post]
func (h *UsageHandler) CheckUsage(c *gin.Context) {
	var req dto.CheckUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CheckUsage(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get current usage
// @Description Get the current period usage record for a user and feature
// @Tags Usage
// @Produce json
// @Param user_id query string true "User ID"
// @Param feature query string true "Feature name"
// @Success 200 {object} dto.UsageResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /usage [get]
func (h *UsageHandler) GetCurrentUsage(c *gin.Context) {
	userID := c.Query("user_id")
	feature := c.Query("feature")
	if userID == "" || feature == "" {
		c.Error(ierr.NewError("missing query parameters").
			WithHint("Both user_id and feature query parameters are required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetCurrentUsage(c.Request.Context(), userID, types.FeatureName(feature))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
