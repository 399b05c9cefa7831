package handlers

import (
	"net/http"

	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// DriverHandler handles driver roster HTTP requests
type DriverHandler struct {
	driverService *services.DriverService
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(driverService *services.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// UpdateDriverStatusRequest carries an availability change.
type UpdateDriverStatusRequest struct {
	Status models.DriverStatus `json:"status" binding:"required"`
}

// HandleRegisterDriver adds a driver to the roster
func (h *DriverHandler) HandleRegisterDriver(c *gin.Context) {
	var req models.Driver
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

// HandleListDrivers returns the driver roster
func (h *DriverHandler) HandleListDrivers(c *gin.Context) {
	drivers, err := h.driverService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drivers)
}

// HandleGetDriver returns one driver by id
func (h *DriverHandler) HandleGetDriver(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	driver, err := h.driverService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

// HandleUpdateDriverStatus sets a driver's availability
func (h *DriverHandler) HandleUpdateDriverStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateDriverStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	driver, err := h.driverService.UpdateAvailability(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

// RegisterRoutes registers the handler's routes
func (h *DriverHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/drivers", h.HandleRegisterDriver)
	rg.GET("/drivers", h.HandleListDrivers)
	rg.GET("/drivers/:id", h.HandleGetDriver)
	rg.PATCH("/drivers/:id/status", h.HandleUpdateDriverStatus)
}
