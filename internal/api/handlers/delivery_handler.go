package handlers

import (
	"net/http"

	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// DeliveryHandler handles delivery-related HTTP requests
type DeliveryHandler struct {
	deliveryService *services.DeliveryService
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveryService *services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

// UpdateDeliveryStatusRequest carries a lifecycle transition.
type UpdateDeliveryStatusRequest struct {
	Status models.DeliveryStatus `json:"status" binding:"required"`
}

// HandleListDeliveries returns all deliveries
func (h *DeliveryHandler) HandleListDeliveries(c *gin.Context) {
	deliveries, err := h.deliveryService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

// HandleGetDelivery returns one delivery by id
func (h *DeliveryHandler) HandleGetDelivery(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	delivery, err := h.deliveryService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// HandleUpdateDeliveryStatus advances a delivery through its lifecycle
func (h *DeliveryHandler) HandleUpdateDeliveryStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	delivery, err := h.deliveryService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// HandleUpdateDelivery replaces a delivery's mutable fields
func (h *DeliveryHandler) HandleUpdateDelivery(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.Delivery
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	delivery, err := h.deliveryService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// HandleDriverDeliveries returns a driver's active deliveries
func (h *DeliveryHandler) HandleDriverDeliveries(c *gin.Context) {
	driverID, ok := pathID(c, "id")
	if !ok {
		return
	}
	deliveries, err := h.deliveryService.ActiveForDriver(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/deliveries", h.HandleListDeliveries)
	rg.GET("/deliveries/:id", h.HandleGetDelivery)
	rg.PATCH("/deliveries/:id/status", h.HandleUpdateDeliveryStatus)
	rg.PUT("/deliveries/:id", h.HandleUpdateDelivery)
	rg.GET("/deliveries/driver/:id", h.HandleDriverDeliveries)
}
