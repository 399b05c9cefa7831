package handlers

import (
	"net/http"
	"strconv"
	"time"

	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/repositories"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *services.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// UpdateOrderStatusRequest carries an order status change.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// HandleCreateOrder creates an order and its delivery
func (h *OrderHandler) HandleCreateOrder(c *gin.Context) {
	var cmd services.CreateOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// HandleGetOrder returns an order with its line items
func (h *OrderHandler) HandleGetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// HandleListOrders returns a filtered, paginated order listing
func (h *OrderHandler) HandleListOrders(c *gin.Context) {
	filter := repositories.OrderFilter{
		Status: c.Query("status"),
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, errors.WithMessagef(services.ErrBadRequest, "user_id %q", raw))
			return
		}
		filter.UserID = &userID
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, errors.WithMessagef(services.ErrBadRequest, "from %q", raw))
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, errors.WithMessagef(services.ErrBadRequest, "to %q", raw))
			return
		}
		filter.ToDate = &to
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
	})
}

// HandleUserOrders returns a user's orders
func (h *OrderHandler) HandleUserOrders(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	orders, err := h.orderService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// HandleUpdateOrder updates an order's address and payment fields
func (h *OrderHandler) HandleUpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.Order
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	order, err := h.orderService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// HandleUpdateOrderStatus sets an order's status
func (h *OrderHandler) HandleUpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// HandleCancelOrder cancels an order and restores its stock
func (h *OrderHandler) HandleCancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.HandleCreateOrder)
	rg.GET("/orders", h.HandleListOrders)
	rg.GET("/orders/:id", h.HandleGetOrder)
	rg.PUT("/orders/:id", h.HandleUpdateOrder)
	rg.PATCH("/orders/:id/status", h.HandleUpdateOrderStatus)
	rg.PUT("/orders/cancel/:id", h.HandleCancelOrder)
	rg.GET("/users/:id/orders", h.HandleUserOrders)
}
