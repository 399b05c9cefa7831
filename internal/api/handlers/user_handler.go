package handlers

import (
	"net/http"

	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// UserHandler handles user account HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// HandleRegisterUser creates a customer account
func (h *UserHandler) HandleRegisterUser(c *gin.Context) {
	var req models.User
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}
	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// HandleListUsers returns all users
func (h *UserHandler) HandleListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// HandleGetUser returns one user by id
func (h *UserHandler) HandleGetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RegisterRoutes registers the handler's routes
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users", h.HandleRegisterUser)
	rg.GET("/users", h.HandleListUsers)
	rg.GET("/users/:id", h.HandleGetUser)
}
