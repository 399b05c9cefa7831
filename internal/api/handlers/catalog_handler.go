package handlers

import (
	"net/http"
	"strconv"

	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// CatalogHandler handles category and product HTTP requests
type CatalogHandler struct {
	catalogService *services.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// HandleCreateCategory adds a category
func (h *CatalogHandler) HandleCreateCategory(c *gin.Context) {
	var req models.Category
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}
	category, err := h.catalogService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// HandleListCategories returns all categories
func (h *CatalogHandler) HandleListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// HandleGetCategory returns one category by id
func (h *CatalogHandler) HandleGetCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	category, err := h.catalogService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// HandleUpdateCategory renames a category
func (h *CatalogHandler) HandleUpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.Category
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}
	category, err := h.catalogService.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// HandleDeleteCategory removes a category
func (h *CatalogHandler) HandleDeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleCreateProduct adds a product
func (h *CatalogHandler) HandleCreateProduct(c *gin.Context) {
	var req models.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}
	product, err := h.catalogService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// HandleListProducts returns products, optionally filtered by category
func (h *CatalogHandler) HandleListProducts(c *gin.Context) {
	var categoryID *int
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, errors.WithMessagef(services.ErrBadRequest, "category_id %q", raw))
			return
		}
		categoryID = &id
	}
	products, err := h.catalogService.ListProducts(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// HandleGetProduct returns one product by id
func (h *CatalogHandler) HandleGetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// HandleUpdateProduct replaces a product's catalog fields
func (h *CatalogHandler) HandleUpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.WithMessage(services.ErrBadRequest, err.Error()))
		return
	}
	product, err := h.catalogService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// HandleDeleteProduct removes a product
func (h *CatalogHandler) HandleDeleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSearchProducts runs a full-text product search
func (h *CatalogHandler) HandleSearchProducts(c *gin.Context) {
	results, err := h.catalogService.SearchProducts(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// RegisterRoutes registers the handler's routes
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/categories", h.HandleCreateCategory)
	rg.GET("/categories", h.HandleListCategories)
	rg.GET("/categories/:id", h.HandleGetCategory)
	rg.PUT("/categories/:id", h.HandleUpdateCategory)
	rg.DELETE("/categories/:id", h.HandleDeleteCategory)

	rg.POST("/products", h.HandleCreateProduct)
	rg.GET("/products", h.HandleListProducts)
	rg.GET("/products/search", h.HandleSearchProducts)
	rg.GET("/products/:id", h.HandleGetProduct)
	rg.PUT("/products/:id", h.HandleUpdateProduct)
	rg.DELETE("/products/:id", h.HandleDeleteProduct)
}
