package services

import (
	"context"
	"time"

	"example.com/grocery/services/delivery/internal/cache"
	"example.com/grocery/services/delivery/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const productCacheTTL = 10 * time.Minute

// ProductStore is the full product persistence surface for catalog
// management.
type ProductStore interface {
	StockStore
	Create(ctx context.Context, product *models.Product) error
	List(ctx context.Context, categoryID *int) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id int) error
}

// CategoryStore is the category persistence surface.
type CategoryStore interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int) error
}

// ProductIndexer mirrors catalog changes into the search index.
type ProductIndexer interface {
	IndexProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int) error
	SearchProducts(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// CatalogService manages categories and products. Product reads go through
// Redis; search goes through Elasticsearch. Both degrade to the database
// when unavailable.
type CatalogService struct {
	products   ProductStore
	categories CategoryStore
	cache      *cache.RedisCache
	indexer    ProductIndexer
}

// NewCatalogService creates a new catalog service. The cache and indexer
// may be nil.
func NewCatalogService(products ProductStore, categories CategoryStore, c *cache.RedisCache, indexer ProductIndexer) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		cache:      c,
		indexer:    indexer,
	}
}

// CreateCategory adds a category.
func (s *CatalogService) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.Name == "" {
		return nil, errors.WithMessage(ErrBadRequest, "category name is required")
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, errors.Wrap(err, "creating category")
	}
	return category, nil
}

// GetCategory returns a category by id, served from cache when possible.
func (s *CatalogService) GetCategory(ctx context.Context, id int) (*models.Category, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "category id %d", id)
	}

	if s.cache != nil {
		var cached models.Category
		if err := s.cache.Get(ctx, cache.CategoryCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "category", id)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CategoryCacheKey(id), category, productCacheTTL); err != nil {
			log.Debug().Err(err).Int("category_id", id).Msg("Failed to cache category")
		}
	}
	return category, nil
}

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	return categories, nil
}

// UpdateCategory renames a category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id int, updated *models.Category) (*models.Category, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "category id %d", id)
	}
	if updated.Name == "" {
		return nil, errors.WithMessage(ErrBadRequest, "category name is required")
	}

	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "category", id)
	}
	category.Name = updated.Name

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, errors.Wrapf(err, "updating category %d", id)
	}

	s.invalidate(ctx, cache.CategoryCacheKey(id))
	return category, nil
}

// DeleteCategory removes a category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	if id <= 0 {
		return errors.WithMessagef(ErrInvalidID, "category id %d", id)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return mapNotFound(err, "category", id)
	}

	s.invalidate(ctx, cache.CategoryCacheKey(id))
	return nil
}

// CreateProduct adds a product and mirrors it into the search index.
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.Name == "" {
		return nil, errors.WithMessage(ErrBadRequest, "product name is required")
	}
	if product.CategoryID <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "category id %d", product.CategoryID)
	}
	if product.Price < 0 || product.StockQuantity < 0 {
		return nil, errors.WithMessage(ErrBadRequest, "price and stock must not be negative")
	}

	if _, err := s.categories.GetByID(ctx, product.CategoryID); err != nil {
		return nil, mapNotFound(err, "category", product.CategoryID)
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, errors.Wrap(err, "creating product")
	}

	s.indexProduct(ctx, product)
	return product, nil
}

// GetProduct returns a product, served from cache when possible.
func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "product id %d", id)
	}

	if s.cache != nil {
		var cached models.Product
		if err := s.cache.Get(ctx, cache.ProductCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "product", id)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.ProductCacheKey(id), product, productCacheTTL); err != nil {
			log.Debug().Err(err).Int("product_id", id).Msg("Failed to cache product")
		}
	}
	return product, nil
}

// ListProducts returns products, optionally narrowed to a category.
func (s *CatalogService) ListProducts(ctx context.Context, categoryID *int) ([]models.Product, error) {
	products, err := s.products.List(ctx, categoryID)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return products, nil
}

// UpdateProduct replaces a product's catalog fields, invalidates the cache
// and reindexes it.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int, updated *models.Product) (*models.Product, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "product id %d", id)
	}
	if updated.Price < 0 || updated.StockQuantity < 0 {
		return nil, errors.WithMessage(ErrBadRequest, "price and stock must not be negative")
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "product", id)
	}

	if updated.Name != "" {
		product.Name = updated.Name
	}
	if updated.CategoryID > 0 {
		if _, err := s.categories.GetByID(ctx, updated.CategoryID); err != nil {
			return nil, mapNotFound(err, "category", updated.CategoryID)
		}
		product.CategoryID = updated.CategoryID
	}
	product.Price = updated.Price
	product.StockQuantity = updated.StockQuantity
	product.Description = updated.Description

	if err := s.products.Update(ctx, product); err != nil {
		return nil, errors.Wrapf(err, "updating product %d", id)
	}

	s.invalidateProduct(ctx, id)
	s.indexProduct(ctx, product)
	return product, nil
}

// DeleteProduct removes a product from the catalog, cache and index.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int) error {
	if id <= 0 {
		return errors.WithMessagef(ErrInvalidID, "product id %d", id)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return mapNotFound(err, "product", id)
	}

	s.invalidateProduct(ctx, id)
	if s.indexer != nil {
		if err := s.indexer.DeleteProduct(ctx, id); err != nil {
			log.Warn().Err(err).Int("product_id", id).Msg("Failed to remove product from search index")
		}
	}
	return nil
}

// SearchProducts runs a full-text product search.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if query == "" {
		return nil, errors.WithMessage(ErrBadRequest, "search query is required")
	}
	if s.indexer == nil {
		return nil, errors.New("product search is not available")
	}
	results, err := s.indexer.SearchProducts(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "searching products")
	}
	return results, nil
}

func (s *CatalogService) indexProduct(ctx context.Context, product *models.Product) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexProduct(ctx, product); err != nil {
		log.Warn().Err(err).Int("product_id", product.ID).Msg("Failed to index product")
	}
}

func (s *CatalogService) invalidateProduct(ctx context.Context, id int) {
	s.invalidate(ctx, cache.ProductCacheKey(id))
}

func (s *CatalogService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Failed to invalidate cache entry")
	}
}
