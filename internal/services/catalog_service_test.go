package services

import (
	"context"
	"testing"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockProductStore struct {
	MockStockStore
}

func (m *MockProductStore) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) List(ctx context.Context, categoryID *int) ([]models.Product, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductStore) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockCategoryStore struct {
	mock.Mock
}

func (m *MockCategoryStore) Create(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryStore) GetByID(ctx context.Context, id int) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) List(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockCategoryStore) Update(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryStore) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockProductIndexer struct {
	mock.Mock
}

func (m *MockProductIndexer) IndexProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductIndexer) DeleteProduct(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductIndexer) SearchProducts(ctx context.Context, query string) ([]map[string]interface{}, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func TestCreateProductIndexesIntoSearch(t *testing.T) {
	products := new(MockProductStore)
	categories := new(MockCategoryStore)
	indexer := new(MockProductIndexer)

	categories.On("GetByID", mock.Anything, 2).Return(&models.Category{ID: 2, Name: "Dairy"}, nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	indexer.On("IndexProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)

	service := NewCatalogService(products, categories, nil, indexer)
	product, err := service.CreateProduct(context.Background(), &models.Product{
		Name: "Milk", CategoryID: 2, Price: 1.20, StockQuantity: 40,
	})

	require.NoError(t, err)
	require.Equal(t, "Milk", product.Name)
	indexer.AssertExpectations(t)
}

func TestCreateProductSucceedsWhenIndexingFails(t *testing.T) {
	products := new(MockProductStore)
	categories := new(MockCategoryStore)
	indexer := new(MockProductIndexer)

	categories.On("GetByID", mock.Anything, 2).Return(&models.Category{ID: 2}, nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	indexer.On("IndexProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(errors.New("search unavailable"))

	service := NewCatalogService(products, categories, nil, indexer)
	_, err := service.CreateProduct(context.Background(), &models.Product{
		Name: "Milk", CategoryID: 2, Price: 1.20, StockQuantity: 40,
	})

	require.NoError(t, err)
}

func TestCreateProductRejectsUnknownCategory(t *testing.T) {
	products := new(MockProductStore)
	categories := new(MockCategoryStore)

	categories.On("GetByID", mock.Anything, 7).Return(nil, gorm.ErrRecordNotFound)

	service := NewCatalogService(products, categories, nil, nil)
	_, err := service.CreateProduct(context.Background(), &models.Product{
		Name: "Milk", CategoryID: 7, Price: 1.20,
	})

	require.ErrorIs(t, err, ErrNotFound)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetProductWithoutCacheHitsStore(t *testing.T) {
	products := new(MockProductStore)
	categories := new(MockCategoryStore)

	products.On("GetByID", mock.Anything, 1).Return(&models.Product{ID: 1, Name: "Milk"}, nil)

	service := NewCatalogService(products, categories, nil, nil)
	product, err := service.GetProduct(context.Background(), 1)

	require.NoError(t, err)
	require.Equal(t, "Milk", product.Name)
}

func TestSearchProductsRequiresQuery(t *testing.T) {
	service := NewCatalogService(new(MockProductStore), new(MockCategoryStore), nil, new(MockProductIndexer))

	_, err := service.SearchProducts(context.Background(), "")
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestDeleteProductRemovesFromIndex(t *testing.T) {
	products := new(MockProductStore)
	categories := new(MockCategoryStore)
	indexer := new(MockProductIndexer)

	products.On("Delete", mock.Anything, 1).Return(nil)
	indexer.On("DeleteProduct", mock.Anything, 1).Return(nil)

	service := NewCatalogService(products, categories, nil, indexer)
	require.NoError(t, service.DeleteProduct(context.Background(), 1))

	indexer.AssertExpectations(t)
}
