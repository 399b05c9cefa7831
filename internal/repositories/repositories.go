package repositories

import (
	"context"
	"time"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Sentinel driver identity. Created lazily the first time an order arrives
// while no driver is available; located by the flag column, never by name.
const (
	sentinelName  = "System Unassigned"
	sentinelEmail = "system.unassigned@example.com"
)

// DriverRepository provides access to driver data
type DriverRepository struct {
	db *gorm.DB
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db *gorm.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create creates a new driver
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

// GetByID gets a driver by ID
func (r *DriverRepository) GetByID(ctx context.Context, id int) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).First(&driver, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get driver %d", id)
	}
	return &driver, nil
}

// List returns all drivers, hiding the sentinel row
func (r *DriverRepository) List(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	err := r.db.WithContext(ctx).
		Where("sentinel = ?", false).
		Order("id").
		Find(&drivers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list drivers")
	}
	return drivers, nil
}

// Available returns the candidate pool: real drivers currently Available.
// An empty result is not an error.
func (r *DriverRepository) Available(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	err := r.db.WithContext(ctx).
		Where("status = ? AND sentinel = ?", models.DriverAvailable, false).
		Find(&drivers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query available drivers")
	}
	return drivers, nil
}

// Claim flips a driver from Available to Busy with a compare-and-set so two
// concurrent assignments cannot both take the same driver. Returns false when
// the driver was no longer Available (lost the race).
func (r *DriverRepository) Claim(ctx context.Context, id int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ? AND status = ? AND sentinel = ?", id, models.DriverAvailable, false).
		Update("status", models.DriverBusy)
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "failed to claim driver %d", id)
	}
	return result.RowsAffected > 0, nil
}

// Release returns a driver to Available. The sentinel is never released; it
// must stay out of the candidate pool.
func (r *DriverRepository) Release(ctx context.Context, id int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ? AND sentinel = ?", id, false).
		Update("status", models.DriverAvailable)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to release driver %d", id)
	}
	return nil
}

// UpdateStatus sets a driver's availability state
func (r *DriverRepository) UpdateStatus(ctx context.Context, id int, status models.DriverStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update status of driver %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "driver %d", id)
	}
	return nil
}

// Sentinel returns the placeholder driver, or nil when none exists yet
func (r *DriverRepository) Sentinel(ctx context.Context) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).Where("sentinel = ?", true).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up sentinel driver")
	}
	return &driver, nil
}

// EnsureSentinel returns the placeholder driver, creating it on first use.
// The row is created Offline so the candidate pool never sees it.
func (r *DriverRepository) EnsureSentinel(ctx context.Context) (*models.Driver, error) {
	driver, err := r.Sentinel(ctx)
	if err != nil {
		return nil, err
	}
	if driver != nil {
		return driver, nil
	}

	driver = &models.Driver{
		Name:        sentinelName,
		PhoneNumber: "000-000-0000",
		Email:       sentinelEmail,
		Status:      models.DriverOffline,
		Sentinel:    true,
	}
	if err := r.db.WithContext(ctx).Create(driver).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create sentinel driver")
	}
	return driver, nil
}

// DeliveryRepository provides access to delivery data
type DeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create creates a new delivery
func (r *DeliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

// GetByID gets a delivery with its driver and order loaded
func (r *DeliveryRepository) GetByID(ctx context.Context, id int) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Driver").
		Preload("Order").
		Preload("Order.OrderItems").
		First(&delivery, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get delivery %d", id)
	}
	return &delivery, nil
}

// List returns all deliveries with their drivers loaded
func (r *DeliveryRepository) List(ctx context.Context) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Driver").
		Order("id").
		Find(&deliveries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list deliveries")
	}
	return deliveries, nil
}

// Update persists changes to an existing delivery
func (r *DeliveryRepository) Update(ctx context.Context, delivery *models.Delivery) error {
	result := r.db.WithContext(ctx).Save(delivery)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update delivery %d", delivery.ID)
	}
	return nil
}

// ActiveByDriver returns a driver's Pending and InProgress deliveries with
// their orders and line items loaded
func (r *DeliveryRepository) ActiveByDriver(ctx context.Context, driverID int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Where("status IN ?", []models.DeliveryStatus{models.DeliveryPending, models.DeliveryInProgress}).
		Preload("Driver").
		Preload("Order").
		Preload("Order.OrderItems").
		Preload("Order.OrderItems.Product").
		Find(&deliveries).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get active deliveries for driver %d", driverID)
	}
	return deliveries, nil
}

// PendingByDriver returns a driver's Pending deliveries. The sweeper uses
// this to find deliveries stranded on the sentinel.
func (r *DeliveryRepository) PendingByDriver(ctx context.Context, driverID int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status = ?", driverID, models.DeliveryPending).
		Order("id").
		Find(&deliveries).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get pending deliveries for driver %d", driverID)
	}
	return deliveries, nil
}

// ActiveByOrder returns the order's non-terminated delivery, or nil
func (r *DeliveryRepository) ActiveByOrder(ctx context.Context, orderID int) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("status IN ?", []models.DeliveryStatus{models.DeliveryPending, models.DeliveryInProgress}).
		Preload("Driver").
		First(&delivery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get active delivery for order %d", orderID)
	}
	return &delivery, nil
}

// OrderRepository provides access to order data
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create creates a new order together with its line items
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID gets an order with its line items loaded
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Preload("OrderItems.Product").
		First(&order, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get order %d", id)
	}
	return &order, nil
}

// UpdateStatus sets an order's status
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update status of order %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "order %d", id)
	}
	return nil
}

// Update persists changes to an existing order
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	result := r.db.WithContext(ctx).Save(order)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update order %d", order.ID)
	}
	return nil
}

// ListByUser returns a user's orders, newest first
func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Order("order_date DESC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list orders for user %d", userID)
	}
	return orders, nil
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status   string
	UserID   *int
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	PageSize int
}

// List returns a filtered, paginated order listing plus the total count
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.FromDate != nil {
		query = query.Where("order_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("order_date <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count orders")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	var orders []models.Order
	err := query.
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Order("order_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list orders")
	}
	return orders, total, nil
}

// ProductRepository provides access to product data
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get product %d", id)
	}
	return &product, nil
}

// List returns products, optionally restricted to a category
func (r *ProductRepository) List(ctx context.Context, categoryID *int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Order("id")
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}
	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}
	return products, nil
}

// Update persists changes to an existing product
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	result := r.db.WithContext(ctx).Save(product)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update product %d", product.ID)
	}
	return nil
}

// Delete soft-deletes a product
func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	result := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to delete product %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "product %d", id)
	}
	return nil
}

// AdjustStock adds delta (which may be negative) to a product's stock count
func (r *ProductRepository) AdjustStock(ctx context.Context, id int, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to adjust stock of product %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "product %d", id)
	}
	return nil
}

// CategoryRepository provides access to category data
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).First(&category, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get category %d", id)
	}
	return &category, nil
}

// List returns all categories
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	return categories, nil
}

// Update persists changes to an existing category
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	result := r.db.WithContext(ctx).Save(category)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update category %d", category.ID)
	}
	return nil
}

// Delete soft-deletes a category
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	result := r.db.WithContext(ctx).Delete(&models.Category{}, id)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to delete category %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "category %d", id)
	}
	return nil
}

// UserRepository provides access to user data
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user %d", id)
	}
	return &user, nil
}

// List returns all users
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}
