package services

import (
	"context"
	"time"

	"example.com/grocery/services/delivery/internal/messaging"
	"example.com/grocery/services/delivery/internal/metrics"
	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OrderItemCommand is one requested product line at checkout.
type OrderItemCommand struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// CreateOrderCommand is the checkout payload.
type CreateOrderCommand struct {
	UserID        int                `json:"user_id"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	ZipCode       string             `json:"zip_code"`
	Country       string             `json:"country"`
	PaymentMethod string             `json:"payment_method"`
	Items         []OrderItemCommand `json:"items"`
}

// FullOrderStore is the order persistence surface the order service needs.
type FullOrderStore interface {
	OrderStore
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID int) ([]models.Order, error)
	List(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, int64, error)
}

// StockStore is the product surface the order service needs for stock
// reservation.
type StockStore interface {
	GetByID(ctx context.Context, id int) (*models.Product, error)
	AdjustStock(ctx context.Context, id int, delta int) error
}

// DeliveryEngine is the slice of the delivery service the order service
// drives.
type DeliveryEngine interface {
	CreateForOrder(ctx context.Context, orderID int) (*models.Delivery, error)
	CancelForOrder(ctx context.Context, orderID int) error
}

// OrderService handles checkout, order status and cancellation.
type OrderService struct {
	orders     FullOrderStore
	products   StockStore
	users      UserStore
	deliveries DeliveryEngine
	publisher  messaging.Publisher
	metrics    *metrics.Metrics
}

// NewOrderService creates a new order service. The publisher and metrics
// may be nil.
func NewOrderService(
	orders FullOrderStore,
	products StockStore,
	users UserStore,
	deliveries DeliveryEngine,
	publisher messaging.Publisher,
	m *metrics.Metrics,
) *OrderService {
	return &OrderService{
		orders:     orders,
		products:   products,
		users:      users,
		deliveries: deliveries,
		publisher:  publisher,
		metrics:    m,
	}
}

// Create validates the checkout payload, prices the order from the current
// catalog, reserves stock and hands the order to the delivery engine.
func (s *OrderService) Create(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	if cmd.UserID <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "user id %d", cmd.UserID)
	}
	if len(cmd.Items) == 0 {
		return nil, errors.WithMessage(ErrBadRequest, "order has no items")
	}
	if cmd.Address == "" {
		return nil, errors.WithMessage(ErrBadRequest, "delivery address is required")
	}

	if _, err := s.users.GetByID(ctx, cmd.UserID); err != nil {
		return nil, mapNotFound(err, "user", cmd.UserID)
	}

	order := &models.Order{
		UserID:        cmd.UserID,
		OrderDate:     time.Now(),
		Address:       cmd.Address,
		City:          cmd.City,
		ZipCode:       cmd.ZipCode,
		Country:       cmd.Country,
		PaymentMethod: cmd.PaymentMethod,
		Status:        models.OrderPending,
	}

	// Price every line from the catalog and check stock up front.
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, errors.WithMessagef(ErrBadRequest, "quantity %d for product %d", item.Quantity, item.ProductID)
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, mapNotFound(err, "product", item.ProductID)
		}
		if product.StockQuantity < item.Quantity {
			return nil, errors.WithMessagef(ErrBadRequest, "insufficient stock for product %d", item.ProductID)
		}

		subtotal := product.Price * float64(item.Quantity)
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Subtotal:  subtotal,
		})
		order.TotalAmount += subtotal
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "creating order")
	}

	for _, item := range order.OrderItems {
		if err := s.products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			log.Error().Err(err).
				Int("order_id", order.ID).
				Int("product_id", item.ProductID).
				Msg("Failed to reserve stock for order line")
		}
	}

	s.incrementCounter("orders.created")
	log.Info().
		Int("order_id", order.ID).
		Int("user_id", order.UserID).
		Float64("total", order.TotalAmount).
		Msg("Order created")

	if _, err := s.deliveries.CreateForOrder(ctx, order.ID); err != nil {
		// The order stands; delivery creation is retried by re-fetching the
		// order state, not by failing checkout.
		log.Error().Err(err).Int("order_id", order.ID).Msg("Failed to create delivery for order")
	}

	s.publishOrderEvent(ctx, messaging.EventOrderCreated, order)
	return order, nil
}

// Get returns an order with its line items.
func (s *OrderService) Get(ctx context.Context, id int) (*models.Order, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "order id %d", id)
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "order", id)
	}
	return order, nil
}

// ListByUser returns a user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	if userID <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "user id %d", userID)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %d", userID)
	}
	return orders, nil
}

// List returns a filtered, paginated order listing plus the total count.
func (s *OrderService) List(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, int64, error) {
	return s.orders.List(ctx, filter)
}

// UpdateStatus sets an order's status and publishes the change.
func (s *OrderService) UpdateStatus(ctx context.Context, id int, status string) (*models.Order, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "order id %d", id)
	}
	if status == "" {
		return nil, errors.WithMessage(ErrBadRequest, "status is required")
	}

	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapNotFound(err, "order", id)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "order", id)
	}

	s.publishOrderEvent(ctx, messaging.EventOrderStatusChanged, order)
	return order, nil
}

// Update replaces an order's delivery address fields.
func (s *OrderService) Update(ctx context.Context, id int, updated *models.Order) (*models.Order, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "order id %d", id)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "order", id)
	}

	if updated.Address != "" {
		order.Address = updated.Address
	}
	order.City = updated.City
	order.ZipCode = updated.ZipCode
	order.Country = updated.Country
	if updated.PaymentMethod != "" {
		order.PaymentMethod = updated.PaymentMethod
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, errors.Wrapf(err, "updating order %d", id)
	}
	return order, nil
}

// Cancel cancels an order, restores the stock its items reserved and
// cancels its active delivery. Cancelling an already-cancelled order is a
// no-op.
func (s *OrderService) Cancel(ctx context.Context, id int) (*models.Order, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "order id %d", id)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "order", id)
	}
	if order.Status == models.OrderCancelled {
		return order, nil
	}

	if err := s.orders.UpdateStatus(ctx, id, models.OrderCancelled); err != nil {
		return nil, mapNotFound(err, "order", id)
	}
	order.Status = models.OrderCancelled

	for _, item := range order.OrderItems {
		if err := s.products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Error().Err(err).
				Int("order_id", id).
				Int("product_id", item.ProductID).
				Msg("Failed to restore stock for cancelled order line")
		}
	}

	if err := s.deliveries.CancelForOrder(ctx, id); err != nil {
		log.Warn().Err(err).Int("order_id", id).Msg("Failed to cancel delivery for cancelled order")
	}

	s.incrementCounter("orders.cancelled")
	log.Info().Int("order_id", id).Msg("Order cancelled")

	s.publishOrderEvent(ctx, messaging.EventOrderCancelled, order)
	return order, nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	data := messaging.OrderEventData{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OrderDate:   order.OrderDate,
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		log.Warn().Err(err).Int("order_id", order.ID).Str("event", eventType).Msg("Failed to publish order event")
	}
}

func (s *OrderService) incrementCounter(name string) {
	if s.metrics != nil {
		s.metrics.IncrementCounter(name)
	}
}
