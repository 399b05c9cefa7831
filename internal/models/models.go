package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DriverStatus is a driver's availability state.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "Available"
	DriverBusy      DriverStatus = "Busy"
	DriverOnBreak   DriverStatus = "OnBreak"
	DriverOffline   DriverStatus = "Offline"
	DriverInactive  DriverStatus = "Inactive"
)

// IsValid reports whether s is a known driver status.
func (s DriverStatus) IsValid() bool {
	switch s {
	case DriverAvailable, DriverBusy, DriverOnBreak, DriverOffline, DriverInactive:
		return true
	default:
		return false
	}
}

// DeliveryStatus is a delivery's lifecycle state.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "Pending"
	DeliveryInProgress DeliveryStatus = "InProgress"
	DeliveryCompleted  DeliveryStatus = "Completed"
	DeliveryCancelled  DeliveryStatus = "Cancelled"
)

// IsValid reports whether s is a known delivery status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryInProgress, DeliveryCompleted, DeliveryCancelled:
		return true
	default:
		return false
	}
}

// AllowedTransitions represents the delivery state flow as code.
// A delivery may complete straight from Pending (the driver skips the
// pickup confirmation), and may be cancelled until it completes.
var AllowedTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:    {DeliveryInProgress, DeliveryCompleted, DeliveryCancelled},
	DeliveryInProgress: {DeliveryCompleted, DeliveryCancelled},
}

// CanTransition reports whether a delivery may move from one status to another.
func CanTransition(from, to DeliveryStatus) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Order statuses mutated by the assignment engine. The column itself is
// free-form so order-management endpoints can set their own values.
const (
	OrderPending        = "Pending"
	OrderAwaitingDriver = "AwaitingDriver"
	OrderProcessing     = "Processing"
	OrderInProgress     = "InProgress"
	OrderCancelled      = "Cancelled"
)

// User represents a storefront customer or an admin account.
type User struct {
	ID               int            `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	Name             string         `gorm:"not null" json:"name"`
	Email            string         `gorm:"not null;uniqueIndex" json:"email"`
	PhoneNumber      string         `json:"phone_number"`
	Address          string         `json:"address"`
	City             string         `json:"city"`
	ZipCode          string         `json:"zip_code"`
	Country          string         `json:"country"`
	RegistrationDate time.Time      `gorm:"not null" json:"registration_date"`
	Orders           []Order        `gorm:"foreignKey:UserID" json:"-"`
}

// Driver represents a delivery person. Exactly one row may carry the
// sentinel flag; it is the placeholder deliveries bind to when no real
// driver is available and it never enters the candidate pool.
type Driver struct {
	ID          int            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	PhoneNumber string         `json:"phone_number"`
	Email       string         `gorm:"not null;uniqueIndex" json:"email"`
	Status      DriverStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	Sentinel    bool           `gorm:"not null;default:false;index" json:"-"`
	Deliveries  []Delivery     `gorm:"foreignKey:DriverID" json:"-"`
}

// Category groups products for the storefront.
type Category struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null;uniqueIndex" json:"name"`
	Products  []Product      `gorm:"foreignKey:CategoryID" json:"-"`
}

// Product is a grocery item with a stock count that order creation
// reserves against and cancellation restores.
type Product struct {
	ID            int            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Name          string         `gorm:"not null" json:"name"`
	CategoryID    int            `gorm:"not null;index" json:"category_id"`
	Price         float64        `gorm:"type:decimal(10,2);not null" json:"price"`
	StockQuantity int            `gorm:"not null;default:0" json:"stock_quantity"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      Category       `gorm:"foreignKey:CategoryID" json:"-"`
}

// Order is a customer checkout with its line items.
type Order struct {
	ID            int            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	UserID        int            `gorm:"not null;index" json:"user_id"`
	OrderDate     time.Time      `gorm:"not null" json:"order_date"`
	Address       string         `gorm:"not null" json:"address"`
	City          string         `json:"city"`
	ZipCode       string         `json:"zip_code"`
	Country       string         `json:"country"`
	TotalAmount   float64        `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status        string         `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod string         `gorm:"type:varchar(50);not null" json:"payment_method"`
	User          User           `gorm:"foreignKey:UserID" json:"-"`
	OrderItems    []OrderItem    `gorm:"foreignKey:OrderID" json:"order_items,omitempty"`
	Deliveries    []Delivery     `gorm:"foreignKey:OrderID" json:"-"`
}

// OrderItem is one product line on an order.
type OrderItem struct {
	ID        int     `gorm:"primaryKey" json:"id"`
	OrderID   int     `gorm:"not null;index" json:"order_id"`
	ProductID int     `gorm:"not null;index" json:"product_id"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal  float64 `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Order     Order   `gorm:"foreignKey:OrderID" json:"-"`
	Product   Product `gorm:"foreignKey:ProductID" json:"-"`
}

// Delivery ties an order to a driver. At most one non-cancelled delivery
// exists per order; a cancelled one may be superseded by a re-delivery.
type Delivery struct {
	ID                    int            `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	OrderID               int            `gorm:"not null;index" json:"order_id"`
	DriverID              int            `gorm:"not null;index" json:"driver_id"`
	Status                DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PickupTime            *time.Time     `json:"pickup_time"`
	DeliveredTime         *time.Time     `json:"delivered_time"`
	EstimatedDeliveryTime *time.Time     `json:"estimated_delivery_time"`
	Order                 Order          `gorm:"foreignKey:OrderID" json:"-"`
	Driver                Driver         `gorm:"foreignKey:DriverID" json:"-"`
}

// Active reports whether the delivery still counts against its order.
func (d *Delivery) Active() bool {
	return d.Status == DeliveryPending || d.Status == DeliveryInProgress
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&User{},
		&Driver{},
		&Category{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Delivery{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
