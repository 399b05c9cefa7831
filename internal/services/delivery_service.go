package services

import (
	"context"
	"time"

	"example.com/grocery/services/delivery/internal/messaging"
	"example.com/grocery/services/delivery/internal/metrics"
	"example.com/grocery/services/delivery/internal/models"
	"example.com/grocery/services/delivery/internal/tracing"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Delivery windows applied when a delivery record is created or advanced.
const (
	assignedDeliveryWindow   = 24 * time.Hour
	unassignedDeliveryWindow = 48 * time.Hour
	inProgressDeliveryWindow = 1 * time.Hour
)

// DriverStore is the driver persistence surface the delivery engine needs.
type DriverStore interface {
	GetByID(ctx context.Context, id int) (*models.Driver, error)
	Available(ctx context.Context) ([]models.Driver, error)
	Claim(ctx context.Context, id int) (bool, error)
	Release(ctx context.Context, id int) error
	Sentinel(ctx context.Context) (*models.Driver, error)
	EnsureSentinel(ctx context.Context) (*models.Driver, error)
}

// DeliveryStore is the delivery persistence surface the engine needs.
type DeliveryStore interface {
	Create(ctx context.Context, delivery *models.Delivery) error
	GetByID(ctx context.Context, id int) (*models.Delivery, error)
	List(ctx context.Context) ([]models.Delivery, error)
	Update(ctx context.Context, delivery *models.Delivery) error
	ActiveByDriver(ctx context.Context, driverID int) ([]models.Delivery, error)
	PendingByDriver(ctx context.Context, driverID int) ([]models.Delivery, error)
	ActiveByOrder(ctx context.Context, orderID int) (*models.Delivery, error)
}

// OrderStore is the order persistence surface the engine needs.
type OrderStore interface {
	GetByID(ctx context.Context, id int) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int, status string) error
}

// DeliveryService owns the driver assignment and delivery lifecycle logic.
type DeliveryService struct {
	drivers    DriverStore
	deliveries DeliveryStore
	orders     OrderStore
	selector   SelectionPolicy
	publisher  messaging.Publisher
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewDeliveryService creates a new delivery service. The publisher, metrics
// and tracer may be nil; the engine degrades gracefully without them.
func NewDeliveryService(
	drivers DriverStore,
	deliveries DeliveryStore,
	orders OrderStore,
	selector SelectionPolicy,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *DeliveryService {
	if selector == nil {
		selector = NewUniformRandomPolicy()
	}
	return &DeliveryService{
		drivers:    drivers,
		deliveries: deliveries,
		orders:     orders,
		selector:   selector,
		publisher:  publisher,
		metrics:    m,
		tracer:     tracer,
	}
}

// claimDriver picks a driver from the currently available pool and flips it
// to Busy. The pick happens outside any transaction, so a concurrently
// assigned driver is detected by the conditional status update and the
// remaining candidates are retried. Returns ErrNoDriversAvailable when the
// pool is empty or every candidate was lost to a concurrent claim.
func (s *DeliveryService) claimDriver(ctx context.Context) (*models.Driver, error) {
	candidates, err := s.drivers.Available(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying available drivers")
	}

	for len(candidates) > 0 {
		idx := s.selector.Pick(candidates)
		driver := candidates[idx]

		claimed, err := s.drivers.Claim(ctx, driver.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "claiming driver %d", driver.ID)
		}
		if claimed {
			driver.Status = models.DriverBusy
			return &driver, nil
		}

		// Lost the race for this driver, try the rest of the pool.
		log.Debug().Int("driver_id", driver.ID).Msg("Driver claimed concurrently, retrying with remaining pool")
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}

	return nil, ErrNoDriversAvailable
}

// CreateForOrder creates the delivery record for an order, assigning a
// driver when one is available and falling back to the unassigned sentinel
// otherwise.
func (s *DeliveryService) CreateForOrder(ctx context.Context, orderID int) (*models.Delivery, error) {
	txn := s.startTransaction("create-delivery")
	defer s.endTransaction(txn)

	if orderID <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "order id %d", orderID)
	}

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, mapNotFound(err, "order", orderID)
	}

	driver, err := s.claimDriver(ctx)
	switch {
	case err == nil:
		return s.createAssigned(ctx, orderID, driver)
	case errors.Is(err, ErrNoDriversAvailable):
		return s.createUnassigned(ctx, orderID)
	default:
		s.recordError(txn, err)
		return nil, err
	}
}

func (s *DeliveryService) createAssigned(ctx context.Context, orderID int, driver *models.Driver) (*models.Delivery, error) {
	est := time.Now().Add(assignedDeliveryWindow)
	delivery := &models.Delivery{
		OrderID:               orderID,
		DriverID:              driver.ID,
		Status:                models.DeliveryPending,
		EstimatedDeliveryTime: &est,
	}

	if err := s.deliveries.Create(ctx, delivery); err != nil {
		// Give the driver back so a failed insert does not leak a Busy flip.
		if relErr := s.drivers.Release(ctx, driver.ID); relErr != nil {
			log.Error().Err(relErr).Int("driver_id", driver.ID).Msg("Failed to release driver after delivery create failure")
		}
		return nil, errors.Wrapf(err, "creating delivery for order %d", orderID)
	}

	s.incrementCounter("deliveries.assigned")
	log.Info().
		Int("delivery_id", delivery.ID).
		Int("order_id", orderID).
		Int("driver_id", driver.ID).
		Msg("Delivery assigned to driver")

	s.publishDeliveryAssigned(ctx, delivery)
	return delivery, nil
}

func (s *DeliveryService) createUnassigned(ctx context.Context, orderID int) (*models.Delivery, error) {
	sentinel, err := s.drivers.EnsureSentinel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "ensuring unassigned sentinel driver")
	}

	est := time.Now().Add(unassignedDeliveryWindow)
	delivery := &models.Delivery{
		OrderID:               orderID,
		DriverID:              sentinel.ID,
		Status:                models.DeliveryPending,
		EstimatedDeliveryTime: &est,
	}

	if err := s.deliveries.Create(ctx, delivery); err != nil {
		return nil, errors.Wrapf(err, "creating unassigned delivery for order %d", orderID)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, models.OrderAwaitingDriver); err != nil {
		log.Warn().Err(err).Int("order_id", orderID).Msg("Failed to mark order as awaiting driver")
	}

	s.incrementCounter("deliveries.unassigned")
	log.Info().
		Int("delivery_id", delivery.ID).
		Int("order_id", orderID).
		Msg("No drivers available, delivery parked on unassigned sentinel")

	return delivery, nil
}

// Get returns a delivery by id.
func (s *DeliveryService) Get(ctx context.Context, id int) (*models.Delivery, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "delivery id %d", id)
	}
	delivery, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "delivery", id)
	}
	return delivery, nil
}

// List returns all deliveries.
func (s *DeliveryService) List(ctx context.Context) ([]models.Delivery, error) {
	deliveries, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing deliveries")
	}
	return deliveries, nil
}

// ActiveForDriver returns a driver's pending and in-progress deliveries.
func (s *DeliveryService) ActiveForDriver(ctx context.Context, driverID int) ([]models.Delivery, error) {
	if driverID <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "driver id %d", driverID)
	}
	if _, err := s.drivers.GetByID(ctx, driverID); err != nil {
		return nil, mapNotFound(err, "driver", driverID)
	}
	deliveries, err := s.deliveries.ActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing active deliveries for driver %d", driverID)
	}
	return deliveries, nil
}

// UpdateStatus advances a delivery through its lifecycle, applying the
// timestamp and driver side effects of each transition.
func (s *DeliveryService) UpdateStatus(ctx context.Context, id int, status models.DeliveryStatus) (*models.Delivery, error) {
	txn := s.startTransaction("update-delivery-status")
	defer s.endTransaction(txn)

	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "delivery id %d", id)
	}
	if !status.IsValid() {
		return nil, errors.WithMessagef(ErrBadRequest, "unknown delivery status %q", status)
	}

	delivery, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "delivery", id)
	}

	if !models.CanTransition(delivery.Status, status) {
		return nil, errors.WithMessagef(ErrInvalidTransition, "%s -> %s", delivery.Status, status)
	}

	now := time.Now()
	delivery.Status = status

	switch status {
	case models.DeliveryInProgress:
		est := now.Add(inProgressDeliveryWindow)
		delivery.PickupTime = &now
		delivery.EstimatedDeliveryTime = &est
		if err := s.orders.UpdateStatus(ctx, delivery.OrderID, models.OrderInProgress); err != nil {
			log.Warn().Err(err).Int("order_id", delivery.OrderID).Msg("Failed to mark order as in progress")
		}

	case models.DeliveryCompleted:
		delivery.DeliveredTime = &now
		if err := s.drivers.Release(ctx, delivery.DriverID); err != nil {
			log.Warn().Err(err).Int("driver_id", delivery.DriverID).Msg("Failed to release driver after delivery completion")
		}

	case models.DeliveryCancelled:
		delivery.PickupTime = nil
		delivery.EstimatedDeliveryTime = nil
		if err := s.drivers.Release(ctx, delivery.DriverID); err != nil {
			log.Warn().Err(err).Int("driver_id", delivery.DriverID).Msg("Failed to release driver after delivery cancellation")
		}
	}

	if err := s.deliveries.Update(ctx, delivery); err != nil {
		s.recordError(txn, err)
		return nil, errors.Wrapf(err, "updating delivery %d", id)
	}

	s.incrementCounter("deliveries.status." + string(status))
	log.Info().
		Int("delivery_id", delivery.ID).
		Str("status", string(status)).
		Msg("Delivery status updated")

	return delivery, nil
}

// Update replaces a delivery's mutable fields wholesale. Status changes go
// through the same transition checks as UpdateStatus but without the
// lifecycle side effects.
func (s *DeliveryService) Update(ctx context.Context, id int, updated *models.Delivery) (*models.Delivery, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "delivery id %d", id)
	}

	delivery, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "delivery", id)
	}

	if updated.Status != "" && updated.Status != delivery.Status {
		if !updated.Status.IsValid() {
			return nil, errors.WithMessagef(ErrBadRequest, "unknown delivery status %q", updated.Status)
		}
		if !models.CanTransition(delivery.Status, updated.Status) {
			return nil, errors.WithMessagef(ErrInvalidTransition, "%s -> %s", delivery.Status, updated.Status)
		}
		delivery.Status = updated.Status
	}
	if updated.DriverID != 0 {
		delivery.DriverID = updated.DriverID
	}
	delivery.PickupTime = updated.PickupTime
	delivery.DeliveredTime = updated.DeliveredTime
	delivery.EstimatedDeliveryTime = updated.EstimatedDeliveryTime

	if err := s.deliveries.Update(ctx, delivery); err != nil {
		return nil, errors.Wrapf(err, "updating delivery %d", id)
	}
	return delivery, nil
}

// CancelForOrder cancels an order's active delivery, if it has one. A
// missing or already-terminal delivery is not an error.
func (s *DeliveryService) CancelForOrder(ctx context.Context, orderID int) error {
	delivery, err := s.deliveries.ActiveByOrder(ctx, orderID)
	if err != nil {
		return errors.Wrapf(err, "looking up active delivery for order %d", orderID)
	}
	if delivery == nil {
		return nil
	}

	if _, err := s.UpdateStatus(ctx, delivery.ID, models.DeliveryCancelled); err != nil {
		return errors.Wrapf(err, "cancelling delivery %d", delivery.ID)
	}
	return nil
}

// AssignStranded moves deliveries parked on the unassigned sentinel onto
// real drivers. Each delivery claims its own driver; the sweep stops as soon
// as the pool runs dry and reports whether anything was reassigned.
func (s *DeliveryService) AssignStranded(ctx context.Context) (bool, error) {
	txn := s.startTransaction("assign-stranded-deliveries")
	defer s.endTransaction(txn)

	sentinel, err := s.drivers.Sentinel(ctx)
	if err != nil {
		return false, errors.Wrap(err, "looking up unassigned sentinel driver")
	}
	if sentinel == nil {
		return false, nil
	}

	stranded, err := s.deliveries.PendingByDriver(ctx, sentinel.ID)
	if err != nil {
		return false, errors.Wrap(err, "listing stranded deliveries")
	}
	if len(stranded) == 0 {
		return false, nil
	}

	log.Info().Int("count", len(stranded)).Msg("Found stranded deliveries awaiting a driver")

	anyAssigned := false
	for i := range stranded {
		delivery := &stranded[i]

		driver, err := s.claimDriver(ctx)
		if errors.Is(err, ErrNoDriversAvailable) {
			log.Info().Msg("Driver pool exhausted, remaining stranded deliveries stay parked")
			break
		}
		if err != nil {
			s.recordError(txn, err)
			return anyAssigned, errors.Wrapf(err, "claiming driver for stranded delivery %d", delivery.ID)
		}

		delivery.DriverID = driver.ID
		if err := s.deliveries.Update(ctx, delivery); err != nil {
			if relErr := s.drivers.Release(ctx, driver.ID); relErr != nil {
				log.Error().Err(relErr).Int("driver_id", driver.ID).Msg("Failed to release driver after reassignment failure")
			}
			s.recordError(txn, err)
			return anyAssigned, errors.Wrapf(err, "rebinding stranded delivery %d", delivery.ID)
		}

		if err := s.orders.UpdateStatus(ctx, delivery.OrderID, models.OrderProcessing); err != nil {
			log.Warn().Err(err).Int("order_id", delivery.OrderID).Msg("Failed to mark order as processing after reassignment")
		}

		anyAssigned = true
		s.incrementCounter("deliveries.reassigned")
		log.Info().
			Int("delivery_id", delivery.ID).
			Int("order_id", delivery.OrderID).
			Int("driver_id", driver.ID).
			Msg("Stranded delivery reassigned to driver")

		s.publishDeliveryAssigned(ctx, delivery)
	}

	return anyAssigned, nil
}

func (s *DeliveryService) publishDeliveryAssigned(ctx context.Context, delivery *models.Delivery) {
	if s.publisher == nil {
		return
	}
	data := messaging.DeliveryEventData{
		DeliveryID: delivery.ID,
		OrderID:    delivery.OrderID,
		DriverID:   delivery.DriverID,
	}
	if err := s.publisher.Publish(ctx, messaging.EventDeliveryAssigned, data); err != nil {
		log.Warn().Err(err).Int("delivery_id", delivery.ID).Msg("Failed to publish delivery assigned event")
	}
}

func (s *DeliveryService) startTransaction(name string) *newrelic.Transaction {
	if s.tracer == nil {
		return nil
	}
	return s.tracer.StartTransaction(name)
}

func (s *DeliveryService) endTransaction(txn *newrelic.Transaction) {
	if s.tracer == nil {
		return
	}
	s.tracer.EndTransaction(txn)
}

func (s *DeliveryService) recordError(txn *newrelic.Transaction, err error) {
	if s.tracer == nil {
		return
	}
	s.tracer.RecordError(txn, err)
}

func (s *DeliveryService) incrementCounter(name string) {
	if s.metrics != nil {
		s.metrics.IncrementCounter(name)
	}
}
