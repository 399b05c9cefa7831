package services

import (
	"context"
	"testing"
	"time"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Mock stores for testing

type MockDriverStore struct {
	mock.Mock
}

func (m *MockDriverStore) GetByID(ctx context.Context, id int) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *MockDriverStore) Available(ctx context.Context) ([]models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Driver), args.Error(1)
}

func (m *MockDriverStore) Claim(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriverStore) Release(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDriverStore) Sentinel(ctx context.Context) (*models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *MockDriverStore) EnsureSentinel(ctx context.Context) (*models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

type MockDeliveryStore struct {
	mock.Mock
}

func (m *MockDeliveryStore) Create(ctx context.Context, delivery *models.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryStore) GetByID(ctx context.Context, id int) (*models.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func (m *MockDeliveryStore) List(ctx context.Context) ([]models.Delivery, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Delivery), args.Error(1)
}

func (m *MockDeliveryStore) Update(ctx context.Context, delivery *models.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryStore) ActiveByDriver(ctx context.Context, driverID int) ([]models.Delivery, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Delivery), args.Error(1)
}

func (m *MockDeliveryStore) PendingByDriver(ctx context.Context, driverID int) ([]models.Delivery, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Delivery), args.Error(1)
}

func (m *MockDeliveryStore) ActiveByOrder(ctx context.Context, orderID int) (*models.Delivery, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetByID(ctx context.Context, id int) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id int, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// firstPolicy always picks the first candidate, making assignment
// deterministic in tests.
type firstPolicy struct{}

func (firstPolicy) Pick(candidates []models.Driver) int { return 0 }

func newTestDeliveryService(drivers *MockDriverStore, deliveries *MockDeliveryStore, orders *MockOrderStore) *DeliveryService {
	return NewDeliveryService(drivers, deliveries, orders, firstPolicy{}, nil, nil, nil)
}

func TestCreateForOrderAssignsAvailableDriver(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	orders.On("GetByID", mock.Anything, 10).Return(&models.Order{ID: 10, Status: models.OrderPending}, nil)
	drivers.On("Available", mock.Anything).Return([]models.Driver{
		{ID: 3, Status: models.DriverAvailable},
		{ID: 7, Status: models.DriverAvailable},
	}, nil)
	drivers.On("Claim", mock.Anything, 3).Return(true, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.CreateForOrder(context.Background(), 10)

	require.NoError(t, err)
	require.Equal(t, 10, delivery.OrderID)
	require.Equal(t, 3, delivery.DriverID)
	require.Equal(t, models.DeliveryPending, delivery.Status)
	require.NotNil(t, delivery.EstimatedDeliveryTime)
	require.WithinDuration(t, time.Now().Add(assignedDeliveryWindow), *delivery.EstimatedDeliveryTime, time.Minute)

	drivers.AssertExpectations(t)
	deliveries.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestCreateForOrderRetriesAfterLostClaim(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	orders.On("GetByID", mock.Anything, 10).Return(&models.Order{ID: 10}, nil)
	drivers.On("Available", mock.Anything).Return([]models.Driver{
		{ID: 3, Status: models.DriverAvailable},
		{ID: 7, Status: models.DriverAvailable},
	}, nil)
	// Driver 3 is grabbed by a concurrent assignment; driver 7 succeeds.
	drivers.On("Claim", mock.Anything, 3).Return(false, nil)
	drivers.On("Claim", mock.Anything, 7).Return(true, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.CreateForOrder(context.Background(), 10)

	require.NoError(t, err)
	require.Equal(t, 7, delivery.DriverID)
	drivers.AssertExpectations(t)
}

func TestCreateForOrderFallsBackToSentinel(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	orders.On("GetByID", mock.Anything, 10).Return(&models.Order{ID: 10}, nil)
	drivers.On("Available", mock.Anything).Return([]models.Driver{}, nil)
	drivers.On("EnsureSentinel", mock.Anything).Return(&models.Driver{ID: 99, Sentinel: true, Status: models.DriverOffline}, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)
	orders.On("UpdateStatus", mock.Anything, 10, models.OrderAwaitingDriver).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.CreateForOrder(context.Background(), 10)

	require.NoError(t, err)
	require.Equal(t, 99, delivery.DriverID)
	require.Equal(t, models.DeliveryPending, delivery.Status)
	require.WithinDuration(t, time.Now().Add(unassignedDeliveryWindow), *delivery.EstimatedDeliveryTime, time.Minute)

	drivers.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestCreateForOrderReleasesDriverWhenInsertFails(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	orders.On("GetByID", mock.Anything, 10).Return(&models.Order{ID: 10}, nil)
	drivers.On("Available", mock.Anything).Return([]models.Driver{{ID: 3, Status: models.DriverAvailable}}, nil)
	drivers.On("Claim", mock.Anything, 3).Return(true, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(gorm.ErrInvalidData)
	drivers.On("Release", mock.Anything, 3).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	_, err := service.CreateForOrder(context.Background(), 10)

	require.Error(t, err)
	drivers.AssertExpectations(t)
}

func TestCreateForOrderRejectsInvalidID(t *testing.T) {
	service := newTestDeliveryService(new(MockDriverStore), new(MockDeliveryStore), new(MockOrderStore))

	_, err := service.CreateForOrder(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = service.CreateForOrder(context.Background(), -4)
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestCreateForOrderUnknownOrder(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	orders.On("GetByID", mock.Anything, 42).Return(nil, gorm.ErrRecordNotFound)

	service := newTestDeliveryService(drivers, deliveries, orders)
	_, err := service.CreateForOrder(context.Background(), 42)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusToInProgress(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	deliveries.On("GetByID", mock.Anything, 1).Return(&models.Delivery{
		ID: 1, OrderID: 10, DriverID: 3, Status: models.DeliveryPending,
	}, nil)
	orders.On("UpdateStatus", mock.Anything, 10, models.OrderInProgress).Return(nil)
	deliveries.On("Update", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.UpdateStatus(context.Background(), 1, models.DeliveryInProgress)

	require.NoError(t, err)
	require.Equal(t, models.DeliveryInProgress, delivery.Status)
	require.NotNil(t, delivery.PickupTime)
	require.WithinDuration(t, time.Now(), *delivery.PickupTime, time.Minute)
	require.WithinDuration(t, time.Now().Add(inProgressDeliveryWindow), *delivery.EstimatedDeliveryTime, time.Minute)

	orders.AssertExpectations(t)
	deliveries.AssertExpectations(t)
}

func TestUpdateStatusToCompletedReleasesDriver(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	pickup := time.Now().Add(-30 * time.Minute)
	deliveries.On("GetByID", mock.Anything, 1).Return(&models.Delivery{
		ID: 1, OrderID: 10, DriverID: 3, Status: models.DeliveryInProgress, PickupTime: &pickup,
	}, nil)
	drivers.On("Release", mock.Anything, 3).Return(nil)
	deliveries.On("Update", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.UpdateStatus(context.Background(), 1, models.DeliveryCompleted)

	require.NoError(t, err)
	require.Equal(t, models.DeliveryCompleted, delivery.Status)
	require.NotNil(t, delivery.DeliveredTime)
	require.WithinDuration(t, time.Now(), *delivery.DeliveredTime, time.Minute)

	drivers.AssertExpectations(t)
}

func TestUpdateStatusToCompletedFromPending(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	deliveries.On("GetByID", mock.Anything, 1).Return(&models.Delivery{
		ID: 1, OrderID: 10, DriverID: 3, Status: models.DeliveryPending,
	}, nil)
	drivers.On("Release", mock.Anything, 3).Return(nil)
	deliveries.On("Update", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.UpdateStatus(context.Background(), 1, models.DeliveryCompleted)

	require.NoError(t, err)
	require.NotNil(t, delivery.DeliveredTime)
	drivers.AssertExpectations(t)
}

func TestUpdateStatusToCancelledClearsTimes(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	pickup := time.Now()
	est := time.Now().Add(time.Hour)
	deliveries.On("GetByID", mock.Anything, 1).Return(&models.Delivery{
		ID: 1, OrderID: 10, DriverID: 3, Status: models.DeliveryInProgress,
		PickupTime: &pickup, EstimatedDeliveryTime: &est,
	}, nil)
	drivers.On("Release", mock.Anything, 3).Return(nil)
	deliveries.On("Update", mock.Anything, mock.AnythingOfType("*models.Delivery")).Return(nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	delivery, err := service.UpdateStatus(context.Background(), 1, models.DeliveryCancelled)

	require.NoError(t, err)
	require.Nil(t, delivery.PickupTime)
	require.Nil(t, delivery.EstimatedDeliveryTime)
	require.Nil(t, delivery.DeliveredTime)

	drivers.AssertExpectations(t)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	deliveries.On("GetByID", mock.Anything, 1).Return(&models.Delivery{
		ID: 1, OrderID: 10, DriverID: 3, Status: models.DeliveryCompleted,
	}, nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	_, err := service.UpdateStatus(context.Background(), 1, models.DeliveryInProgress)

	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	service := newTestDeliveryService(new(MockDriverStore), new(MockDeliveryStore), new(MockOrderStore))

	_, err := service.UpdateStatus(context.Background(), 1, models.DeliveryStatus("Lost"))
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestUpdateStatusUnknownDelivery(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	deliveries.On("GetByID", mock.Anything, 404).Return(nil, gorm.ErrRecordNotFound)

	service := newTestDeliveryService(drivers, deliveries, orders)
	_, err := service.UpdateStatus(context.Background(), 404, models.DeliveryCompleted)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelForOrderWithoutActiveDelivery(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	deliveries.On("ActiveByOrder", mock.Anything, 10).Return(nil, nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	require.NoError(t, service.CancelForOrder(context.Background(), 10))
}

func TestAssignStrandedWithoutSentinel(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	drivers.On("Sentinel", mock.Anything).Return(nil, nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	assigned, err := service.AssignStranded(context.Background())

	require.NoError(t, err)
	require.False(t, assigned)
}

func TestAssignStrandedWithNothingParked(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	drivers.On("Sentinel", mock.Anything).Return(&models.Driver{ID: 99, Sentinel: true}, nil)
	deliveries.On("PendingByDriver", mock.Anything, 99).Return([]models.Delivery{}, nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	assigned, err := service.AssignStranded(context.Background())

	require.NoError(t, err)
	require.False(t, assigned)
}

func TestAssignStrandedStopsWhenPoolRunsDry(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	drivers.On("Sentinel", mock.Anything).Return(&models.Driver{ID: 99, Sentinel: true}, nil)
	deliveries.On("PendingByDriver", mock.Anything, 99).Return([]models.Delivery{
		{ID: 1, OrderID: 10, DriverID: 99, Status: models.DeliveryPending},
		{ID: 2, OrderID: 11, DriverID: 99, Status: models.DeliveryPending},
	}, nil)

	// One driver for two stranded deliveries: the second claim finds an
	// empty pool and the sweep stops there.
	drivers.On("Available", mock.Anything).Return([]models.Driver{{ID: 3, Status: models.DriverAvailable}}, nil).Once()
	drivers.On("Claim", mock.Anything, 3).Return(true, nil).Once()
	drivers.On("Available", mock.Anything).Return([]models.Driver{}, nil).Once()

	deliveries.On("Update", mock.Anything, mock.MatchedBy(func(d *models.Delivery) bool {
		return d.ID == 1 && d.DriverID == 3
	})).Return(nil).Once()
	orders.On("UpdateStatus", mock.Anything, 10, models.OrderProcessing).Return(nil).Once()

	service := newTestDeliveryService(drivers, deliveries, orders)
	assigned, err := service.AssignStranded(context.Background())

	require.NoError(t, err)
	require.True(t, assigned)

	drivers.AssertExpectations(t)
	deliveries.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestActiveForDriver(t *testing.T) {
	drivers := new(MockDriverStore)
	deliveries := new(MockDeliveryStore)
	orders := new(MockOrderStore)

	drivers.On("GetByID", mock.Anything, 3).Return(&models.Driver{ID: 3}, nil)
	deliveries.On("ActiveByDriver", mock.Anything, 3).Return([]models.Delivery{
		{ID: 1, DriverID: 3, Status: models.DeliveryPending},
	}, nil)

	service := newTestDeliveryService(drivers, deliveries, orders)
	result, err := service.ActiveForDriver(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, result, 1)
}
