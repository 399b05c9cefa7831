package services

import (
	"context"
	"testing"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFullDriverStore struct {
	MockDriverStore
}

func (m *MockFullDriverStore) Create(ctx context.Context, driver *models.Driver) error {
	args := m.Called(ctx, driver)
	return args.Error(0)
}

func (m *MockFullDriverStore) List(ctx context.Context) ([]models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Driver), args.Error(1)
}

func (m *MockFullDriverStore) UpdateStatus(ctx context.Context, id int, status models.DriverStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func TestRegisterDriverDefaultsToAvailable(t *testing.T) {
	drivers := new(MockFullDriverStore)
	drivers.On("Create", mock.Anything, mock.AnythingOfType("*models.Driver")).Return(nil)

	service := NewDriverService(drivers)
	driver, err := service.Register(context.Background(), &models.Driver{
		Name: "Ada", Email: "ada@example.com",
	})

	require.NoError(t, err)
	require.Equal(t, models.DriverAvailable, driver.Status)
	require.False(t, driver.Sentinel)
}

func TestRegisterDriverRequiresNameAndEmail(t *testing.T) {
	service := NewDriverService(new(MockFullDriverStore))

	_, err := service.Register(context.Background(), &models.Driver{Name: "Ada"})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestUpdateAvailabilityRejectsSentinel(t *testing.T) {
	drivers := new(MockFullDriverStore)
	drivers.On("GetByID", mock.Anything, 99).Return(&models.Driver{ID: 99, Sentinel: true, Status: models.DriverOffline}, nil)

	service := NewDriverService(drivers)
	_, err := service.UpdateAvailability(context.Background(), 99, models.DriverAvailable)

	require.ErrorIs(t, err, ErrBadRequest)
	drivers.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAvailability(t *testing.T) {
	drivers := new(MockFullDriverStore)
	drivers.On("GetByID", mock.Anything, 3).Return(&models.Driver{ID: 3, Status: models.DriverAvailable}, nil)
	drivers.On("UpdateStatus", mock.Anything, 3, models.DriverOnBreak).Return(nil)

	service := NewDriverService(drivers)
	driver, err := service.UpdateAvailability(context.Background(), 3, models.DriverOnBreak)

	require.NoError(t, err)
	require.Equal(t, models.DriverOnBreak, driver.Status)
	drivers.AssertExpectations(t)
}

func TestUpdateAvailabilityRejectsUnknownStatus(t *testing.T) {
	service := NewDriverService(new(MockFullDriverStore))

	_, err := service.UpdateAvailability(context.Background(), 3, models.DriverStatus("Sleeping"))
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestSelectionPolicyStaysInRange(t *testing.T) {
	policy := NewUniformRandomPolicy()
	pool := []models.Driver{{ID: 1}, {ID: 2}, {ID: 3}}

	for i := 0; i < 100; i++ {
		idx := policy.Pick(pool)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, len(pool))
	}
}
