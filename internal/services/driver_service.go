package services

import (
	"context"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FullDriverStore is the driver persistence surface the driver service
// needs on top of what the delivery engine uses.
type FullDriverStore interface {
	DriverStore
	Create(ctx context.Context, driver *models.Driver) error
	List(ctx context.Context) ([]models.Driver, error)
	UpdateStatus(ctx context.Context, id int, status models.DriverStatus) error
}

// DriverService handles the driver roster.
type DriverService struct {
	drivers FullDriverStore
}

// NewDriverService creates a new driver service
func NewDriverService(drivers FullDriverStore) *DriverService {
	return &DriverService{drivers: drivers}
}

// Register adds a driver to the roster. New drivers start Available.
func (s *DriverService) Register(ctx context.Context, driver *models.Driver) (*models.Driver, error) {
	if driver.Name == "" || driver.Email == "" {
		return nil, errors.WithMessage(ErrBadRequest, "name and email are required")
	}
	if driver.Status == "" {
		driver.Status = models.DriverAvailable
	}
	if !driver.Status.IsValid() {
		return nil, errors.WithMessagef(ErrBadRequest, "unknown driver status %q", driver.Status)
	}
	driver.Sentinel = false

	if err := s.drivers.Create(ctx, driver); err != nil {
		return nil, errors.Wrap(err, "creating driver")
	}

	log.Info().Int("driver_id", driver.ID).Str("status", string(driver.Status)).Msg("Driver registered")
	return driver, nil
}

// Get returns a driver by id.
func (s *DriverService) Get(ctx context.Context, id int) (*models.Driver, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "driver id %d", id)
	}
	driver, err := s.drivers.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "driver", id)
	}
	return driver, nil
}

// List returns the driver roster, the unassigned sentinel excluded.
func (s *DriverService) List(ctx context.Context) ([]models.Driver, error) {
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing drivers")
	}
	return drivers, nil
}

// UpdateAvailability sets a driver's availability state.
func (s *DriverService) UpdateAvailability(ctx context.Context, id int, status models.DriverStatus) (*models.Driver, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "driver id %d", id)
	}
	if !status.IsValid() {
		return nil, errors.WithMessagef(ErrBadRequest, "unknown driver status %q", status)
	}

	driver, err := s.drivers.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "driver", id)
	}
	if driver.Sentinel {
		return nil, errors.WithMessagef(ErrBadRequest, "driver %d is not managed manually", id)
	}

	if err := s.drivers.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapNotFound(err, "driver", id)
	}
	driver.Status = status

	log.Info().Int("driver_id", id).Str("status", string(status)).Msg("Driver availability updated")
	return driver, nil
}
