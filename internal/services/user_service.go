package services

import (
	"context"
	"time"

	"example.com/grocery/services/delivery/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// UserStore is the user persistence surface the service layer needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// UserService handles customer accounts.
type UserService struct {
	users UserStore
}

// NewUserService creates a new user service
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Register creates a new customer account.
func (s *UserService) Register(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Name == "" || user.Email == "" {
		return nil, errors.WithMessage(ErrBadRequest, "name and email are required")
	}
	user.RegistrationDate = time.Now()

	if err := s.users.Create(ctx, user); err != nil {
		return nil, errors.Wrap(err, "creating user")
	}

	log.Info().Int("user_id", user.ID).Msg("User registered")
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id int) (*models.User, error) {
	if id <= 0 {
		return nil, errors.WithMessagef(ErrInvalidID, "user id %d", id)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "user", id)
	}
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	return users, nil
}
