package services

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound signals that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID signals an id that cannot reference anything (zero or negative).
	ErrInvalidID = errors.New("id must be greater than zero")

	// ErrBadRequest signals an invalid or incomplete payload.
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidTransition signals a delivery status change the state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid delivery status transition")

	// ErrNoDriversAvailable is the selector's empty-pool signal. It is
	// recovered internally by the unassigned-delivery fallback and never
	// reaches the HTTP layer.
	ErrNoDriversAvailable = errors.New("no delivery drivers are currently available")
)

// mapNotFound converts a missing-row store error into ErrNotFound, keeping
// the failing entity and id in the message; other store errors are wrapped
// with the same context.
func mapNotFound(err error, what string, id int) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.WithMessagef(ErrNotFound, "%s %d", what, id)
	}
	return errors.Wrapf(err, "%s %d", what, id)
}
