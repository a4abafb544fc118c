// Package errmap translates repository errors into the domain errors that
// services return to callers.
package errmap

import (
	"errors"

	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

// FromRepo returns the domain sentinel matching err, or err unchanged.
func FromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return domain.ErrConflict
	case errors.Is(err, repository.ErrInactive):
		return domain.ErrTicketTypeInactive
	case errors.Is(err, repository.ErrOutsideSaleWindow):
		return domain.ErrOutsideSaleWindow
	case errors.Is(err, repository.ErrInsufficientQuantity):
		return domain.ErrInsufficientInventory
	case errors.Is(err, repository.ErrQuantityShrink):
		return domain.ErrQuantityShrink
	case errors.Is(err, repository.ErrStateChanged),
		errors.Is(err, repository.ErrIllegalTransition):
		return domain.ErrInvalidStateTransition
	}

	return err
}
