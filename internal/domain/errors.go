package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrQuantityOutOfRange      = errors.New("quantity outside per-order limits")
	ErrQuantityShrink          = errors.New("quantity cannot shrink")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrOutsideSaleWindow       = errors.New("ticket type is outside its sale window")
	ErrTicketTypeInactive      = errors.New("ticket type is inactive")
	ErrTicketTypeEventMismatch = errors.New("ticket type does not belong to event")
	ErrEventNotBookable        = errors.New("event is not bookable")
	ErrRateLimited             = errors.New("rate limited")

	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyCheckedIn       = fmt.Errorf("ticket already checked in: %w", ErrInvalidStateTransition)
	ErrTicketNotPaid          = fmt.Errorf("ticket is not paid: %w", ErrInvalidStateTransition)
	ErrNotCancellable         = fmt.Errorf("ticket cannot be cancelled: %w", ErrInvalidStateTransition)
	ErrTicketNotReserved      = fmt.Errorf("ticket is not reserved: %w", ErrInvalidStateTransition)

	ErrTicketEventMismatch  = errors.New("ticket does not belong to event")
	ErrNotTicketOwner       = errors.New("ticket belongs to another user")
	ErrOutsideCheckInWindow = errors.New("outside check-in window")

	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrGatewayFailure           = errors.New("payment gateway failure")
	ErrAmountMismatch           = errors.New("amount does not match order total")
	ErrReservationLapsed        = errors.New("reservation lapsed before payment completed")
)
