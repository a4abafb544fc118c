package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrStateChanged is returned by conditional transitions when the row
	// exists but is no longer in one of the expected states.
	ErrStateChanged = errors.New("state changed")

	// ErrIllegalTransition is returned before touching storage when the
	// requested move is not in the status machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInactive             = errors.New("inactive")
	ErrOutsideSaleWindow    = errors.New("outside sale window")
	ErrQuantityShrink       = errors.New("quantity below sold")
)
