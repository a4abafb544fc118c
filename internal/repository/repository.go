// Package repository declares the storage contracts shared by the Postgres
// and in-memory stores.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
)

type TicketTypeRepository interface {
	Create(ctx context.Context, tt *domain.TicketType) error
	Get(ctx context.Context, id uuid.UUID) (*domain.TicketType, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error)

	// Reserve increments quantity_sold by qty in a single conditional update.
	// It fails with ErrNotFound, ErrInactive, ErrOutsideSaleWindow or
	// ErrInsufficientQuantity and leaves the row untouched in that case.
	Reserve(ctx context.Context, id uuid.UUID, qty int, now time.Time) (*domain.TicketType, error)

	// Release decrements quantity_sold by qty, floored at zero.
	Release(ctx context.Context, id uuid.UUID, qty int) (*domain.TicketType, error)

	// GrowQuantity raises the cap. ErrQuantityShrink when quantity would drop.
	GrowQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.TicketType, error)
}

type TicketRepository interface {
	CreateBatch(ctx context.Context, tickets []domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Ticket, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Ticket, error)

	// Transition moves the ticket to `to` only if its current status is one
	// of from, stamping the timestamp that belongs to `to`. ErrStateChanged
	// when the ticket exists in another status.
	Transition(ctx context.Context, id uuid.UUID, from []domain.TicketStatus, to domain.TicketStatus, at time.Time) (*domain.Ticket, error)

	// AttachPayment links RESERVED tickets to paymentID and returns how many
	// rows were linked.
	AttachPayment(ctx context.Context, ticketIDs []uuid.UUID, paymentID uuid.UUID) (int, error)

	// MarkPaid moves every RESERVED ticket linked to paymentID to PAID.
	MarkPaid(ctx context.Context, paymentID uuid.UUID, at time.Time) (int, error)

	// ListStaleReserved returns RESERVED tickets created before cutoff.
	ListStaleReserved(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPendingByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
	LatestByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) error

	// Transition is conditional on the current status being from.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus, reason string, at time.Time) (*domain.Payment, error)

	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Tx exposes repositories bound to one transaction. Outside RunTx the same
// accessors on Store run each statement on its own.
type Tx interface {
	TicketTypes() TicketTypeRepository
	Tickets() TicketRepository
	Payments() PaymentRepository
	Events() EventRepository
	Users() UserRepository
}

type Store interface {
	Tx

	// RunTx runs fn in a transaction, committing when fn returns nil and
	// rolling back every write otherwise.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
