package reservation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/metrics"
	"github.com/kirinyoku/ticketcore/internal/notify"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
	"github.com/kirinyoku/ticketcore/internal/service/inventory"
	"github.com/kirinyoku/ticketcore/internal/uow"
	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"
)

type UserDirectory interface {
	FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type EventDirectory interface {
	FindEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, id string) (bool, int64, time.Duration, error)
}

// RateLimitedError reports a purchase refused by the per-buyer rate limit.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return domain.ErrRateLimited }

type Config struct {
	// CheckInWindow is how long before the event start check-in opens.
	CheckInWindow time.Duration
}

type Deps struct {
	Store     repository.Store
	Inventory *inventory.Service
	Users     UserDirectory
	Events    EventDirectory
	Limiter   RateLimiter
	Sink      notify.Sink
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Service is the reservation ledger: it creates RESERVED tickets and owns
// every ticket state change except payment completion.
type Service struct {
	store     repository.Store
	uow       *uow.UoW
	inventory *inventory.Service
	users     UserDirectory
	events    EventDirectory
	limiter   RateLimiter
	sink      notify.Sink
	clock     clock.Clock
	cfg       Config
	log       *zap.Logger
}

func New(deps Deps, cfg Config) *Service {
	if cfg.CheckInWindow <= 0 {
		cfg.CheckInWindow = 2 * time.Hour
	}
	if deps.Sink == nil {
		deps.Sink = notify.Nop()
	}

	return &Service{
		store:     deps.Store,
		uow:       uow.NewUoW(deps.Store),
		inventory: deps.Inventory,
		users:     deps.Users,
		events:    deps.Events,
		limiter:   deps.Limiter,
		sink:      deps.Sink,
		clock:     deps.Clock,
		cfg:       cfg,
		log:       deps.Logger,
	}
}

type PurchaseInput struct {
	EventID uuid.UUID
	BuyerID uuid.UUID
	Lines   []domain.OrderLine
}

// normalizeLines merges repeated ticket types and sorts by id so every
// purchase takes ticket type row locks in the same order.
func normalizeLines(lines []domain.OrderLine) ([]domain.OrderLine, error) {
	if len(lines) == 0 {
		return nil, domain.ErrInvalidQuantity
	}

	merged := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if l.Quantity > domain.MaxQuantity-merged[l.TicketTypeID] {
			return nil, domain.ErrQuantityOutOfRange
		}
		merged[l.TicketTypeID] += l.Quantity
	}

	out := make([]domain.OrderLine, 0, len(merged))
	for id, qty := range merged {
		out = append(out, domain.OrderLine{TicketTypeID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].TicketTypeID[:], out[j].TicketTypeID[:]) < 0
	})

	return out, nil
}

func newTicketNumber() string {
	return "TKT-" + shortuuid.New()
}

// Purchase reserves inventory for every line and creates one RESERVED ticket
// per unit, all in a single transaction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: event, buyer and the requested lines.
//
// Returns:
//   - *domain.Order: the new order with its RESERVED tickets.
//   - error: domain.ErrNotFound for an unknown event, buyer or ticket type.
//   - error: domain.ErrEventNotBookable, domain.ErrInsufficientInventory,
//     domain.ErrOutsideSaleWindow, domain.ErrTicketTypeInactive,
//     domain.ErrQuantityOutOfRange or domain.ErrRateLimited.
//
// When any line fails nothing is persisted and no inventory stays reserved.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*domain.Order, error) {
	const op = "service.reservation.Purchase"

	lines, err := normalizeLines(in.Lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()

	event, err := s.events.FindEvent(ctx, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !event.Bookable(now) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrEventNotBookable)
	}

	if _, err := s.users.FindUser(ctx, in.BuyerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, "buyer:"+in.BuyerID.String())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retry})
		}
	}

	orderID := uuid.New()
	var tickets []domain.Ticket

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		tickets = tickets[:0]
		inv := s.inventory.With(tx)
		touched := make([]uuid.UUID, 0, len(lines))

		for _, line := range lines {
			tt, err := inv.Get(ctx, line.TicketTypeID)
			if err != nil {
				return err
			}
			if tt.EventID != event.ID {
				return domain.ErrTicketTypeEventMismatch
			}
			if !tt.AllowsOrderQuantity(line.Quantity) {
				return domain.ErrQuantityOutOfRange
			}
			if line.Quantity > tt.Quantity {
				return domain.ErrInsufficientInventory
			}

			reserved, err := inv.Reserve(ctx, line.TicketTypeID, line.Quantity)
			if err != nil {
				return err
			}
			touched = append(touched, reserved.ID)

			for n := 0; n < line.Quantity; n++ {
				tickets = append(tickets, domain.Ticket{
					ID:           uuid.New(),
					UserID:       in.BuyerID,
					EventID:      event.ID,
					TicketTypeID: reserved.ID,
					OrderID:      orderID,
					Number:       newTicketNumber(),
					Price:        reserved.Price,
					Status:       domain.TicketReserved,
					CreatedAt:    now,
				})
			}
		}

		if err := tx.Tickets().CreateBatch(ctx, tickets); err != nil {
			return errmap.FromRepo(err)
		}

		after(func(ctx context.Context) {
			s.inventory.Changed(ctx, event.ID, touched...)
			metrics.TicketsReserved.WithLabelValues(event.ID.String()).Add(float64(len(tickets)))
			s.sink.Notify(ctx, notify.TicketPurchased, map[string]any{
				"order_id":   orderID,
				"event_id":   event.ID,
				"buyer_id":   in.BuyerID,
				"ticket_ids": ticketIDs(tickets),
			})
		})

		return nil
	})
	if err != nil {
		metrics.ReserveRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.Order{
		ID:            orderID,
		EventID:       event.ID,
		BuyerID:       in.BuyerID,
		Tickets:       tickets,
		TotalAmount:   domain.OrderTotal(tickets),
		PaymentStatus: domain.PaymentPending,
	}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, domain.ErrOutsideSaleWindow):
		return "sale_window"
	case errors.Is(err, domain.ErrTicketTypeInactive):
		return "inactive"
	case errors.Is(err, domain.ErrQuantityOutOfRange):
		return "order_limits"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "other"
}

func ticketIDs(tickets []domain.Ticket) []uuid.UUID {
	ids := make([]uuid.UUID, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

type CheckInInput struct {
	EventID      uuid.UUID
	TicketID     uuid.UUID
	TicketNumber string
	// ExpectedUserID, when set, must match the ticket holder.
	ExpectedUserID *uuid.UUID
}

// CheckIn admits a PAID ticket at the venue.
//
// Returns:
//   - *domain.Ticket: the CHECKED_IN ticket.
//   - error: domain.ErrNotFound, domain.ErrTicketEventMismatch,
//     domain.ErrNotTicketOwner, domain.ErrOutsideCheckInWindow,
//     domain.ErrAlreadyCheckedIn or domain.ErrTicketNotPaid.
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (*domain.Ticket, error) {
	const op = "service.reservation.CheckIn"

	var (
		ticket *domain.Ticket
		err    error
	)
	switch {
	case in.TicketID != uuid.Nil:
		ticket, err = s.store.Tickets().Get(ctx, in.TicketID)
	case in.TicketNumber != "":
		ticket, err = s.store.Tickets().GetByNumber(ctx, in.TicketNumber)
	default:
		return nil, fmt.Errorf("%s: ticket id or number required: %w", op, domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	if ticket.EventID != in.EventID {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrTicketEventMismatch)
	}
	if in.ExpectedUserID != nil && *in.ExpectedUserID != ticket.UserID {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotTicketOwner)
	}

	event, err := s.events.FindEvent(ctx, ticket.EventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	if now.Before(event.StartsAt.Add(-s.cfg.CheckInWindow)) || now.After(event.EndsAt) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrOutsideCheckInWindow)
	}

	if err := checkInStatusErr(ticket.Status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.store.Tickets().Transition(
		ctx, ticket.ID, domain.TicketSourcesOf(domain.TicketCheckedIn), domain.TicketCheckedIn, now,
	)
	if errors.Is(err, repository.ErrStateChanged) {
		// lost a race; report against the status that won
		cur, gerr := s.store.Tickets().Get(ctx, ticket.ID)
		if gerr != nil {
			return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(gerr))
		}
		return nil, fmt.Errorf("%s: %w", op, checkInStatusErr(cur.Status))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	s.sink.Notify(ctx, notify.TicketCheckedIn, map[string]any{
		"ticket_id": updated.ID,
		"event_id":  updated.EventID,
		"user_id":   updated.UserID,
	})

	return updated, nil
}

func checkInStatusErr(status domain.TicketStatus) error {
	switch {
	case status.CanTransitionTo(domain.TicketCheckedIn):
		return nil
	case status == domain.TicketCheckedIn:
		return domain.ErrAlreadyCheckedIn
	}
	return domain.ErrTicketNotPaid
}

// Cancel cancels a RESERVED or PAID ticket owned by requestorID and returns
// its unit to inventory in the same transaction.
//
// Returns:
//   - *domain.Ticket: the CANCELLED ticket.
//   - error: domain.ErrNotFound, domain.ErrNotTicketOwner or
//     domain.ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, ticketID, requestorID uuid.UUID) (*domain.Ticket, error) {
	const op = "service.reservation.Cancel"

	var (
		cancelled *domain.Ticket
		wasPaid   bool
	)

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		t, err := tx.Tickets().Get(ctx, ticketID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		if t.UserID != requestorID {
			return domain.ErrNotTicketOwner
		}
		if t.Status.IsTerminal() {
			return domain.ErrNotCancellable
		}
		wasPaid = t.Status == domain.TicketPaid

		cancelled, err = tx.Tickets().Transition(
			ctx,
			ticketID,
			domain.TicketSourcesOf(domain.TicketCancelled),
			domain.TicketCancelled,
			s.clock.Now(),
		)
		if errors.Is(err, repository.ErrStateChanged) {
			return domain.ErrNotCancellable
		}
		if err != nil {
			return errmap.FromRepo(err)
		}

		if _, err := s.inventory.With(tx).Release(ctx, t.TicketTypeID, 1); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.inventory.Changed(ctx, cancelled.EventID, cancelled.TicketTypeID)
			s.sink.Notify(ctx, notify.TicketCancelled, map[string]any{
				"ticket_id": cancelled.ID,
				"user_id":   cancelled.UserID,
				"was_paid":  wasPaid,
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cancelled, nil
}

// Expire moves a RESERVED ticket to EXPIRED and releases its unit. It returns
// false without touching inventory when the ticket already left RESERVED,
// so repeated or racing calls release at most once.
func (s *Service) Expire(ctx context.Context, ticketID uuid.UUID) (bool, error) {
	const op = "service.reservation.Expire"

	var expired bool

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		expired = false

		t, err := tx.Tickets().Transition(
			ctx,
			ticketID,
			domain.TicketSourcesOf(domain.TicketExpired),
			domain.TicketExpired,
			s.clock.Now(),
		)
		if errors.Is(err, repository.ErrStateChanged) {
			return nil
		}
		if err != nil {
			return errmap.FromRepo(err)
		}

		if _, err := s.inventory.With(tx).Release(ctx, t.TicketTypeID, 1); err != nil {
			return err
		}
		expired = true

		after(func(ctx context.Context) {
			s.inventory.Changed(ctx, t.EventID, t.TicketTypeID)
			s.sink.Notify(ctx, notify.TicketExpired, map[string]any{
				"ticket_id": t.ID,
				"order_id":  t.OrderID,
				"user_id":   t.UserID,
			})
		})

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return expired, nil
}
