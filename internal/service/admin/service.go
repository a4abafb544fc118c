package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
	"github.com/kirinyoku/ticketcore/internal/service/inventory"
	"github.com/kirinyoku/ticketcore/internal/uow"
	"github.com/shopspring/decimal"
)

// Service holds organizer operations.
type Service struct {
	store     repository.Store
	uow       *uow.UoW
	inventory *inventory.Service
	clock     clock.Clock
}

func New(store repository.Store, inv *inventory.Service, clk clock.Clock) *Service {
	return &Service{
		store:     store,
		uow:       uow.NewUoW(store),
		inventory: inv,
		clock:     clk,
	}
}

func (s *Service) CreateUser(ctx context.Context, email, name string) (*domain.User, error) {
	const op = "service.admin.CreateUser"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%s: email required: %w", op, domain.ErrInvalidInput)
	}

	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return u, nil
}

type CreateEventInput struct {
	OrganizerID uuid.UUID
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time
}

// CreateEvent creates a DRAFT event.
//
// Returns:
//   - *domain.Event: the created event.
//   - error: domain.ErrInvalidInput for a blank title or an end not after the
//     start; domain.ErrNotFound for an unknown organizer.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error) {
	const op = "service.admin.CreateEvent"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%s: title required: %w", op, domain.ErrInvalidInput)
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, fmt.Errorf("%s: event must end after it starts: %w", op, domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	e := &domain.Event{
		ID:          uuid.New(),
		OrganizerID: in.OrganizerID,
		Title:       title,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Status:      domain.EventDraft,
		CreatedAt:   now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		if _, err := tx.Users().Get(ctx, in.OrganizerID); err != nil {
			return errmap.FromRepo(err)
		}
		return errmap.FromRepo(tx.Events().Create(ctx, e))
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

func (s *Service) PublishEvent(ctx context.Context, id uuid.UUID) error {
	return s.setEventStatus(ctx, "service.admin.PublishEvent", id, domain.EventPublished)
}

func (s *Service) CancelEvent(ctx context.Context, id uuid.UUID) error {
	return s.setEventStatus(ctx, "service.admin.CancelEvent", id, domain.EventCancelled)
}

func (s *Service) setEventStatus(ctx context.Context, op string, id uuid.UUID, status domain.EventStatus) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		e, err := tx.Events().Get(ctx, id)
		if err != nil {
			return errmap.FromRepo(err)
		}
		if e.Status == domain.EventCancelled && status != domain.EventCancelled {
			return domain.ErrInvalidStateTransition
		}
		return errmap.FromRepo(tx.Events().SetStatus(ctx, id, status))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type CreateTicketTypeInput struct {
	EventID     uuid.UUID
	Name        string
	Price       decimal.Decimal
	Quantity    int
	SaleStart   time.Time
	SaleEnd     time.Time
	MinPerOrder int
	MaxPerOrder int
}

// CreateTicketType adds an active ticket type to an event.
//
// Returns:
//   - *domain.TicketType: the created ticket type with nothing sold.
//   - error: domain.ErrInvalidInput on a blank name, negative price,
//     non-positive quantity, empty sale window or inconsistent order limits.
//   - error: domain.ErrNotFound for an unknown event.
func (s *Service) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (*domain.TicketType, error) {
	const op = "service.admin.CreateTicketType"

	if err := validateTicketType(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	tt := &domain.TicketType{
		ID:          uuid.New(),
		EventID:     in.EventID,
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Quantity:    in.Quantity,
		SaleStart:   in.SaleStart.UTC(),
		SaleEnd:     in.SaleEnd.UTC(),
		MinPerOrder: in.MinPerOrder,
		MaxPerOrder: in.MaxPerOrder,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		if _, err := tx.Events().Get(ctx, in.EventID); err != nil {
			return errmap.FromRepo(err)
		}
		if err := tx.TicketTypes().Create(ctx, tt); err != nil {
			return errmap.FromRepo(err)
		}
		after(func(ctx context.Context) {
			s.inventory.Changed(ctx, tt.EventID, tt.ID)
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tt, nil
}

func validateTicketType(in CreateTicketTypeInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("name required: %w", domain.ErrInvalidInput)
	case in.Price.IsNegative():
		return fmt.Errorf("price must not be negative: %w", domain.ErrInvalidInput)
	case in.Quantity <= 0 || in.Quantity > domain.MaxQuantity:
		return fmt.Errorf("quantity out of range: %w", domain.ErrInvalidInput)
	case !in.SaleEnd.After(in.SaleStart):
		return fmt.Errorf("sale window is empty: %w", domain.ErrInvalidInput)
	case in.MinPerOrder < 0 || in.MaxPerOrder < 0:
		return fmt.Errorf("order limits must not be negative: %w", domain.ErrInvalidInput)
	case in.MaxPerOrder > 0 && in.MinPerOrder > in.MaxPerOrder:
		return fmt.Errorf("min per order exceeds max: %w", domain.ErrInvalidInput)
	}
	return nil
}

// GrowQuantity raises the number of units a ticket type can sell.
func (s *Service) GrowQuantity(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "service.admin.GrowQuantity"

	tt, err := s.inventory.GrowQuantity(ctx, ticketTypeID, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tt, nil
}
