package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/kirinyoku/ticketcore/internal/repository"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
)

type Config struct {
	TicketTypesTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

// New builds the read side. cache may be nil.
func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.TicketTypesTTL <= 0 {
		cfg.TicketTypesTTL = 5 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	e, err := s.store.Events().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return e, nil
}

func (s *Service) GetTicket(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "service.query.GetTicket"

	t, err := s.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return t, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "service.query.GetPayment"

	p, err := s.store.Payments().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return p, nil
}

// GetOrder assembles an order from its tickets. PaymentStatus reflects the
// most recent payment attempt, PENDING when there is none.
//
// Returns:
//   - *domain.Order: the order with every ticket, whatever its status.
//   - error: domain.ErrNotFound if no ticket carries orderID.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.query.GetOrder"

	tickets, err := s.store.Tickets().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	status := domain.PaymentPending
	p, err := s.store.Payments().LatestByOrder(ctx, orderID)
	switch {
	case err == nil:
		status = p.Status
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.Order{
		ID:            orderID,
		EventID:       tickets[0].EventID,
		BuyerID:       tickets[0].UserID,
		Tickets:       tickets,
		TotalAmount:   domain.OrderTotal(tickets),
		PaymentStatus: status,
	}, nil
}

// ListTicketTypes returns the ticket types of an event, read through the
// cache.
func (s *Service) ListTicketTypes(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	const op = "service.query.ListTicketTypes"

	load := func(ctx context.Context) ([]domain.TicketType, error) {
		if _, err := s.store.Events().Get(ctx, eventID); err != nil {
			return nil, errmap.FromRepo(err)
		}
		tts, err := s.store.TicketTypes().ListByEvent(ctx, eventID)
		if err != nil {
			return nil, errmap.FromRepo(err)
		}
		return tts, nil
	}

	var (
		tts []domain.TicketType
		err error
	)
	if s.cache == nil {
		tts, err = load(ctx)
	} else {
		tts, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyEventTicketTypes(eventID), s.cfg.TicketTypesTTL, load)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tts, nil
}
