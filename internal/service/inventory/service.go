package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/domain"
	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/kirinyoku/ticketcore/internal/repository"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
	"go.uber.org/zap"
)

type Config struct {
	CacheTTL time.Duration
}

// Service owns quantity_sold for every ticket type. Reserve and Release are
// the only paths that change it.
type Service struct {
	store  repository.Store
	tx     repository.Tx
	cache  *redisrepo.Cache
	pubsub *redisrepo.InventoryPubSub
	clock  clock.Clock
	cfg    Config
	log    *zap.Logger
}

// New builds the inventory service. cache and pubsub may be nil.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.InventoryPubSub,
	clk clock.Clock,
	cfg Config,
	log *zap.Logger,
) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		clock:  clk,
		cfg:    cfg,
		log:    log,
	}
}

// With returns a copy of the service whose operations run inside tx.
func (s *Service) With(tx repository.Tx) *Service {
	cp := *s
	cp.tx = tx
	return &cp
}

func (s *Service) repo() repository.TicketTypeRepository {
	if s.tx != nil {
		return s.tx.TicketTypes()
	}
	return s.store.TicketTypes()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.TicketType, error) {
	const op = "service.inventory.Get"

	tt, err := s.repo().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return tt, nil
}

// Reserve atomically takes quantity units of a ticket type.
//
// Parameters:
//   - ctx: request-scoped context.
//   - ticketTypeID: ticket type to reserve from.
//   - quantity: number of units, must be positive.
//
// Returns:
//   - *domain.TicketType: the ticket type after the increment.
//   - error: domain.ErrInvalidQuantity, domain.ErrNotFound,
//     domain.ErrTicketTypeInactive, domain.ErrOutsideSaleWindow or
//     domain.ErrInsufficientInventory. Nothing changes on error.
func (s *Service) Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "service.inventory.Reserve"

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidQuantity)
	}
	if quantity > domain.MaxQuantity {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrQuantityOutOfRange)
	}

	tt, err := s.repo().Reserve(ctx, ticketTypeID, quantity, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	if s.tx == nil {
		s.Changed(ctx, tt.EventID, tt.ID)
	}

	return tt, nil
}

// Release returns quantity units to a ticket type. quantity_sold never drops
// below zero.
func (s *Service) Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "service.inventory.Release"

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidQuantity)
	}

	tt, err := s.repo().Release(ctx, ticketTypeID, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	if s.tx == nil {
		s.Changed(ctx, tt.EventID, tt.ID)
	}

	return tt, nil
}

// GrowQuantity raises the total quantity of a ticket type.
func (s *Service) GrowQuantity(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "service.inventory.GrowQuantity"

	if quantity > domain.MaxQuantity {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrQuantityOutOfRange)
	}

	tt, err := s.repo().GrowQuantity(ctx, ticketTypeID, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	if s.tx == nil {
		s.Changed(ctx, tt.EventID, tt.ID)
	}

	return tt, nil
}

// CheckAvailability is an advisory read: it reports whether quantity units
// could be reserved right now. The answer may be stale by up to the cache
// TTL and is never used on the reservation path.
func (s *Service) CheckAvailability(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (bool, error) {
	const op = "service.inventory.CheckAvailability"

	if quantity <= 0 {
		return false, fmt.Errorf("%s: %w", op, domain.ErrInvalidQuantity)
	}

	tt, err := s.cachedGet(ctx, ticketTypeID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tt.Active && tt.OnSale(s.clock.Now()) && tt.Available() >= quantity, nil
}

func (s *Service) cachedGet(ctx context.Context, id uuid.UUID) (domain.TicketType, error) {
	load := func(ctx context.Context) (domain.TicketType, error) {
		tt, err := s.store.TicketTypes().Get(ctx, id)
		if err != nil {
			return domain.TicketType{}, errmap.FromRepo(err)
		}
		return *tt, nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyTicketType(id), s.cfg.CacheTTL, load)
}

// Changed drops cached copies of the given ticket types and tells other
// instances about the change. Call it after the owning transaction commits.
func (s *Service) Changed(ctx context.Context, eventID uuid.UUID, ticketTypeIDs ...uuid.UUID) {
	if s.cache != nil {
		if err := s.cache.InvalidateTicketTypes(ctx, eventID, ticketTypeIDs...); err != nil {
			s.log.Warn("invalidate ticket type cache", zap.Stringer("event_id", eventID), zap.Error(err))
		}
	}

	if s.pubsub != nil {
		for _, id := range ticketTypeIDs {
			if err := s.pubsub.PublishTicketTypeChanged(ctx, eventID, id); err != nil {
				s.log.Warn("publish ticket type change", zap.Stringer("ticket_type_id", id), zap.Error(err))
			}
		}
	}
}
