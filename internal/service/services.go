package service

import (
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/logger"
	"github.com/kirinyoku/ticketcore/internal/notify"
	"github.com/kirinyoku/ticketcore/internal/repository"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service/admin"
	"github.com/kirinyoku/ticketcore/internal/service/directory"
	"github.com/kirinyoku/ticketcore/internal/service/inventory"
	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/kirinyoku/ticketcore/internal/service/query"
	"github.com/kirinyoku/ticketcore/internal/service/reservation"
	"github.com/kirinyoku/ticketcore/internal/service/sweeper"
)

type Services struct {
	Inventory   *inventory.Service
	Reservation *reservation.Service
	Payments    *payment.Orchestrator
	Sweeper     *sweeper.Sweeper
	Query       *query.Service
	Admin       *admin.Service
}

type Config struct {
	Inventory   inventory.Config
	Reservation reservation.Config
	Payment     payment.Config
	Sweeper     sweeper.Config
	Query       query.Config
}

// Deps carries the infrastructure the services run on. Cache, PubSub and
// Limiter are optional.
type Deps struct {
	Store    repository.Store
	Cache    *redisrepo.Cache
	PubSub   *redisrepo.InventoryPubSub
	Limiter  reservation.RateLimiter
	Gateways *payment.Registry
	Sink     notify.Sink
	Clock    clock.Clock
}

func NewServices(deps Deps, cfg Config) *Services {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Sink == nil {
		deps.Sink = notify.Nop()
	}
	if deps.Gateways == nil {
		deps.Gateways = payment.NewRegistry()
	}

	inv := inventory.New(
		deps.Store,
		deps.Cache,
		deps.PubSub,
		deps.Clock,
		cfg.Inventory,
		logger.WithComponent("inventory"),
	)

	dir := directory.New(deps.Store)

	res := reservation.New(reservation.Deps{
		Store:     deps.Store,
		Inventory: inv,
		Users:     dir,
		Events:    dir,
		Limiter:   deps.Limiter,
		Sink:      deps.Sink,
		Clock:     deps.Clock,
		Logger:    logger.WithComponent("reservation"),
	}, cfg.Reservation)

	pay := payment.NewOrchestrator(
		deps.Store,
		deps.Gateways,
		deps.Sink,
		deps.Clock,
		cfg.Payment,
		logger.WithComponent("payment"),
	)

	return &Services{
		Inventory:   inv,
		Reservation: res,
		Payments:    pay,
		Sweeper: sweeper.New(
			deps.Store.Tickets(),
			res,
			pay,
			deps.Clock,
			cfg.Sweeper,
			logger.WithComponent("sweeper"),
		),
		Query: query.New(deps.Store, deps.Cache, cfg.Query),
		Admin: admin.New(deps.Store, inv, deps.Clock),
	}
}
