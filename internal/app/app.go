package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/config"
	"github.com/kirinyoku/ticketcore/internal/gateway/sandbox"
	"github.com/kirinyoku/ticketcore/internal/logger"
	"github.com/kirinyoku/ticketcore/internal/notify"
	"github.com/kirinyoku/ticketcore/internal/postgres"
	"github.com/kirinyoku/ticketcore/internal/redis"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"github.com/kirinyoku/ticketcore/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/ticketcore/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service"
	"github.com/kirinyoku/ticketcore/internal/service/inventory"
	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/kirinyoku/ticketcore/internal/service/query"
	"github.com/kirinyoku/ticketcore/internal/service/reservation"
	"github.com/kirinyoku/ticketcore/internal/service/sweeper"
	httpgin "github.com/kirinyoku/ticketcore/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Migrate applies the database schema on startup.
	Migrate bool
}

type App struct {
	cfg        *config.Config
	log        *zap.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.InventoryPubSub
	cache      *redisrepo.Cache
	sink       *notify.PublisherSink
	closers    []func()
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, log: log}

	store, err := a.openStore(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		rdb     *goredis.Client
		limiter reservation.RateLimiter
		idem    *redisrepo.IdempotencyStore
		sink    notify.Sink = notify.NewLogSink(logger.WithComponent("notify"))
	)

	if cfg.Redis.Enabled {
		rdb, err = redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		a.cache = redisrepo.New(rdb)
		a.pubsub = redisrepo.NewInventoryPubSub(rdb)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Tickets.IdempotencyTTL)
		if cfg.Tickets.PurchaseRateLimit > 0 {
			limiter = redisrepo.NewSlidingWindowLimiter(
				rdb,
				"purchase",
				cfg.Tickets.PurchaseRateLimit,
				cfg.Tickets.PurchaseRateWindow,
			)
		}

		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: rdb,
		}, logger.NewWatermill(logger.WithComponent("watermill")))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize notification publisher: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })

		a.sink = notify.NewPublisherSink(pub, logger.WithComponent("notify"), 0)
		sink = a.sink
	} else {
		log.Warn("redis disabled: no cache, rate limit, idempotency or notification stream")
	}

	registry, err := buildGateways(cfg.Gateways)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(registry.Names()) == 0 {
		log.Warn("no payment gateways configured")
	}

	a.services = service.NewServices(service.Deps{
		Store:    store,
		Cache:    a.cache,
		PubSub:   a.pubsub,
		Limiter:  limiter,
		Gateways: registry,
		Sink:     sink,
	}, service.Config{
		Inventory:   inventory.Config{CacheTTL: cfg.Tickets.CacheTTL},
		Reservation: reservation.Config{CheckInWindow: cfg.Tickets.CheckInWindow},
		Payment:     payment.Config{GatewayTimeout: cfg.Tickets.GatewayTimeout},
		Sweeper: sweeper.Config{
			Interval:           cfg.Tickets.SweepInterval,
			ReservationTimeout: cfg.Tickets.ReservationTimeout,
			BatchSize:          cfg.Tickets.SweepBatchSize,
			PaymentTimeout:     cfg.Tickets.PaymentTimeout,
		},
		Query: query.Config{TicketTypesTTL: cfg.Tickets.CacheTTL},
	})

	router := httpgin.NewRouter(a.services, idem, logger.WithComponent("http"))

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) (repository.Store, error) {
	if a.cfg.Store == config.StoreMemory {
		a.log.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN(), Migrate: opts.Migrate})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	return postgresrepo.NewStore(pool), nil
}

func buildGateways(cfgs []config.GatewayConfig) (*payment.Registry, error) {
	registry := payment.NewRegistry()

	for _, gc := range cfgs {
		switch gc.Kind {
		case "sandbox":
			gw, err := sandbox.New(sandbox.Config{Name: gc.Name, Secret: gc.Secret, BaseURL: gc.BaseURL})
			if err != nil {
				return nil, fmt.Errorf("gateway %q: %w", gc.Name, err)
			}
			registry.Register(gw)
		default:
			return nil, fmt.Errorf("gateway %q: unknown kind %q", gc.Name, gc.Kind)
		}
	}

	return registry, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.log.Info("HTTP server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.services.Sweeper.Run(gCtx)
	})

	if a.sink != nil {
		g.Go(func() error {
			return a.sink.Run(gCtx)
		})
	}

	if a.pubsub != nil && a.cache != nil {
		// drop cache entries repopulated by reads that raced a writer on
		// another instance
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID, ticketTypeID uuid.UUID) {
				if err := a.cache.InvalidateTicketTypes(ctx, eventID, ticketTypeID); err != nil {
					a.log.Warn("invalidate on change", zap.Stringer("ticket_type_id", ticketTypeID), zap.Error(err))
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.log.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
