// Package sweeper reclaims inventory held by reservations that were never
// paid and times out payments the gateway never reported on.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/metrics"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"go.uber.org/zap"
)

type Expirer interface {
	Expire(ctx context.Context, ticketID uuid.UUID) (bool, error)
}

type PaymentExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Config struct {
	Interval           time.Duration
	ReservationTimeout time.Duration
	BatchSize          int
	// PaymentTimeout of zero disables the payment pass.
	PaymentTimeout time.Duration
}

type Result struct {
	Scanned          int
	Expired          int
	Skipped          int
	Errors           int
	PaymentsTimedOut int
}

type Sweeper struct {
	tickets  repository.TicketRepository
	expirer  Expirer
	payments PaymentExpirer
	clock    clock.Clock
	cfg      Config
	log      *zap.Logger
}

// New builds a sweeper. payments may be nil.
func New(
	tickets repository.TicketRepository,
	expirer Expirer,
	payments PaymentExpirer,
	clk clock.Clock,
	cfg Config,
	log *zap.Logger,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.ReservationTimeout <= 0 {
		cfg.ReservationTimeout = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.PaymentTimeout < 0 {
		cfg.PaymentTimeout = 0
	}

	return &Sweeper{
		tickets:  tickets,
		expirer:  expirer,
		payments: payments,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

// Run sweeps once immediately, then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("reservation_timeout", s.cfg.ReservationTimeout),
		zap.Duration("payment_timeout", s.cfg.PaymentTimeout),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce expires every RESERVED ticket older than ReservationTimeout and,
// when enabled, fails PENDING payments older than PaymentTimeout. Per-item
// failures are logged and counted; the returned error is only set when a
// listing query fails.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	const op = "sweeper.SweepOnce"

	started := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	var res Result
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.ReservationTimeout)

	for ctx.Err() == nil {
		batch, err := s.tickets.ListStaleReserved(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		if len(batch) == 0 {
			break
		}
		res.Scanned += len(batch)

		progress := 0
		for _, t := range batch {
			expired, err := s.expirer.Expire(ctx, t.ID)
			switch {
			case err != nil:
				res.Errors++
				metrics.SweepErrors.Inc()
				s.log.Warn("expire reservation", zap.Stringer("ticket_id", t.ID), zap.Error(err))
			case expired:
				res.Expired++
				progress++
				metrics.TicketsExpired.Inc()
			default:
				res.Skipped++
				progress++
			}
		}

		// a batch of failures would be listed again forever
		if progress == 0 || len(batch) < s.cfg.BatchSize {
			break
		}
	}

	if s.payments != nil && s.cfg.PaymentTimeout > 0 {
		n, err := s.payments.ExpireStale(ctx, now.Add(-s.cfg.PaymentTimeout), s.cfg.BatchSize)
		if err != nil {
			res.Errors++
			metrics.SweepErrors.Inc()
			s.log.Warn("time out payments", zap.Error(err))
		}
		res.PaymentsTimedOut = n
		metrics.PaymentsTimedOut.Add(float64(n))
	}

	if res.Scanned > 0 || res.PaymentsTimedOut > 0 {
		s.log.Info("sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", res.Errors),
			zap.Int("payments_timed_out", res.PaymentsTimedOut),
		)
	}

	return res, nil
}
