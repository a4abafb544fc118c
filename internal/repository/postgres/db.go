package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

const defaultTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store is the Postgres implementation of repository.Store.
type Store struct {
	pool     *pgxpool.Pool
	attempts int
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		attempts: defaultTxAttempts,
	}
}

// RunTx runs fn in a READ COMMITTED transaction. Inventory and status
// changes are single conditional updates, so row locks alone keep them
// consistent. Serialization failures and deadlocks are retried.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt >= s.attempts || ctx.Err() != nil {
			return err
		}
	}
}

func (s *Store) runTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{pool: s.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) TicketTypes() repository.TicketTypeRepository {
	return &TicketTypeRepo{pool: s.pool}
}

func (s *Store) Tickets() repository.TicketRepository { return &TicketRepo{pool: s.pool} }
func (s *Store) Payments() repository.PaymentRepository { return &PaymentRepo{pool: s.pool} }
func (s *Store) Events() repository.EventRepository     { return &EventRepo{pool: s.pool} }
func (s *Store) Users() repository.UserRepository       { return &UserRepo{pool: s.pool} }

type txRepos struct {
	pool *pgxpool.Pool
	db   DB
}

func (t txRepos) TicketTypes() repository.TicketTypeRepository {
	return (&TicketTypeRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) Tickets() repository.TicketRepository {
	return (&TicketRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) Payments() repository.PaymentRepository {
	return (&PaymentRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) Events() repository.EventRepository {
	return (&EventRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) Users() repository.UserRepository {
	return (&UserRepo{pool: t.pool}).With(t.db)
}
