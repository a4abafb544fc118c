package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

const paymentColumns = `id, user_id, order_id, amount::text, method, transaction_id, status,
	failure_reason, created_at, updated_at, completed_at`

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p      domain.Payment
		amount string
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.OrderID, &amount, &p.Method, &p.TransactionID, &p.Status,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	); err != nil {
		return nil, err
	}

	if !p.Status.IsValid() {
		return nil, fmt.Errorf("unknown payment status %q", p.Status)
	}

	a, err := parseMoney(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = a

	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Create"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO payments(id, user_id, order_id, amount, method, transaction_id, status,
			failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, p.OrderID, p.Amount.String(), p.Method, p.TransactionID,
		string(p.Status), p.FailureReason, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) ListPendingByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	const op = "postgres.PaymentRepo.ListPendingByOrder"

	rows, err := r.handle().Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE order_id = $1 AND status = 'PENDING'
		 ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanPayment)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *PaymentRepo) LatestByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.LatestByOrder"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		orderID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) error {
	const op = "postgres.PaymentRepo.SetTransactionID"

	tag, err := r.handle().Exec(ctx,
		`UPDATE payments SET transaction_id = $2, updated_at = $3 WHERE id = $1`,
		id, transactionID, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// Transition moves a payment from `from` to `to`. Exactly one concurrent
// caller wins; the others get repository.ErrStateChanged.
func (r *PaymentRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.PaymentStatus,
	reason string,
	at time.Time,
) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Transition"

	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%s: %s to %s: %w", op, from, to, repository.ErrIllegalTransition)
	}

	db := r.handle()

	p, err := scanPayment(db.QueryRow(ctx,
		`UPDATE payments
		 SET status = $3,
		 	failure_reason = CASE WHEN $4 = '' THEN failure_reason ELSE $4 END,
		 	updated_at = $5,
		 	completed_at = CASE WHEN $3 = $6 THEN $5 ELSE completed_at END
		 WHERE id = $1 AND status = $2
		 RETURNING `+paymentColumns,
		id, string(from), string(to), reason, at, string(domain.PaymentCompleted),
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrStateChanged)
}

func (r *PaymentRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	const op = "postgres.PaymentRepo.ListStalePending"

	rows, err := r.handle().Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = 'PENDING' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanPayment)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
