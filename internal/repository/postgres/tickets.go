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

const ticketColumns = `id, user_id, event_id, ticket_type_id, order_id, number, price::text,
	status, payment_id, created_at, purchased_at, checked_in_at, cancelled_at, expired_at`

// transitionColumn is the timestamp stamped when a ticket enters a status.
var transitionColumn = map[domain.TicketStatus]string{
	domain.TicketPaid:      "purchased_at",
	domain.TicketCheckedIn: "checked_in_at",
	domain.TicketCancelled: "cancelled_at",
	domain.TicketExpired:   "expired_at",
}

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t     domain.Ticket
		price string
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.EventID, &t.TicketTypeID, &t.OrderID, &t.Number, &price,
		&t.Status, &t.PaymentID, &t.CreatedAt, &t.PurchasedAt, &t.CheckedInAt,
		&t.CancelledAt, &t.ExpiredAt,
	); err != nil {
		return nil, err
	}

	if !t.Status.IsValid() {
		return nil, fmt.Errorf("unknown ticket status %q", t.Status)
	}

	p, err := parseMoney(price)
	if err != nil {
		return nil, err
	}
	t.Price = p

	return &t, nil
}

func statusStrings(ss []domain.TicketStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// CreateBatch inserts tickets in one round trip.
func (r *TicketRepo) CreateBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgres.TicketRepo.CreateBatch"

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(id, user_id, event_id, ticket_type_id, order_id, number,
				price, status, payment_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)`,
			t.ID, t.UserID, t.EventID, t.TicketTypeID, t.OrderID, t.Number,
			t.Price.String(), string(t.Status), t.PaymentID, t.CreatedAt,
		)
	}
	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Get"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetByNumber"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE number = $1`, number,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByOrder"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY created_at, number`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanTicket)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByPayment"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE payment_id = $1 ORDER BY number`,
		paymentID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanTicket)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Transition moves a ticket between statuses with a conditional update.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: ticket to move.
//   - from: statuses the ticket must currently be in.
//   - to: target status.
//   - at: timestamp recorded for the target status.
//
// Returns:
//   - *domain.Ticket: the ticket after the update.
//   - error: repository.ErrNotFound if the ticket does not exist.
//   - error: repository.ErrStateChanged if the ticket is in another status.
func (r *TicketRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []domain.TicketStatus,
	to domain.TicketStatus,
	at time.Time,
) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Transition"

	if !domain.TicketTransitionAllowed(from, to) {
		return nil, fmt.Errorf("%s: %s to %s: %w", op, from, to, repository.ErrIllegalTransition)
	}

	col, ok := transitionColumn[to]
	if !ok {
		return nil, fmt.Errorf("%s: no transition into %s", op, to)
	}

	db := r.handle()

	t, err := scanTicket(db.QueryRow(ctx,
		`UPDATE tickets
		 SET status = $3, `+col+` = $4
		 WHERE id = $1 AND status = ANY($2)
		 RETURNING `+ticketColumns,
		id, statusStrings(from), string(to), at,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrStateChanged)
}

func (r *TicketRepo) AttachPayment(ctx context.Context, ticketIDs []uuid.UUID, paymentID uuid.UUID) (int, error) {
	const op = "postgres.TicketRepo.AttachPayment"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets
		 SET payment_id = $2
		 WHERE id = ANY($1) AND status = $3`,
		ticketIDs, paymentID, string(domain.TicketReserved),
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *TicketRepo) MarkPaid(ctx context.Context, paymentID uuid.UUID, at time.Time) (int, error) {
	const op = "postgres.TicketRepo.MarkPaid"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets
		 SET status = $3, purchased_at = $2
		 WHERE payment_id = $1 AND status = ANY($4)`,
		paymentID, at, string(domain.TicketPaid), statusStrings(domain.TicketSourcesOf(domain.TicketPaid)),
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *TicketRepo) ListStaleReserved(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListStaleReserved"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = 'RESERVED' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanTicket)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
