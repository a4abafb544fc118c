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

const ticketTypeColumns = `id, event_id, name, price::text, quantity, quantity_sold,
	sale_start, sale_end, min_per_order, max_per_order, active, created_at, updated_at`

type TicketTypeRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketTypeRepo) With(db DB) *TicketTypeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketTypeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanTicketType(row pgx.Row) (*domain.TicketType, error) {
	var (
		tt    domain.TicketType
		price string
	)
	if err := row.Scan(
		&tt.ID, &tt.EventID, &tt.Name, &price, &tt.Quantity, &tt.QuantitySold,
		&tt.SaleStart, &tt.SaleEnd, &tt.MinPerOrder, &tt.MaxPerOrder, &tt.Active,
		&tt.CreatedAt, &tt.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p, err := parseMoney(price)
	if err != nil {
		return nil, err
	}
	tt.Price = p

	return &tt, nil
}

func (r *TicketTypeRepo) Create(ctx context.Context, tt *domain.TicketType) error {
	const op = "postgres.TicketTypeRepo.Create"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO ticket_types(id, event_id, name, price, quantity, quantity_sold,
			sale_start, sale_end, min_per_order, max_per_order, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		tt.ID, tt.EventID, tt.Name, tt.Price.String(), tt.Quantity, tt.QuantitySold,
		tt.SaleStart, tt.SaleEnd, tt.MinPerOrder, tt.MaxPerOrder, tt.Active,
		tt.CreatedAt, tt.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a ticket type by its ID.
//
// Returns:
//   - *domain.TicketType: the ticket type when found.
//   - error: repository.ErrNotFound if the ticket type does not exist.
func (r *TicketTypeRepo) Get(ctx context.Context, id uuid.UUID) (*domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.Get"

	tt, err := scanTicketType(r.handle().QueryRow(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tt, nil
}

func (r *TicketTypeRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.ListByEvent"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketTypeColumns+`
		 FROM ticket_types
		 WHERE event_id = $1
		 ORDER BY price, name`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collect(rows, scanTicketType)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Reserve atomically takes qty units from a ticket type.
//
// The increment, the capacity check, the active flag and the sale window are
// evaluated by one UPDATE, so concurrent callers serialize on the row lock
// and can never push quantity_sold past quantity.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: ticket type to reserve from.
//   - qty: number of units, must be positive.
//   - now: reference time for the sale window check.
//
// Returns:
//   - *domain.TicketType: the row after the increment.
//   - error: repository.ErrNotFound, repository.ErrInactive,
//     repository.ErrOutsideSaleWindow or repository.ErrInsufficientQuantity.
func (r *TicketTypeRepo) Reserve(
	ctx context.Context,
	id uuid.UUID,
	qty int,
	now time.Time,
) (*domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.Reserve"

	db := r.handle()

	tt, err := scanTicketType(db.QueryRow(ctx,
		`UPDATE ticket_types
		 SET quantity_sold = quantity_sold + $2, updated_at = $3
		 WHERE id = $1
		 	AND active
		 	AND $3 BETWEEN sale_start AND sale_end
		 	AND $2 <= quantity - quantity_sold
		 RETURNING `+ticketTypeColumns,
		id, qty, now,
	))
	if err == nil {
		return tt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	return nil, fmt.Errorf("%s: %w", op, r.diagnoseReserve(ctx, db, id, qty, now))
}

func (r *TicketTypeRepo) diagnoseReserve(
	ctx context.Context,
	db DB,
	id uuid.UUID,
	qty int,
	now time.Time,
) error {
	cur, err := scanTicketType(db.QueryRow(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`,
		id,
	))
	if err != nil {
		return translateDBErr(err)
	}

	switch {
	case !cur.Active:
		return repository.ErrInactive
	case !cur.OnSale(now):
		return repository.ErrOutsideSaleWindow
	case cur.Available() < qty:
		return repository.ErrInsufficientQuantity
	}

	// the row changed between the update and the read; report it as sold out
	return repository.ErrInsufficientQuantity
}

func (r *TicketTypeRepo) Release(ctx context.Context, id uuid.UUID, qty int) (*domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.Release"

	tt, err := scanTicketType(r.handle().QueryRow(ctx,
		`UPDATE ticket_types
		 SET quantity_sold = GREATEST(quantity_sold - $2, 0), updated_at = now()
		 WHERE id = $1
		 RETURNING `+ticketTypeColumns,
		id, qty,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tt, nil
}

func (r *TicketTypeRepo) GrowQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "postgres.TicketTypeRepo.GrowQuantity"

	db := r.handle()

	tt, err := scanTicketType(db.QueryRow(ctx,
		`UPDATE ticket_types
		 SET quantity = $2, updated_at = now()
		 WHERE id = $1 AND $2 >= quantity
		 RETURNING `+ticketTypeColumns,
		id, quantity,
	))
	if err == nil {
		return tt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ticket_types WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrQuantityShrink)
}
