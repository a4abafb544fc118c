package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type TicketRepo struct {
	v view
}

func (r *TicketRepo) CreateBatch(_ context.Context, tickets []domain.Ticket) error {
	const op = "memory.TicketRepo.CreateBatch"

	return r.v.do(func(d *data) error {
		numbers := make(map[string]struct{}, len(d.tickets))
		for _, t := range d.tickets {
			numbers[t.Number] = struct{}{}
		}

		for _, t := range tickets {
			if !t.Status.IsValid() {
				return fmt.Errorf("%s: unknown status %q", op, t.Status)
			}
			if _, ok := d.tickets[t.ID]; ok {
				return fmt.Errorf("%s: %w", op, repository.ErrConflict)
			}
			if _, ok := numbers[t.Number]; ok {
				return fmt.Errorf("%s: %w", op, repository.ErrConflict)
			}
			numbers[t.Number] = struct{}{}
		}

		for _, t := range tickets {
			d.tickets[t.ID] = t
		}
		return nil
	})
}

func (r *TicketRepo) Get(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	var out domain.Ticket
	err := r.v.do(func(d *data) error {
		t, ok := d.tickets[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.GetByNumber"

	var out domain.Ticket
	err := r.v.do(func(d *data) error {
		for _, t := range d.tickets {
			if t.Number == number {
				out = t
				return nil
			}
		}
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketRepo) filter(match func(t domain.Ticket) bool) []domain.Ticket {
	var out []domain.Ticket
	_ = r.v.do(func(d *data) error {
		for _, t := range d.tickets {
			if match(t) {
				out = append(out, t)
			}
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})

	return out
}

func (r *TicketRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool { return t.OrderID == orderID }), nil
}

func (r *TicketRepo) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool {
		return t.PaymentID != nil && *t.PaymentID == paymentID
	}), nil
}

func stamp(t *domain.Ticket, to domain.TicketStatus, at time.Time) {
	at2 := at
	switch to {
	case domain.TicketPaid:
		t.PurchasedAt = &at2
	case domain.TicketCheckedIn:
		t.CheckedInAt = &at2
	case domain.TicketCancelled:
		t.CancelledAt = &at2
	case domain.TicketExpired:
		t.ExpiredAt = &at2
	}
	t.Status = to
}

func (r *TicketRepo) Transition(
	_ context.Context,
	id uuid.UUID,
	from []domain.TicketStatus,
	to domain.TicketStatus,
	at time.Time,
) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Transition"

	if !domain.TicketTransitionAllowed(from, to) {
		return nil, fmt.Errorf("%s: %s to %s: %w", op, from, to, repository.ErrIllegalTransition)
	}

	var out domain.Ticket
	err := r.v.do(func(d *data) error {
		t, ok := d.tickets[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		if !slices.Contains(from, t.Status) {
			return fmt.Errorf("%s: %w", op, repository.ErrStateChanged)
		}

		stamp(&t, to, at)
		d.tickets[id] = t
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketRepo) AttachPayment(_ context.Context, ticketIDs []uuid.UUID, paymentID uuid.UUID) (int, error) {
	var n int
	_ = r.v.do(func(d *data) error {
		for _, id := range ticketIDs {
			t, ok := d.tickets[id]
			if !ok || t.Status != domain.TicketReserved {
				continue
			}
			pid := paymentID
			t.PaymentID = &pid
			d.tickets[id] = t
			n++
		}
		return nil
	})

	return n, nil
}

func (r *TicketRepo) MarkPaid(_ context.Context, paymentID uuid.UUID, at time.Time) (int, error) {
	var n int
	_ = r.v.do(func(d *data) error {
		for id, t := range d.tickets {
			if t.PaymentID == nil || *t.PaymentID != paymentID || !t.Status.CanTransitionTo(domain.TicketPaid) {
				continue
			}
			stamp(&t, domain.TicketPaid, at)
			d.tickets[id] = t
			n++
		}
		return nil
	})

	return n, nil
}

func (r *TicketRepo) ListStaleReserved(_ context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	out := r.filter(func(t domain.Ticket) bool {
		return t.Status == domain.TicketReserved && t.CreatedAt.Before(cutoff)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
