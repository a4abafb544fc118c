package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type PaymentRepo struct {
	v view
}

func (r *PaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	const op = "memory.PaymentRepo.Create"

	if !p.Status.IsValid() {
		return fmt.Errorf("%s: unknown status %q", op, p.Status)
	}

	return r.v.do(func(d *data) error {
		if _, ok := d.payments[p.ID]; ok {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *PaymentRepo) Get(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "memory.PaymentRepo.Get"

	var out domain.Payment
	err := r.v.do(func(d *data) error {
		p, ok := d.payments[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *PaymentRepo) byOrder(orderID uuid.UUID) []domain.Payment {
	var out []domain.Payment
	_ = r.v.do(func(d *data) error {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out
}

func (r *PaymentRepo) ListPendingByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range r.byOrder(orderID) {
		if p.Status == domain.PaymentPending {
			out = append(out, p)
		}
	}

	return out, nil
}

func (r *PaymentRepo) LatestByOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	const op = "memory.PaymentRepo.LatestByOrder"

	all := r.byOrder(orderID)
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &all[len(all)-1], nil
}

func (r *PaymentRepo) SetTransactionID(_ context.Context, id uuid.UUID, transactionID string, at time.Time) error {
	const op = "memory.PaymentRepo.SetTransactionID"

	return r.v.do(func(d *data) error {
		p, ok := d.payments[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		txID := transactionID
		p.TransactionID = &txID
		p.UpdatedAt = at
		d.payments[id] = p
		return nil
	})
}

func (r *PaymentRepo) Transition(
	_ context.Context,
	id uuid.UUID,
	from, to domain.PaymentStatus,
	reason string,
	at time.Time,
) (*domain.Payment, error) {
	const op = "memory.PaymentRepo.Transition"

	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%s: %s to %s: %w", op, from, to, repository.ErrIllegalTransition)
	}

	var out domain.Payment
	err := r.v.do(func(d *data) error {
		p, ok := d.payments[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		if p.Status != from {
			return fmt.Errorf("%s: %w", op, repository.ErrStateChanged)
		}

		p.Status = to
		p.UpdatedAt = at
		if reason != "" {
			p.FailureReason = reason
		}
		if to == domain.PaymentCompleted {
			completed := at
			p.CompletedAt = &completed
		}
		d.payments[id] = p
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *PaymentRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	_ = r.v.do(func(d *data) error {
		for _, p := range d.payments {
			if p.Status == domain.PaymentPending && p.CreatedAt.Before(cutoff) {
				out = append(out, p)
			}
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
