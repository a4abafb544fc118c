package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/metrics"
	"github.com/kirinyoku/ticketcore/internal/notify"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
	"github.com/kirinyoku/ticketcore/internal/uow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ReasonSuperseded    = "superseded"
	ReasonTimeout       = "timeout"
	ReasonLapsed        = "reservation lapsed"
	ReasonDeclined      = "declined by gateway"
	ReasonTxMismatch    = "transaction id mismatch"
	reasonGatewayPrefix = "gateway error: "
)

type Config struct {
	GatewayTimeout time.Duration
}

// Orchestrator drives a payment from creation to its terminal state and keeps
// the linked tickets consistent with it.
type Orchestrator struct {
	store    repository.Store
	uow      *uow.UoW
	registry *Registry
	sink     notify.Sink
	clock    clock.Clock
	cfg      Config
	log      *zap.Logger
}

func NewOrchestrator(
	store repository.Store,
	registry *Registry,
	sink notify.Sink,
	clk clock.Clock,
	cfg Config,
	log *zap.Logger,
) *Orchestrator {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if sink == nil {
		sink = notify.Nop()
	}

	return &Orchestrator{
		store:    store,
		uow:      uow.NewUoW(store),
		registry: registry,
		sink:     sink,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

type InitiateInput struct {
	TicketID    uuid.UUID
	RequesterID uuid.UUID
	Amount      decimal.Decimal
	Method      string
	ReturnURL   string
}

type InitiateResult struct {
	Payment     *domain.Payment
	RedirectURL string
	Extra       map[string]string
}

// Initiate creates a PENDING payment covering every RESERVED ticket of the
// order the given ticket belongs to, then asks the gateway to start it.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: ticket, requester, amount, method and return URL.
//
// Returns:
//   - *InitiateResult: the payment and the gateway redirect data.
//   - error: domain.ErrNotFound, domain.ErrNotTicketOwner,
//     domain.ErrTicketNotReserved, domain.ErrUnsupportedPaymentMethod,
//     domain.ErrAmountMismatch or domain.ErrGatewayFailure.
//
// A gateway failure marks the payment FAILED and leaves the reservations in
// place so the buyer can retry.
func (o *Orchestrator) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	const op = "service.payment.Initiate"

	gw, err := o.registry.Lookup(in.Method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		payment *domain.Payment
		tickets []domain.Ticket
	)

	err = o.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		t, err := tx.Tickets().Get(ctx, in.TicketID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		if t.UserID != in.RequesterID {
			return domain.ErrNotTicketOwner
		}
		if !t.Status.CanTransitionTo(domain.TicketPaid) {
			return domain.ErrTicketNotReserved
		}

		all, err := tx.Tickets().ListByOrder(ctx, t.OrderID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		tickets = tickets[:0]
		for _, ot := range all {
			if ot.Status.CanTransitionTo(domain.TicketPaid) {
				tickets = append(tickets, ot)
			}
		}

		if !in.Amount.Equal(domain.OrderTotal(tickets)) {
			return domain.ErrAmountMismatch
		}

		now := o.clock.Now()

		pending, err := tx.Payments().ListPendingByOrder(ctx, t.OrderID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		for _, p := range pending {
			_, err := tx.Payments().Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentCancelled, ReasonSuperseded, now)
			if err != nil && !errors.Is(err, repository.ErrStateChanged) {
				return errmap.FromRepo(err)
			}
		}

		payment = &domain.Payment{
			ID:        uuid.New(),
			UserID:    in.RequesterID,
			OrderID:   t.OrderID,
			Amount:    in.Amount,
			Method:    gw.Name(),
			Status:    domain.PaymentPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return errmap.FromRepo(err)
		}

		ids := make([]uuid.UUID, len(tickets))
		for i, ot := range tickets {
			ids[i] = ot.ID
		}
		linked, err := tx.Tickets().AttachPayment(ctx, ids, payment.ID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		if linked != len(ids) {
			return domain.ErrTicketNotReserved
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := o.log.With(zap.Stringer("payment_id", payment.ID), zap.String("gateway", gw.Name()))

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()

	started := time.Now()
	resp, gerr := gw.Initiate(gctx, InitiateRequest{
		PaymentID:   payment.ID,
		Amount:      payment.Amount,
		Description: fmt.Sprintf("order %s, %d ticket(s)", payment.OrderID, len(tickets)),
		Method:      payment.Method,
		ReturnURL:   in.ReturnURL,
		Metadata: map[string]string{
			"order_id": payment.OrderID.String(),
			"user_id":  payment.UserID.String(),
		},
	})
	metrics.GatewayLatency.WithLabelValues(gw.Name(), "initiate").Observe(time.Since(started).Seconds())

	if gerr != nil {
		log.Warn("gateway initiate failed", zap.Error(gerr))
		// detached so a cancelled request still records the failure
		if _, err := o.fail(context.WithoutCancel(ctx), payment, reasonGatewayPrefix+gerr.Error()); err != nil {
			log.Error("mark payment failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrGatewayFailure, gerr)
	}

	if resp.TransactionID != "" {
		if err := o.store.Payments().SetTransactionID(ctx, payment.ID, resp.TransactionID, o.clock.Now()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
		}
		txID := resp.TransactionID
		payment.TransactionID = &txID
	}

	log.Info("payment initiated", zap.Int("tickets", len(tickets)))

	return &InitiateResult{
		Payment:     payment,
		RedirectURL: resp.RedirectURL,
		Extra:       resp.Extra,
	}, nil
}

// Complete handles the gateway callback for paymentID.
//
// Returns:
//   - bool: true when this call moved the payment to COMPLETED and every
//     linked ticket to PAID.
//   - error: domain.ErrNotFound, domain.ErrUnsupportedPaymentMethod,
//     domain.ErrGatewayFailure or domain.ErrReservationLapsed.
//
// A payment that is no longer PENDING yields false, nil, so repeated
// callbacks are harmless.
func (o *Orchestrator) Complete(
	ctx context.Context,
	paymentID uuid.UUID,
	transactionID string,
	params map[string]string,
) (bool, error) {
	const op = "service.payment.Complete"

	p, err := o.store.Payments().Get(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}
	if !p.Status.CanTransitionTo(domain.PaymentCompleted) {
		return false, nil
	}

	log := o.log.With(zap.Stringer("payment_id", p.ID), zap.String("gateway", p.Method))

	if p.TransactionID != nil && transactionID != "" && *p.TransactionID != transactionID {
		log.Warn("callback transaction id mismatch", zap.String("got", transactionID))
		if _, err := o.fail(ctx, p, ReasonTxMismatch); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return false, nil
	}

	gw, err := o.registry.Lookup(p.Method)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()

	started := time.Now()
	ok, verr := gw.Verify(gctx, params)
	metrics.GatewayLatency.WithLabelValues(gw.Name(), "verify").Observe(time.Since(started).Seconds())

	if verr != nil {
		log.Warn("gateway verify failed", zap.Error(verr))
		if _, err := o.fail(context.WithoutCancel(ctx), p, reasonGatewayPrefix+verr.Error()); err != nil {
			log.Error("mark payment failed", zap.Error(err))
		}
		return false, fmt.Errorf("%s: %w: %v", op, domain.ErrGatewayFailure, verr)
	}
	if !ok {
		if _, err := o.fail(ctx, p, ReasonDeclined); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return false, nil
	}

	var completed bool
	err = o.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		completed = false
		now := o.clock.Now()

		done, err := tx.Payments().Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentCompleted, "", now)
		if errors.Is(err, repository.ErrStateChanged) {
			// another callback or the sweeper got here first
			return nil
		}
		if err != nil {
			return errmap.FromRepo(err)
		}
		if transactionID != "" && done.TransactionID == nil {
			if err := tx.Payments().SetTransactionID(ctx, p.ID, transactionID, now); err != nil {
				return errmap.FromRepo(err)
			}
		}

		linked, err := tx.Tickets().ListByPayment(ctx, p.ID)
		if err != nil {
			return errmap.FromRepo(err)
		}
		paid, err := tx.Tickets().MarkPaid(ctx, p.ID, now)
		if err != nil {
			return errmap.FromRepo(err)
		}
		if paid == 0 || paid != len(linked) {
			return domain.ErrReservationLapsed
		}

		completed = true
		after(func(ctx context.Context) {
			metrics.PaymentOutcomes.WithLabelValues(p.Method, string(domain.PaymentCompleted)).Inc()
			o.sink.Notify(ctx, notify.PaymentCompleted, map[string]any{
				"payment_id": p.ID,
				"order_id":   p.OrderID,
				"user_id":    p.UserID,
				"amount":     p.Amount,
				"tickets":    paid,
			})
		})

		return nil
	})
	if errors.Is(err, domain.ErrReservationLapsed) {
		log.Warn("reservation lapsed before payment completed")
		if _, ferr := o.fail(ctx, p, ReasonLapsed); ferr != nil {
			log.Error("mark payment failed", zap.Error(ferr))
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if completed {
		log.Info("payment completed")
	}

	return completed, nil
}

// Cancel moves a PENDING payment to CANCELLED. Linked tickets are left as
// they are; unpaid reservations are reclaimed by the sweeper.
func (o *Orchestrator) Cancel(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	const op = "service.payment.Cancel"

	p, err := o.store.Payments().Transition(
		ctx, paymentID, domain.PaymentPending, domain.PaymentCancelled, "", o.clock.Now(),
	)
	if errors.Is(err, repository.ErrStateChanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	metrics.PaymentOutcomes.WithLabelValues(p.Method, string(domain.PaymentCancelled)).Inc()

	return true, nil
}

// ExpireStale fails up to limit PENDING payments created before cutoff and
// returns how many it moved.
func (o *Orchestrator) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	const op = "service.payment.ExpireStale"

	stale, err := o.store.Payments().ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	var n int
	for i := range stale {
		failed, err := o.fail(ctx, &stale[i], ReasonTimeout)
		if err != nil {
			o.log.Warn("time out payment", zap.Stringer("payment_id", stale[i].ID), zap.Error(err))
			continue
		}
		if failed {
			n++
		}
	}

	return n, nil
}

// fail moves p from PENDING to FAILED. It reports false when p already left
// PENDING.
func (o *Orchestrator) fail(ctx context.Context, p *domain.Payment, reason string) (bool, error) {
	const op = "service.payment.fail"

	_, err := o.store.Payments().Transition(ctx, p.ID, domain.PaymentPending, domain.PaymentFailed, reason, o.clock.Now())
	if errors.Is(err, repository.ErrStateChanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	metrics.PaymentOutcomes.WithLabelValues(p.Method, string(domain.PaymentFailed)).Inc()
	o.sink.Notify(ctx, notify.PaymentFailed, map[string]any{
		"payment_id": p.ID,
		"order_id":   p.OrderID,
		"user_id":    p.UserID,
		"reason":     reason,
	})

	return true, nil
}
