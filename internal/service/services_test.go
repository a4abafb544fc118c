package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/clock"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/notify"
	"github.com/kirinyoku/ticketcore/internal/repository/memory"
	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/kirinyoku/ticketcore/internal/service/reservation"
	"github.com/kirinyoku/ticketcore/internal/service/sweeper"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	verifyOK    bool
	verifyErr   error
	initiated   int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Initiate(_ context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated++
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	return &payment.InitiateResponse{
		TransactionID: "tx-" + req.PaymentID.String(),
		RedirectURL:   "https://pay.example/" + req.PaymentID.String(),
	}, nil
}

func (g *fakeGateway) Verify(context.Context, map[string]string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyOK, g.verifyErr
}

type recordingSink struct {
	mu    sync.Mutex
	types []string
}

func (s *recordingSink) Notify(_ context.Context, eventType string, _ any) {
	s.mu.Lock()
	s.types = append(s.types, eventType)
	s.mu.Unlock()
}

func (s *recordingSink) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.types...)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return false, 11, 30 * time.Second, nil
}

type fixture struct {
	store *memory.Store
	clock *clock.FakeClock
	gw    *fakeGateway
	sink  *recordingSink
	svc   *Services
	buyer domain.User
	other domain.User
	event domain.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	f := &fixture{
		store: memory.NewStore(),
		clock: clock.Fake(t0),
		gw:    &fakeGateway{verifyOK: true},
		sink:  &recordingSink{},
	}

	f.svc = NewServices(Deps{
		Store:    f.store,
		Gateways: payment.NewRegistry(f.gw),
		Sink:     f.sink,
		Clock:    f.clock,
	}, Config{
		Sweeper: sweeper.Config{
			ReservationTimeout: 15 * time.Minute,
			PaymentTimeout:     30 * time.Minute,
			BatchSize:          2,
		},
	})

	f.buyer = domain.User{ID: uuid.New(), Email: "a@example.com", Name: "A"}
	f.other = domain.User{ID: uuid.New(), Email: "b@example.com", Name: "B"}
	require.NoError(t, f.store.Users().Create(ctx, &f.buyer))
	require.NoError(t, f.store.Users().Create(ctx, &f.other))

	f.event = domain.Event{
		ID:          uuid.New(),
		OrganizerID: f.buyer.ID,
		Title:       "Concert",
		Status:      domain.EventPublished,
		StartsAt:    t0.Add(30 * 24 * time.Hour),
		EndsAt:      t0.Add(30*24*time.Hour + 4*time.Hour),
	}
	require.NoError(t, f.store.Events().Create(ctx, &f.event))

	return f
}

func (f *fixture) ticketType(t *testing.T, price int64, quantity int) domain.TicketType {
	t.Helper()

	tt := domain.TicketType{
		ID:        uuid.New(),
		EventID:   f.event.ID,
		Name:      "GA",
		Price:     decimal.NewFromInt(price),
		Quantity:  quantity,
		SaleStart: t0.Add(-time.Hour),
		SaleEnd:   f.event.StartsAt,
		Active:    true,
	}
	require.NoError(t, f.store.TicketTypes().Create(context.Background(), &tt))

	return tt
}

func (f *fixture) purchase(buyer uuid.UUID, lines ...domain.OrderLine) (*domain.Order, error) {
	return f.svc.Reservation.Purchase(context.Background(), reservation.PurchaseInput{
		EventID: f.event.ID,
		BuyerID: buyer,
		Lines:   lines,
	})
}

func (f *fixture) sold(t *testing.T, id uuid.UUID) int {
	t.Helper()
	tt, err := f.store.TicketTypes().Get(context.Background(), id)
	require.NoError(t, err)
	return tt.QuantitySold
}

func (f *fixture) ticket(t *testing.T, id uuid.UUID) domain.Ticket {
	t.Helper()
	tk, err := f.store.Tickets().Get(context.Background(), id)
	require.NoError(t, err)
	return *tk
}

func (f *fixture) pay(t *testing.T, order *domain.Order) *domain.Payment {
	t.Helper()

	ctx := context.Background()
	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: order.BuyerID,
		Amount:      order.TotalAmount,
		Method:      "FAKE",
	})
	require.NoError(t, err)

	ok, err := f.svc.Payments.Complete(ctx, res.Payment.ID, *res.Payment.TransactionID, nil)
	require.NoError(t, err)
	require.True(t, ok)

	return res.Payment
}

func line(id uuid.UUID, qty int) domain.OrderLine {
	return domain.OrderLine{TicketTypeID: id, Quantity: qty}
}

func TestPurchaseCreatesReservedTickets(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, 50, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 2))
	require.NoError(t, err)

	require.Len(t, order.Tickets, 2)
	assert.True(t, decimal.NewFromInt(100).Equal(order.TotalAmount))
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.NotEqual(t, order.Tickets[0].Number, order.Tickets[1].Number)

	for _, tk := range order.Tickets {
		assert.Equal(t, domain.TicketReserved, tk.Status)
		assert.Equal(t, order.ID, tk.OrderID)
		assert.Regexp(t, `^TKT-`, tk.Number)
		assert.True(t, decimal.NewFromInt(50).Equal(tk.Price))
	}

	assert.Equal(t, 2, f.sold(t, tt.ID))
	assert.Contains(t, f.sink.seen(), notify.TicketPurchased)
}

func TestPurchaseNeverOversells(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, 10, 10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for n := 0; n < 50; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientInventory):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, rejected)
	assert.Equal(t, 10, f.sold(t, tt.ID))
}

func TestPurchasePartialOrderRollsBack(t *testing.T) {
	f := newFixture(t)
	plenty := f.ticketType(t, 20, 5)
	scarce := f.ticketType(t, 80, 1)

	_, err := f.purchase(f.other.ID, line(scarce.ID, 1))
	require.NoError(t, err)

	_, err = f.purchase(f.buyer.ID, line(plenty.ID, 2), line(scarce.ID, 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	assert.Equal(t, 0, f.sold(t, plenty.ID))
	assert.Equal(t, 1, f.sold(t, scarce.ID))

	reserved, err := f.store.Tickets().ListStaleReserved(context.Background(), t0.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, reserved, 1, "only the first buyer's ticket exists")
}

func TestPurchaseMergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, 5, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1), line(tt.ID, 2))
	require.NoError(t, err)

	assert.Len(t, order.Tickets, 3)
	assert.Equal(t, 3, f.sold(t, tt.ID))
}

func TestPurchaseRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 50, 10)

	_, err := f.purchase(f.buyer.ID, line(tt.ID, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.purchase(f.buyer.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.purchase(uuid.New(), line(tt.ID, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.purchase(f.buyer.ID, line(uuid.New(), 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	limited := f.ticketType(t, 50, 10)
	limited.ID = uuid.New()
	limited.MaxPerOrder = 2
	require.NoError(t, f.store.TicketTypes().Create(ctx, &limited))
	_, err = f.purchase(f.buyer.ID, line(limited.ID, 3))
	assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)

	otherEvent := domain.Event{ID: uuid.New(), Title: "Other", Status: domain.EventPublished, StartsAt: f.event.StartsAt}
	require.NoError(t, f.store.Events().Create(ctx, &otherEvent))
	foreign := tt
	foreign.ID = uuid.New()
	foreign.EventID = otherEvent.ID
	require.NoError(t, f.store.TicketTypes().Create(ctx, &foreign))
	_, err = f.purchase(f.buyer.ID, line(foreign.ID, 1))
	assert.ErrorIs(t, err, domain.ErrTicketTypeEventMismatch)

	late := tt
	late.ID = uuid.New()
	late.SaleStart = t0.Add(24 * time.Hour)
	require.NoError(t, f.store.TicketTypes().Create(ctx, &late))
	_, err = f.purchase(f.buyer.ID, line(late.ID, 1))
	assert.ErrorIs(t, err, domain.ErrOutsideSaleWindow)

	require.NoError(t, f.store.Events().SetStatus(ctx, f.event.ID, domain.EventCancelled))
	_, err = f.purchase(f.buyer.ID, line(tt.ID, 1))
	assert.ErrorIs(t, err, domain.ErrEventNotBookable)

	assert.Equal(t, 0, f.sold(t, tt.ID))
}

func TestPurchaseRejectsOversizedQuantities(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, 50, 10)

	_, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)

	_, err = f.purchase(f.buyer.ID, line(tt.ID, math.MaxInt))
	assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)

	_, err = f.purchase(f.buyer.ID, line(tt.ID, domain.MaxQuantity), line(tt.ID, 1))
	assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)

	_, err = f.purchase(f.buyer.ID, line(tt.ID, 11))
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	_, err = f.svc.Inventory.Reserve(context.Background(), tt.ID, math.MaxInt)
	assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)

	assert.Equal(t, 1, f.sold(t, tt.ID))
}

func TestPurchaseRateLimited(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(t, 50, 10)

	svc := NewServices(Deps{Store: f.store, Limiter: denyLimiter{}, Clock: f.clock}, Config{})
	_, err := svc.Reservation.Purchase(context.Background(), reservation.PurchaseInput{
		EventID: f.event.ID,
		BuyerID: f.buyer.ID,
		Lines:   []domain.OrderLine{line(tt.ID, 1)},
	})

	require.ErrorIs(t, err, domain.ErrRateLimited)
	var rl *reservation.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.Equal(t, 0, f.sold(t, tt.ID))
}

func TestExpireReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 50, 3)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 2))
	require.NoError(t, err)
	id := order.Tickets[0].ID

	expired, err := f.svc.Reservation.Expire(ctx, id)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, 1, f.sold(t, tt.ID))

	expired, err = f.svc.Reservation.Expire(ctx, id)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, 1, f.sold(t, tt.ID))

	tk := f.ticket(t, id)
	assert.Equal(t, domain.TicketExpired, tk.Status)
	assert.NotNil(t, tk.ExpiredAt)
}

func TestConcurrentExpireReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 50, 3)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Reservation.Expire(ctx, order.Tickets[0].ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, f.sold(t, tt.ID))
}

func TestSweepExpiresOnlyStaleReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 50, 10)

	unpaid, err := f.purchase(f.buyer.ID, line(tt.ID, 3))
	require.NoError(t, err)
	paidOrder, err := f.purchase(f.other.ID, line(tt.ID, 1))
	require.NoError(t, err)
	f.pay(t, paidOrder)

	f.clock.Advance(14 * time.Minute)
	res, err := f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired)
	assert.Equal(t, 4, f.sold(t, tt.ID))

	f.clock.Advance(2 * time.Minute)
	res, err = f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Expired, "batches of two cover all three")
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, 1, f.sold(t, tt.ID))

	for _, tk := range unpaid.Tickets {
		assert.Equal(t, domain.TicketExpired, f.ticket(t, tk.ID).Status)
	}
	assert.Equal(t, domain.TicketPaid, f.ticket(t, paidOrder.Tickets[0].ID).Status)

	res, err = f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	assert.Equal(t, 1, f.sold(t, tt.ID))
}

func TestCompleteMarksEveryTicketPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 3))
	require.NoError(t, err)

	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[1].ID,
		RequesterID: f.buyer.ID,
		Amount:      decimal.NewFromInt(120),
		Method:      "fake",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, res.Payment.Status)
	assert.NotEmpty(t, res.RedirectURL)

	ok, err := f.svc.Payments.Complete(ctx, res.Payment.ID, *res.Payment.TransactionID, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, tk := range order.Tickets {
		got := f.ticket(t, tk.ID)
		assert.Equal(t, domain.TicketPaid, got.Status)
		require.NotNil(t, got.PaymentID)
		assert.Equal(t, res.Payment.ID, *got.PaymentID)
		assert.NotNil(t, got.PurchasedAt)
	}

	p, err := f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	assert.NotNil(t, p.CompletedAt)

	ok, err = f.svc.Payments.Complete(ctx, res.Payment.ID, *res.Payment.TransactionID, nil)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate callback is a no-op")

	view, err := f.svc.Query.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, view.PaymentStatus)
	assert.Contains(t, f.sink.seen(), notify.PaymentCompleted)
}

func TestCompleteAfterLapseFailsPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 2))
	require.NoError(t, err)

	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	})
	require.NoError(t, err)

	expired, err := f.svc.Reservation.Expire(ctx, order.Tickets[1].ID)
	require.NoError(t, err)
	require.True(t, expired)

	ok, err := f.svc.Payments.Complete(ctx, res.Payment.ID, "", nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrReservationLapsed)

	assert.Equal(t, domain.TicketReserved, f.ticket(t, order.Tickets[0].ID).Status)
	p, err := f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Equal(t, payment.ReasonLapsed, p.FailureReason)
}

func TestCompleteDeclinedAndGatewayErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	in := payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	}

	f.gw.verifyOK = false
	res, err := f.svc.Payments.Initiate(ctx, in)
	require.NoError(t, err)
	ok, err := f.svc.Payments.Complete(ctx, res.Payment.ID, "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	p, err := f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)

	f.gw.verifyErr = errors.New("upstream timeout")
	res, err = f.svc.Payments.Initiate(ctx, in)
	require.NoError(t, err)
	ok, err = f.svc.Payments.Complete(ctx, res.Payment.ID, "", nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrGatewayFailure)

	res, err = f.svc.Payments.Initiate(ctx, in)
	require.NoError(t, err)
	ok, err = f.svc.Payments.Complete(ctx, res.Payment.ID, "someone-elses-tx", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	p, err = f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ReasonTxMismatch, p.FailureReason)

	assert.Equal(t, domain.TicketReserved, f.ticket(t, order.Tickets[0].ID).Status)
}

func TestDeclinedCompletionLeavesWholeOrderReserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 3))
	require.NoError(t, err)
	require.Len(t, order.Tickets, 3)

	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[2].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	})
	require.NoError(t, err)

	f.gw.verifyOK = false
	ok, err := f.svc.Payments.Complete(ctx, res.Payment.ID, *res.Payment.TransactionID, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, tk := range order.Tickets {
		got := f.ticket(t, tk.ID)
		assert.Equal(t, domain.TicketReserved, got.Status)
		assert.Nil(t, got.PurchasedAt)
	}
	assert.Equal(t, 3, f.sold(t, tt.ID))

	p, err := f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Equal(t, payment.ReasonDeclined, p.FailureReason)
}

func TestConcurrentExpireAndCompleteAgree(t *testing.T) {
	for n := 0; n < 20; n++ {
		ctx := context.Background()
		f := newFixture(t)
		tt := f.ticketType(t, 40, 10)

		order, err := f.purchase(f.buyer.ID, line(tt.ID, 3))
		require.NoError(t, err)

		res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
			TicketID:    order.Tickets[0].ID,
			RequesterID: f.buyer.ID,
			Amount:      order.TotalAmount,
			Method:      "fake",
		})
		require.NoError(t, err)

		var (
			wg          sync.WaitGroup
			expired     bool
			expireErr   error
			completed   bool
			completeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			expired, expireErr = f.svc.Reservation.Expire(ctx, order.Tickets[1].ID)
		}()
		go func() {
			defer wg.Done()
			completed, completeErr = f.svc.Payments.Complete(ctx, res.Payment.ID, *res.Payment.TransactionID, nil)
		}()
		wg.Wait()
		require.NoError(t, expireErr)

		p, err := f.store.Payments().Get(ctx, res.Payment.ID)
		require.NoError(t, err)

		if completed {
			require.NoError(t, completeErr)
			assert.False(t, expired)
			assert.Equal(t, domain.PaymentCompleted, p.Status)
			for _, tk := range order.Tickets {
				assert.Equal(t, domain.TicketPaid, f.ticket(t, tk.ID).Status)
			}
			assert.Equal(t, 3, f.sold(t, tt.ID))
			continue
		}

		assert.ErrorIs(t, completeErr, domain.ErrReservationLapsed)
		assert.True(t, expired)
		assert.Equal(t, domain.PaymentFailed, p.Status)
		assert.Equal(t, domain.TicketExpired, f.ticket(t, order.Tickets[1].ID).Status)
		assert.Equal(t, domain.TicketReserved, f.ticket(t, order.Tickets[0].ID).Status)
		assert.Equal(t, domain.TicketReserved, f.ticket(t, order.Tickets[2].ID).Status)
		assert.Equal(t, 2, f.sold(t, tt.ID))
	}
}

func TestInitiateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 2))
	require.NoError(t, err)
	in := payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	}

	bad := in
	bad.Method = "crypto"
	_, err = f.svc.Payments.Initiate(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrUnsupportedPaymentMethod)

	bad = in
	bad.RequesterID = f.other.ID
	_, err = f.svc.Payments.Initiate(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrNotTicketOwner)

	bad = in
	bad.Amount = decimal.NewFromInt(40)
	_, err = f.svc.Payments.Initiate(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	bad = in
	bad.TicketID = uuid.New()
	_, err = f.svc.Payments.Initiate(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.gw.initiateErr = errors.New("connection refused")
	_, err = f.svc.Payments.Initiate(ctx, in)
	assert.ErrorIs(t, err, domain.ErrGatewayFailure)
	assert.Equal(t, domain.TicketReserved, f.ticket(t, in.TicketID).Status)
	assert.Equal(t, 2, f.sold(t, tt.ID))

	latest, err := f.store.Payments().LatestByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, latest.Status)

	f.gw.initiateErr = nil
	_, err = f.svc.Reservation.Expire(ctx, in.TicketID)
	require.NoError(t, err)
	_, err = f.svc.Payments.Initiate(ctx, in)
	assert.ErrorIs(t, err, domain.ErrTicketNotReserved)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestInitiateSupersedesPendingPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	in := payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	}

	first, err := f.svc.Payments.Initiate(ctx, in)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.svc.Payments.Initiate(ctx, in)
	require.NoError(t, err)

	p, err := f.store.Payments().Get(ctx, first.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, p.Status)
	assert.Equal(t, payment.ReasonSuperseded, p.FailureReason)

	ok, err := f.svc.Payments.Complete(ctx, first.Payment.ID, "", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Payments.Complete(ctx, second.Payment.ID, "", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	})
	require.NoError(t, err)

	ok, err := f.svc.Payments.Cancel(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Payments.Cancel(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, domain.TicketReserved, f.ticket(t, order.Tickets[0].ID).Status)

	_, err = f.svc.Payments.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepTimesOutPendingPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	res, err := f.svc.Payments.Initiate(ctx, payment.InitiateInput{
		TicketID:    order.Tickets[0].ID,
		RequesterID: f.buyer.ID,
		Amount:      order.TotalAmount,
		Method:      "fake",
	})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	sw, err := f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.Expired)
	assert.Equal(t, 0, sw.PaymentsTimedOut)

	f.clock.Advance(11 * time.Minute)
	sw, err = f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.PaymentsTimedOut)

	p, err := f.store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Equal(t, payment.ReasonTimeout, p.FailureReason)
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 2))
	require.NoError(t, err)
	paidOrder, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	f.pay(t, paidOrder)
	paid := paidOrder.Tickets[0]

	in := reservation.CheckInInput{EventID: f.event.ID, TicketID: paid.ID}

	_, err = f.svc.Reservation.CheckIn(ctx, in)
	assert.ErrorIs(t, err, domain.ErrOutsideCheckInWindow)

	f.clock.Set(f.event.StartsAt.Add(-time.Hour))

	_, err = f.svc.Reservation.CheckIn(ctx, reservation.CheckInInput{EventID: f.event.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Reservation.CheckIn(ctx, reservation.CheckInInput{EventID: uuid.New(), TicketID: paid.ID})
	assert.ErrorIs(t, err, domain.ErrTicketEventMismatch)

	stranger := f.other.ID
	_, err = f.svc.Reservation.CheckIn(ctx, reservation.CheckInInput{EventID: f.event.ID, TicketID: paid.ID, ExpectedUserID: &stranger})
	assert.ErrorIs(t, err, domain.ErrNotTicketOwner)

	_, err = f.svc.Reservation.CheckIn(ctx, reservation.CheckInInput{EventID: f.event.ID, TicketID: order.Tickets[0].ID})
	assert.ErrorIs(t, err, domain.ErrTicketNotPaid)

	got, err := f.svc.Reservation.CheckIn(ctx, reservation.CheckInInput{EventID: f.event.ID, TicketNumber: paid.Number})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCheckedIn, got.Status)
	assert.NotNil(t, got.CheckedInAt)

	_, err = f.svc.Reservation.CheckIn(ctx, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	f.clock.Set(f.event.EndsAt.Add(time.Minute))
	_, err = f.svc.Reservation.CheckIn(ctx, in)
	assert.ErrorIs(t, err, domain.ErrOutsideCheckInWindow)
}

func TestCancelTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 40, 10)

	order, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)
	f.pay(t, order)
	id := order.Tickets[0].ID

	_, err = f.svc.Reservation.Cancel(ctx, id, f.other.ID)
	assert.ErrorIs(t, err, domain.ErrNotTicketOwner)

	got, err := f.svc.Reservation.Cancel(ctx, id, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, 0, f.sold(t, tt.ID))

	_, err = f.svc.Reservation.Cancel(ctx, id, f.buyer.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	assert.Equal(t, 0, f.sold(t, tt.ID))
	assert.Contains(t, f.sink.seen(), notify.TicketCancelled)
}

// One seat left: A reserves it, B is turned away, A pays, and the sweep that
// runs after the reservation timeout leaves A's ticket alone.
func TestLastSeatScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tt := f.ticketType(t, 100, 1)

	a, err := f.purchase(f.buyer.ID, line(tt.ID, 1))
	require.NoError(t, err)

	_, err = f.purchase(f.other.ID, line(tt.ID, 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	f.clock.Advance(5 * time.Minute)
	f.pay(t, a)

	f.clock.Advance(11 * time.Minute)
	res, err := f.svc.Sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired)

	assert.Equal(t, domain.TicketPaid, f.ticket(t, a.Tickets[0].ID).Status)
	assert.Equal(t, 1, f.sold(t, tt.ID))

	ok, err := f.svc.Inventory.CheckAvailability(ctx, tt.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
