package httpgin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/gateway/sandbox"
	"github.com/kirinyoku/ticketcore/internal/repository/memory"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service"
	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/kirinyoku/ticketcore/internal/service/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	gw     *sandbox.Gateway
}

func newTestAPI(t *testing.T, idem *redisrepo.IdempotencyStore) *testAPI {
	t.Helper()

	gw, err := sandbox.New(sandbox.Config{Secret: "test-secret"})
	require.NoError(t, err)

	svcs := service.NewServices(service.Deps{
		Store:    memory.NewStore(),
		Gateways: payment.NewRegistry(gw),
	}, service.Config{})

	return &testAPI{t: t, router: NewRouter(svcs, idem, zap.NewNop()), gw: gw}
}

func (a *testAPI) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seed creates a buyer, a published event and one ticket type on sale now.
func (a *testAPI) seed(quantity int) (domain.User, domain.Event, domain.TicketType) {
	a.t.Helper()
	now := time.Now().UTC()

	w := a.do(http.MethodPost, "/admin/users", gin.H{"email": "buyer@example.com", "name": "Buyer"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[domain.User](a.t, w)

	w = a.do(http.MethodPost, "/admin/events", gin.H{
		"organizer_id": user.ID,
		"title":        "Launch party",
		"starts_at":    now.Add(48 * time.Hour).Format(time.RFC3339),
		"ends_at":      now.Add(52 * time.Hour).Format(time.RFC3339),
		"publish":      true,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	event := decode[domain.Event](a.t, w)
	require.Equal(a.t, domain.EventPublished, event.Status)

	w = a.do(http.MethodPost, "/admin/events/"+event.ID.String()+"/ticket-types", gin.H{
		"name":       "GA",
		"price":      "25.50",
		"quantity":   quantity,
		"sale_start": now.Add(-time.Hour).Format(time.RFC3339),
		"sale_end":   now.Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	tt := decode[domain.TicketType](a.t, w)

	return user, event, tt
}

func purchaseBody(buyer, tt uuid.UUID, qty int) gin.H {
	return gin.H{
		"buyer_id": buyer,
		"lines":    []gin.H{{"ticket_type_id": tt, "quantity": qty}},
	}
}

func TestPurchasePayAndViewOrder(t *testing.T) {
	api := newTestAPI(t, nil)
	user, event, tt := api.seed(5)

	w := api.do(http.MethodPost, "/events/"+event.ID.String()+"/purchases", purchaseBody(user.ID, tt.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[domain.Order](t, w)
	require.Len(t, order.Tickets, 2)
	assert.Equal(t, "51", order.TotalAmount.String())

	w = api.do(http.MethodPost, "/payments", gin.H{
		"ticket_id":    order.Tickets[0].ID,
		"requester_id": user.ID,
		"amount":       "51.00",
		"method":       "SANDBOX",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pay := decode[InitiatePaymentResponse](t, w)
	assert.Equal(t, string(domain.PaymentPending), pay.Status)
	assert.NotEmpty(t, pay.RedirectURL)

	q := url.Values{}
	q.Set(sandbox.ParamTransactionID, pay.TransactionID)
	q.Set(sandbox.ParamStatus, sandbox.StatusSuccess)
	q.Set(sandbox.ParamSignature, api.gw.Sign(pay.PaymentID.String(), pay.TransactionID, sandbox.StatusSuccess))
	callback := fmt.Sprintf("/payments/%s/callback?%s", pay.PaymentID, q.Encode())

	w = api.do(http.MethodPost, callback, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[CompletePaymentResponse](t, w).Completed)

	w = api.do(http.MethodPost, callback, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[CompletePaymentResponse](t, w).Completed)

	w = api.do(http.MethodGet, "/orders/"+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[domain.Order](t, w)
	assert.Equal(t, domain.PaymentCompleted, view.PaymentStatus)
	for _, tk := range view.Tickets {
		assert.Equal(t, domain.TicketPaid, tk.Status)
	}

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	w = api.do(http.MethodGet, "/orders/"+order.ID.String(), nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = api.do(http.MethodGet, "/ticket-types/"+tt.ID.String()+"/availability?quantity=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[AvailabilityResponse](t, w).Available)

	w = api.do(http.MethodGet, "/ticket-types/"+tt.ID.String()+"/availability?quantity=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[AvailabilityResponse](t, w).Available)
}

func TestCallbackVerifiesAgainstPathPayment(t *testing.T) {
	api := newTestAPI(t, nil)
	user, event, tt := api.seed(5)

	initiate := func() InitiatePaymentResponse {
		w := api.do(http.MethodPost, "/events/"+event.ID.String()+"/purchases", purchaseBody(user.ID, tt.ID, 1))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		order := decode[domain.Order](t, w)

		w = api.do(http.MethodPost, "/payments", gin.H{
			"ticket_id":    order.Tickets[0].ID,
			"requester_id": user.ID,
			"amount":       "25.50",
			"method":       "sandbox",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[InitiatePaymentResponse](t, w)
	}
	first, second := initiate(), initiate()

	// signed for the first payment but posted to the second one's callback
	q := url.Values{}
	q.Set(sandbox.ParamPaymentID, first.PaymentID.String())
	q.Set(sandbox.ParamTransactionID, second.TransactionID)
	q.Set(sandbox.ParamStatus, sandbox.StatusSuccess)
	q.Set(sandbox.ParamSignature, api.gw.Sign(first.PaymentID.String(), second.TransactionID, sandbox.StatusSuccess))

	w := api.do(http.MethodPost, fmt.Sprintf("/payments/%s/callback?%s", second.PaymentID, q.Encode()), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[CompletePaymentResponse](t, w).Completed)

	w = api.do(http.MethodGet, "/payments/"+second.PaymentID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, domain.PaymentCompleted, decode[domain.Payment](t, w).Status)
}

func TestPurchaseErrorStatuses(t *testing.T) {
	api := newTestAPI(t, nil)
	user, event, tt := api.seed(1)
	path := "/events/" + event.ID.String() + "/purchases"

	w := api.do(http.MethodPost, "/events/not-a-uuid/purchases", purchaseBody(user.ID, tt.ID, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, path, gin.H{"buyer_id": user.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, path, purchaseBody(user.ID, tt.ID, 2))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrInsufficientInventory.Error(), decode[ErrorResponse](t, w).Error)

	w = api.do(http.MethodPost, path, purchaseBody(uuid.New(), tt.ID, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/admin/events/"+event.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodPost, path, purchaseBody(user.ID, tt.ID, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrEventNotBookable.Error(), decode[ErrorResponse](t, w).Error)
}

func TestPaymentErrorStatuses(t *testing.T) {
	api := newTestAPI(t, nil)
	user, event, tt := api.seed(3)

	w := api.do(http.MethodPost, "/events/"+event.ID.String()+"/purchases", purchaseBody(user.ID, tt.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[domain.Order](t, w)

	body := gin.H{
		"ticket_id":    order.Tickets[0].ID,
		"requester_id": user.ID,
		"amount":       "25.50",
		"method":       "paypal",
	}
	w = api.do(http.MethodPost, "/payments", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrUnsupportedPaymentMethod.Error(), decode[ErrorResponse](t, w).Error)

	body["method"] = "sandbox"
	body["amount"] = "1"
	w = api.do(http.MethodPost, "/payments", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body["amount"] = "25.50"
	body["requester_id"] = uuid.New()
	w = api.do(http.MethodPost, "/payments", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/payments/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelAndCheckInStatuses(t *testing.T) {
	api := newTestAPI(t, nil)
	user, event, tt := api.seed(3)

	w := api.do(http.MethodPost, "/events/"+event.ID.String()+"/purchases", purchaseBody(user.ID, tt.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	ticket := decode[domain.Order](t, w).Tickets[0]

	w = api.do(http.MethodPost, "/events/"+event.ID.String()+"/check-in", gin.H{"ticket_number": ticket.Number})
	assert.Equal(t, http.StatusBadRequest, w.Code, "check-in opens two hours before start")

	w = api.do(http.MethodPost, "/tickets/"+ticket.ID.String()+"/cancel", gin.H{"user_id": uuid.New()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/tickets/"+ticket.ID.String()+"/cancel", gin.H{"user_id": user.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TicketCancelled, decode[domain.Ticket](t, w).Status)

	w = api.do(http.MethodPost, "/tickets/"+ticket.ID.String()+"/cancel", gin.H{"user_id": user.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/tickets/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseReplaysIdempotentResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	api := newTestAPI(t, redisrepo.NewIdempotencyStore(db, time.Hour))

	eventID, buyer, tt := uuid.New(), uuid.New(), uuid.New()
	key := purchaseIdempotencyKey(eventID, PurchaseRequest{
		BuyerID: buyer,
		Lines:   []PurchaseLine{{TicketTypeID: tt, Quantity: 1}},
	}, "abc")
	mock.ExpectGet(key).SetVal(`RES:{"id":"cached"}`)

	w := api.do(http.MethodPost, "/events/"+eventID.String()+"/purchases",
		purchaseBody(buyer, tt, 1), "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `{"id":"cached"}`, w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("Idempotency-Key"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyKeyIsScopedToBuyerAndCart(t *testing.T) {
	eventID, tt := uuid.New(), uuid.New()
	cart := []PurchaseLine{{TicketTypeID: tt, Quantity: 2}}

	first := purchaseIdempotencyKey(eventID, PurchaseRequest{BuyerID: uuid.New(), Lines: cart}, "abc")
	second := purchaseIdempotencyKey(eventID, PurchaseRequest{BuyerID: uuid.New(), Lines: cart}, "abc")
	assert.NotEqual(t, first, second)

	buyer := uuid.New()
	small := purchaseIdempotencyKey(eventID, PurchaseRequest{BuyerID: buyer, Lines: cart}, "abc")
	large := purchaseIdempotencyKey(eventID, PurchaseRequest{
		BuyerID: buyer,
		Lines:   []PurchaseLine{{TicketTypeID: tt, Quantity: 3}},
	}, "abc")
	assert.NotEqual(t, small, large)
}

func TestPurchaseWithAnotherBuyersKeyIsNotReplayed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	api := newTestAPI(t, redisrepo.NewIdempotencyStore(db, time.Hour))

	eventID, tt := uuid.New(), uuid.New()
	intruder := uuid.New()
	key := purchaseIdempotencyKey(eventID, PurchaseRequest{
		BuyerID: intruder,
		Lines:   []PurchaseLine{{TicketTypeID: tt, Quantity: 1}},
	}, "abc")

	// only the intruder's own key is looked up; the event does not exist so
	// the purchase fails and the lock is released
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetNX(key, "LOCK", idempotencyLockTTL).SetVal(true)
	mock.ExpectDel(key).SetVal(1)

	w := api.do(http.MethodPost, "/events/"+eventID.String()+"/purchases",
		purchaseBody(intruder, tt, 1), "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRespondErrRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, fmt.Errorf("op: %w", &reservation.RateLimitedError{RetryAfter: 1500 * time.Millisecond}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrAlreadyCheckedIn, http.StatusConflict},
		{domain.ErrTicketNotPaid, http.StatusConflict},
		{domain.ErrOutsideCheckInWindow, http.StatusBadRequest},
		{domain.ErrGatewayFailure, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
