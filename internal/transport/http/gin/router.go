package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	redisx "github.com/kirinyoku/ticketcore/internal/redis"
	redisrepo "github.com/kirinyoku/ticketcore/internal/repository/redis"
	"github.com/kirinyoku/ticketcore/internal/service"
	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/kirinyoku/ticketcore/internal/service/reservation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const idempotencyLockTTL = 60 * time.Second

// NewRouter wires every HTTP route. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	log *zap.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(log), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/ticket-types", handleListTicketTypes(svcs))
	r.POST("/events/:id/purchases", handlePurchase(svcs, idem))
	r.POST("/events/:id/check-in", handleCheckIn(svcs))

	r.GET("/ticket-types/:id/availability", handleAvailability(svcs))

	r.GET("/tickets/:id", handleGetTicket(svcs))
	r.POST("/tickets/:id/cancel", handleCancelTicket(svcs))

	r.GET("/orders/:id", handleGetOrder(svcs))

	r.POST("/payments", handleInitiatePayment(svcs))
	r.GET("/payments/:id", handleGetPayment(svcs))
	r.POST("/payments/:id/callback", handlePaymentCallback(svcs))
	r.POST("/payments/:id/cancel", handleCancelPayment(svcs))

	// Admin-API
	// TODO: guard with organizer auth once the identity service exposes tokens
	admin := r.Group("/admin")
	{
		admin.POST("/users", handleCreateUser(svcs))
		admin.POST("/events", handleCreateEvent(svcs))
		admin.POST("/events/:id/publish", handlePublishEvent(svcs))
		admin.POST("/events/:id/cancel", handleCancelEvent(svcs))
		admin.POST("/events/:id/ticket-types", handleCreateTicketType(svcs))
		admin.PATCH("/ticket-types/:id/quantity", handleGrowQuantity(svcs))
	}

	return r
}

// @Summary  Get event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  List ticket types of an event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {array}   domain.TicketType
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/ticket-types [get]
func handleListTicketTypes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tts, err := svcs.Query.ListTicketTypes(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, tts, "public, max-age=5", true)
	}
}

// @Summary  Check ticket type availability (advisory)
// @Param    id        path   string  true   "Ticket type ID (uuid)"
// @Param    quantity  query  int     false  "units wanted, default 1"
// @Success  200  {object}  AvailabilityResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /ticket-types/{id}/availability [get]
func handleAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		qty := parseIntDefault(c.Query("quantity"), 1)
		available, err := svcs.Inventory.CheckAvailability(c.Request.Context(), id, qty)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, AvailabilityResponse{TicketTypeID: id, Quantity: qty, Available: available})
	}
}

// @Summary  Purchase tickets (idempotent)
// @Param    id   path  string           true  "Event ID (uuid)"
// @Param    req  body  PurchaseRequest  true  "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Order
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "insufficient inventory / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /events/{id}/purchases [post]
func handlePurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = purchaseIdempotencyKey(eventID, req, idemKey)

			if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, idempotencyLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		lines := make([]domain.OrderLine, len(req.Lines))
		for i, l := range req.Lines {
			lines[i] = domain.OrderLine{TicketTypeID: l.TicketTypeID, Quantity: l.Quantity}
		}

		order, err := svcs.Reservation.Purchase(ctx, reservation.PurchaseInput{
			EventID: eventID,
			BuyerID: req.BuyerID,
			Lines:   lines,
		})
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(order)
			_ = idem.SaveResult(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, order)
	}
}

// purchaseIdempotencyKey scopes a client key to the buyer and the request
// body, so a reused key never replays another buyer's or another cart's order.
func purchaseIdempotencyKey(eventID uuid.UUID, req PurchaseRequest, idemKey string) string {
	body, _ := json.Marshal(req.Lines)
	sum := sha256.Sum256(body)
	scope := "purchase:" + eventID.String() + ":" + req.BuyerID.String()
	return redisx.KeyIdempotency(scope, idemKey+":"+hex.EncodeToString(sum[:8]))
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

// @Summary  Check in a ticket
// @Param    id   path  string          true  "Event ID (uuid)"
// @Param    req  body  CheckInRequest  true  "ticket_id or ticket_number"
// @Success  200 {object} domain.Ticket
// @Failure  400 {object} ErrorResponse "outside check-in window"
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not paid / already checked in"
// @Router   /events/{id}/check-in [post]
func handleCheckIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in := reservation.CheckInInput{
			EventID:        eventID,
			TicketNumber:   strings.TrimSpace(req.TicketNumber),
			ExpectedUserID: req.ExpectedUserID,
		}
		if req.TicketID != nil {
			in.TicketID = *req.TicketID
		}

		t, err := svcs.Reservation.CheckIn(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Get ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} domain.Ticket
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/{id} [get]
func handleGetTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Query.GetTicket(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, t, "private, no-cache", true)
	}
}

// @Summary  Cancel ticket
// @Param    id   path  string               true  "Ticket ID (uuid)"
// @Param    req  body  CancelTicketRequest  true  "payload"
// @Success  200 {object} domain.Ticket
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /tickets/{id}/cancel [post]
func handleCancelTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CancelTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Reservation.Cancel(c.Request.Context(), id, req.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Get order with tickets
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.Order
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Query.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, o, "private, no-cache", true)
	}
}

// @Summary  Initiate payment for the order of a reserved ticket
// @Param    req  body  InitiatePaymentRequest  true  "payload"
// @Success  201 {object} InitiatePaymentResponse
// @Failure  400 {object} ErrorResponse "unsupported method / amount mismatch"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /payments [post]
func handleInitiatePayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := svcs.Payments.Initiate(c.Request.Context(), payment.InitiateInput{
			TicketID:    req.TicketID,
			RequesterID: req.RequesterID,
			Amount:      req.Amount,
			Method:      req.Method,
			ReturnURL:   req.ReturnURL,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		resp := InitiatePaymentResponse{
			PaymentID:   res.Payment.ID,
			Status:      string(res.Payment.Status),
			RedirectURL: res.RedirectURL,
			Extra:       res.Extra,
		}
		if res.Payment.TransactionID != nil {
			resp.TransactionID = *res.Payment.TransactionID
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get payment
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} domain.Payment
// @Failure  404 {object} ErrorResponse
// @Router   /payments/{id} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Query.GetPayment(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Gateway callback
// @Description Query and form parameters are passed to the gateway for verification.
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} CompletePaymentResponse
// @Failure  404 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /payments/{id}/callback [post]
func handlePaymentCallback(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			badRequest(c, "invalid callback parameters")
			return
		}

		params := make(map[string]string, len(c.Request.Form))
		for k, v := range c.Request.Form {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		// the path names the payment; a body naming another one must not
		// verify against it
		params["payment_id"] = id.String()

		completed, err := svcs.Payments.Complete(c.Request.Context(), id, params["transaction_id"], params)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CompletePaymentResponse{Completed: completed})
	}
}

// @Summary  Cancel pending payment
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} CancelPaymentResponse
// @Failure  404 {object} ErrorResponse
// @Router   /payments/{id}/cancel [post]
func handleCancelPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		cancelled, err := svcs.Payments.Cancel(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CancelPaymentResponse{Cancelled: cancelled})
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl *reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: domain.ErrRateLimited.Error()})
		return
	}

	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: msg})
}

// statusFor maps a service error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// order matters: the state errors wrap ErrInvalidStateTransition.
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},

	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidQuantity, http.StatusBadRequest},
	{domain.ErrQuantityOutOfRange, http.StatusBadRequest},
	{domain.ErrTicketTypeEventMismatch, http.StatusBadRequest},
	{domain.ErrEventNotBookable, http.StatusBadRequest},
	{domain.ErrOutsideCheckInWindow, http.StatusBadRequest},
	{domain.ErrTicketEventMismatch, http.StatusBadRequest},
	{domain.ErrUnsupportedPaymentMethod, http.StatusBadRequest},
	{domain.ErrAmountMismatch, http.StatusBadRequest},

	{domain.ErrNotTicketOwner, http.StatusForbidden},

	{domain.ErrInsufficientInventory, http.StatusConflict},
	{domain.ErrOutsideSaleWindow, http.StatusConflict},
	{domain.ErrTicketTypeInactive, http.StatusConflict},
	{domain.ErrQuantityShrink, http.StatusConflict},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrReservationLapsed, http.StatusConflict},
	{domain.ErrAlreadyCheckedIn, http.StatusConflict},
	{domain.ErrTicketNotPaid, http.StatusConflict},
	{domain.ErrNotCancellable, http.StatusConflict},
	{domain.ErrTicketNotReserved, http.StatusConflict},
	{domain.ErrInvalidStateTransition, http.StatusConflict},

	{domain.ErrRateLimited, http.StatusTooManyRequests},

	{domain.ErrGatewayFailure, http.StatusBadGateway},
}
