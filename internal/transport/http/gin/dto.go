package httpgin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseLine struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required,gt=0"`
}

type PurchaseRequest struct {
	BuyerID uuid.UUID      `json:"buyer_id" binding:"required"`
	Lines   []PurchaseLine `json:"lines" binding:"required,min=1,dive"`
}

type CheckInRequest struct {
	TicketID       *uuid.UUID `json:"ticket_id"`
	TicketNumber   string     `json:"ticket_number"`
	ExpectedUserID *uuid.UUID `json:"expected_user_id"`
}

type CancelTicketRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type InitiatePaymentRequest struct {
	TicketID    uuid.UUID       `json:"ticket_id" binding:"required"`
	RequesterID uuid.UUID       `json:"requester_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string"`
	Method      string          `json:"method" binding:"required"`
	ReturnURL   string          `json:"return_url"`
}

type InitiatePaymentResponse struct {
	PaymentID     uuid.UUID         `json:"payment_id"`
	Status        string            `json:"status"`
	TransactionID string            `json:"transaction_id,omitempty"`
	RedirectURL   string            `json:"redirect_url,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

type CompletePaymentResponse struct {
	Completed bool `json:"completed"`
}

type CancelPaymentResponse struct {
	Cancelled bool `json:"cancelled"`
}

type AvailabilityResponse struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	Available    bool      `json:"available"`
}

type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

type CreateEventRequest struct {
	OrganizerID uuid.UUID `json:"organizer_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	StartsAt    string    `json:"starts_at" binding:"required"`
	EndsAt      string    `json:"ends_at" binding:"required"`
	Publish     bool      `json:"publish"`
}

type CreateTicketTypeRequest struct {
	Name        string          `json:"name" binding:"required"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	SaleStart   string          `json:"sale_start" binding:"required"`
	SaleEnd     string          `json:"sale_end" binding:"required"`
	MinPerOrder int             `json:"min_per_order"`
	MaxPerOrder int             `json:"max_per_order"`
}

type GrowQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
