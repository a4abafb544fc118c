package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
)

type Event struct {
	ID          uuid.UUID   `json:"id"`
	OrganizerID uuid.UUID   `json:"organizer_id"`
	Title       string      `json:"title"`
	Status      EventStatus `json:"status"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Bookable reports whether tickets for the event can still be purchased at now.
func (e *Event) Bookable(now time.Time) bool {
	return e.Status == EventPublished && now.Before(e.StartsAt)
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketType is a sellable category of tickets with a capped quantity.
// QuantitySold never exceeds Quantity and never drops below zero.
type TicketType struct {
	ID           uuid.UUID       `json:"id"`
	EventID      uuid.UUID       `json:"event_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	QuantitySold int             `json:"quantity_sold"`
	SaleStart    time.Time       `json:"sale_start"`
	SaleEnd      time.Time       `json:"sale_end"`
	MinPerOrder  int             `json:"min_per_order"`
	MaxPerOrder  int             `json:"max_per_order"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MaxQuantity bounds every stored or requested quantity. The columns are int4.
const MaxQuantity = math.MaxInt32

func (t *TicketType) Available() int {
	return t.Quantity - t.QuantitySold
}

// OnSale reports whether now falls inside the inclusive sale window.
func (t *TicketType) OnSale(now time.Time) bool {
	return !now.Before(t.SaleStart) && !now.After(t.SaleEnd)
}

// AllowsOrderQuantity checks qty against the per-order limits. A zero limit
// means unbounded on that side.
func (t *TicketType) AllowsOrderQuantity(qty int) bool {
	if t.MinPerOrder > 0 && qty < t.MinPerOrder {
		return false
	}
	if t.MaxPerOrder > 0 && qty > t.MaxPerOrder {
		return false
	}
	return true
}

type Ticket struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	EventID      uuid.UUID       `json:"event_id"`
	TicketTypeID uuid.UUID       `json:"ticket_type_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Number       string          `json:"number"`
	Price        decimal.Decimal `json:"price"`
	Status       TicketStatus    `json:"status"`
	PaymentID    *uuid.UUID      `json:"payment_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PurchasedAt  *time.Time      `json:"purchased_at,omitempty"`
	CheckedInAt  *time.Time      `json:"checked_in_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	ExpiredAt    *time.Time      `json:"expired_at,omitempty"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Status        PaymentStatus   `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// OrderLine requests Quantity tickets of one ticket type.
type OrderLine struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
}

// Order groups the tickets created by one purchase call. It is a view over
// tickets sharing an OrderID, not a stored entity.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	Tickets       []Ticket        `json:"tickets"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
}

// OrderTotal sums the snapshotted prices of tickets.
func OrderTotal(tickets []Ticket) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tickets {
		total = total.Add(t.Price)
	}
	return total
}
