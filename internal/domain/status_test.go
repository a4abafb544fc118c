package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTicketStatusTransitions(t *testing.T) {
	tests := []struct {
		from TicketStatus
		to   TicketStatus
		ok   bool
	}{
		{TicketReserved, TicketPaid, true},
		{TicketReserved, TicketExpired, true},
		{TicketReserved, TicketCancelled, true},
		{TicketReserved, TicketCheckedIn, false},
		{TicketPaid, TicketCheckedIn, true},
		{TicketPaid, TicketCancelled, true},
		{TicketPaid, TicketExpired, false},
		{TicketCheckedIn, TicketCancelled, false},
		{TicketExpired, TicketReserved, false},
		{TicketCancelled, TicketPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTicketStatusTerminal(t *testing.T) {
	assert.False(t, TicketReserved.IsTerminal())
	assert.False(t, TicketPaid.IsTerminal())
	assert.True(t, TicketCheckedIn.IsTerminal())
	assert.True(t, TicketExpired.IsTerminal())
	assert.True(t, TicketCancelled.IsTerminal())
	assert.False(t, TicketStatus("BOGUS").IsValid())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCompleted))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCancelled))
	assert.False(t, PaymentCompleted.CanTransitionTo(PaymentFailed))
	assert.False(t, PaymentFailed.CanTransitionTo(PaymentCompleted))
	assert.True(t, PaymentCancelled.IsTerminal())
}

func TestTicketSourcesOf(t *testing.T) {
	assert.Equal(t, []TicketStatus{TicketPaid, TicketReserved}, TicketSourcesOf(TicketCancelled))
	assert.Equal(t, []TicketStatus{TicketReserved}, TicketSourcesOf(TicketExpired))
	assert.Equal(t, []TicketStatus{TicketPaid}, TicketSourcesOf(TicketCheckedIn))
	assert.Empty(t, TicketSourcesOf(TicketReserved))
}

func TestTicketTransitionAllowed(t *testing.T) {
	assert.True(t, TicketTransitionAllowed([]TicketStatus{TicketReserved, TicketPaid}, TicketCancelled))
	assert.False(t, TicketTransitionAllowed([]TicketStatus{TicketReserved, TicketPaid}, TicketExpired))
	assert.False(t, TicketTransitionAllowed(nil, TicketCancelled))
}

func TestStateErrorsWrapInvalidTransition(t *testing.T) {
	for _, err := range []error{ErrAlreadyCheckedIn, ErrTicketNotPaid, ErrNotCancellable, ErrTicketNotReserved} {
		assert.True(t, errors.Is(err, ErrInvalidStateTransition), err.Error())
	}
}

func TestTicketTypeRules(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tt := TicketType{
		Quantity:     10,
		QuantitySold: 7,
		SaleStart:    start,
		SaleEnd:      start.Add(24 * time.Hour),
		MinPerOrder:  1,
		MaxPerOrder:  4,
	}

	assert.Equal(t, 3, tt.Available())
	assert.True(t, tt.OnSale(start))
	assert.True(t, tt.OnSale(start.Add(24*time.Hour)))
	assert.False(t, tt.OnSale(start.Add(-time.Second)))
	assert.True(t, tt.AllowsOrderQuantity(4))
	assert.False(t, tt.AllowsOrderQuantity(5))
	assert.False(t, tt.AllowsOrderQuantity(0))
}

func TestEventBookable(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	e := Event{Status: EventPublished, StartsAt: now.Add(time.Hour)}
	assert.True(t, e.Bookable(now))
	assert.False(t, e.Bookable(now.Add(time.Hour)))

	e.Status = EventDraft
	assert.False(t, e.Bookable(now))
}

func TestOrderTotal(t *testing.T) {
	tickets := []Ticket{
		{Price: decimal.RequireFromString("50.00")},
		{Price: decimal.RequireFromString("49.99")},
	}
	assert.True(t, decimal.RequireFromString("99.99").Equal(OrderTotal(tickets)))
}
