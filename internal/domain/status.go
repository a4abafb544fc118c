package domain

import "slices"

// TicketStatus is the lifecycle state of a single ticket.
type TicketStatus string

const (
	TicketReserved  TicketStatus = "RESERVED"
	TicketPaid      TicketStatus = "PAID"
	TicketCheckedIn TicketStatus = "CHECKED_IN"
	TicketExpired   TicketStatus = "EXPIRED"
	TicketCancelled TicketStatus = "CANCELLED"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketReserved:  {TicketPaid, TicketExpired, TicketCancelled},
	TicketPaid:      {TicketCheckedIn, TicketCancelled},
	TicketCheckedIn: {},
	TicketExpired:   {},
	TicketCancelled: {},
}

func (s TicketStatus) IsValid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return s.IsValid() && len(ticketTransitions[s]) == 0
}

// TicketSourcesOf returns, in a stable order, every status that may move to
// target in one step.
func TicketSourcesOf(target TicketStatus) []TicketStatus {
	var out []TicketStatus
	for s := range ticketTransitions {
		if s.CanTransitionTo(target) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// TicketTransitionAllowed reports whether every status in from may move to
// target. An empty from allows nothing.
func TicketTransitionAllowed(from []TicketStatus, target TicketStatus) bool {
	if len(from) == 0 {
		return false
	}
	for _, s := range from {
		if !s.CanTransitionTo(target) {
			return false
		}
	}
	return true
}

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted: {},
	PaymentFailed:    {},
	PaymentCancelled: {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return s.IsValid() && len(paymentTransitions[s]) == 0
}
