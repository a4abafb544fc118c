package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "ticketcore:v1"

func KeyTicketType(id uuid.UUID) string {
	return fmt.Sprintf("%s:tt:%s", ns, id)
}

func KeyEventTicketTypes(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:ticket-types", ns, eventID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdempotency(scope, idemKey string) string {
	return fmt.Sprintf("%s:idem:%s:%s", ns, scope, idemKey)
}

func ChannelTicketTypesChanged() string {
	return ns + ":ticket-types:changed"
}
