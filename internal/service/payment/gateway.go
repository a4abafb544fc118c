package payment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/shopspring/decimal"
)

type InitiateRequest struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Description string
	Method      string
	ReturnURL   string
	Metadata    map[string]string
}

type InitiateResponse struct {
	// TransactionID may be empty when the gateway assigns it later.
	TransactionID string
	RedirectURL   string
	Extra         map[string]string
}

// Gateway is an external payment provider.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	// Verify checks the parameters of a gateway callback.
	Verify(ctx context.Context, params map[string]string) (bool, error)
}

// Registry resolves gateways by case-insensitive name.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds g, replacing any gateway with the same name.
func (r *Registry) Register(g Gateway) {
	r.gateways[strings.ToLower(g.Name())] = g
}

func (r *Registry) Lookup(method string) (Gateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("%q: %w", method, domain.ErrUnsupportedPaymentMethod)
	}
	return g, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
