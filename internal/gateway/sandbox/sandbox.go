// Package sandbox is a development payment gateway. It signs callback
// parameters with HMAC-SHA256 so the full purchase flow can be exercised
// without a real provider.
package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/kirinyoku/ticketcore/internal/service/payment"
	"github.com/lithammer/shortuuid/v3"
)

const (
	ParamPaymentID     = "payment_id"
	ParamTransactionID = "transaction_id"
	ParamStatus        = "status"
	ParamSignature     = "sig"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var ErrMissingSecret = errors.New("sandbox: secret is required")

type Config struct {
	Name    string `yaml:"name"`
	Secret  string `yaml:"secret"`
	BaseURL string `yaml:"base_url"`
}

type Gateway struct {
	name    string
	secret  []byte
	baseURL string
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.Name == "" {
		cfg.Name = "sandbox"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/sandbox/pay"
	}

	return &Gateway{name: cfg.Name, secret: []byte(cfg.Secret), baseURL: cfg.BaseURL}, nil
}

func (g *Gateway) Name() string { return g.name }

func (g *Gateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("sandbox: amount must be positive, got %s", req.Amount)
	}

	txID := "sbx_" + shortuuid.New()

	q := url.Values{}
	q.Set(ParamPaymentID, req.PaymentID.String())
	q.Set(ParamTransactionID, txID)
	q.Set("amount", req.Amount.StringFixed(2))
	if req.ReturnURL != "" {
		q.Set("return_url", req.ReturnURL)
	}

	return &payment.InitiateResponse{
		TransactionID: txID,
		RedirectURL:   g.baseURL + "?" + q.Encode(),
		Extra: map[string]string{
			"gateway": g.name,
		},
	}, nil
}

// Verify accepts callbacks whose status is success and whose signature
// matches the payment id, transaction id and status.
func (g *Gateway) Verify(ctx context.Context, params map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	sig, err := hex.DecodeString(params[ParamSignature])
	if err != nil || len(sig) == 0 {
		return false, nil
	}

	want := g.mac(params[ParamPaymentID], params[ParamTransactionID], params[ParamStatus])
	if !hmac.Equal(sig, want) {
		return false, nil
	}

	return params[ParamStatus] == StatusSuccess, nil
}

// Sign returns the hex signature the sandbox expects for a callback.
func (g *Gateway) Sign(paymentID, transactionID, status string) string {
	return hex.EncodeToString(g.mac(paymentID, transactionID, status))
}

func (g *Gateway) mac(paymentID, transactionID, status string) []byte {
	m := hmac.New(sha256.New, g.secret)
	m.Write([]byte(paymentID + "|" + transactionID + "|" + status))
	return m.Sum(nil)
}
