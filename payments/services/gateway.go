package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNothingToCharge is returned when a checkout request carries no positive lines.
var ErrNothingToCharge = errors.New("checkout request has nothing to charge")

// LineItem is one product line of a checkout. Refund lines carry a
// negative price.
type LineItem struct {
	Description    string          `json:"description"`
	Quantity       int64           `json:"quantity"`
	PriceIncl      decimal.Decimal `json:"price_incl"`
	PriceExcl      decimal.Decimal `json:"price_excl"`
	AccountingCode string          `json:"oracle_code"`
}

// Amount is the GST inclusive line total.
func (l LineItem) Amount() decimal.Decimal {
	return l.PriceIncl.Mul(decimal.NewFromInt(l.Quantity))
}

// CheckoutRequest is what the gateway needs to take a payment.
type CheckoutRequest struct {
	ApplicationID    uuid.UUID       `json:"application_id"`
	InvoiceReference string          `json:"invoice_reference"`
	InvoiceText      string          `json:"invoice_text"`
	CustomerEmail    string          `json:"customer_email"`
	Lines            []LineItem      `json:"lines"`
	Total            decimal.Decimal `json:"total"`
}

// CheckoutResult identifies the payment session opened by the gateway.
type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Gateway takes and refunds payments. Cancel closes a session that was not
// paid so it can no longer take money.
type Gateway interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Cancel(ctx context.Context, sessionID string) error
	Refund(ctx context.Context, sessionID string, amount decimal.Decimal) error
}
