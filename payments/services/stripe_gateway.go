package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/coupon"
	"github.com/stripe/stripe-go/v74/refund"
	"go.uber.org/zap"
)

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// StripeGateway opens Stripe Checkout Sessions. Stripe rejects negative
// line items, so refund lines are collapsed into a single amount-off
// coupon applied to the session.
type StripeGateway struct {
	config StripeConfig
	logger *zap.Logger

	newSession    func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	expireSession func(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
	newCoupon     func(params *stripe.CouponParams) (*stripe.Coupon, error)
	newRefund     func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func NewStripeGateway(config StripeConfig, logger *zap.Logger) *StripeGateway {
	stripe.Key = config.SecretKey
	if config.Currency == "" {
		config.Currency = "aud"
	}
	return &StripeGateway{
		config:        config,
		logger:        logger,
		newSession:    session.New,
		getSession:    session.Get,
		expireSession: session.Expire,
		newCoupon:     coupon.New,
		newRefund:     refund.New,
	}
}

// cents converts a dollar amount to the smallest currency unit.
func cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *StripeGateway) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.redirect(g.config.SuccessURL, req.InvoiceReference)),
		CancelURL:         stripe.String(g.redirect(g.config.CancelURL, req.InvoiceReference)),
		ClientReferenceID: stripe.String(req.InvoiceReference),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("invoice_reference", req.InvoiceReference)
	params.AddMetadata("application_id", req.ApplicationID.String())

	credit := decimal.Zero
	for _, line := range req.Lines {
		if line.PriceIncl.IsNegative() {
			credit = credit.Add(line.Amount().Neg())
			continue
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(line.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.config.Currency),
				UnitAmount: stripe.Int64(cents(line.PriceIncl)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(line.Description),
					Metadata: map[string]string{"oracle_code": line.AccountingCode},
				},
			},
		})
	}
	if len(params.LineItems) == 0 {
		return nil, ErrNothingToCharge
	}

	if credit.IsPositive() {
		couponParams := &stripe.CouponParams{
			AmountOff: stripe.Int64(cents(credit)),
			Currency:  stripe.String(g.config.Currency),
			Duration:  stripe.String(string(stripe.CouponDurationOnce)),
			Name:      stripe.String(fmt.Sprintf("Refund %s", req.InvoiceReference)),
		}
		couponParams.Context = ctx
		c, err := g.newCoupon(couponParams)
		if err != nil {
			g.logger.Error("Failed to create refund coupon", zap.Error(err), zap.String("invoiceReference", req.InvoiceReference))
			return nil, fmt.Errorf("failed to create refund coupon: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(c.ID)}}
	}

	s, err := g.newSession(params)
	if err != nil {
		g.logger.Error("Failed to create checkout session", zap.Error(err), zap.String("invoiceReference", req.InvoiceReference))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutResult{SessionID: s.ID, RedirectURL: s.URL}, nil
}

// Cancel expires an open checkout session. A session that was already
// expired is left alone; one that completed is reported as an error
// because its payment still has to be confirmed.
func (g *StripeGateway) Cancel(ctx context.Context, sessionID string) error {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	s, err := g.getSession(sessionID, getParams)
	if err != nil {
		return fmt.Errorf("failed to load checkout session: %w", err)
	}
	switch s.Status {
	case stripe.CheckoutSessionStatusExpired:
		return nil
	case stripe.CheckoutSessionStatusComplete:
		return fmt.Errorf("checkout session %s has already been paid", sessionID)
	}

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.expireSession(sessionID, params); err != nil {
		g.logger.Error("Failed to expire checkout session", zap.Error(err), zap.String("sessionID", sessionID))
		return fmt.Errorf("failed to expire checkout session: %w", err)
	}
	return nil
}

// Refund returns money taken through a checkout session.
func (g *StripeGateway) Refund(ctx context.Context, sessionID string, amount decimal.Decimal) error {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	s, err := g.getSession(sessionID, getParams)
	if err != nil {
		return fmt.Errorf("failed to load checkout session: %w", err)
	}
	if s.PaymentIntent == nil {
		return fmt.Errorf("checkout session %s has no payment", sessionID)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(s.PaymentIntent.ID),
		Amount:        stripe.Int64(cents(amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if _, err := g.newRefund(params); err != nil {
		g.logger.Error("Failed to refund payment", zap.Error(err), zap.String("sessionID", sessionID))
		return fmt.Errorf("failed to process refund: %w", err)
	}
	return nil
}

func (g *StripeGateway) redirect(base, reference string) string {
	if strings.Contains(base, "{INVOICE}") {
		return strings.ReplaceAll(base, "{INVOICE}", reference)
	}
	return base
}
