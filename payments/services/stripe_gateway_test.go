package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
)

type stripeCalls struct {
	sessions []*stripe.CheckoutSessionParams
	coupons  []*stripe.CouponParams
	refunds  []*stripe.RefundParams
	expired  []string
}

func testGateway(calls *stripeCalls) *StripeGateway {
	g := NewStripeGateway(StripeConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://licensing.example.com/payment/{INVOICE}/success",
		CancelURL:  "https://licensing.example.com/payment/cancelled",
	}, zap.NewNop())
	g.newSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		calls.sessions = append(calls.sessions, params)
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}
	g.newCoupon = func(params *stripe.CouponParams) (*stripe.Coupon, error) {
		calls.coupons = append(calls.coupons, params)
		return &stripe.Coupon{ID: "co_refund"}, nil
	}
	g.getSession = func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: id, PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"}}, nil
	}
	g.expireSession = func(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
		calls.expired = append(calls.expired, id)
		return &stripe.CheckoutSession{ID: id, Status: stripe.CheckoutSessionStatusExpired}, nil
	}
	g.newRefund = func(params *stripe.RefundParams) (*stripe.Refund, error) {
		calls.refunds = append(calls.refunds, params)
		return &stripe.Refund{ID: "re_1"}, nil
	}
	return g
}

func request(lines ...LineItem) CheckoutRequest {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return CheckoutRequest{
		ApplicationID:    uuid.MustParse("5d0c6a4e-3f7a-4b8e-9d61-1f2a3b4c5d6e"),
		InvoiceReference: "INV-00042",
		InvoiceText:      "Fees for application A000042",
		CustomerEmail:    "ada@example.com",
		Lines:            lines,
		Total:            total,
	}
}

func line(description, incl string) LineItem {
	price := decimal.RequireFromString(incl)
	return LineItem{Description: description, Quantity: 1, PriceIncl: price, PriceExcl: price, AccountingCode: "NNP415"}
}

func TestStripeCheckoutBuildsLineItems(t *testing.T) {
	calls := &stripeCalls{}
	result, err := testGateway(calls).Checkout(context.Background(), request(
		line("Keeping (Application Fee)", "100.00"),
		line("Keeping (Licence Fee)", "12.345"),
	))
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", result.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", result.RedirectURL)

	require.Len(t, calls.sessions, 1)
	params := calls.sessions[0]
	assert.Equal(t, "https://licensing.example.com/payment/INV-00042/success", *params.SuccessURL)
	assert.Equal(t, "https://licensing.example.com/payment/cancelled", *params.CancelURL)
	assert.Equal(t, "INV-00042", *params.ClientReferenceID)
	assert.Equal(t, "ada@example.com", *params.CustomerEmail)
	assert.Equal(t, "INV-00042", params.Metadata["invoice_reference"])

	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(10000), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(1235), *params.LineItems[1].PriceData.UnitAmount)
	assert.Equal(t, "aud", *params.LineItems[0].PriceData.Currency)
	assert.Equal(t, "Keeping (Application Fee)", *params.LineItems[0].PriceData.ProductData.Name)
	assert.Empty(t, calls.coupons)
	assert.Empty(t, params.Discounts)
}

func TestStripeCheckoutTurnsRefundLinesIntoCoupon(t *testing.T) {
	calls := &stripeCalls{}
	_, err := testGateway(calls).Checkout(context.Background(), request(
		line("Keeping (Licence Fee)", "250.00"),
		line("Trading (Refund)", "-30.00"),
	))
	require.NoError(t, err)

	require.Len(t, calls.coupons, 1)
	assert.Equal(t, int64(3000), *calls.coupons[0].AmountOff)
	require.Len(t, calls.sessions[0].LineItems, 1)
	require.Len(t, calls.sessions[0].Discounts, 1)
	assert.Equal(t, "co_refund", *calls.sessions[0].Discounts[0].Coupon)
}

func TestStripeCheckoutWithoutChargeableLines(t *testing.T) {
	calls := &stripeCalls{}
	_, err := testGateway(calls).Checkout(context.Background(), request(line("Trading (Refund)", "-30.00")))
	assert.ErrorIs(t, err, ErrNothingToCharge)
	assert.Empty(t, calls.sessions)
}

func TestStripeCheckoutSurfacesSessionFailure(t *testing.T) {
	calls := &stripeCalls{}
	g := testGateway(calls)
	g.newSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("card_declined")
	}
	_, err := g.Checkout(context.Background(), request(line("Keeping (Application Fee)", "100.00")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card_declined")
}

func TestStripeRefund(t *testing.T) {
	calls := &stripeCalls{}
	g := testGateway(calls)

	require.NoError(t, g.Refund(context.Background(), "cs_test_1", decimal.RequireFromString("100")))
	require.Len(t, calls.refunds, 1)
	assert.Equal(t, "pi_123", *calls.refunds[0].PaymentIntent)
	assert.Equal(t, int64(10000), *calls.refunds[0].Amount)

	g.getSession = func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: id}, nil
	}
	assert.Error(t, g.Refund(context.Background(), "cs_unpaid", decimal.RequireFromString("100")))
}

func TestStripeCancel(t *testing.T) {
	sessionIn := func(status stripe.CheckoutSessionStatus) func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return &stripe.CheckoutSession{ID: id, Status: status}, nil
		}
	}

	t.Run("open session is expired", func(t *testing.T) {
		calls := &stripeCalls{}
		g := testGateway(calls)
		g.getSession = sessionIn(stripe.CheckoutSessionStatusOpen)
		require.NoError(t, g.Cancel(context.Background(), "cs_open"))
		assert.Equal(t, []string{"cs_open"}, calls.expired)
	})

	t.Run("expired session is left alone", func(t *testing.T) {
		calls := &stripeCalls{}
		g := testGateway(calls)
		g.getSession = sessionIn(stripe.CheckoutSessionStatusExpired)
		require.NoError(t, g.Cancel(context.Background(), "cs_gone"))
		assert.Empty(t, calls.expired)
	})

	t.Run("paid session cannot be cancelled", func(t *testing.T) {
		calls := &stripeCalls{}
		g := testGateway(calls)
		g.getSession = sessionIn(stripe.CheckoutSessionStatusComplete)
		assert.Error(t, g.Cancel(context.Background(), "cs_paid"))
		assert.Empty(t, calls.expired)
	})
}
