package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// ErrIgnoredEvent is returned for webhook events that carry no payment.
var ErrIgnoredEvent = errors.New("webhook event ignored")

// PaidInvoiceReference verifies a Stripe webhook and returns the invoice
// reference of a completed and paid checkout session.
func PaidInvoiceReference(payload []byte, signature, secret string) (string, error) {
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return "", fmt.Errorf("invalid webhook: %w", err)
	}
	if event.Type != "checkout.session.completed" && event.Type != "checkout.session.async_payment_succeeded" {
		return "", ErrIgnoredEvent
	}

	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return "", fmt.Errorf("invalid checkout session in webhook: %w", err)
	}
	if checkout.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", ErrIgnoredEvent
	}
	if checkout.ClientReferenceID == "" {
		return "", fmt.Errorf("checkout session %s has no invoice reference", checkout.ID)
	}
	return checkout.ClientReferenceID, nil
}
