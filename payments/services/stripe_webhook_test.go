package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

const webhookSecret = "whsec_test_secret"

func signed(t *testing.T, eventType, paymentStatus string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {"object": {"id": "cs_test_1", "object": "checkout.session", "client_reference_id": "INV-00042", "payment_status": %q}}
	}`, stripe.APIVersion, eventType, paymentStatus))
	signedPayload := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return signedPayload.Payload, signedPayload.Header
}

func TestPaidInvoiceReference(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "paid")
	reference, err := PaidInvoiceReference(payload, header, webhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "INV-00042", reference)
}

func TestPaidInvoiceReferenceIgnoresUnpaidAndOtherEvents(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "unpaid")
	_, err := PaidInvoiceReference(payload, header, webhookSecret)
	assert.ErrorIs(t, err, ErrIgnoredEvent)

	payload, header = signed(t, "customer.created", "paid")
	_, err = PaidInvoiceReference(payload, header, webhookSecret)
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}

func TestPaidInvoiceReferenceRejectsBadSignature(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "paid")
	_, err := PaidInvoiceReference(payload, header, "whsec_other")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIgnoredEvent)
}
