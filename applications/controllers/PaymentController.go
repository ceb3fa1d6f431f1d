package controllers

import (
	"errors"
	"wildlife-licensing-backend/applications/requests"
	applications_services "wildlife-licensing-backend/applications/services"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/middleware"
	payments_services "wildlife-licensing-backend/payments/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CheckoutController opens a payment session for the fees due.
func (ac *ApplicationController) CheckoutController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	result, err := ac.Orchestrator.Checkout(c.UserContext(), rc, appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Checkout opened", result)
}

// StripeWebhookController confirms invoices paid through Stripe Checkout.
// Events that carry no payment are acknowledged and ignored.
func (ac *ApplicationController) StripeWebhookController(c *fiber.Ctx) error {
	reference, err := payments_services.PaidInvoiceReference(c.Body(), c.Get("Stripe-Signature"), ac.WebhookSecret)
	if errors.Is(err, payments_services.ErrIgnoredEvent) {
		return c.JSON(fiber.Map{"received": true})
	}
	if err != nil {
		config.Logger.Warn("Rejected Stripe webhook", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid webhook",
		})
	}

	rc := applications_services.NewRequestContext(applications_services.SystemActor, middleware.CorrelationID(c))
	if _, err := ac.Orchestrator.ConfirmInvoicePayment(c.UserContext(), rc, reference); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// RefundInvoiceController refunds a paid invoice.
func (ac *ApplicationController) RefundInvoiceController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	var req requests.InvoiceReferenceRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.RecordRefund(c.UserContext(), rc, req.InvoiceReference)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Invoice refunded", app)
}
