package services

import (
	"context"
	"errors"
	"fmt"
	"wildlife-licensing-backend/db/models"
	notifications_services "wildlife-licensing-backend/notifications/services"
	payments_services "wildlife-licensing-backend/payments/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoGateway is returned by payment operations when no gateway is configured.
var ErrNoGateway = errors.New("payment gateway is not configured")

// priorInvoice is the newest settled invoice of the application this one
// continues, or nil.
func priorInvoice(m *mutation) (*models.ApplicationInvoice, error) {
	if m.app.PreviousApplicationID == nil {
		return nil, nil
	}
	invoices, err := m.repo.ListInvoices(m.ctx, *m.app.PreviousApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	for i := range invoices {
		if invoices[i].IsSettled() {
			return &invoices[i], nil
		}
	}
	return nil, nil
}

func (o *ApplicationOrchestrator) customerEmail(ctx context.Context, actor *models.User, app *models.Application) (string, error) {
	if actor.ID == app.SubmitterID {
		return actor.Email, nil
	}
	submitter, err := o.users.GetUserByID(ctx, app.SubmitterID)
	if err != nil {
		return "", fmt.Errorf("failed to load submitter: %w", err)
	}
	return submitter.Email, nil
}

// Checkout opens a gateway payment session for every fee due on the
// activities awaiting payment. Older pending invoices are cancelled; the
// new invoice is only stored once the gateway accepted the request.
func (o *ApplicationOrchestrator) Checkout(ctx context.Context, rc RequestContext, appID uuid.UUID) (*payments_services.CheckoutResult, error) {
	var result *payments_services.CheckoutResult
	_, err := o.mutate(ctx, rc, appID, "checkout", func(m *mutation) error {
		actor, err := o.requireApplicantOrPermission(ctx, rc, m.app, models.PermissionLicensingOfficer)
		if err != nil {
			return err
		}
		if o.gateway == nil {
			return ErrNoGateway
		}
		prior, err := priorInvoice(m)
		if err != nil {
			return err
		}
		email, err := o.customerEmail(ctx, actor, m.app)
		if err != nil {
			return err
		}

		reference := models.NewInvoiceReference()
		req, err := o.checkout.Build(m.app, o.fees.ClearingInvoice(m.app, prior), reference, email)
		if err != nil {
			return err
		}
		var activityIDs []uuid.UUID
		for _, activity := range o.checkout.GatedActivities(m.app) {
			activityIDs = append(activityIDs, activity.ID)
		}

		if err := o.cancelPendingInvoices(m, nil); err != nil {
			return err
		}

		session, err := o.gateway.Checkout(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to open payment session: %w", err)
		}
		sessionID := session.SessionID
		invoice := &models.ApplicationInvoice{
			ID:                uuid.New(),
			ApplicationID:     m.app.ID,
			InvoiceReference:  reference,
			ActivityIDs:       activityIDs,
			Covers:            o.checkout.Coverage(m.app),
			Amount:            req.Total,
			PaymentMethod:     models.CardPaymentMethod,
			PaymentStatus:     models.PendingPayment,
			ExternalReference: &sessionID,
			CreatedAt:         o.now(),
			CreatedBy:         rc.ActorID,
		}
		if err := m.repo.CreateInvoice(m.ctx, invoice); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionCheckout, reference, req.Total.StringFixed(2)))
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// cancelPendingInvoices cancels the pending invoices covering any of the
// activities, or every pending invoice when activityIDs is nil. Their
// gateway sessions are expired first so they can no longer be paid.
func (o *ApplicationOrchestrator) cancelPendingInvoices(m *mutation, activityIDs []uuid.UUID) error {
	invoices, err := m.repo.ListInvoices(m.ctx, m.app.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	for i := range invoices {
		invoice := &invoices[i]
		if invoice.PaymentStatus != models.PendingPayment || !coversAny(invoice, activityIDs) {
			continue
		}
		if invoice.ExternalReference != nil && o.gateway != nil {
			if err := o.gateway.Cancel(m.ctx, *invoice.ExternalReference); err != nil {
				return fmt.Errorf("failed to cancel invoice %s: %w", invoice.InvoiceReference, err)
			}
		}
		invoice.PaymentStatus = models.CancelledPayment
		if err := m.repo.SaveInvoice(m.ctx, invoice); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionInvoiceCancelled, invoice.InvoiceReference))
	}
	return nil
}

func coversAny(invoice *models.ApplicationInvoice, activityIDs []uuid.UUID) bool {
	if activityIDs == nil {
		return true
	}
	for _, id := range activityIDs {
		if invoice.CoversActivity(id) {
			return true
		}
	}
	return false
}

func (o *ApplicationOrchestrator) loadInvoice(ctx context.Context, reference string) (*models.ApplicationInvoice, error) {
	invoice, err := o.apps.GetInvoiceByReference(ctx, reference)
	if err != nil {
		return nil, notFound("invoice", reference, err)
	}
	return invoice, nil
}

// ConfirmInvoicePayment is the gateway callback. It marks the invoice paid,
// settles the amounts it covered and issues the covered activities that
// are awaiting payment. Confirming a paid invoice again changes nothing.
// Money taken on a cancelled invoice is refunded.
func (o *ApplicationOrchestrator) ConfirmInvoicePayment(ctx context.Context, rc RequestContext, reference string) (*models.Application, error) {
	invoice, err := o.loadInvoice(ctx, reference)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, rc, invoice.ApplicationID, "confirm_payment", func(m *mutation) error {
		invoice, err := m.repo.GetInvoiceByReference(m.ctx, reference)
		if err != nil {
			return notFound("invoice", reference, err)
		}
		switch {
		case invoice.PaymentStatus == models.PaidPayment, invoice.PaymentStatus == models.RefundedPayment:
			return nil
		case invoice.PaymentStatus == models.CancelledPayment && !invoice.Voided:
			return o.refundLatePayment(m, rc, invoice)
		case invoice.PaymentStatus != models.PendingPayment || invoice.Voided:
			return NewValidationError("invoice %s is %s and cannot be paid", reference, StatusLabel(invoice.PaymentStatus))
		}

		paidAt := o.now()
		invoice.PaymentStatus = models.PaidPayment
		invoice.PaymentDate = &paidAt
		if err := m.repo.SaveInvoice(m.ctx, invoice); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionInvoicePaid, reference))

		for _, id := range invoice.ActivityIDs {
			activity := m.app.Activity(id)
			if activity == nil {
				continue
			}
			for i := range activity.ProposedPurposes {
				pp := &activity.ProposedPurposes[i]
				if covered, ok := invoice.CoverageFor(pp.ID); ok {
					o.fees.Settle(pp, covered)
				}
			}
			if activity.ProcessingStatus != models.ProcessingAwaitingLicenceFeePayment {
				continue
			}
			err := o.finalise(m, activity)
			var unsettled *FeeNotSettledError
			if errors.As(err, &unsettled) {
				o.logger.Warn("Issue postponed after payment",
					zap.Error(err),
					zap.String("applicationID", m.app.ID.String()),
					zap.String("activityID", activity.ID.String()),
					zap.String("correlationID", rc.CorrelationID),
				)
				m.record(fmt.Sprintf(ActionFinalDecisionPostponed, activity.Name(), err.Error()))
				continue
			}
			if err != nil {
				return err
			}
		}

		m.notify(notifications_services.KindPaymentReceived, []uuid.UUID{m.app.SubmitterID},
			fmt.Sprintf("Payment received for application %s", applicationLabel(m.app)),
			fmt.Sprintf("We received %s for invoice %s.", invoice.Amount.StringFixed(2), reference))
		return nil
	})
}

// refundLatePayment records a payment taken on a cancelled invoice and
// returns the money. No fee is settled by it.
func (o *ApplicationOrchestrator) refundLatePayment(m *mutation, rc RequestContext, invoice *models.ApplicationInvoice) error {
	if invoice.ExternalReference == nil {
		return NewValidationError("invoice %s is %s and cannot be paid", invoice.InvoiceReference, StatusLabel(invoice.PaymentStatus))
	}
	if o.gateway == nil {
		return ErrNoGateway
	}
	if err := o.gateway.Refund(m.ctx, *invoice.ExternalReference, invoice.Amount); err != nil {
		return fmt.Errorf("failed to refund invoice %s: %w", invoice.InvoiceReference, err)
	}

	paidAt := o.now()
	invoice.PaymentStatus = models.RefundedPayment
	invoice.PaymentDate = &paidAt
	invoice.Voided = true
	if err := m.repo.SaveInvoice(m.ctx, invoice); err != nil {
		return err
	}
	o.logger.Warn("Refunded payment on cancelled invoice",
		zap.String("invoiceReference", invoice.InvoiceReference),
		zap.String("applicationID", m.app.ID.String()),
		zap.String("correlationID", rc.CorrelationID),
	)
	m.record(fmt.Sprintf(ActionInvoicePaid, invoice.InvoiceReference))
	m.record(fmt.Sprintf(ActionLatePaymentRefunded, invoice.InvoiceReference))
	m.notify(notifications_services.KindPaymentRefunded, []uuid.UUID{m.app.SubmitterID},
		fmt.Sprintf("Payment refunded for application %s", applicationLabel(m.app)),
		fmt.Sprintf("Invoice %s had been replaced before it was paid. The %s you paid will be refunded.",
			invoice.InvoiceReference, invoice.Amount.StringFixed(2)))
	return nil
}

// RecordRefund refunds a paid invoice through the gateway and voids it.
func (o *ApplicationOrchestrator) RecordRefund(ctx context.Context, rc RequestContext, reference string) (*models.Application, error) {
	invoice, err := o.loadInvoice(ctx, reference)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, rc, invoice.ApplicationID, "record_refund", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		invoice, err := m.repo.GetInvoiceByReference(m.ctx, reference)
		if err != nil {
			return notFound("invoice", reference, err)
		}
		if !invoice.IsSettled() {
			return NewValidationError("invoice %s has not been paid", reference)
		}
		if invoice.ExternalReference != nil {
			if o.gateway == nil {
				return ErrNoGateway
			}
			if err := o.gateway.Refund(ctx, *invoice.ExternalReference, invoice.Amount); err != nil {
				return fmt.Errorf("failed to refund invoice %s: %w", reference, err)
			}
		}
		invoice.PaymentStatus = models.RefundedPayment
		invoice.Voided = true
		if err := m.repo.SaveInvoice(m.ctx, invoice); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionInvoiceRefunded, reference))
		return nil
	})
}
