package services

import (
	"wildlife-licensing-backend/db/models"

	"github.com/shopspring/decimal"
)

// LicenceFeeClearingInvoice settles licence fees between an amendment and
// the invoice paid for the activity it amends. When the officer lowers a
// licence fee below what was already paid, the difference is handed back
// as a refund line.
type LicenceFeeClearingInvoice struct {
	fees  *FeePolicy
	app   *models.Application
	prior *models.ApplicationInvoice
}

// ClearingInvoice pairs an application with the last invoice of the
// application it continues. prior may be nil.
func (p *FeePolicy) ClearingInvoice(app *models.Application, prior *models.ApplicationInvoice) *LicenceFeeClearingInvoice {
	return &LicenceFeeClearingInvoice{fees: p, app: app, prior: prior}
}

// IsRefundable reports whether money paid on the prior invoice can be
// returned. A voided or unpaid prior invoice never is.
func (c *LicenceFeeClearingInvoice) IsRefundable() bool {
	if c == nil || c.app == nil || c.prior == nil {
		return false
	}
	return c.app.ApplicationType == models.AmendmentApplication && c.prior.IsSettled()
}

// RefundFor is the credit in excess of the adjusted licence fee.
func (c *LicenceFeeClearingInvoice) RefundFor(pp *models.ProposedPurpose) decimal.Decimal {
	if !c.IsRefundable() || !chargeable(pp) || !pp.HasAdjustedLicenceFee {
		return decimal.Zero
	}
	return nonNegative(pp.LicenceFeeCredit.Sub(pp.LicenceFee))
}

// Refunds sums the refunds due across payable purposes of the activity.
func (c *LicenceFeeClearingInvoice) Refunds(activity *models.SelectedActivity) decimal.Decimal {
	total := decimal.Zero
	for i := range activity.ProposedPurposes {
		pp := &activity.ProposedPurposes[i]
		if pp.Status == models.PurposeDeclined {
			continue
		}
		total = total.Add(c.RefundFor(pp))
	}
	return total
}
