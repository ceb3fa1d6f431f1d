package services

import (
	"fmt"
	"wildlife-licensing-backend/db/models"

	"github.com/shopspring/decimal"
)

// DefaultGSTRate is the GST percentage used when no rate is configured.
var DefaultGSTRate = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// Fees is an application fee and licence fee pair.
type Fees struct {
	Application decimal.Decimal `json:"application_fee"`
	Licence     decimal.Decimal `json:"licence_fee"`
}

// Total is the sum of both fees.
func (f Fees) Total() decimal.Decimal {
	return f.Application.Add(f.Licence)
}

func (f Fees) add(other Fees) Fees {
	return Fees{Application: f.Application.Add(other.Application), Licence: f.Licence.Add(other.Licence)}
}

// FeePolicy computes fees and what is still owed. It never touches storage.
type FeePolicy struct {
	GSTFree bool
	GSTRate decimal.Decimal
}

func NewFeePolicy(gstFree bool, gstRate decimal.Decimal) *FeePolicy {
	if gstRate.IsZero() && !gstFree {
		gstRate = DefaultGSTRate
	}
	return &FeePolicy{GSTFree: gstFree, GSTRate: gstRate}
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return money(d)
}

// BaseFee is the catalog fee of one purpose for an application type.
func (p *FeePolicy) BaseFee(purpose models.LicencePurpose, applicationType models.ApplicationType) Fees {
	switch applicationType {
	case models.RenewalApplication:
		return Fees{Application: money(purpose.RenewalApplicationFee), Licence: money(purpose.BaseLicenceFee)}
	case models.AmendmentApplication:
		return Fees{Application: money(purpose.AmendmentApplicationFee), Licence: decimal.Zero}
	case models.ReissueApplication:
		return Fees{Application: decimal.Zero, Licence: decimal.Zero}
	default:
		return Fees{Application: money(purpose.BaseApplicationFee), Licence: money(purpose.BaseLicenceFee)}
	}
}

// BaseFeeFor sums the base fees of the purposes.
func (p *FeePolicy) BaseFeeFor(purposes []models.LicencePurpose, applicationType models.ApplicationType) Fees {
	total := Fees{Application: decimal.Zero, Licence: decimal.Zero}
	for _, purpose := range purposes {
		total = total.add(p.BaseFee(purpose, applicationType))
	}
	return total
}

// chargeable reports whether fees of the purpose are collected at all.
func chargeable(pp *models.ProposedPurpose) bool {
	return pp.IsPayable && !pp.FeesWaived
}

func (p *FeePolicy) PayableApplicationFee(pp *models.ProposedPurpose) decimal.Decimal {
	if !chargeable(pp) {
		return decimal.Zero
	}
	return nonNegative(pp.ApplicationFee.Sub(pp.PaidApplicationFee))
}

// PayableLicenceFee is the licence fee less the credit carried from the
// source purpose and anything already paid.
func (p *FeePolicy) PayableLicenceFee(pp *models.ProposedPurpose) decimal.Decimal {
	if !chargeable(pp) {
		return decimal.Zero
	}
	return nonNegative(pp.LicenceFee.Sub(pp.LicenceFeeCredit).Sub(pp.PaidLicenceFee))
}

func (p *FeePolicy) AdditionalFee(pp *models.ProposedPurpose) decimal.Decimal {
	if !chargeable(pp) {
		return decimal.Zero
	}
	return nonNegative(pp.AdditionalFee.Sub(pp.PaidAdditionalFee))
}

// Outstanding is everything still owed for one purpose.
func (p *FeePolicy) Outstanding(pp *models.ProposedPurpose) decimal.Decimal {
	return p.PayableApplicationFee(pp).Add(p.PayableLicenceFee(pp)).Add(p.AdditionalFee(pp))
}

// ActivityOutstanding sums what is owed across purposes that were not declined.
func (p *FeePolicy) ActivityOutstanding(activity *models.SelectedActivity) decimal.Decimal {
	total := decimal.Zero
	for i := range activity.ProposedPurposes {
		pp := &activity.ProposedPurposes[i]
		if pp.Status == models.PurposeDeclined {
			continue
		}
		total = total.Add(p.Outstanding(pp))
	}
	return money(total)
}

// Settled returns a FeeNotSettledError when a purpose still waits on a
// decision or money is owed on the activity.
func (p *FeePolicy) Settled(activity *models.SelectedActivity) error {
	for _, pp := range activity.ProposedPurposes {
		if pp.Status == models.PurposeSelected {
			return &FeeNotSettledError{
				ActivityID:  activity.ID,
				Outstanding: p.ActivityOutstanding(activity),
				Message:     fmt.Sprintf("%s has purposes that have not been proposed for issue", activity.Name()),
			}
		}
	}
	if outstanding := p.ActivityOutstanding(activity); outstanding.IsPositive() {
		return &FeeNotSettledError{ActivityID: activity.ID, Outstanding: outstanding}
	}
	return nil
}

// Covered is what an invoice raised now would pay towards the purpose.
func (p *FeePolicy) Covered(pp *models.ProposedPurpose) models.InvoiceCoverage {
	return models.InvoiceCoverage{
		ProposedPurposeID: pp.ID,
		ApplicationFee:    p.PayableApplicationFee(pp),
		LicenceFee:        p.PayableLicenceFee(pp),
		AdditionalFee:     p.AdditionalFee(pp),
	}
}

// Settle records the amounts an invoice paid towards the purpose. Fees
// raised after the invoice was built stay outstanding.
func (p *FeePolicy) Settle(pp *models.ProposedPurpose, paid models.InvoiceCoverage) {
	pp.PaidApplicationFee = money(pp.PaidApplicationFee.Add(paid.ApplicationFee))
	pp.PaidLicenceFee = money(pp.PaidLicenceFee.Add(paid.LicenceFee))
	pp.PaidAdditionalFee = money(pp.PaidAdditionalFee.Add(paid.AdditionalFee))
}

// PriceExclusive strips GST from a GST inclusive price.
func (p *FeePolicy) PriceExclusive(inclusive decimal.Decimal) decimal.Decimal {
	if p.GSTFree {
		return money(inclusive)
	}
	return inclusive.Div(decimal.NewFromInt(1).Add(p.GSTRate.Div(hundred))).Round(2)
}
