package services

import (
	"fmt"
	"strings"
	"wildlife-licensing-backend/db/models"
	payments_services "wildlife-licensing-backend/payments/services"

	"github.com/shopspring/decimal"
)

// FeeGate selects which awaiting activities enter checkout.
type FeeGate struct {
	PayableAtIssue     bool
	AdjustedLicenceFee bool
	AdditionalFee      bool
}

const (
	gatePayableAtIssue     = "payable_at_issue"
	gateAdjustedLicenceFee = "adjusted_licence_fee"
	gateAdditionalFee      = "additional_fee"
)

func DefaultFeeGate() FeeGate {
	return FeeGate{PayableAtIssue: true, AdjustedLicenceFee: true, AdditionalFee: true}
}

// ParseFeeGate reads a comma separated list of gate flags. An empty
// string selects every flag.
func ParseFeeGate(value string) (FeeGate, error) {
	if strings.TrimSpace(value) == "" {
		return DefaultFeeGate(), nil
	}
	var gate FeeGate
	for _, flag := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case gatePayableAtIssue:
			gate.PayableAtIssue = true
		case gateAdjustedLicenceFee:
			gate.AdjustedLicenceFee = true
		case gateAdditionalFee:
			gate.AdditionalFee = true
		case "":
		default:
			return FeeGate{}, fmt.Errorf("unknown checkout fee gate %q", flag)
		}
	}
	return gate, nil
}

// Admits reports whether the activity is awaiting payment and matches an
// enabled flag.
func (g FeeGate) Admits(activity *models.SelectedActivity) bool {
	if activity.ProcessingStatus != models.ProcessingAwaitingLicenceFeePayment {
		return false
	}
	return (g.PayableAtIssue && activity.HasPayableFeesAtIssue()) ||
		(g.AdjustedLicenceFee && activity.HasAdjustedLicenceFee()) ||
		(g.AdditionalFee && activity.HasAdditionalFee())
}

// CheckoutAssembler turns what an application owes into gateway line items.
// It never changes the application.
type CheckoutAssembler struct {
	fees     *FeePolicy
	gate     FeeGate
	purposes *PurposeAssignment
}

func NewCheckoutAssembler(fees *FeePolicy, gate FeeGate) *CheckoutAssembler {
	// Only the catalog free part of purpose assignment is used here.
	return &CheckoutAssembler{fees: fees, gate: gate, purposes: NewPurposeAssignment(fees, nil)}
}

// GatedActivities returns the activities entering checkout, in display order.
func (c *CheckoutAssembler) GatedActivities(app *models.Application) []*models.SelectedActivity {
	var gated []*models.SelectedActivity
	for i := range app.SelectedActivities {
		if c.gate.Admits(&app.SelectedActivities[i]) {
			gated = append(gated, &app.SelectedActivities[i])
		}
	}
	return gated
}

func (c *CheckoutAssembler) line(description, accountCode string, amount decimal.Decimal) payments_services.LineItem {
	excl := c.fees.PriceExclusive(amount.Abs())
	if amount.IsNegative() {
		excl = excl.Neg()
	}
	return payments_services.LineItem{
		Description:    description,
		Quantity:       1,
		PriceIncl:      money(amount),
		PriceExcl:      excl,
		AccountingCode: accountCode,
	}
}

// ProductLines lists application, licence, additional fee and refund lines
// for each payable purpose of each gated activity. Zero amounts are skipped.
func (c *CheckoutAssembler) ProductLines(app *models.Application, clearing *LicenceFeeClearingInvoice) []payments_services.LineItem {
	var lines []payments_services.LineItem
	for _, activity := range c.GatedActivities(app) {
		for _, pp := range c.purposes.GetPayable(activity) {
			if fee := c.fees.PayableApplicationFee(pp); fee.IsPositive() {
				lines = append(lines, c.line(pp.Name()+" (Application Fee)", pp.AccountCode(), fee))
			}
			if fee := c.fees.PayableLicenceFee(pp); fee.IsPositive() {
				lines = append(lines, c.line(pp.Name()+" (Licence Fee)", pp.AccountCode(), fee))
			}
			if fee := c.fees.AdditionalFee(pp); fee.IsPositive() {
				description := pp.Name() + " (Additional Fee)"
				if pp.AdditionalFeeText != nil && strings.TrimSpace(*pp.AdditionalFeeText) != "" {
					description = strings.TrimSpace(*pp.AdditionalFeeText)
				}
				lines = append(lines, c.line(description, pp.AccountCode(), fee))
			}
			if refund := clearing.RefundFor(pp); refund.IsPositive() {
				lines = append(lines, c.line(pp.Name()+" (Refund)", pp.AccountCode(), refund.Neg()))
			}
		}
	}
	return lines
}

// Coverage lists what an invoice for the gated activities pays towards
// each payable purpose. Purposes with nothing owed are left out.
func (c *CheckoutAssembler) Coverage(app *models.Application) []models.InvoiceCoverage {
	var covers []models.InvoiceCoverage
	for _, activity := range c.GatedActivities(app) {
		for _, pp := range c.purposes.GetPayable(activity) {
			covered := c.fees.Covered(pp)
			if covered.ApplicationFee.Add(covered.LicenceFee).Add(covered.AdditionalFee).IsPositive() {
				covers = append(covers, covered)
			}
		}
	}
	return covers
}

// Total sums the GST inclusive line amounts.
func Total(lines []payments_services.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return money(total)
}

// Build assembles the gateway request. A request totalling zero or less
// is rejected before any gateway is called.
func (c *CheckoutAssembler) Build(app *models.Application, clearing *LicenceFeeClearingInvoice, invoiceReference, customerEmail string) (payments_services.CheckoutRequest, error) {
	lines := c.ProductLines(app, clearing)
	total := Total(lines)
	if !total.IsPositive() {
		return payments_services.CheckoutRequest{}, NewValidationError("Checkout request for zero amount.")
	}
	text := "Application fees"
	if app.LodgementNumber != nil {
		text = fmt.Sprintf("Fees for application %s", *app.LodgementNumber)
	}
	return payments_services.CheckoutRequest{
		ApplicationID:    app.ID,
		InvoiceReference: invoiceReference,
		InvoiceText:      text,
		CustomerEmail:    customerEmail,
		Lines:            lines,
		Total:            total,
	}, nil
}
