package models

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoiceReferencePattern = regexp.MustCompile(`^INV-[0-9A-F]{32}$`)

func TestNewInvoiceReferenceKeepsTheWholeUUID(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		reference := NewInvoiceReference()
		require.Regexp(t, invoiceReferencePattern, reference)
		require.False(t, seen[reference], "duplicate reference %s", reference)
		seen[reference] = true
	}
}

func TestBeforeCreateFillsReference(t *testing.T) {
	invoice := &ApplicationInvoice{}
	require.NoError(t, invoice.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, invoice.ID)
	assert.Regexp(t, invoiceReferencePattern, invoice.InvoiceReference)

	kept := &ApplicationInvoice{InvoiceReference: "INV-LEGACY"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "INV-LEGACY", kept.InvoiceReference)
}

func TestCoverageFor(t *testing.T) {
	covered := uuid.New()
	invoice := &ApplicationInvoice{Covers: []InvoiceCoverage{{
		ProposedPurposeID: covered,
		ApplicationFee:    decimal.RequireFromString("100.00"),
		LicenceFee:        decimal.Zero,
		AdditionalFee:     decimal.Zero,
	}}}

	coverage, ok := invoice.CoverageFor(covered)
	require.True(t, ok)
	assert.True(t, coverage.ApplicationFee.Equal(decimal.NewFromInt(100)))

	_, ok = invoice.CoverageFor(uuid.New())
	assert.False(t, ok)
}
