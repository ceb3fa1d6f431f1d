package services

import (
	"testing"
	"wildlife-licensing-backend/db/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCustomerStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.ProcessingStatus
		want     models.CustomerStatus
	}{
		{"no activities", nil, models.CustomerStatusDraft},
		{"all draft", []models.ProcessingStatus{models.ProcessingDraft}, models.CustomerStatusDraft},
		{"all discarded", []models.ProcessingStatus{models.ProcessingDiscarded, models.ProcessingDiscarded}, models.CustomerStatusDiscarded},
		{"discarded ignored", []models.ProcessingStatus{models.ProcessingDiscarded, models.ProcessingWithOfficer}, models.CustomerStatusUnderReview},
		{"awaiting payment wins over review", []models.ProcessingStatus{models.ProcessingAwaitingLicenceFeePayment, models.ProcessingWithOfficer}, models.CustomerStatusAwaitingPayment},
		{"partially approved", []models.ProcessingStatus{models.ProcessingAccepted, models.ProcessingOfficerConditions}, models.CustomerStatusPartiallyApproved},
		{"accepted with a decline", []models.ProcessingStatus{models.ProcessingAccepted, models.ProcessingDeclined}, models.CustomerStatusAccepted},
		{"all declined", []models.ProcessingStatus{models.ProcessingDeclined}, models.CustomerStatusDeclined},
		{"draft after amendment", []models.ProcessingStatus{models.ProcessingDraft, models.ProcessingAccepted}, models.CustomerStatusDraft},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveCustomerStatus(tc.statuses))
		})
	}
}
