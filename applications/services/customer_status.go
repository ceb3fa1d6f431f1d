package services

import "wildlife-licensing-backend/db/models"

// DeriveCustomerStatus computes the applicant facing status of an
// application from the processing statuses of its activities. Discarded
// activities are ignored unless every activity was discarded.
func DeriveCustomerStatus(statuses []models.ProcessingStatus) models.CustomerStatus {
	if len(statuses) == 0 {
		return models.CustomerStatusDraft
	}

	var live []models.ProcessingStatus
	for _, status := range statuses {
		if status != models.ProcessingDiscarded {
			live = append(live, status)
		}
	}
	if len(live) == 0 {
		return models.CustomerStatusDiscarded
	}

	var draft, awaiting, accepted, declined, inProgress int
	for _, status := range live {
		switch status {
		case models.ProcessingDraft:
			draft++
		case models.ProcessingAwaitingLicenceFeePayment:
			awaiting++
		case models.ProcessingAccepted:
			accepted++
		case models.ProcessingDeclined:
			declined++
		default:
			inProgress++
		}
	}

	switch {
	case draft > 0:
		return models.CustomerStatusDraft
	case awaiting > 0:
		return models.CustomerStatusAwaitingPayment
	case accepted > 0 && inProgress > 0:
		return models.CustomerStatusPartiallyApproved
	case inProgress > 0:
		return models.CustomerStatusUnderReview
	case accepted > 0:
		return models.CustomerStatusAccepted
	default:
		return models.CustomerStatusDeclined
	}
}
