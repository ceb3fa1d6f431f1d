package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Audit entry templates.
const (
	ActionCreateApplication        = "Create %s application for %s"
	ActionLodgeApplication         = "Lodge application %s"
	ActionAssignOfficer            = "Assign %s as officer of %s"
	ActionUnassignOfficer          = "Unassign officer from %s"
	ActionAssignApprover           = "Assign %s as approver of %s"
	ActionUnassignApprover         = "Unassign approver from %s"
	ActionChangeProcessingStatus   = "Change %s processing status from %s to %s"
	ActionChangeActivityStatus     = "Change %s activity status from %s to %s"
	ActionSendToAssessor           = "Send %s to assessor group %s"
	ActionCompleteAssessment       = "Complete assessment of %s for group %s"
	ActionRecallAssessment         = "Recall assessment of %s from group %s"
	ActionRemindAssessment         = "Remind assessor group %s about %s"
	ActionRequestAmendment         = "Request amendment of %s: %s"
	ActionProposeIssue             = "Propose %s for issue"
	ActionProposeDecline           = "Propose %s for decline"
	ActionIssueLicence             = "Issue %s: %s"
	ActionDiscardActivity          = "Discard %s"
	ActionPurposeVersionUpdated    = "Licence purpose %s updated to version %d"
	ActionCopyPurpose              = "Copy licence purpose %s from application %s"
	ActionCheckout                 = "Checkout invoice %s for %s"
	ActionInvoicePaid              = "Invoice %s paid"
	ActionInvoiceRefunded          = "Invoice %s refunded"
	ActionInvoiceCancelled         = "Cancel invoice %s"
	ActionLatePaymentRefunded      = "Refund payment received on cancelled invoice %s"
	ActionWaiveFees                = "Waive fees of %s"
	ActionReissueActivity          = "Reissue %s"
	ActionFinalDecisionPostponed   = "Issue of %s postponed: %s"
	ActionProposedPurposeFeeChange = "Adjust licence fee of %s to %s"
)

// StatusLabel renders an enum value such as AWAITING_LICENCE_FEE_PAYMENT
// as "Awaiting Licence Fee Payment".
func StatusLabel[S ~string](status S) string {
	return cases.Title(language.English).String(strings.ToLower(strings.ReplaceAll(string(status), "_", " ")))
}
