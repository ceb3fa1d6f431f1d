package requests

import (
	applications_services "wildlife-licensing-backend/applications/services"
	"wildlife-licensing-backend/db/models"
	"wildlife-licensing-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Check validates a request and returns a field to message map on failure.
func Check(request any) (map[string]string, bool) {
	return utils.ValidateStruct(request)
}

type CreateApplicationRequest struct {
	ApplicationType    string      `json:"application_type" validate:"required,oneof=NEW_LICENCE AMENDMENT RENEWAL REISSUE SYSTEM_GENERATED"`
	PurposeIDs         []uuid.UUID `json:"purpose_ids" validate:"omitempty,dive,required"`
	OrgApplicantID     *uuid.UUID  `json:"org_applicant_id"`
	ProxyApplicantID   *uuid.UUID  `json:"proxy_applicant_id"`
	SelectedActivityID *uuid.UUID  `json:"selected_activity_id"`
	SelectedPurposeID  *uuid.UUID  `json:"selected_purpose_id"`
	PaymentMethod      string      `json:"payment_method" validate:"omitempty,oneof=CARD CASH BANK_DEPOSIT NONE"`
}

func (r CreateApplicationRequest) Input() applications_services.CreateApplicationInput {
	return applications_services.CreateApplicationInput{
		ApplicationType:    models.ApplicationType(r.ApplicationType),
		PurposeIDs:         r.PurposeIDs,
		OrgApplicantID:     r.OrgApplicantID,
		ProxyApplicantID:   r.ProxyApplicantID,
		SelectedActivityID: r.SelectedActivityID,
		SelectedPurposeID:  r.SelectedPurposeID,
		PaymentMethod:      models.PaymentMethod(r.PaymentMethod),
	}
}

type EstimatePriceRequest struct {
	ApplicationType string      `json:"application_type" validate:"required,oneof=NEW_LICENCE AMENDMENT RENEWAL REISSUE SYSTEM_GENERATED"`
	PurposeIDs      []uuid.UUID `json:"purpose_ids" validate:"required,min=1,dive,required"`
}

type SubmitApplicationRequest struct {
	FormData map[string]any `json:"form_data" validate:"required"`
}

type AssignOfficerRequest struct {
	OfficerID uuid.UUID `json:"officer_id" validate:"required"`
}

type AssignApproverRequest struct {
	ApproverID uuid.UUID `json:"approver_id" validate:"required"`
}

type ProcessingStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AmendmentRequest struct {
	ActivityIDs []uuid.UUID `json:"activity_ids" validate:"required,min=1,dive,required"`
	Reason      string      `json:"reason" validate:"required"`
	Text        string      `json:"text" validate:"max=2000"`
}

type WaiveFeesRequest struct {
	PurposeIDs []uuid.UUID `json:"purpose_ids" validate:"required,min=1,dive,required"`
}

type ProposedPurposeRequest struct {
	PurposeID          uuid.UUID        `json:"purpose_id" validate:"required"`
	AdditionalFee      decimal.Decimal  `json:"additional_fee"`
	AdditionalFeeText  *string          `json:"additional_fee_text" validate:"omitempty,max=255"`
	AdjustedLicenceFee *decimal.Decimal `json:"adjusted_licence_fee"`
}

type ProposeLicenceRequest struct {
	Purposes []ProposedPurposeRequest `json:"purposes" validate:"required,min=1,dive"`
}

func (r ProposeLicenceRequest) Inputs() []applications_services.ProposedPurposeInput {
	inputs := make([]applications_services.ProposedPurposeInput, 0, len(r.Purposes))
	for _, p := range r.Purposes {
		inputs = append(inputs, applications_services.ProposedPurposeInput{
			PurposeID:          p.PurposeID,
			AdditionalFee:      p.AdditionalFee,
			AdditionalFeeText:  p.AdditionalFeeText,
			AdjustedLicenceFee: p.AdjustedLicenceFee,
		})
	}
	return inputs
}

type ProposeDeclineRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type SendToAssessorRequest struct {
	AssessorGroupID uuid.UUID `json:"assessor_group_id" validate:"required"`
}

type CompleteAssessmentRequest struct {
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

type InvoiceReferenceRequest struct {
	InvoiceReference string `json:"invoice_reference" validate:"required"`
}
