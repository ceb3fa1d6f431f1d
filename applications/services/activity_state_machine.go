package services

import (
	"fmt"
	"sort"
	"time"
	"wildlife-licensing-backend/db/models"
)

type processingOp string

const (
	opSubmit          processingOp = "submit"
	opBeginProcessing processingOp = "begin_processing"
	opSetStatus       processingOp = "set_status"
	opProposeLicence  processingOp = "propose_licence"
	opProposeDecline  processingOp = "propose_decline"
	opFinalDecision   processingOp = "final_decision"
	opDiscard         processingOp = "discard"
	opAmend           processingOp = "request_amendment"
	opReissue         processingOp = "reissue"
)

type processingEdge struct {
	from models.ProcessingStatus
	to   models.ProcessingStatus
}

// processingEdges is every allowed processing status change and the
// operation that may make it.
var processingEdges = map[processingEdge]processingOp{
	{models.ProcessingDraft, models.ProcessingUnderReview}:                            opSubmit,
	{models.ProcessingUnderReview, models.ProcessingWithOfficer}:                      opBeginProcessing,
	{models.ProcessingWithOfficer, models.ProcessingOfficerConditions}:                opSetStatus,
	{models.ProcessingOfficerConditions, models.ProcessingWithOfficer}:                opSetStatus,
	{models.ProcessingOfficerConditions, models.ProcessingAwaitingLicenceFeePayment}: opProposeLicence,
	{models.ProcessingOfficerConditions, models.ProcessingDeclined}:                   opProposeDecline,
	{models.ProcessingAwaitingLicenceFeePayment, models.ProcessingAccepted}:           opFinalDecision,
	{models.ProcessingDraft, models.ProcessingDiscarded}:                              opDiscard,
	{models.ProcessingUnderReview, models.ProcessingDraft}:                            opAmend,
	{models.ProcessingWithOfficer, models.ProcessingDraft}:                            opAmend,
	{models.ProcessingOfficerConditions, models.ProcessingDraft}:                      opAmend,
	{models.ProcessingAwaitingLicenceFeePayment, models.ProcessingDraft}:              opAmend,
	{models.ProcessingAccepted, models.ProcessingWithOfficer}:                         opReissue,
}

// CompleteAssessment shares the with_officer -> officer_conditions edge
// with the officer's manual status change.
var assessmentEdge = processingEdge{models.ProcessingWithOfficer, models.ProcessingOfficerConditions}

type activityStatusEdge struct {
	from models.ActivityStatus
	to   models.ActivityStatus
}

var activityStatusEdges = map[activityStatusEdge]bool{
	{models.ActivityCurrent, models.ActivitySuspended}:     true,
	{models.ActivityCurrent, models.ActivityCancelled}:     true,
	{models.ActivityCurrent, models.ActivitySurrendered}:   true,
	{models.ActivitySuspended, models.ActivityCurrent}:     true,
	{models.ActivitySuspended, models.ActivityCancelled}:   true,
	{models.ActivitySuspended, models.ActivitySurrendered}: true,
}

// ProcessingTransitions lists the allowed target statuses per status.
func ProcessingTransitions() map[models.ProcessingStatus][]models.ProcessingStatus {
	out := make(map[models.ProcessingStatus][]models.ProcessingStatus, len(models.AllProcessingStatuses))
	for _, status := range models.AllProcessingStatuses {
		out[status] = nil
	}
	for edge := range processingEdges {
		out[edge.from] = append(out[edge.from], edge.to)
	}
	for status := range out {
		sort.Slice(out[status], func(i, j int) bool { return out[status][i] < out[status][j] })
	}
	return out
}

// ActivityStateMachine applies processing and activity status changes to a
// selected activity. It only mutates the activity it is given and returns
// the audit description of the change.
type ActivityStateMachine struct {
	fees *FeePolicy
	now  func() time.Time
}

func NewActivityStateMachine(fees *FeePolicy, now func() time.Time) *ActivityStateMachine {
	if now == nil {
		now = time.Now
	}
	return &ActivityStateMachine{fees: fees, now: now}
}

// canTransition reports whether op may move the activity to the target status.
func canTransition(from, to models.ProcessingStatus, op processingOp) bool {
	allowed, ok := processingEdges[processingEdge{from, to}]
	return ok && allowed == op
}

func (m *ActivityStateMachine) transition(activity *models.SelectedActivity, to models.ProcessingStatus, op processingOp) (string, error) {
	from := activity.ProcessingStatus
	if !canTransition(from, to, op) {
		return "", invalidProcessingTransition(from, to)
	}
	activity.ProcessingStatus = to
	return fmt.Sprintf(ActionChangeProcessingStatus, activity.Name(), StatusLabel(from), StatusLabel(to)), nil
}

func (m *ActivityStateMachine) Submit(activity *models.SelectedActivity) (string, error) {
	return m.transition(activity, models.ProcessingUnderReview, opSubmit)
}

// BeginProcessing moves a freshly lodged activity to its assigned officer.
func (m *ActivityStateMachine) BeginProcessing(activity *models.SelectedActivity) (string, error) {
	return m.transition(activity, models.ProcessingWithOfficer, opBeginProcessing)
}

// SetProcessingStatus is the officer's manual move between with_officer and
// officer_conditions. Setting the current status changes nothing and
// reports changed as false.
func (m *ActivityStateMachine) SetProcessingStatus(activity *models.SelectedActivity, to models.ProcessingStatus) (description string, changed bool, err error) {
	if activity.ProcessingStatus == to {
		return "", false, nil
	}
	description, err = m.transition(activity, to, opSetStatus)
	if err != nil {
		return "", false, err
	}
	return description, true, nil
}

// CompleteAssessment moves the activity on to conditions once no
// assessment of it is still awaited. changed is false while assessors
// are outstanding.
func (m *ActivityStateMachine) CompleteAssessment(activity *models.SelectedActivity, assessments []models.Assessment) (description string, changed bool, err error) {
	if activity.ProcessingStatus != assessmentEdge.from {
		return "", false, invalidProcessingTransition(activity.ProcessingStatus, assessmentEdge.to)
	}
	for _, assessment := range assessments {
		if assessment.SelectedActivityID == activity.ID && assessment.Status == models.AssessmentAwaiting {
			return "", false, nil
		}
	}
	from := activity.ProcessingStatus
	activity.ProcessingStatus = assessmentEdge.to
	return fmt.Sprintf(ActionChangeProcessingStatus, activity.Name(), StatusLabel(from), StatusLabel(assessmentEdge.to)), true, nil
}

func (m *ActivityStateMachine) ProposeLicence(activity *models.SelectedActivity) (string, error) {
	return m.transition(activity, models.ProcessingAwaitingLicenceFeePayment, opProposeLicence)
}

func (m *ActivityStateMachine) ProposeDecline(activity *models.SelectedActivity) (string, error) {
	description, err := m.transition(activity, models.ProcessingDeclined, opProposeDecline)
	if err != nil {
		return "", err
	}
	now := m.now()
	activity.DecisionDate = &now
	return description, nil
}

// ReturnForAmendment sends a lodged activity back to the applicant as a draft.
func (m *ActivityStateMachine) ReturnForAmendment(activity *models.SelectedActivity) (string, error) {
	return m.transition(activity, models.ProcessingDraft, opAmend)
}

// Reissue reopens an accepted activity with the officer so it can be
// proposed again. Only a current or suspended licence activity can be
// reissued.
func (m *ActivityStateMachine) Reissue(activity *models.SelectedActivity) (string, error) {
	if !activity.ActivityStatus.IsActive() {
		return "", &InvalidTransitionError{
			From:    string(activity.ProcessingStatus),
			To:      string(models.ProcessingWithOfficer),
			Message: fmt.Sprintf("%s is %s and cannot be reissued.", activity.Name(), StatusLabel(activity.ActivityStatus)),
		}
	}
	return m.transition(activity, models.ProcessingWithOfficer, opReissue)
}

// FinalDecision accepts an activity awaiting payment once every purpose has
// a decision and nothing payable is left unpaid. Unsettled fees are
// reported before the processing status is considered.
func (m *ActivityStateMachine) FinalDecision(activity *models.SelectedActivity) (string, error) {
	if err := m.fees.Settled(activity); err != nil {
		return "", err
	}
	description, err := m.transition(activity, models.ProcessingAccepted, opFinalDecision)
	if err != nil {
		return "", err
	}
	now := m.now()
	activity.ActivityStatus = models.ActivityCurrent
	activity.IssueDate = &now
	activity.DecisionDate = &now
	return description, nil
}

func (m *ActivityStateMachine) Discard(activity *models.SelectedActivity) (string, error) {
	if !canTransition(activity.ProcessingStatus, models.ProcessingDiscarded, opDiscard) {
		return "", &InvalidTransitionError{
			From:    string(activity.ProcessingStatus),
			To:      string(models.ProcessingDiscarded),
			Message: "This activity cannot be discarded at this time.",
		}
	}
	activity.ProcessingStatus = models.ProcessingDiscarded
	activity.ActivityStatus = models.ActivityDiscarded
	return fmt.Sprintf(ActionDiscardActivity, activity.Name()), nil
}

// SetActivityStatus moves an issued activity between current, suspended,
// cancelled and surrendered.
func (m *ActivityStateMachine) SetActivityStatus(activity *models.SelectedActivity, to models.ActivityStatus) (string, error) {
	from := activity.ActivityStatus
	if activity.ProcessingStatus != models.ProcessingAccepted || !activityStatusEdges[activityStatusEdge{from, to}] {
		return "", &InvalidTransitionError{From: string(from), To: string(to)}
	}
	activity.ActivityStatus = to
	return fmt.Sprintf(ActionChangeActivityStatus, activity.Name(), StatusLabel(from), StatusLabel(to)), nil
}
