package services

import (
	"context"
	"fmt"
	"time"
	"wildlife-licensing-backend/db/models"
	licences_services "wildlife-licensing-backend/licences/services"
	notifications_services "wildlife-licensing-backend/notifications/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func memberIDs(group *models.ActivityPermissionGroup) []uuid.UUID {
	var ids []uuid.UUID
	for _, member := range group.Members {
		if member.IsActive {
			ids = append(ids, member.UserID)
		}
	}
	return ids
}

func (o *ApplicationOrchestrator) assessorGroup(ctx context.Context, groupID uuid.UUID) (*models.ActivityPermissionGroup, error) {
	group, err := o.catalog.GetPermissionGroup(ctx, groupID)
	if err != nil {
		return nil, notFound("assessor group", groupID, err)
	}
	if group.Kind != models.AssessorGroup {
		return nil, NewValidationError("%s is not an assessor group", group.Name)
	}
	return group, nil
}

// SendToAssessor asks an assessor group to review an activity held by the
// officer.
func (o *ApplicationOrchestrator) SendToAssessor(ctx context.Context, rc RequestContext, appID, activityID, groupID uuid.UUID) (*models.Assessment, error) {
	var created *models.Assessment
	_, err := o.mutate(ctx, rc, appID, "send_to_assessor", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		group, err := o.assessorGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if !licences_services.Covers(*group, activity.LicenceActivityID) {
			return NewValidationError("assessor group %s does not cover %s", group.Name, activity.Name())
		}
		if activity.ProcessingStatus != models.ProcessingWithOfficer {
			return &InvalidTransitionError{
				From:    string(activity.ProcessingStatus),
				To:      string(models.ProcessingWithOfficer),
				Message: fmt.Sprintf("%s can only be sent to assessors while with the officer", activity.Name()),
			}
		}

		existing, err := m.repo.ListAssessments(m.ctx, m.app.ID)
		if err != nil {
			return err
		}
		for _, assessment := range existing {
			if assessment.SelectedActivityID == activityID && assessment.AssessorGroupID == groupID && assessment.Status == models.AssessmentAwaiting {
				return NewValidationError("assessor group %s is already assessing %s", group.Name, activity.Name())
			}
		}

		assessment := &models.Assessment{
			ID:                 uuid.New(),
			ApplicationID:      m.app.ID,
			SelectedActivityID: activityID,
			AssessorGroupID:    groupID,
			Status:             models.AssessmentAwaiting,
			RequestedByID:      rc.ActorID,
			CreatedAt:          o.now(),
		}
		if err := m.repo.CreateAssessment(m.ctx, assessment); err != nil {
			return err
		}
		created = assessment

		m.record(fmt.Sprintf(ActionSendToAssessor, activity.Name(), group.Name))
		m.notify(notifications_services.KindAssessmentRequested, memberIDs(group),
			fmt.Sprintf("Assessment requested for application %s", applicationLabel(m.app)),
			fmt.Sprintf("Your group %s has been asked to assess %s on application %s.", group.Name, activity.Name(), applicationLabel(m.app)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (o *ApplicationOrchestrator) loadAssessment(ctx context.Context, assessmentID uuid.UUID) (*models.Assessment, error) {
	assessment, err := o.apps.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, notFound("assessment", assessmentID, err)
	}
	return assessment, nil
}

// lockedAssessment re-reads the assessment under the application lock.
func lockedAssessment(m *mutation, assessmentID uuid.UUID) (*models.Assessment, error) {
	assessment, err := m.repo.GetAssessment(m.ctx, assessmentID)
	if err != nil {
		return nil, notFound("assessment", assessmentID, err)
	}
	if assessment.Status != models.AssessmentAwaiting {
		return nil, &InvalidTransitionError{
			From:    string(assessment.Status),
			To:      string(models.AssessmentCompleted),
			Message: fmt.Sprintf("assessment is %s", StatusLabel(assessment.Status)),
		}
	}
	return assessment, nil
}

// CompleteAssessment closes an assessment on behalf of its group. The
// activity moves on to conditions when no other assessment is awaited.
func (o *ApplicationOrchestrator) CompleteAssessment(ctx context.Context, rc RequestContext, assessmentID uuid.UUID, comment *string) (*models.Application, error) {
	assessment, err := o.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, rc, assessment.ApplicationID, "complete_assessment", func(m *mutation) error {
		assessment, err := lockedAssessment(m, assessmentID)
		if err != nil {
			return err
		}
		group, err := o.assessorGroup(ctx, assessment.AssessorGroupID)
		if err != nil {
			return err
		}
		if rc.ActorID != SystemActor && !licences_services.HasMember(*group, rc.ActorID) {
			return NewAuthorizationError("only members of %s can complete this assessment", group.Name)
		}
		activity, err := m.activity(assessment.SelectedActivityID)
		if err != nil {
			return err
		}
		if err := o.completeAssessment(m, activity, assessment, group, comment); err != nil {
			return err
		}
		return o.advanceAfterAssessment(m, activity)
	})
}

// CompleteApplicationAssessmentsByUser completes every awaiting assessment
// of the activity held by a group the actor belongs to.
func (o *ApplicationOrchestrator) CompleteApplicationAssessmentsByUser(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "complete_assessments", func(m *mutation) error {
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		assessments, err := m.repo.ListAssessments(m.ctx, m.app.ID)
		if err != nil {
			return err
		}
		completed := 0
		for i := range assessments {
			assessment := &assessments[i]
			if assessment.SelectedActivityID != activityID || assessment.Status != models.AssessmentAwaiting {
				continue
			}
			group, err := o.assessorGroup(ctx, assessment.AssessorGroupID)
			if err != nil {
				return err
			}
			if !licences_services.HasMember(*group, rc.ActorID) {
				continue
			}
			if err := o.completeAssessment(m, activity, assessment, group, nil); err != nil {
				return err
			}
			completed++
		}
		if completed == 0 {
			return NewValidationError("no assessment of %s is waiting on you", activity.Name())
		}
		return o.advanceAfterAssessment(m, activity)
	})
}

func (o *ApplicationOrchestrator) completeAssessment(m *mutation, activity *models.SelectedActivity, assessment *models.Assessment, group *models.ActivityPermissionGroup, comment *string) error {
	now := o.now()
	actor := m.rc.ActorID
	assessment.Status = models.AssessmentCompleted
	assessment.ActionedByID = &actor
	assessment.DateCompleted = &now
	if comment != nil {
		assessment.Comment = comment
	}
	if err := m.repo.SaveAssessment(m.ctx, assessment); err != nil {
		return err
	}
	m.record(fmt.Sprintf(ActionCompleteAssessment, activity.Name(), group.Name))
	return nil
}

// advanceAfterAssessment moves an activity still with the officer on to
// conditions once nothing is awaited from assessors.
func (o *ApplicationOrchestrator) advanceAfterAssessment(m *mutation, activity *models.SelectedActivity) error {
	if activity.ProcessingStatus != models.ProcessingWithOfficer {
		return nil
	}
	assessments, err := m.repo.ListAssessments(m.ctx, m.app.ID)
	if err != nil {
		return err
	}
	description, changed, err := o.machine.CompleteAssessment(activity, assessments)
	if err != nil {
		return err
	}
	if changed {
		m.record(description)
	}
	return nil
}

// RecallAssessment withdraws an awaiting assessment. The activity stays
// with the officer.
func (o *ApplicationOrchestrator) RecallAssessment(ctx context.Context, rc RequestContext, assessmentID uuid.UUID) (*models.Application, error) {
	assessment, err := o.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, rc, assessment.ApplicationID, "recall_assessment", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		assessment, err := lockedAssessment(m, assessmentID)
		if err != nil {
			return err
		}
		group, err := o.assessorGroup(ctx, assessment.AssessorGroupID)
		if err != nil {
			return err
		}
		activity, err := m.activity(assessment.SelectedActivityID)
		if err != nil {
			return err
		}
		now := o.now()
		actor := rc.ActorID
		assessment.Status = models.AssessmentRecalled
		assessment.ActionedByID = &actor
		assessment.DateCompleted = &now
		if err := m.repo.SaveAssessment(m.ctx, assessment); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionRecallAssessment, activity.Name(), group.Name))
		return nil
	})
}

// RemindAssessment emails the assessor group about an awaiting assessment.
func (o *ApplicationOrchestrator) RemindAssessment(ctx context.Context, rc RequestContext, assessmentID uuid.UUID) (*models.Application, error) {
	assessment, err := o.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, rc, assessment.ApplicationID, "remind_assessment", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		assessment, err := lockedAssessment(m, assessmentID)
		if err != nil {
			return err
		}
		group, err := o.assessorGroup(ctx, assessment.AssessorGroupID)
		if err != nil {
			return err
		}
		activity, err := m.activity(assessment.SelectedActivityID)
		if err != nil {
			return err
		}
		now := o.now()
		assessment.DateLastReminded = &now
		if err := m.repo.SaveAssessment(m.ctx, assessment); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionRemindAssessment, group.Name, activity.Name()))
		m.notify(notifications_services.KindAssessmentReminder, memberIDs(group),
			fmt.Sprintf("Reminder: assessment of application %s", applicationLabel(m.app)),
			fmt.Sprintf("Your group %s has not yet assessed %s on application %s.", group.Name, activity.Name(), applicationLabel(m.app)))
		return nil
	})
}

// LatestAssessment is the most recent assessment of an activity that was
// not recalled, or nil.
func (o *ApplicationOrchestrator) LatestAssessment(ctx context.Context, appID, activityID uuid.UUID) (*models.Assessment, error) {
	assessments, err := o.apps.ListAssessments(ctx, appID)
	if err != nil {
		return nil, err
	}
	var latest *models.Assessment
	for i := range assessments {
		a := &assessments[i]
		if a.SelectedActivityID != activityID || a.Status == models.AssessmentRecalled {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest, nil
}

// RemindOverdueAssessments reminds every assessor group sitting on an
// assessment for longer than olderThan. It returns how many were reminded.
func (o *ApplicationOrchestrator) RemindOverdueAssessments(ctx context.Context, olderThan time.Duration) (int, error) {
	overdue, err := o.apps.ListAwaitingAssessments(ctx, o.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue assessments: %w", err)
	}
	reminded := 0
	for _, assessment := range overdue {
		rc := NewRequestContext(SystemActor, "")
		if _, err := o.RemindAssessment(ctx, rc, assessment.ID); err != nil {
			o.logger.Warn("Failed to remind assessor group",
				zap.Error(err),
				zap.String("assessmentID", assessment.ID.String()),
				zap.String("correlationID", rc.CorrelationID),
			)
			continue
		}
		reminded++
	}
	return reminded, nil
}
