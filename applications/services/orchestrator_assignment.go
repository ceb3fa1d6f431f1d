package services

import (
	"context"
	"errors"
	"fmt"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignable reports whether an officer or approver can still be put on
// the activity.
func assignable(activity *models.SelectedActivity) bool {
	return activity.ProcessingStatus != models.ProcessingDraft && !activity.ProcessingStatus.IsTerminal()
}

func (o *ApplicationOrchestrator) staffMember(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := o.users.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewValidationError("unknown user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return user, nil
}

// AssignOfficer makes officerID the officer of every lodged activity the
// officer's groups cover. Activities still under review move to the officer.
func (o *ApplicationOrchestrator) AssignOfficer(ctx context.Context, rc RequestContext, appID, officerID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "assign_officer", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		return o.assignOfficer(m, officerID)
	})
}

// AssignToMe assigns the acting officer. Group membership is enough.
func (o *ApplicationOrchestrator) AssignToMe(ctx context.Context, rc RequestContext, appID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "assign_to_me", func(m *mutation) error {
		return o.assignOfficer(m, rc.ActorID)
	})
}

func (o *ApplicationOrchestrator) assignOfficer(m *mutation, officerID uuid.UUID) error {
	officer, err := o.staffMember(m.ctx, officerID)
	if err != nil {
		return err
	}

	member, eligible := false, 0
	for i := range m.app.SelectedActivities {
		activity := &m.app.SelectedActivities[i]
		ok, err := o.catalog.IsGroupMember(m.ctx, activity.LicenceActivityID, models.OfficerGroup, officerID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		member = true
		if !assignable(activity) {
			continue
		}
		eligible++
		if activity.AssignedOfficerID == nil || *activity.AssignedOfficerID != officerID {
			id := officerID
			activity.AssignedOfficerID = &id
			m.record(fmt.Sprintf(ActionAssignOfficer, officer.FullName(), activity.Name()))
		}
		if activity.ProcessingStatus == models.ProcessingUnderReview {
			description, err := o.machine.BeginProcessing(activity)
			if err != nil {
				return err
			}
			m.record(description)
		}
	}

	if !member {
		return NewAuthorizationError("%s is not in an officer group for application %s", officer.FullName(), applicationLabel(m.app))
	}
	if eligible == 0 {
		return NewValidationError("application %s has no activity waiting for an officer", applicationLabel(m.app))
	}
	return nil
}

// UnassignOfficer clears the officer of every activity.
func (o *ApplicationOrchestrator) UnassignOfficer(ctx context.Context, rc RequestContext, appID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "unassign_officer", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		for i := range m.app.SelectedActivities {
			activity := &m.app.SelectedActivities[i]
			if activity.AssignedOfficerID == nil {
				continue
			}
			activity.AssignedOfficerID = nil
			m.record(fmt.Sprintf(ActionUnassignOfficer, activity.Name()))
		}
		return nil
	})
}

// AssignActivityApprover puts approverID on one activity. The approver must
// belong to an approver group covering it.
func (o *ApplicationOrchestrator) AssignActivityApprover(ctx context.Context, rc RequestContext, appID, activityID, approverID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "assign_approver", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionIssuingOfficer); err != nil {
			return err
		}
		return o.assignApprover(m, activityID, approverID)
	})
}

func (o *ApplicationOrchestrator) MakeMeActivityApprover(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "assign_approver_to_me", func(m *mutation) error {
		return o.assignApprover(m, activityID, rc.ActorID)
	})
}

func (o *ApplicationOrchestrator) assignApprover(m *mutation, activityID, approverID uuid.UUID) error {
	activity, err := m.activity(activityID)
	if err != nil {
		return err
	}
	approver, err := o.staffMember(m.ctx, approverID)
	if err != nil {
		return err
	}
	member, err := o.catalog.IsGroupMember(m.ctx, activity.LicenceActivityID, models.ApproverGroup, approverID)
	if err != nil {
		return err
	}
	if !member {
		return NewAuthorizationError("%s is not in an approver group for %s", approver.FullName(), activity.Name())
	}
	if !assignable(activity) {
		return NewValidationError("an approver cannot be assigned to %s while it is %s", activity.Name(), StatusLabel(activity.ProcessingStatus))
	}
	if activity.AssignedApproverID != nil && *activity.AssignedApproverID == approverID {
		return nil
	}
	id := approverID
	activity.AssignedApproverID = &id
	m.record(fmt.Sprintf(ActionAssignApprover, approver.FullName(), activity.Name()))
	return nil
}

func (o *ApplicationOrchestrator) UnassignActivityApprover(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "unassign_approver", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionIssuingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		if activity.AssignedApproverID == nil {
			return nil
		}
		activity.AssignedApproverID = nil
		m.record(fmt.Sprintf(ActionUnassignApprover, activity.Name()))
		return nil
	})
}
