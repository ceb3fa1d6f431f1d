package services

import (
	"context"
	"fmt"
	"wildlife-licensing-backend/utils"

	"github.com/google/uuid"
)

// ActionRow is one line of an exported audit trail.
type ActionRow struct {
	When          string
	Who           string
	What          string
	CorrelationID string
}

var actionHeaders = []string{"When", "Who", "What", "CorrelationID"}

// ExportActions writes the audit trail of an application to a workbook in
// dir and returns its path.
func (o *ApplicationOrchestrator) ExportActions(ctx context.Context, appID uuid.UUID, dir string) (string, error) {
	app, err := o.GetApplication(ctx, appID)
	if err != nil {
		return "", err
	}
	actions, err := o.apps.ListActions(ctx, appID)
	if err != nil {
		return "", fmt.Errorf("failed to list actions: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(actions))
	for _, action := range actions {
		ids = append(ids, action.WhoID)
	}
	names := map[uuid.UUID]string{SystemActor: systemUser.FullName()}
	users, err := o.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("failed to load actors: %w", err)
	}
	for _, user := range users {
		names[user.ID] = user.FullName()
	}

	rows := make([]ActionRow, 0, len(actions))
	for _, action := range actions {
		who, ok := names[action.WhoID]
		if !ok {
			who = action.WhoID.String()
		}
		rows = append(rows, ActionRow{
			When:          action.When.Format("2006-01-02 15:04:05"),
			Who:           who,
			What:          action.What,
			CorrelationID: action.CorrelationID,
		})
	}
	return utils.GenerateExcel(dir, rows, "actions_"+applicationLabel(app), actionHeaders, o.now())
}
