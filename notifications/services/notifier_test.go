package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: "notifications", Type: task.Type()}, nil
}

func TestQueueNotifierEnqueuesOneTaskPerRecipient(t *testing.T) {
	client := &recordingEnqueuer{}
	notifier := newQueueNotifier(client, zap.NewNop())
	appID := uuid.New()

	err := notifier.Notify(context.Background(), Notification{
		Kind:          KindAmendmentRequested,
		ApplicationID: appID,
		Recipients:    []string{"a@example.com", "b@example.com"},
		Subject:       "Amendment requested",
		Body:          "Please update your application.",
	})
	require.NoError(t, err)
	require.Len(t, client.tasks, 2)

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(client.tasks[1].Payload(), &payload))
	assert.Equal(t, TypeEmailNotification, client.tasks[1].Type())
	assert.Equal(t, "b@example.com", payload.To)
	assert.Equal(t, appID, payload.ApplicationID)
	assert.Equal(t, KindAmendmentRequested, payload.Kind)
}

func TestQueueNotifierReportsEnqueueFailure(t *testing.T) {
	client := &recordingEnqueuer{err: errors.New("redis down")}
	notifier := newQueueNotifier(client, zap.NewNop())

	err := notifier.Notify(context.Background(), Notification{Recipients: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}
