package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeEmailNotification is the asynq task type of notification emails.
const TypeEmailNotification = "email:notification"

type Kind string

const (
	KindApplicationSubmitted Kind = "application_submitted"
	KindAmendmentRequested   Kind = "amendment_requested"
	KindAssessmentRequested  Kind = "assessment_requested"
	KindAssessmentReminder   Kind = "assessment_reminder"
	KindLicenceIssued        Kind = "licence_issued"
	KindActivityDeclined     Kind = "activity_declined"
	KindPaymentReceived      Kind = "payment_received"
	KindPaymentRefunded      Kind = "payment_refunded"
	KindLoginCode            Kind = "login_code"
)

// Notification is one message, sent to every recipient. ApplicationID is
// nil for account messages such as login codes.
type Notification struct {
	Kind          Kind      `json:"kind"`
	ApplicationID uuid.UUID `json:"application_id"`
	Recipients    []string  `json:"recipients"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
}

// Notifier dispatches notifications. Delivery happens out of band.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier enqueues one email task per recipient on asynq.
type QueueNotifier struct {
	client enqueuer
	logger *zap.Logger
	queue  string
}

func NewQueueNotifier(client *asynq.Client, logger *zap.Logger) *QueueNotifier {
	return newQueueNotifier(client, logger)
}

func newQueueNotifier(client enqueuer, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, logger: logger, queue: "notifications"}
}

// EmailPayload is the body of a TypeEmailNotification task.
type EmailPayload struct {
	Kind          Kind      `json:"kind"`
	ApplicationID uuid.UUID `json:"application_id"`
	To            string    `json:"to"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
}

func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode email task: %w", err)
	}
	return asynq.NewTask(TypeEmailNotification, data), nil
}

func (n *QueueNotifier) Notify(ctx context.Context, notification Notification) error {
	for _, recipient := range notification.Recipients {
		task, err := NewEmailTask(EmailPayload{
			Kind:          notification.Kind,
			ApplicationID: notification.ApplicationID,
			To:            recipient,
			Subject:       notification.Subject,
			Body:          notification.Body,
		})
		if err != nil {
			return err
		}
		info, err := n.client.EnqueueContext(ctx, task,
			asynq.Queue(n.queue),
			asynq.MaxRetry(5),
			asynq.Timeout(time.Minute),
		)
		if err != nil {
			n.logger.Error("Failed to enqueue notification email",
				zap.Error(err),
				zap.String("kind", string(notification.Kind)),
				zap.String("applicationID", notification.ApplicationID.String()),
			)
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
		n.logger.Debug("Notification email enqueued", zap.String("taskID", info.ID), zap.String("kind", string(notification.Kind)))
	}
	return nil
}
