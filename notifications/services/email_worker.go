package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"wildlife-licensing-backend/db/models"
	"wildlife-licensing-backend/notifications/repositories"
	"wildlife-licensing-backend/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EmailWorker delivers queued notification emails, throttled to the
// mail server's allowance, and logs every attempt.
type EmailWorker struct {
	mailer  utils.Mailer
	from    string
	limiter *rate.Limiter
	logs    repositories.EmailLogRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewEmailWorker(mailer utils.Mailer, from string, perMinute int, logs repositories.EmailLogRepository, logger *zap.Logger) *EmailWorker {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &EmailWorker{
		mailer:  mailer,
		from:    from,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logs:    logs,
		logger:  logger,
		now:     time.Now,
	}
}

// Mux routes notification tasks to the worker.
func (w *EmailWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailNotification, w.HandleEmailTask)
	return mux
}

func (w *EmailWorker) HandleEmailTask(ctx context.Context, task *asynq.Task) error {
	var payload EmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("Discarding malformed email task", zap.Error(err))
		return fmt.Errorf("malformed email task: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limiter: %w", err)
	}

	sendErr := utils.SendEmail(w.mailer, w.from, payload.To, payload.Subject, payload.Body)

	applicationID := payload.ApplicationID
	entry := &models.EmailLog{
		Kind:      string(payload.Kind),
		Recipient: payload.To,
		Subject:   payload.Subject,
		Message:   payload.Body,
		SentAt:    w.now(),
		Failed:    sendErr != nil,
	}
	if applicationID != uuid.Nil {
		entry.ApplicationID = &applicationID
	}
	if sendErr != nil {
		message := sendErr.Error()
		entry.Error = &message
	}
	if err := w.logs.CreateEmailLog(ctx, entry); err != nil {
		w.logger.Error("Failed to record email log", zap.Error(err), zap.String("applicationID", applicationID.String()))
	}
	return sendErr
}
