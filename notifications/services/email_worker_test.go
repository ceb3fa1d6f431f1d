package services

import (
	"context"
	"errors"
	"testing"
	"wildlife-licensing-backend/notifications/repositories"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

type EmailWorkerSuite struct {
	suite.Suite
	ctx    context.Context
	mailer *fakeMailer
	logs   *repositories.MemoryEmailLogRepository
	worker *EmailWorker
}

func (s *EmailWorkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.mailer = &fakeMailer{}
	s.logs = repositories.NewMemoryEmailLogRepository()
	s.worker = NewEmailWorker(s.mailer, "licensing@example.com", 600, s.logs, zap.NewNop())
}

func (s *EmailWorkerSuite) task(appID uuid.UUID) *asynq.Task {
	task, err := NewEmailTask(EmailPayload{
		Kind:          KindLicenceIssued,
		ApplicationID: appID,
		To:            "holder@example.com",
		Subject:       "Licence issued",
		Body:          "Your licence has been issued.",
	})
	s.Require().NoError(err)
	return task
}

func (s *EmailWorkerSuite) TestDeliversAndLogs() {
	appID := uuid.New()
	s.Require().NoError(s.worker.HandleEmailTask(s.ctx, s.task(appID)))

	s.Require().Len(s.mailer.sent, 1)
	s.Equal([]string{"holder@example.com"}, s.mailer.sent[0].GetHeader("To"))

	logs, err := s.logs.ListEmailLogs(s.ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.False(logs[0].Failed)
	s.Equal(string(KindLicenceIssued), logs[0].Kind)
}

func (s *EmailWorkerSuite) TestFailedDeliveryIsLoggedAndRetried() {
	s.mailer.err = errors.New("smtp refused")
	appID := uuid.New()

	err := s.worker.HandleEmailTask(s.ctx, s.task(appID))
	s.Require().Error(err)

	logs, err := s.logs.ListEmailLogs(s.ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.True(logs[0].Failed)
	s.Require().NotNil(logs[0].Error)
	s.Contains(*logs[0].Error, "smtp refused")
}

func (s *EmailWorkerSuite) TestMalformedPayloadSkipsRetry() {
	err := s.worker.HandleEmailTask(s.ctx, asynq.NewTask(TypeEmailNotification, []byte("{")))
	s.Require().Error(err)
	s.ErrorIs(err, asynq.SkipRetry)
	s.Empty(s.mailer.sent)
}

func (s *EmailWorkerSuite) TestMuxRoutesNotificationTasks() {
	s.Require().NoError(s.worker.Mux().ProcessTask(s.ctx, s.task(uuid.New())))
	s.Len(s.mailer.sent, 1)
}

func TestEmailWorkerSuite(t *testing.T) {
	suite.Run(t, new(EmailWorkerSuite))
}
