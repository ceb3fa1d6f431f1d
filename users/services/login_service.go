package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wildlife-licensing-backend/db/models"
	notifications_services "wildlife-licensing-backend/notifications/services"
	"wildlife-licensing-backend/users/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidLoginCode covers unknown accounts, wrong codes and expired codes
// alike.
var ErrInvalidLoginCode = errors.New("invalid or expired login code")

// LoginService signs users in with a code sent to their email address.
type LoginService struct {
	users    repositories.UserRepository
	otp      *OtpService
	notifier notifications_services.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewLoginService(users repositories.UserRepository, otp *OtpService, notifier notifications_services.Notifier, logger *zap.Logger) *LoginService {
	return &LoginService{users: users, otp: otp, notifier: notifier, logger: logger, now: time.Now}
}

func loginKey(user *models.User) string {
	return "login_otp:" + user.ID.String()
}

// RequestCode emails a login code to an active account and returns the
// pre-token the client must send back with it. Unknown or inactive emails
// get a pre-token too, so the response does not reveal which accounts exist.
func (s *LoginService) RequestCode(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.Active) {
		s.logger.Info("Login code requested for unknown or inactive account")
		_, preToken, err := s.otp.GenerateOtp(ctx, "login_otp:unknown")
		return preToken, err
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	code, preToken, err := s.otp.GenerateOtp(ctx, loginKey(user))
	if err != nil {
		return "", err
	}
	err = s.notifier.Notify(ctx, notifications_services.Notification{
		Kind:       notifications_services.KindLoginCode,
		Recipients: []string{user.Email},
		Subject:    "Your wildlife licensing login code",
		Body:       fmt.Sprintf("Your login code is %s. It expires in %d minutes.", code, int(otpDuration.Minutes())),
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Login code sent", zap.String("userID", user.ID.String()))
	return preToken, nil
}

// VerifyCode returns the user once the code and pre-token match.
func (s *LoginService) VerifyCode(ctx context.Context, email, code, preToken string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidLoginCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.Active {
		return nil, ErrInvalidLoginCode
	}

	ok, err := s.otp.ValidateOtp(ctx, code, preToken, loginKey(user))
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("Login code rejected", zap.String("userID", user.ID.String()))
		return nil, ErrInvalidLoginCode
	}

	if err := s.users.RecordLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Error("Failed to record login", zap.Error(err), zap.String("userID", user.ID.String()))
	}
	return user, nil
}
