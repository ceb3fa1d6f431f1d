package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpDuration    = 5 * time.Minute
	maxOtpAttempts = 5
)

// OtpService stores one-time login codes in Redis. A code is paired with a
// pre-token handed to the client, so a code alone is never enough.
type OtpService struct {
	redisClient *redis.Client
}

func NewOtpService(redisClient *redis.Client) *OtpService {
	return &OtpService{redisClient: redisClient}
}

type storagePayload struct {
	PreToken string `json:"pre_token"`
	Otp      string `json:"otp"`
}

func otpKey(keySuffix string) string {
	return "otp:" + keySuffix
}

func attemptsKey(keySuffix string) string {
	return "otp_attempts:" + keySuffix
}

// GenerateOtp creates a six digit code and its pre-token, replacing any
// earlier code for the same key.
func (s *OtpService) GenerateOtp(ctx context.Context, keySuffix string) (otp string, preToken string, err error) {
	otpValue, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	otp = fmt.Sprintf("%06d", otpValue.Int64()+100000)

	preTokenBytes := make([]byte, 16)
	if _, err := rand.Read(preTokenBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate pre-token: %w", err)
	}
	preToken = base64.URLEncoding.EncodeToString(preTokenBytes)

	data, err := json.Marshal(storagePayload{PreToken: preToken, Otp: otp})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal OTP payload: %w", err)
	}
	pipe := s.redisClient.TxPipeline()
	pipe.Set(ctx, otpKey(keySuffix), string(data), otpDuration)
	pipe.Del(ctx, attemptsKey(keySuffix))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", "", fmt.Errorf("failed to store OTP: %w", err)
	}
	return otp, preToken, nil
}

// ValidateOtp consumes the code when it matches. After maxOtpAttempts wrong
// guesses the code is discarded.
func (s *OtpService) ValidateOtp(ctx context.Context, otp, preToken, keySuffix string) (bool, error) {
	data, err := s.redisClient.Get(ctx, otpKey(keySuffix)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read OTP: %w", err)
	}

	var stored storagePayload
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return false, fmt.Errorf("failed to unmarshal OTP payload: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored.PreToken), []byte(preToken)) == 1 &&
		subtle.ConstantTimeCompare([]byte(stored.Otp), []byte(otp)) == 1 {
		return true, s.InvalidateOtp(ctx, keySuffix)
	}

	attempts, err := s.redisClient.Incr(ctx, attemptsKey(keySuffix)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count OTP attempts: %w", err)
	}
	s.redisClient.Expire(ctx, attemptsKey(keySuffix), otpDuration)
	if attempts >= maxOtpAttempts {
		return false, s.InvalidateOtp(ctx, keySuffix)
	}
	return false, nil
}

func (s *OtpService) InvalidateOtp(ctx context.Context, keySuffix string) error {
	return s.redisClient.Del(ctx, otpKey(keySuffix), attemptsKey(keySuffix)).Err()
}
