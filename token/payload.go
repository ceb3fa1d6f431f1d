package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrExpired   = errors.New("token has expired")
	ErrWrongKind = errors.New("token kind does not match")
)

// Kind separates short-lived access tokens from refresh tokens.
type Kind string

const (
	AccessToken  Kind = "access"
	RefreshToken Kind = "refresh"
)

// Payload is what a licensing session token carries. UserID is the staff
// member or applicant acting on applications.
type Payload struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Kind      Kind      `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

func NewPayload(userID uuid.UUID, email string, kind Kind, duration time.Duration) (*Payload, error) {
	switch {
	case userID == uuid.Nil:
		return nil, errors.New("user id cannot be empty")
	case kind != AccessToken && kind != RefreshToken:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	case duration <= 0:
		return nil, errors.New("duration must be positive")
	}

	tokenID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	issuedAt := time.Now().UTC()
	return &Payload{
		ID:        tokenID,
		UserID:    userID,
		Email:     email,
		Kind:      kind,
		IssuedAt:  issuedAt,
		ExpiredAt: issuedAt.Add(duration),
	}, nil
}

// Valid checks expiry and that the token is of the wanted kind.
func (p *Payload) Valid(kind Kind) error {
	if time.Now().UTC().After(p.ExpiredAt) {
		return ErrExpired
	}
	if p.Kind != kind {
		return ErrWrongKind
	}
	return nil
}

func (p *Payload) String() string {
	return fmt.Sprintf("%s token %s for user %s, expires %s", p.Kind, p.ID, p.UserID, p.ExpiredAt.Format(time.RFC3339))
}
