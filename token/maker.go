package token

import (
	"time"

	"github.com/google/uuid"
)

// Maker creates and verifies session tokens. VerifyToken rejects a token
// of another kind, so a refresh token never passes as an access token.
type Maker interface {
	CreateToken(userID uuid.UUID, email string, kind Kind, duration time.Duration) (string, *Payload, error)

	VerifyToken(token string, kind Kind) (*Payload, error)
}
