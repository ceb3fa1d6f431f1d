package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/o1egl/paseto"
	"golang.org/x/crypto/chacha20poly1305"
)

// footer binds tokens to this service; tokens minted with the same key
// elsewhere fail to decrypt here.
const footer = "wildlife-licensing"

// PasetoMaker issues PASETO v2 local tokens.
type PasetoMaker struct {
	paseto       *paseto.V2
	symmetricKey []byte
}

// NewPasetoMaker needs a key of exactly chacha20poly1305.KeySize bytes.
func NewPasetoMaker(symmetricKey string) (Maker, error) {
	if len(symmetricKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be exactly %d characters", chacha20poly1305.KeySize)
	}
	return &PasetoMaker{
		paseto:       paseto.NewV2(),
		symmetricKey: []byte(symmetricKey),
	}, nil
}

func (maker *PasetoMaker) CreateToken(userID uuid.UUID, email string, kind Kind, duration time.Duration) (string, *Payload, error) {
	payload, err := NewPayload(userID, email, kind, duration)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create %s token payload: %w", kind, err)
	}

	token, err := maker.paseto.Encrypt(maker.symmetricKey, payload, footer)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encrypt %s token: %w", kind, err)
	}
	return token, payload, nil
}

func (maker *PasetoMaker) VerifyToken(token string, kind Kind) (*Payload, error) {
	payload := &Payload{}
	var tokenFooter string
	if err := maker.paseto.Decrypt(token, maker.symmetricKey, payload, &tokenFooter); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if tokenFooter != footer {
		return nil, fmt.Errorf("invalid token: unexpected footer %q", tokenFooter)
	}
	if err := payload.Valid(kind); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return payload, nil
}
