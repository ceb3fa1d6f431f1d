package middleware

import (
	"context"
	"wildlife-licensing-backend/token"

	"github.com/redis/go-redis/v9"
)

// AppContext carries what session handling needs: the token maker, the
// Redis store holding live refresh tokens and the cookie policy.
type AppContext struct {
	PasetoMaker token.Maker
	Ctx         context.Context
	RedisClient *redis.Client
	// SecureCookies is off only for local development over plain HTTP.
	SecureCookies bool
}
