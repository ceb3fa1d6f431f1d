package middleware

import (
	"strings"
	"time"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	AccessTokenDuration  = 15 * time.Minute
	RefreshTokenDuration = 7 * 24 * time.Hour

	userLocal = "user"
)

func refreshKey(payloadID uuid.UUID) string {
	return "refresh_token:" + payloadID.String()
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "Unauthorized",
		"error":   message,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Something went wrong",
		"error":   "An internal server error occurred.",
	})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Cookies("access_token")
}

// IssueSession creates an access and refresh token pair for the user, stores
// the refresh token id in Redis and sets both cookies.
func IssueSession(ctx *AppContext, c *fiber.Ctx, userID uuid.UUID, email string) (*token.Payload, error) {
	accessToken, accessPayload, err := ctx.PasetoMaker.CreateToken(userID, email, token.AccessToken, AccessTokenDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshPayload, err := ctx.PasetoMaker.CreateToken(userID, email, token.RefreshToken, RefreshTokenDuration)
	if err != nil {
		return nil, err
	}
	if err := ctx.RedisClient.Set(ctx.Ctx, refreshKey(refreshPayload.ID), userID.String(), RefreshTokenDuration).Err(); err != nil {
		return nil, err
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Expires:  accessPayload.ExpiredAt,
		HTTPOnly: true,
		Secure:   ctx.SecureCookies,
		SameSite: "Lax",
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  refreshPayload.ExpiredAt,
		HTTPOnly: true,
		Secure:   ctx.SecureCookies,
		SameSite: "Lax",
		Path:     "/",
	})
	return accessPayload, nil
}

// ProtectedRoute accepts a valid access token from the Authorization header
// or cookie. Otherwise it rotates a single-use refresh token.
func ProtectedRoute(ctx *AppContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUserID(c); ok {
			return c.Next()
		}
		if accessToken := bearerToken(c); accessToken != "" {
			payload, err := ctx.PasetoMaker.VerifyToken(accessToken, token.AccessToken)
			if err == nil {
				c.Locals(userLocal, payload)
				return c.Next()
			}
			config.Logger.Debug("Invalid access token encountered", zap.Error(err))
		}

		refreshToken := c.Cookies("refresh_token")
		if refreshToken == "" {
			return unauthorized(c, "Authentication required")
		}

		refreshPayload, err := ctx.PasetoMaker.VerifyToken(refreshToken, token.RefreshToken)
		if err != nil {
			config.Logger.Warn("Refresh token verification failed", zap.Error(err))
			return unauthorized(c, "Session expired or invalid. Please log in again.")
		}

		// GetDel makes the refresh token single use.
		userID, err := ctx.RedisClient.GetDel(ctx.Ctx, refreshKey(refreshPayload.ID)).Result()
		if err == redis.Nil {
			config.Logger.Warn("Refresh token not found in Redis",
				zap.String("payload_id", refreshPayload.ID.String()),
				zap.String("user_id", refreshPayload.UserID.String()),
			)
			return unauthorized(c, "Session invalid. Please log in again.")
		} else if err != nil {
			config.Logger.Error("Error accessing Redis for refresh token validation",
				zap.String("payload_id", refreshPayload.ID.String()),
				zap.Error(err),
			)
			return internalError(c)
		}
		if userID != refreshPayload.UserID.String() {
			config.Logger.Warn("Refresh token user mismatch", zap.String("payload_id", refreshPayload.ID.String()))
			return unauthorized(c, "Session invalid. Please log in again.")
		}

		payload, err := IssueSession(ctx, c, refreshPayload.UserID, refreshPayload.Email)
		if err != nil {
			config.Logger.Error("Could not rotate session tokens",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return internalError(c)
		}

		c.Locals(userLocal, payload)
		return c.Next()
	}
}

// CurrentUserID returns the authenticated user set by ProtectedRoute.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	payload, ok := c.Locals(userLocal).(*token.Payload)
	if !ok || payload == nil {
		return uuid.Nil, false
	}
	return payload.UserID, true
}

// EndSession revokes the refresh token of the caller and clears both cookies.
func EndSession(ctx *AppContext, c *fiber.Ctx) {
	if refreshToken := c.Cookies("refresh_token"); refreshToken != "" {
		if payload, err := ctx.PasetoMaker.VerifyToken(refreshToken, token.RefreshToken); err == nil {
			if err := ctx.RedisClient.Del(ctx.Ctx, refreshKey(payload.ID)).Err(); err != nil {
				config.Logger.Error("Failed to delete refresh token from Redis during logout", zap.Error(err))
			}
		}
	}
	for _, name := range []string{"access_token", "refresh_token"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour),
			HTTPOnly: true,
			Secure:   ctx.SecureCookies,
			SameSite: "Lax",
			Path:     "/",
		})
	}
}
