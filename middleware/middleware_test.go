package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"wildlife-licensing-backend/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppContext(t *testing.T) (*AppContext, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	return &AppContext{
		PasetoMaker: maker,
		Ctx:         context.Background(),
		RedisClient: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}, mr
}

func protectedApp(ctx *AppContext) *fiber.App {
	app := fiber.New()
	app.Use(Correlation())
	app.Get("/me", ProtectedRoute(ctx), func(c *fiber.Ctx) error {
		id, ok := CurrentUserID(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(id.String() + "|" + CorrelationID(c))
	})
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}

func TestProtectedRouteAcceptsBearerToken(t *testing.T) {
	ctx, _ := testAppContext(t)
	userID := uuid.New()
	access, _, err := ctx.PasetoMaker.CreateToken(userID, "olive@example.com", token.AccessToken, AccessTokenDuration)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set(CorrelationHeader, "corr-1")
	resp, err := protectedApp(ctx).Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, userID.String()+"|corr-1", body(t, resp))
	assert.Equal(t, "corr-1", resp.Header.Get(CorrelationHeader))
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	ctx, _ := testAppContext(t)
	resp, err := protectedApp(ctx).Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(CorrelationHeader))
}

func TestProtectedRouteRotatesRefreshToken(t *testing.T) {
	ctx, mr := testAppContext(t)
	userID := uuid.New()
	refresh, payload, err := ctx.PasetoMaker.CreateToken(userID, "olive@example.com", token.RefreshToken, RefreshTokenDuration)
	require.NoError(t, err)
	require.NoError(t, mr.Set(refreshKey(payload.ID), userID.String()))

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	resp, err := protectedApp(ctx).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, mr.Exists(refreshKey(payload.ID)))

	var names []string
	for _, cookie := range resp.Cookies() {
		names = append(names, cookie.Name)
	}
	assert.ElementsMatch(t, []string{"access_token", "refresh_token"}, names)

	replay := httptest.NewRequest("GET", "/me", nil)
	replay.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	resp, err = protectedApp(ctx).Test(replay)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRouteRejectsRefreshTokenAsBearer(t *testing.T) {
	ctx, mr := testAppContext(t)
	userID := uuid.New()
	refresh, payload, err := ctx.PasetoMaker.CreateToken(userID, "olive@example.com", token.RefreshToken, RefreshTokenDuration)
	require.NoError(t, err)
	require.NoError(t, mr.Set(refreshKey(payload.ID), userID.String()))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	resp, err := protectedApp(ctx).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.True(t, mr.Exists(refreshKey(payload.ID)))
}
