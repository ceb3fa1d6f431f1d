package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"wildlife-licensing-backend/db/models"
	"wildlife-licensing-backend/middleware"
	notifications_services "wildlife-licensing-backend/notifications/services"
	"wildlife-licensing-backend/token"
	"wildlife-licensing-backend/users/controllers"
	"wildlife-licensing-backend/users/repositories"
	router "wildlife-licensing-backend/users/routes"
	"wildlife-licensing-backend/users/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lastMessage struct {
	body string
}

func (m *lastMessage) Notify(ctx context.Context, n notifications_services.Notification) error {
	m.body = n.Body
	return nil
}

func loginApp(t *testing.T) (*fiber.App, *lastMessage) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	session := &middleware.AppContext{PasetoMaker: maker, Ctx: context.Background(), RedisClient: client}

	users := repositories.NewMemoryUserRepository()
	_, err = users.CreateUser(context.Background(), &models.User{FirstName: "Ada", LastName: "Keeper", Email: "ada@example.com", Active: true})
	require.NoError(t, err)

	message := &lastMessage{}
	controller := &controllers.LoginController{
		Login:    services.NewLoginService(users, services.NewOtpService(client), message, zap.NewNop()),
		UserRepo: users,
		Session:  session,
	}
	app := fiber.New()
	router.InitRoutes(app, controller, middleware.ProtectedRoute(session))
	return app, message
}

func post(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestLoginFlow(t *testing.T) {
	app, message := loginApp(t)

	resp := post(t, app, "/api/v1/auth/login", `{"email":"ada@example.com"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var requested struct {
		Data struct {
			PreToken string `json:"pre_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&requested))
	code := regexp.MustCompile(`\d{6}`).FindString(message.body)
	require.NotEmpty(t, code)

	resp = post(t, app, "/api/v1/auth/verify", `{"email":"ada@example.com","otp":"`+code+`","pre_token":"`+requested.Data.PreToken+`"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var accessToken string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "access_token" {
			accessToken = cookie.Value
		}
	}
	require.NotEmpty(t, accessToken)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me struct {
		Data models.User `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "ada@example.com", me.Data.Email)
}

func TestLoginRejectsBadInput(t *testing.T) {
	app, _ := loginApp(t)

	resp := post(t, app, "/api/v1/auth/login", `{"email":"not-an-email"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/auth/verify", `{"email":"ada@example.com","otp":"123456","pre_token":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
