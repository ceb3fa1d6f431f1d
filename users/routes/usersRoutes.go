package router

import (
	"wildlife-licensing-backend/users/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitRoutes(router fiber.Router, loginController *controllers.LoginController, protected fiber.Handler) {
	auth := router.Group("/api/v1/auth")
	auth.Post("/login", loginController.RequestLoginCode)
	auth.Post("/verify", loginController.VerifyLoginCode)
	auth.Post("/logout", loginController.LogoutUser)

	router.Get("/api/v1/users/me", protected, loginController.GetCurrentUser)
}
