package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// InitCors lets the licensing portal call the API with session cookies.
// Content-Disposition is exposed so the portal can name exported action logs.
func InitCors(app *fiber.App, allowOrigins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + CorrelationHeader,
		ExposeHeaders:    CorrelationHeader + ", Content-Disposition",
		AllowCredentials: true,
		MaxAge:           600,
	}))
}
