package routes

import (
	"wildlife-licensing-backend/bleve/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitBleveRoutes(app fiber.Router, controller *controllers.SearchController, protected ...fiber.Handler) {
	api := app.Group("/api/v1/bleve_search", protected...)

	api.Get("/applications", controller.SearchApplicationsController)
}
