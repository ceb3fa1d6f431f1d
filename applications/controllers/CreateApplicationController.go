package controllers

import (
	"wildlife-licensing-backend/applications/requests"
	"wildlife-licensing-backend/db/models"

	"github.com/gofiber/fiber/v2"
)

// CreateApplicationController starts a draft application for the caller.
func (ac *ApplicationController) CreateApplicationController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	var req requests.CreateApplicationRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.Create(c.UserContext(), rc, req.Input())
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusCreated, "Application created", app)
}

// EstimatePriceController prices purposes before an application exists.
func (ac *ApplicationController) EstimatePriceController(c *fiber.Ctx) error {
	var req requests.EstimatePriceRequest
	if !bind(c, &req) {
		return nil
	}
	fees, err := ac.Orchestrator.EstimatePrice(c.UserContext(), req.PurposeIDs, models.ApplicationType(req.ApplicationType))
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Price estimated", fiber.Map{
		"application_fee": fees.Application.StringFixed(2),
		"licence_fee":     fees.Licence.StringFixed(2),
		"total":           fees.Total().StringFixed(2),
	})
}

// SubmitApplicationController lodges a draft application.
func (ac *ApplicationController) SubmitApplicationController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	var req requests.SubmitApplicationRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.Submit(c.UserContext(), rc, appID, req.FormData)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Application submitted", app)
}
