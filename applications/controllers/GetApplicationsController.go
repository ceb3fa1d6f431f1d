package controllers

import (
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	"wildlife-licensing-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

// GetFilteredApplicationsController lists applications visible to the
// caller, newest first, one page at a time.
func (ac *ApplicationController) GetFilteredApplicationsController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	params := pagination.ParsePaginationParams(c)
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	filter := applications_repositories.ApplicationFilter{
		Lodged: c.QueryBool("lodged"),
		Limit:  params.PageSize,
		Offset: params.Offset(),
	}
	if status := params.Filters["customer_status"]; status != "" {
		customerStatus := models.CustomerStatus(status)
		filter.CustomerStatus = &customerStatus
	}

	apps, total, err := ac.Orchestrator.ListApplicationsFor(c.UserContext(), rc, filter)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Applications retrieved", pagination.NewPaginatedResponse(c, apps, total, params))
}

func (ac *ApplicationController) GetApplicationController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.AuthorizeView(c.UserContext(), rc, appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Application retrieved", app)
}

// GetApplicationActionsController returns the audit trail.
func (ac *ApplicationController) GetApplicationActionsController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	if _, err := ac.Orchestrator.AuthorizeView(c.UserContext(), rc, appID); err != nil {
		return fail(c, err)
	}
	actions, err := ac.Orchestrator.ListActions(c.UserContext(), appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Actions retrieved", actions)
}

// ExportApplicationActionsController downloads the audit trail as a workbook.
func (ac *ApplicationController) ExportApplicationActionsController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	if _, err := ac.Orchestrator.AuthorizeView(c.UserContext(), rc, appID); err != nil {
		return fail(c, err)
	}
	path, err := ac.Orchestrator.ExportActions(c.UserContext(), appID, ac.ExportDir)
	if err != nil {
		return fail(c, err)
	}
	return c.Download(path)
}
