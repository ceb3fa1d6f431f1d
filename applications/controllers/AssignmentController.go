package controllers

import (
	"wildlife-licensing-backend/applications/requests"

	"github.com/gofiber/fiber/v2"
)

func (ac *ApplicationController) AssignOfficerController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	var req requests.AssignOfficerRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.AssignOfficer(c.UserContext(), rc, appID, req.OfficerID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Officer assigned", app)
}

func (ac *ApplicationController) AssignToMeController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.AssignToMe(c.UserContext(), rc, appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Application assigned to you", app)
}

func (ac *ApplicationController) UnassignOfficerController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.UnassignOfficer(c.UserContext(), rc, appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Officer unassigned", app)
}

func (ac *ApplicationController) AssignApproverController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.AssignApproverRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.AssignActivityApprover(c.UserContext(), rc, appID, activityID, req.ApproverID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Approver assigned", app)
}

func (ac *ApplicationController) MakeMeApproverController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.MakeMeActivityApprover(c.UserContext(), rc, appID, activityID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "You are now the approver", app)
}

func (ac *ApplicationController) UnassignApproverController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.UnassignActivityApprover(c.UserContext(), rc, appID, activityID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Approver unassigned", app)
}
