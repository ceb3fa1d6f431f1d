package controllers

import (
	"context"
	"wildlife-licensing-backend/applications/requests"
	applications_services "wildlife-licensing-backend/applications/services"
	"wildlife-licensing-backend/db/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (ac *ApplicationController) SetProcessingStatusController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.ProcessingStatusRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.SetActivityProcessingStatus(c.UserContext(), rc, appID, activityID, models.ProcessingStatus(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Processing status updated", app)
}

func (ac *ApplicationController) RequestAmendmentController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	var req requests.AmendmentRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.RequestAmendment(c.UserContext(), rc, appID, req.ActivityIDs, models.AmendmentReason(req.Reason), req.Text)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Amendment requested", app)
}

func (ac *ApplicationController) ProposeLicenceController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.ProposeLicenceRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.ProposeLicence(c.UserContext(), rc, appID, activityID, req.Inputs())
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Licence proposed", app)
}

func (ac *ApplicationController) ProposeDeclineController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.ProposeDeclineRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.ProposeDecline(c.UserContext(), rc, appID, activityID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Decline proposed", app)
}

func (ac *ApplicationController) WaiveFeesController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.WaiveFeesRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.WaiveFees(c.UserContext(), rc, appID, activityID, req.PurposeIDs)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Fees waived", app)
}

type activityOperation func(ctx context.Context, rc applications_services.RequestContext, appID, activityID uuid.UUID) (*models.Application, error)

// activityAction adapts an operation taking only the application and
// activity ids into a handler.
func activityAction(op activityOperation, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, appID, activityID, ok := activityRequest(c)
		if !ok {
			return nil
		}
		app, err := op(c.UserContext(), rc, appID, activityID)
		if err != nil {
			return fail(c, err)
		}
		return respond(c, fiber.StatusOK, message, app)
	}
}

func (ac *ApplicationController) FinalDecisionController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.FinalDecision, "Final decision recorded")(c)
}

func (ac *ApplicationController) ReissueActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.ReissueActivity, "Activity reopened for reissue")(c)
}

func (ac *ApplicationController) DiscardActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.DiscardActivity, "Activity discarded")(c)
}

func (ac *ApplicationController) SuspendActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.Suspend, "Activity suspended")(c)
}

func (ac *ApplicationController) ReinstateActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.Reinstate, "Activity reinstated")(c)
}

func (ac *ApplicationController) CancelActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.Cancel, "Activity cancelled")(c)
}

func (ac *ApplicationController) SurrenderActivityController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.Surrender, "Activity surrendered")(c)
}

func (ac *ApplicationController) DiscardApplicationController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.DiscardApplication(c.UserContext(), rc, appID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Application discarded", app)
}
