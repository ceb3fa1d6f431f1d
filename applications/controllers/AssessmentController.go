package controllers

import (
	"wildlife-licensing-backend/applications/requests"

	"github.com/gofiber/fiber/v2"
)

func (ac *ApplicationController) SendToAssessorController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	var req requests.SendToAssessorRequest
	if !bind(c, &req) {
		return nil
	}
	assessment, err := ac.Orchestrator.SendToAssessor(c.UserContext(), rc, appID, activityID, req.AssessorGroupID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusCreated, "Sent to assessor", assessment)
}

func (ac *ApplicationController) CompleteAssessmentController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	assessmentID, ok := paramID(c, "assessmentId")
	if !ok {
		return nil
	}
	var req requests.CompleteAssessmentRequest
	if !bind(c, &req) {
		return nil
	}
	app, err := ac.Orchestrator.CompleteAssessment(c.UserContext(), rc, assessmentID, req.Comment)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Assessment completed", app)
}

func (ac *ApplicationController) CompleteMyAssessmentsController(c *fiber.Ctx) error {
	return activityAction(ac.Orchestrator.CompleteApplicationAssessmentsByUser, "Assessments completed")(c)
}

func (ac *ApplicationController) RecallAssessmentController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	assessmentID, ok := paramID(c, "assessmentId")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.RecallAssessment(c.UserContext(), rc, assessmentID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Assessment recalled", app)
}

func (ac *ApplicationController) RemindAssessmentController(c *fiber.Ctx) error {
	rc, ok := requestContext(c)
	if !ok {
		return nil
	}
	assessmentID, ok := paramID(c, "assessmentId")
	if !ok {
		return nil
	}
	app, err := ac.Orchestrator.RemindAssessment(c.UserContext(), rc, assessmentID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "Assessor reminded", app)
}

// LatestAssessmentController returns the newest assessment of an activity
// that was not recalled.
func (ac *ApplicationController) LatestAssessmentController(c *fiber.Ctx) error {
	rc, appID, activityID, ok := activityRequest(c)
	if !ok {
		return nil
	}
	if _, err := ac.Orchestrator.AuthorizeView(c.UserContext(), rc, appID); err != nil {
		return fail(c, err)
	}
	assessment, err := ac.Orchestrator.LatestAssessment(c.UserContext(), appID, activityID)
	if err != nil {
		return fail(c, err)
	}
	if assessment == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "No assessment found for this activity",
			"error":   "not_found",
		})
	}
	return respond(c, fiber.StatusOK, "Assessment retrieved", assessment)
}
