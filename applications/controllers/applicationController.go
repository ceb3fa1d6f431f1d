package controllers

import (
	"errors"
	"wildlife-licensing-backend/applications/requests"
	applications_services "wildlife-licensing-backend/applications/services"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ApplicationController struct {
	Orchestrator  *applications_services.ApplicationOrchestrator
	ExportDir     string
	WebhookSecret string
}

// The helpers below write the error response themselves and report false;
// handlers then return nil.

func requestContext(c *fiber.Ctx) (applications_services.RequestContext, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not authenticated",
		})
		return applications_services.RequestContext{}, false
	}
	return applications_services.NewRequestContext(userID, middleware.CorrelationID(c)), true
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid " + name,
			"error":   err.Error(),
		})
		return uuid.Nil, false
	}
	return id, true
}

// bind parses and validates the body into req.
func bind(c *fiber.Ctx, req any) bool {
	if err := c.BodyParser(req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return false
	}
	if fields, ok := requests.Check(req); !ok {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  fields,
		})
		return false
	}
	return true
}

// activityRequest resolves the caller and the :id and :activityId params.
func activityRequest(c *fiber.Ctx) (applications_services.RequestContext, uuid.UUID, uuid.UUID, bool) {
	rc, ok := requestContext(c)
	if !ok {
		return rc, uuid.Nil, uuid.Nil, false
	}
	appID, ok := paramID(c, "id")
	if !ok {
		return rc, uuid.Nil, uuid.Nil, false
	}
	activityID, ok := paramID(c, "activityId")
	if !ok {
		return rc, uuid.Nil, uuid.Nil, false
	}
	return rc, appID, activityID, true
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// fail maps workflow errors onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	var (
		validation *applications_services.ValidationError
		missing    *applications_services.MissingFieldsError
		authz      *applications_services.AuthorizationError
		transition *applications_services.InvalidTransitionError
		unsettled  *applications_services.FeeNotSettledError
	)
	body := fiber.Map{"success": false, "message": err.Error()}
	status := fiber.StatusInternalServerError

	switch {
	case errors.As(err, &validation):
		status = fiber.StatusBadRequest
		body["error"] = "validation_failed"
		if len(validation.Fields) > 0 {
			body["fields"] = validation.Fields
		}
	case errors.As(err, &missing):
		status = fiber.StatusBadRequest
		body["error"] = "missing_fields"
		body["fields"] = missing.Fields
	case errors.As(err, &authz):
		status = fiber.StatusUnauthorized
		body["error"] = "unauthorized"
	case errors.Is(err, applications_services.ErrNotFound):
		status = fiber.StatusNotFound
		body["error"] = "not_found"
	case errors.As(err, &transition):
		status = fiber.StatusBadRequest
		body["error"] = "invalid_transition"
	case errors.As(err, &unsettled):
		status = fiber.StatusBadRequest
		body["error"] = "fees_not_settled"
		body["outstanding"] = unsettled.Outstanding.StringFixed(2)
	case errors.Is(err, applications_services.ErrNoGateway):
		status = fiber.StatusServiceUnavailable
		body["error"] = "payments_unavailable"
	default:
		config.Logger.Error("Application request failed", zap.Error(err), zap.String("path", c.Path()))
		body["message"] = "Something went wrong"
		body["error"] = "internal_error"
	}
	return c.Status(status).JSON(body)
}
