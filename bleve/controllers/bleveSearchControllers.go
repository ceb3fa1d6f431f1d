package controllers

import (
	"context"
	"strconv"
	"wildlife-licensing-backend/bleve/repositories"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSearchResults = 50

// SearchScope decides whose applications a user may find. A nil
// submitter means every application.
type SearchScope interface {
	SearchScope(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

type SearchController struct {
	repo  repositories.BleveRepositoryInterface
	scope SearchScope
}

func NewSearchController(repo repositories.BleveRepositoryInterface, scope SearchScope) *SearchController {
	return &SearchController{repo: repo, scope: scope}
}

// SearchApplicationsController searches applications by lodgement number,
// applicant, activity or purpose.
func (c *SearchController) SearchApplicationsController(ctx *fiber.Ctx) error {
	query := ctx.Query("q")
	if query == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Search query is required",
		})
	}
	size, err := strconv.Atoi(ctx.Query("size", "20"))
	if err != nil || size <= 0 || size > maxSearchResults {
		size = 20
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	submitterID, err := c.scope.SearchScope(ctx.UserContext(), userID)
	if err != nil {
		config.Logger.Warn("Search scope refused", zap.Error(err), zap.String("userID", userID.String()))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Search is not available for this account",
		})
	}

	results, err := c.repo.SearchApplications(query, size, submitterID)
	if err != nil {
		config.Logger.Error("Application search failed", zap.Error(err), zap.String("query", query))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	return ctx.JSON(fiber.Map{
		"results": results.Hits,
		"total":   results.Total,
	})
}
