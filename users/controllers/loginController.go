package controllers

import (
	"errors"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/middleware"
	"wildlife-licensing-backend/users/repositories"
	"wildlife-licensing-backend/users/requests"
	"wildlife-licensing-backend/users/services"
	"wildlife-licensing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LoginController struct {
	Login    *services.LoginService
	UserRepo repositories.UserRepository
	Session  *middleware.AppContext
}

func parse(c *fiber.Ctx, req any) bool {
	if err := c.BodyParser(req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return false
	}
	if fields, ok := utils.ValidateStruct(req); !ok {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  fields,
		})
		return false
	}
	return true
}

func somethingWentWrong(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Something went wrong",
		"error":   "An internal server error occurred.",
	})
}

// RequestLoginCode emails a one-time code and returns the pre-token.
func (lc *LoginController) RequestLoginCode(c *fiber.Ctx) error {
	var req requests.LoginCodeRequest
	if !parse(c, &req) {
		return nil
	}
	preToken, err := lc.Login.RequestCode(c.UserContext(), req.Email)
	if err != nil {
		config.Logger.Error("Failed to issue login code", zap.Error(err), zap.String("correlationID", middleware.CorrelationID(c)))
		return somethingWentWrong(c)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "If the account exists a login code has been sent",
		"data":    fiber.Map{"pre_token": preToken},
	})
}

// VerifyLoginCode exchanges a valid code for a session.
func (lc *LoginController) VerifyLoginCode(c *fiber.Ctx) error {
	var req requests.VerifyLoginCodeRequest
	if !parse(c, &req) {
		return nil
	}
	user, err := lc.Login.VerifyCode(c.UserContext(), req.Email, req.Otp, req.PreToken)
	if errors.Is(err, services.ErrInvalidLoginCode) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Login failed",
			"error":   "Invalid or expired login code.",
		})
	}
	if err != nil {
		config.Logger.Error("Login code verification failed", zap.Error(err), zap.String("correlationID", middleware.CorrelationID(c)))
		return somethingWentWrong(c)
	}

	if _, err := middleware.IssueSession(lc.Session, c, user.ID, user.Email); err != nil {
		config.Logger.Error("Error issuing session", zap.String("user_id", user.ID.String()), zap.Error(err))
		return somethingWentWrong(c)
	}
	config.Logger.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("client_ip", c.IP()))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data":    user,
	})
}

func (lc *LoginController) LogoutUser(c *fiber.Ctx) error {
	middleware.EndSession(lc.Session, c)
	config.Logger.Info("User logged out successfully", zap.String("client_ip", c.IP()))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the signed-in account.
func (lc *LoginController) GetCurrentUser(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not authenticated",
		})
	}
	user, err := lc.UserRepo.GetUserByID(c.UserContext(), userID)
	if err != nil {
		config.Logger.Warn("Authenticated user not found", zap.String("user_id", userID.String()), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User retrieved",
		"data":    user,
	})
}
