package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const (
	CorrelationHeader = "X-Correlation-ID"
	correlationLocal  = "correlation_id"
)

// Correlation reuses the caller's X-Correlation-ID or generates one, and
// echoes it on the response.
func Correlation() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     CorrelationHeader,
		Generator:  uuid.NewString,
		ContextKey: correlationLocal,
	})
}

// CorrelationID returns the correlation id of the request.
func CorrelationID(c *fiber.Ctx) string {
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return ""
}
