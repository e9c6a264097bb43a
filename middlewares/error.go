package middlewares

import (
	"errors"

	"billing-backend/logger"
	"billing-backend/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Lifecycle errors from the services layer carry their own status semantics:
// 400 bad input / overpayment, 404 missing entity, 409 invalid state transition.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Request-shape validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Typed lifecycle errors
	var (
		valErr   *services.ValidationError
		overErr  *services.OverpaymentError
		notFound *services.NotFoundError
		conflict *services.StateConflictError
	)
	switch {
	case errors.As(err, &valErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": valErr.Error()})
	case errors.As(err, &overErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": overErr.Error()})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": notFound.Error()})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": conflict.Error()})
	}

	// 4) Unknown errors (500)
	logger.Error("internal error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
