package controller

import (
	"errors"

	"crewmeet/services"

	"github.com/gofiber/fiber/v2"
)

// domainError maps core service failures onto HTTP responses. Duplicate
// flows are a conflict, not a failure: the body carries the existing
// flow's id so clients can fetch it instead of retrying.
func domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrFlowNotFound), errors.Is(err, services.ErrTeamNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrNotAMember), errors.Is(err, services.ErrNotActiveMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrGenderIncompatible), errors.Is(err, services.ErrInvalidJudgement):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrDuplicateFlow),
		errors.Is(err, services.ErrFlowNotConfirmed),
		errors.Is(err, services.ErrConstraintViolation):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
