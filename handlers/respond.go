package handlers

import (
	"strconv"

	"rewards-settlement/logging"
	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindInvalidState, services.KindConcurrencyConflict:
		return fiber.StatusConflict
	case services.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// fail renders err with its kind so the dashboard can tell a stale review from a bad amount.
func fail(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	if kind == "" {
		logging.Named("http").Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal error",
		})
	}
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
		"code":    kind,
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "invalid JSON",
		"cause":   err.Error(),
		"code":    services.KindValidation,
	})
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}
