package handlers

import (
	"time"

	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

func SetupDashboardRoutes(admin fiber.Router, dashboardService *services.DashboardService) {
	admin.Get("/dashboard-stats", func(c *fiber.Ctx) error {
		stats, err := dashboardService.Stats(c.UserContext(), time.Now())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "stats": stats})
	})
}
