package handlers

import (
	"rewards-settlement/models"
	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWithdrawalRoutes(admin fiber.Router, withdrawalService *services.WithdrawalService) {
	admin.Get("/withdrawal-requests", func(c *fiber.Ctx) error {
		list, err := withdrawalService.List(c.UserContext(), c.Query("status"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "withdrawals": list})
	})

	admin.Put("/withdrawal-requests/:id/process", func(c *fiber.Ctx) error {
		var req struct {
			Status models.WithdrawalStatus `json:"status"`
			Notes  string                  `json:"notes"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		wr, err := withdrawalService.Process(c.UserContext(), c.Params("id"), req.Status, req.Notes)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "withdrawal": wr})
	})
}
