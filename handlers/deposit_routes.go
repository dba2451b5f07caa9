package handlers

import (
	"rewards-settlement/middleware"
	"rewards-settlement/services"
	"rewards-settlement/utils"

	"github.com/gofiber/fiber/v2"
)

func reviewDeposit(depositService *services.DepositService, decision services.DepositDecision) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := depositService.Review(c.UserContext(), c.Params("id"), decision, middleware.AdminID(c))
		if err != nil {
			return fail(c, err)
		}
		resp := fiber.Map{
			"success": true,
			"deposit": result.Deposit,
		}
		if result.User != nil {
			resp["user"] = result.User
		}
		if result.Referral != nil {
			resp["referral"] = result.Referral
		}
		return c.JSON(resp)
	}
}

func SetupDepositRoutes(admin fiber.Router, depositService *services.DepositService, receipts utils.ReceiptLinker) {
	admin.Get("/deposits", func(c *fiber.Ctx) error {
		deposits, page, err := depositService.List(c.UserContext(), services.DepositFilter{
			Status: c.Query("status"),
			Search: c.Query("search"),
			Page:   queryInt(c, "page", 1),
			Limit:  queryInt(c, "limit", 10),
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"deposits": deposits,
			"pagination": fiber.Map{
				"currentPage":   page.CurrentPage,
				"totalPages":    page.TotalPages,
				"totalDeposits": page.Total,
				"limit":         page.Limit,
				"hasNextPage":   page.HasNextPage,
				"hasPrevPage":   page.HasPrevPage,
			},
		})
	})

	admin.Get("/deposits/:id", func(c *fiber.Ctx) error {
		dep, err := depositService.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "deposit": dep})
	})

	admin.Get("/deposits/:id/receipt", func(c *fiber.Ctx) error {
		dep, err := depositService.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		if dep.ReceiptReference == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "deposit has no receipt",
				"code":    services.KindNotFound,
			})
		}
		url, expiresAt, err := receipts.ReceiptURL(c.UserContext(), dep.ReceiptReference)
		if err != nil {
			return fail(c, err)
		}
		resp := fiber.Map{"success": true, "url": url}
		if !expiresAt.IsZero() {
			resp["expiresAt"] = expiresAt
		}
		return c.JSON(resp)
	})

	admin.Put("/deposits/:id/confirm", reviewDeposit(depositService, services.DecisionConfirm))
	admin.Put("/deposits/:id/reject", reviewDeposit(depositService, services.DecisionReject))
}
