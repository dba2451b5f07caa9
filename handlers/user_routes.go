package handlers

import (
	"encoding/json"
	"strconv"

	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

type balanceRequest struct {
	Balance           json.RawMessage `json:"balance"`
	AdditionalBalance json.RawMessage `json:"additionalBalance"`
	Version           *int64          `json:"version"`
}

func setAdditionalBalance(ledger *services.BalanceLedger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req balanceRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		value, err := services.ParseAmount("additionalBalance", req.AdditionalBalance)
		if err != nil {
			return fail(c, err)
		}
		user, err := ledger.SetAdditionalBalance(c.UserContext(), c.Params("id"), value, req.Version)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "user": user.Snapshot()})
	}
}

func setTotalBalance(ledger *services.BalanceLedger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req balanceRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		value, err := services.ParseAmount("balance", req.Balance)
		if err != nil {
			return fail(c, err)
		}
		user, err := ledger.SetTotalBalance(c.UserContext(), c.Params("id"), value, req.Version)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "user": user.Snapshot()})
	}
}

func SetupUserRoutes(admin fiber.Router, userService *services.UserService, ledger *services.BalanceLedger) {
	admin.Get("/users", func(c *fiber.Ctx) error {
		filter := services.UserFilter{
			Search: c.Query("search"),
			Page:   queryInt(c, "page", 1),
			Limit:  queryInt(c, "limit", 10),
		}
		if v := c.Query("verified"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				filter.Verified = &b
			}
		}
		users, page, err := userService.List(c.UserContext(), filter)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"users":   users,
			"pagination": fiber.Map{
				"currentPage": page.CurrentPage,
				"totalPages":  page.TotalPages,
				"totalUsers":  page.Total,
				"limit":       page.Limit,
				"hasNextPage": page.HasNextPage,
				"hasPrevPage": page.HasPrevPage,
			},
		})
	})

	admin.Get("/users/:id", func(c *fiber.Ctx) error {
		user, err := userService.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		stats, err := userService.Referrals.StatsFor(c.UserContext(), user.ID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "user": user, "referrals": stats})
	})

	admin.Get("/users/:id/referrals", func(c *fiber.Ctx) error {
		refs, err := userService.Referrals.ListByReferrer(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "referrals": refs})
	})

	admin.Put("/users/:id/balance", setTotalBalance(ledger))
	admin.Put("/users/:id/additional-balance", setAdditionalBalance(ledger))

	admin.Put("/users/:id/unlock-tasks", func(c *fiber.Ctx) error {
		user, err := ledger.UnlockTasks(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "user": user.Snapshot()})
	})
}
