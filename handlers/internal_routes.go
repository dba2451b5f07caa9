package handlers

import (
	"encoding/json"

	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

// SetupInternalRoutes exposes intake endpoints for the user-facing services.
// Everything created here starts pending.
func SetupInternalRoutes(internal fiber.Router, svc *Services) {
	internal.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			ID             string `json:"id"`
			Username       string `json:"username"`
			Email          string `json:"email"`
			Verified       bool   `json:"verified"`
			ReferralCode   string `json:"referralCode"`
			ReferredByCode string `json:"referredByCode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		user, err := svc.Users.Register(c.UserContext(), services.Registration{
			ID:             req.ID,
			Username:       req.Username,
			Email:          req.Email,
			Verified:       req.Verified,
			ReferralCode:   req.ReferralCode,
			ReferredByCode: req.ReferredByCode,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": user})
	})

	internal.Post("/deposits", func(c *fiber.Ctx) error {
		var req struct {
			UserID           string          `json:"userId"`
			Amount           json.RawMessage `json:"amount"`
			ReceiptReference string          `json:"receiptReference"`
			TransactionHash  *string         `json:"transactionHash"`
			ExternalRef      *string         `json:"externalRef"`
			Notes            string          `json:"notes"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		amount, err := services.ParseAmount("amount", req.Amount)
		if err != nil {
			return fail(c, err)
		}
		dep, created, err := svc.Deposits.Create(c.UserContext(), services.DepositIntake{
			UserID:           req.UserID,
			Amount:           amount,
			ReceiptReference: req.ReceiptReference,
			TransactionHash:  req.TransactionHash,
			ExternalRef:      req.ExternalRef,
			Notes:            req.Notes,
		})
		if err != nil {
			return fail(c, err)
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{"success": true, "deposit": dep, "created": created})
	})

	internal.Post("/task-submissions", func(c *fiber.Ctx) error {
		var req struct {
			TaskID         string `json:"taskId"`
			UserID         string `json:"userId"`
			ProofReference string `json:"proofReference"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		sub, err := svc.Tasks.Submit(c.UserContext(), req.TaskID, req.UserID, req.ProofReference)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "submission": sub})
	})

	internal.Post("/participations", func(c *fiber.Ctx) error {
		var req struct {
			DrawID         string `json:"drawId"`
			UserID         string `json:"userId"`
			ProofReference string `json:"proofReference"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		entry, err := svc.Draws.Enter(c.UserContext(), req.DrawID, req.UserID, req.ProofReference)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "participation": entry})
	})

	internal.Post("/withdrawal-requests", func(c *fiber.Ctx) error {
		var req struct {
			UserID         string          `json:"userId"`
			Amount         json.RawMessage `json:"amount"`
			Method         string          `json:"method"`
			AccountDetails string          `json:"accountDetails"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		amount, err := services.ParseAmount("amount", req.Amount)
		if err != nil {
			return fail(c, err)
		}
		wr, err := svc.Withdrawals.Create(c.UserContext(), services.WithdrawalIntake{
			UserID:         req.UserID,
			Amount:         amount,
			Method:         req.Method,
			AccountDetails: req.AccountDetails,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "withdrawal": wr})
	})
}
