package handlers

import (
	"encoding/json"
	"time"

	"rewards-settlement/middleware"
	"rewards-settlement/models"
	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

type drawRequest struct {
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	Prize           *string         `json:"prize"`
	EntryFee        json.RawMessage `json:"entryFee"`
	MaxParticipants *int            `json:"maxParticipants"`
	StartDate       *time.Time      `json:"startDate"`
	EndDate         *time.Time      `json:"endDate"`
}

func (r drawRequest) input() (services.DrawInput, error) {
	in := services.DrawInput{
		Title:           r.Title,
		Description:     r.Description,
		Prize:           r.Prize,
		MaxParticipants: r.MaxParticipants,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
	}
	if len(r.EntryFee) > 0 && string(r.EntryFee) != "null" {
		fee, err := services.ParseAmount("entryFee", r.EntryFee)
		if err != nil {
			return in, err
		}
		in.EntryFee = &fee
	}
	return in, nil
}

func reviewParticipation(drawService *services.LuckyDrawService, decision models.ReviewStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			ReviewNotes string `json:"reviewNotes"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, err)
			}
		}
		entry, err := drawService.ReviewParticipation(c.UserContext(), c.Params("id"), decision, req.ReviewNotes, middleware.AdminID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "participation": entry})
	}
}

func SetupLuckyDrawRoutes(admin fiber.Router, drawService *services.LuckyDrawService) {
	admin.Get("/lucky-draws", func(c *fiber.Ctx) error {
		draws, err := drawService.List(c.UserContext(), c.Query("status"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "draws": draws})
	})

	admin.Post("/lucky-draws", func(c *fiber.Ctx) error {
		var req drawRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		in, err := req.input()
		if err != nil {
			return fail(c, err)
		}
		draw, err := drawService.Create(c.UserContext(), in)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "draw": draw})
	})

	admin.Put("/lucky-draws/:id", func(c *fiber.Ctx) error {
		var req drawRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		in, err := req.input()
		if err != nil {
			return fail(c, err)
		}
		draw, err := drawService.Update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "draw": draw})
	})

	admin.Put("/lucky-draws/:id/toggle", func(c *fiber.Ctx) error {
		draw, err := drawService.Toggle(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "draw": draw})
	})

	admin.Get("/participations", func(c *fiber.Ctx) error {
		entries, err := drawService.Participations(c.UserContext(), c.Query("status"), c.Query("drawId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "participations": entries})
	})

	admin.Put("/participations/:id/approve", reviewParticipation(drawService, models.ReviewApproved))
	admin.Put("/participations/:id/reject", reviewParticipation(drawService, models.ReviewRejected))
}
