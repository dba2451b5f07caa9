package handlers

import (
	"encoding/json"

	"rewards-settlement/middleware"
	"rewards-settlement/models"
	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

type taskRequest struct {
	Title        *string            `json:"title"`
	Description  *string            `json:"description"`
	Reward       json.RawMessage    `json:"reward"`
	Category     *string            `json:"category"`
	TimeEstimate *string            `json:"timeEstimate"`
	Requirements []string           `json:"requirements"`
	URL          *string            `json:"url"`
	Status       *models.TaskStatus `json:"status"`
}

func (r taskRequest) input() (services.TaskInput, error) {
	in := services.TaskInput{
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		TimeEstimate: r.TimeEstimate,
		Requirements: r.Requirements,
		URL:          r.URL,
		Status:       r.Status,
	}
	if len(r.Reward) > 0 && string(r.Reward) != "null" {
		reward, err := services.ParseAmount("reward", r.Reward)
		if err != nil {
			return in, err
		}
		in.Reward = &reward
	}
	return in, nil
}

type reviewRequest struct {
	Status      models.ReviewStatus `json:"status"`
	ReviewNotes string              `json:"reviewNotes"`
}

func SetupTaskRoutes(admin fiber.Router, taskService *services.TaskService) {
	admin.Get("/tasks", func(c *fiber.Ctx) error {
		tasks, err := taskService.List(c.UserContext(), c.Query("status"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "tasks": tasks})
	})

	admin.Post("/tasks", func(c *fiber.Ctx) error {
		var req taskRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		in, err := req.input()
		if err != nil {
			return fail(c, err)
		}
		task, err := taskService.Create(c.UserContext(), in)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "task": task})
	})

	admin.Put("/tasks/:id", func(c *fiber.Ctx) error {
		var req taskRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		in, err := req.input()
		if err != nil {
			return fail(c, err)
		}
		task, err := taskService.Update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task": task})
	})

	admin.Delete("/tasks/:id", func(c *fiber.Ctx) error {
		if err := taskService.Delete(c.UserContext(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	admin.Get("/task-submissions", func(c *fiber.Ctx) error {
		subs, page, err := taskService.Submissions(c.UserContext(), services.SubmissionFilter{
			Status: c.Query("status"),
			Page:   queryInt(c, "page", 1),
			Limit:  queryInt(c, "limit", 10),
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success":     true,
			"submissions": subs,
			"pagination": fiber.Map{
				"currentPage":      page.CurrentPage,
				"totalPages":       page.TotalPages,
				"totalSubmissions": page.Total,
				"limit":            page.Limit,
				"hasNextPage":      page.HasNextPage,
				"hasPrevPage":      page.HasPrevPage,
			},
		})
	})

	admin.Put("/task-submissions/:id/review", reviewSubmission(taskService))
}

func reviewSubmission(taskService *services.TaskService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reviewRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		sub, err := taskService.ReviewSubmission(c.UserContext(), c.Params("id"), req.Status, req.ReviewNotes, middleware.AdminID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "submission": sub})
	}
}
