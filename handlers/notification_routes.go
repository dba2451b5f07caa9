package handlers

import (
	"rewards-settlement/models"
	"rewards-settlement/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(admin fiber.Router, notificationService *services.NotificationService) {
	admin.Get("/notifications", func(c *fiber.Ctx) error {
		list, err := notificationService.List(c.UserContext(), queryInt(c, "limit", 50))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "notifications": list})
	})

	admin.Post("/notifications", func(c *fiber.Ctx) error {
		var req struct {
			Title         string                  `json:"title"`
			Message       string                  `json:"message"`
			Type          models.NotificationType `json:"type"`
			RecipientType models.RecipientType    `json:"recipientType"`
			RecipientID   string                  `json:"recipientId"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		n, err := notificationService.Send(c.UserContext(), services.NotificationInput{
			Title:         req.Title,
			Message:       req.Message,
			Type:          req.Type,
			RecipientType: req.RecipientType,
			RecipientID:   req.RecipientID,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":         true,
			"notification":    n,
			"recipientsCount": n.RecipientsCount,
		})
	})
}
