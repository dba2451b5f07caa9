package services

import (
	"context"
	"fmt"
	"strings"

	"rewards-settlement/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB  *gorm.DB
	log *zap.Logger
}

func NewNotificationService(db *gorm.DB, log *zap.Logger) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationService{DB: db, log: log.Named("notifications")}
}

type NotificationInput struct {
	Title         string
	Message       string
	Type          models.NotificationType
	RecipientType models.RecipientType
	RecipientID   string
}

// Send stores the notification and the number of users it addresses.
func (s *NotificationService) Send(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, validationError("title and message are required")
	}
	if in.Type == "" {
		in.Type = models.NotificationInfo
	}
	switch in.Type {
	case models.NotificationInfo, models.NotificationSuccess, models.NotificationWarning, models.NotificationError:
	default:
		return nil, validationError("unknown notification type %q", in.Type)
	}

	db := s.DB.WithContext(ctx)
	n := &models.Notification{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(in.Title),
		Message:       in.Message,
		Type:          in.Type,
		RecipientType: in.RecipientType,
	}
	switch in.RecipientType {
	case models.RecipientAll, "":
		n.RecipientType = models.RecipientAll
		if err := db.Model(&models.User{}).Count(&n.RecipientsCount).Error; err != nil {
			return nil, fmt.Errorf("count recipients: %w", err)
		}
	case models.RecipientSpecific:
		if in.RecipientID == "" {
			return nil, validationError("recipientId is required for specific notifications")
		}
		var exists int64
		if err := db.Model(&models.User{}).Where("id = ?", in.RecipientID).Count(&exists).Error; err != nil {
			return nil, fmt.Errorf("check recipient: %w", err)
		}
		if exists == 0 {
			return nil, notFound("user", in.RecipientID)
		}
		n.RecipientID = &in.RecipientID
		n.RecipientsCount = 1
	default:
		return nil, validationError("recipientType must be all or specific")
	}

	if err := db.Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.log.Info("📣 notification sent", zap.String("id", n.ID), zap.Int64("recipients", n.RecipientsCount))
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, limit int) ([]models.Notification, error) {
	_, limit = normalizePage(1, limit)
	var list []models.Notification
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}
