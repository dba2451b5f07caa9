package models

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type RecipientType string

const (
	RecipientAll      RecipientType = "all"
	RecipientSpecific RecipientType = "specific"
)

type Notification struct {
	ID              string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title           string           `gorm:"not null" json:"title"`
	Message         string           `gorm:"type:text;not null" json:"message"`
	Type            NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	RecipientType   RecipientType    `gorm:"type:varchar(16);not null" json:"recipientType"`
	RecipientID     *string          `gorm:"index;type:varchar(64)" json:"recipientId,omitempty"`
	RecipientsCount int64            `json:"recipientsCount"`
	Timestamps
}
