package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

// WithdrawalRequest only tracks review state; payouts are settled by the payment provider.
type WithdrawalRequest struct {
	ID             string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string           `gorm:"index;type:varchar(64);not null" json:"userId"`
	Amount         decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	Method         string           `json:"method"`
	AccountDetails string           `json:"accountDetails"`
	Status         WithdrawalStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Notes          string           `json:"notes,omitempty"`
	ProcessedAt    *time.Time       `json:"processedAt,omitempty"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	Timestamps
}
