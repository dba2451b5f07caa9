package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositConfirmed DepositStatus = "confirmed"
	DepositRejected  DepositStatus = "rejected"
)

func (s DepositStatus) Terminal() bool {
	return s == DepositConfirmed || s == DepositRejected
}

// DepositRequest is a user's claim that funds were sent. An admin reviews it exactly once.
type DepositRequest struct {
	ID     string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID string          `gorm:"index;type:varchar(64);not null" json:"userId"`
	Amount decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status DepositStatus   `gorm:"type:varchar(16);index;not null" json:"status"`

	ReceiptReference string  `json:"receiptUrl"`
	TransactionHash  *string `json:"transactionHash,omitempty"`
	ExternalRef      *string `gorm:"uniqueIndex;type:varchar(128)" json:"externalRef,omitempty"`
	Notes            string  `json:"notes,omitempty"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	ReviewedBy  *string    `json:"reviewedBy,omitempty"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	Timestamps
}
