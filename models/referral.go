package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
)

// Referral tracks a referee's link to its referrer. It completes once, on the
// referee's first confirmed deposit.
type Referral struct {
	ID               string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ReferrerID       string         `gorm:"index;type:varchar(64);not null" json:"referrerId"`
	RefereeID        string         `gorm:"uniqueIndex;type:varchar(64);not null" json:"refereeId"`
	ReferralCodeUsed string         `json:"referralCodeUsed"`
	Status           ReferralStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	FirstDepositID  *string         `gorm:"index" json:"firstDepositId,omitempty"`
	FirstDepositAmt decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"firstDepositAmount"`
	RewardAmount    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"rewardAmount"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`

	Timestamps
}
