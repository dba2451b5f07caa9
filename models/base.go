package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// The dashboard reads money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// All lists every model owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Referral{},
		&DepositRequest{},
		&Task{},
		&TaskSubmission{},
		&LuckyDraw{},
		&Participation{},
		&WithdrawalRequest{},
		&Notification{},
	}
}
