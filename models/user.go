package models

import (
	"encoding/json"
	"strings"

	"github.com/gosimple/unidecode"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// User is the local balance-bearing account. ID is the profile service's user id.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username     string `gorm:"index;not null" json:"username"`
	Email        string `gorm:"index" json:"email"`
	Verified     bool   `gorm:"default:false" json:"verified"`
	SearchKey    string `gorm:"index" json:"-"`
	ReferralCode string `gorm:"uniqueIndex;type:varchar(32);not null" json:"referralCode"`
	// ReferredBy is written once at registration.
	ReferredBy *string `gorm:"index;type:varchar(64);<-:create" json:"referredBy,omitempty"`

	// Base balance only ever grows through settlement credits.
	BaseBalance       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance"`
	AdditionalBalance decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"additionalBalance"`

	HasDeposited  bool `gorm:"default:false" json:"hasDeposited"`
	TasksUnlocked bool `gorm:"default:false" json:"tasksUnlocked"`

	// Version is bumped on every balance or activation write.
	Version int64 `gorm:"not null;default:0" json:"version"`

	Timestamps
}

// TotalBalance is never stored.
func (u User) TotalBalance() decimal.Decimal {
	return u.BaseBalance.Add(u.AdditionalBalance)
}

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		TotalBalance decimal.Decimal `json:"totalBalance"`
	}{plain(u), u.TotalBalance()})
}

// BalanceSnapshot is the balance view returned after ledger writes.
type BalanceSnapshot struct {
	UserID            string          `json:"id"`
	Balance           decimal.Decimal `json:"balance"`
	AdditionalBalance decimal.Decimal `json:"additionalBalance"`
	TotalBalance      decimal.Decimal `json:"totalBalance"`
	HasDeposited      bool            `json:"hasDeposited"`
	TasksUnlocked     bool            `json:"tasksUnlocked"`
	Version           int64           `json:"version"`
}

func (u User) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		UserID:            u.ID,
		Balance:           u.BaseBalance,
		AdditionalBalance: u.AdditionalBalance,
		TotalBalance:      u.TotalBalance(),
		HasDeposited:      u.HasDeposited,
		TasksUnlocked:     u.TasksUnlocked,
		Version:           u.Version,
	}
}

// SearchKey folds names to lowercase ASCII so "José" matches a search for "jose".
func SearchKey(parts ...string) string {
	joined := strings.Join(parts, " ")
	return strings.TrimSpace(cases.Fold().String(unidecode.Unidecode(joined)))
}
