package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DrawStatus string

const (
	DrawScheduled DrawStatus = "scheduled"
	DrawActive    DrawStatus = "active"
	DrawPaused    DrawStatus = "paused"
	DrawCompleted DrawStatus = "completed"
)

type LuckyDraw struct {
	ID                  string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title               string          `gorm:"not null" json:"title"`
	Description         string          `gorm:"type:text" json:"description"`
	Prize               string          `json:"prize"`
	EntryFee            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"entryFee"`
	MaxParticipants     int             `gorm:"default:0" json:"maxParticipants"`
	CurrentParticipants int64           `gorm:"-" json:"currentParticipants"`
	Status              DrawStatus      `gorm:"type:varchar(16);index;not null" json:"status"`
	StartDate           time.Time       `gorm:"index" json:"startDate"`
	EndDate             time.Time       `gorm:"index" json:"endDate"`
	Timestamps
}

// Participation is a user's entry into a lucky draw; it is reviewed like a task submission.
type Participation struct {
	ID             string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DrawID         string       `gorm:"index;type:varchar(64);not null" json:"drawId"`
	UserID         string       `gorm:"index;type:varchar(64);not null" json:"userId"`
	TicketNumber   string       `gorm:"type:varchar(32)" json:"ticketNumber"`
	Status         ReviewStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	ProofReference string       `json:"proofReference,omitempty"`
	SubmittedAt    time.Time    `json:"submittedAt"`
	ReviewedAt     *time.Time   `json:"reviewedAt,omitempty"`
	ReviewNotes    string       `json:"reviewNotes,omitempty"`
	ReviewedBy     *string      `json:"reviewedBy,omitempty"`

	Draw *LuckyDraw `gorm:"foreignKey:DrawID;references:ID" json:"draw,omitempty"`
	User *User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	Timestamps
}
