package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskInactive TaskStatus = "inactive"
)

type Task struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Slug         string          `gorm:"uniqueIndex;type:varchar(160);not null" json:"slug"`
	Title        string          `gorm:"not null" json:"title"`
	Description  string          `gorm:"type:text" json:"description"`
	Reward       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"reward"`
	Category     string          `gorm:"index" json:"category"`
	TimeEstimate string          `json:"timeEstimate"`
	Requirements []string        `gorm:"type:text;serializer:json" json:"requirements"`
	URL          string          `json:"url"`
	Status       TaskStatus      `gorm:"type:varchar(16);index;not null" json:"status"`
	Completions  int64           `gorm:"-" json:"completions"`
	Timestamps
}

// ReviewStatus is shared by task submissions and lucky-draw participations.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type TaskSubmission struct {
	ID             string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID         string       `gorm:"index;type:varchar(64);not null" json:"taskId"`
	UserID         string       `gorm:"index;type:varchar(64);not null" json:"userId"`
	Status         ReviewStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	ProofReference string       `json:"proofReference"`
	SubmittedAt    time.Time    `json:"submittedAt"`
	ReviewedAt     *time.Time   `json:"reviewedAt,omitempty"`
	ReviewNotes    string       `json:"reviewNotes,omitempty"`
	ReviewedBy     *string      `json:"reviewedBy,omitempty"`

	Task *Task `gorm:"foreignKey:TaskID;references:ID" json:"task,omitempty"`
	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	Timestamps
}
