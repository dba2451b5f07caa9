package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-settlement/events"
	"rewards-settlement/models"
	"rewards-settlement/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewGateway moves a task submission or a participation from pending to
// approved or rejected, once. It has no balance effect.
type ReviewGateway struct {
	DB     *gorm.DB
	Kind   string
	model  func() interface{}
	Events events.Publisher
	log    *zap.Logger
}

func NewSubmissionReviewGateway(db *gorm.DB, pub events.Publisher, log *zap.Logger) *ReviewGateway {
	return newReviewGateway(db, "task_submission", func() interface{} { return &models.TaskSubmission{} }, pub, log)
}

func NewParticipationReviewGateway(db *gorm.DB, pub events.Publisher, log *zap.Logger) *ReviewGateway {
	return newReviewGateway(db, "participation", func() interface{} { return &models.Participation{} }, pub, log)
}

func newReviewGateway(db *gorm.DB, kind string, model func() interface{}, pub events.Publisher, log *zap.Logger) *ReviewGateway {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &ReviewGateway{DB: db, Kind: kind, model: model, Events: pub, log: log.Named("review")}
}

type reviewedEvent struct {
	Kind   string              `json:"kind"`
	ID     string              `json:"id"`
	UserID string              `json:"userId"`
	Status models.ReviewStatus `json:"status"`
	At     time.Time           `json:"at"`
}

// Review applies decision to the record with id. Reviewing a record that is no
// longer pending fails with ErrInvalidState.
func (g *ReviewGateway) Review(ctx context.Context, id string, decision models.ReviewStatus, notes, reviewer string) error {
	if decision != models.ReviewApproved && decision != models.ReviewRejected {
		return validationError("status must be approved or rejected")
	}

	var current struct {
		Status models.ReviewStatus
		UserID string
	}
	now := time.Now().UTC()
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(g.model()).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("status", "user_id").
			Where("id = ?", id).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(g.Kind, id)
		}
		if err != nil {
			return fmt.Errorf("load %s %s: %w", g.Kind, id, err)
		}
		if current.Status != models.ReviewPending {
			return invalidState(g.Kind, id, "already %s", current.Status)
		}

		fields := map[string]interface{}{
			"status":       decision,
			"reviewed_at":  now,
			"review_notes": notes,
		}
		if reviewer != "" {
			fields["reviewed_by"] = reviewer
		}
		res := tx.Model(g.model()).
			Where("id = ? AND status = ?", id, models.ReviewPending).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update %s %s: %w", g.Kind, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict(g.Kind, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	monitoring.SubmissionsReviewed.WithLabelValues(g.Kind, string(decision)).Inc()
	g.log.Info("reviewed", zap.String("kind", g.Kind), zap.String("id", id), zap.String("status", string(decision)))
	evt := reviewedEvent{Kind: g.Kind, ID: id, UserID: current.UserID, Status: decision, At: now}
	if err := g.Events.Publish(ctx, events.SubmissionReviewed, evt); err != nil {
		g.log.Warn("publish failed", zap.String("routing_key", events.SubmissionReviewed), zap.Error(err))
	}
	return nil
}
