package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-settlement/events"
	"rewards-settlement/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var withdrawalTransitions = map[models.WithdrawalStatus][]models.WithdrawalStatus{
	models.WithdrawalPending:    {models.WithdrawalProcessing, models.WithdrawalCompleted, models.WithdrawalRejected},
	models.WithdrawalProcessing: {models.WithdrawalCompleted, models.WithdrawalRejected},
}

func canMoveWithdrawal(from, to models.WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type WithdrawalService struct {
	DB     *gorm.DB
	Events events.Publisher
	log    *zap.Logger
}

func NewWithdrawalService(db *gorm.DB, pub events.Publisher, log *zap.Logger) *WithdrawalService {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &WithdrawalService{DB: db, Events: pub, log: log.Named("withdrawals")}
}

type WithdrawalIntake struct {
	UserID         string
	Amount         decimal.Decimal
	Method         string
	AccountDetails string
}

func (s *WithdrawalService) Create(ctx context.Context, in WithdrawalIntake) (*models.WithdrawalRequest, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, validationError("userId is required")
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.UserID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return nil, notFound("user", in.UserID)
	}
	wr := &models.WithdrawalRequest{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Amount:         in.Amount,
		Method:         in.Method,
		AccountDetails: in.AccountDetails,
		Status:         models.WithdrawalPending,
	}
	if err := s.DB.WithContext(ctx).Create(wr).Error; err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	return wr, nil
}

func (s *WithdrawalService) List(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	q := s.DB.WithContext(ctx).Preload("User").Order("created_at DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var list []models.WithdrawalRequest
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return list, nil
}

type withdrawalEvent struct {
	ID     string                  `json:"id"`
	UserID string                  `json:"userId"`
	Status models.WithdrawalStatus `json:"status"`
	At     time.Time               `json:"at"`
}

// Process moves a withdrawal along its review workflow. Balances are not touched.
func (s *WithdrawalService) Process(ctx context.Context, id string, to models.WithdrawalStatus, notes string) (*models.WithdrawalRequest, error) {
	switch to {
	case models.WithdrawalProcessing, models.WithdrawalCompleted, models.WithdrawalRejected:
	default:
		return nil, validationError("status must be processing, completed or rejected")
	}

	var wr models.WithdrawalRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&wr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("withdrawal", id)
		}
		if err != nil {
			return fmt.Errorf("load withdrawal %s: %w", id, err)
		}
		if !canMoveWithdrawal(wr.Status, to) {
			return invalidState("withdrawal", id, "cannot move from %s to %s", wr.Status, to)
		}

		fields := map[string]interface{}{"status": to, "notes": notes}
		if to != models.WithdrawalProcessing {
			fields["processed_at"] = time.Now().UTC()
		}
		res := tx.Model(&models.WithdrawalRequest{}).Where("id = ? AND status = ?", id, wr.Status).Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update withdrawal %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("withdrawal", id)
		}
		return tx.Preload("User").Where("id = ?", id).First(&wr).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal processed", zap.String("id", id), zap.String("status", string(to)))
	evt := withdrawalEvent{ID: wr.ID, UserID: wr.UserID, Status: wr.Status, At: time.Now().UTC()}
	if err := s.Events.Publish(ctx, events.WithdrawalProcessed, evt); err != nil {
		s.log.Warn("publish failed", zap.String("routing_key", events.WithdrawalProcessed), zap.Error(err))
	}
	return &wr, nil
}
