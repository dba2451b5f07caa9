package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-settlement/events"
	"rewards-settlement/models"
	"rewards-settlement/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepositDecision string

const (
	DecisionConfirm DepositDecision = "confirm"
	DecisionReject  DepositDecision = "reject"
)

// DepositReviewResult is the authoritative state after a review. User is nil on reject.
type DepositReviewResult struct {
	Deposit  *models.DepositRequest
	User     *models.BalanceSnapshot
	Referral *models.Referral
}

type DepositService struct {
	DB        *gorm.DB
	Ledger    *BalanceLedger
	Referrals *ReferralSettlement
	Events    events.Publisher
	log       *zap.Logger
}

func NewDepositService(db *gorm.DB, ledger *BalanceLedger, referrals *ReferralSettlement, pub events.Publisher, log *zap.Logger) *DepositService {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &DepositService{DB: db, Ledger: ledger, Referrals: referrals, Events: pub, log: log.Named("deposits")}
}

// Review applies an admin decision to a pending deposit. A deposit is reviewed at
// most once; any call against a confirmed or rejected deposit fails with
// ErrInvalidState and changes nothing.
func (s *DepositService) Review(ctx context.Context, depositID string, decision DepositDecision, reviewer string) (*DepositReviewResult, error) {
	if decision != DecisionConfirm && decision != DecisionReject {
		return nil, validationError("decision must be confirm or reject")
	}

	result := &DepositReviewResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep models.DepositRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", depositID).First(&dep).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("deposit", depositID)
		}
		if err != nil {
			return fmt.Errorf("load deposit %s: %w", depositID, err)
		}
		if dep.Status != models.DepositPending {
			return invalidState("deposit", depositID, "already %s", dep.Status)
		}

		now := time.Now().UTC()
		fields := map[string]interface{}{}
		if reviewer != "" {
			fields["reviewed_by"] = reviewer
		}
		if decision == DecisionConfirm {
			fields["status"] = models.DepositConfirmed
			fields["confirmed_at"] = now
		} else {
			fields["status"] = models.DepositRejected
			fields["rejected_at"] = now
		}

		res := tx.Model(&models.DepositRequest{}).
			Where("id = ? AND status = ?", depositID, models.DepositPending).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update deposit %s: %w", depositID, res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("deposit", depositID)
		}

		if decision == DecisionConfirm {
			user, err := s.Ledger.CreditDeposit(tx, dep.UserID, dep.Amount)
			if err != nil {
				return err
			}
			dep.Status = models.DepositConfirmed
			ref, err := s.Referrals.SettleIfFirstDeposit(tx, user, &dep)
			if err != nil {
				return err
			}
			snap := user.Snapshot()
			result.User = &snap
			result.Referral = ref
		}

		var updated models.DepositRequest
		if err := tx.Preload("User").Where("id = ?", depositID).First(&updated).Error; err != nil {
			return fmt.Errorf("reload deposit %s: %w", depositID, err)
		}
		result.Deposit = &updated
		return nil
	})
	if err != nil {
		if KindOf(err) != "" {
			s.log.Info("deposit review refused", zap.String("deposit_id", depositID), zap.String("decision", string(decision)), zap.Error(err))
		}
		return nil, err
	}

	monitoring.DepositsReviewed.WithLabelValues(string(decision)).Inc()
	dep := result.Deposit
	s.log.Info("deposit reviewed",
		zap.String("deposit_id", dep.ID),
		zap.String("user_id", dep.UserID),
		zap.String("amount", dep.Amount.String()),
		zap.String("status", string(dep.Status)),
	)

	key := events.DepositRejected
	if decision == DecisionConfirm {
		key = events.DepositConfirmed
	}
	s.publish(ctx, key, depositEvent{DepositID: dep.ID, UserID: dep.UserID, Amount: dep.Amount, At: time.Now().UTC()})

	if ref := result.Referral; ref != nil {
		monitoring.ReferralsCompleted.Inc()
		s.log.Info("🎉 referral completed",
			zap.String("referral_id", ref.ID),
			zap.String("referrer_id", ref.ReferrerID),
			zap.String("referee_id", ref.RefereeID),
			zap.String("reward", ref.RewardAmount.String()),
		)
		s.publish(ctx, events.ReferralCompleted, referralEvent{
			ReferralID:   ref.ID,
			ReferrerID:   ref.ReferrerID,
			RefereeID:    ref.RefereeID,
			DepositID:    dep.ID,
			RewardAmount: ref.RewardAmount,
			At:           time.Now().UTC(),
		})
	}
	return result, nil
}

type depositEvent struct {
	DepositID string          `json:"depositId"`
	UserID    string          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	At        time.Time       `json:"at"`
}

type referralEvent struct {
	ReferralID   string          `json:"referralId"`
	ReferrerID   string          `json:"referrerId"`
	RefereeID    string          `json:"refereeId"`
	DepositID    string          `json:"depositId"`
	RewardAmount decimal.Decimal `json:"rewardAmount"`
	At           time.Time       `json:"at"`
}

func (s *DepositService) publish(ctx context.Context, key string, body interface{}) {
	if err := s.Events.Publish(ctx, key, body); err != nil {
		s.log.Warn("publish failed", zap.String("routing_key", key), zap.Error(err))
	}
}

// DepositIntake is a new deposit reported by the user-facing side.
type DepositIntake struct {
	UserID           string
	Amount           decimal.Decimal
	ReceiptReference string
	TransactionHash  *string
	ExternalRef      *string
	Notes            string
	CreatedAt        time.Time
}

// Create stores a pending deposit. A repeated ExternalRef returns the stored
// record with created=false.
func (s *DepositService) Create(ctx context.Context, in DepositIntake) (dep *models.DepositRequest, created bool, err error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, false, validationError("userId is required")
	}
	if !in.Amount.IsPositive() {
		return nil, false, validationError("amount must be greater than zero")
	}

	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", in.UserID).Count(&count).Error; err != nil {
		return nil, false, fmt.Errorf("check user: %w", err)
	}
	if count == 0 {
		return nil, false, notFound("user", in.UserID)
	}

	if in.ExternalRef != nil && *in.ExternalRef == "" {
		in.ExternalRef = nil
	}
	if in.ExternalRef != nil {
		var existing models.DepositRequest
		err := db.Where("external_ref = ?", *in.ExternalRef).First(&existing).Error
		if err == nil {
			return &existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("lookup deposit by ref: %w", err)
		}
	}

	dep = &models.DepositRequest{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		Amount:           in.Amount,
		Status:           models.DepositPending,
		ReceiptReference: in.ReceiptReference,
		TransactionHash:  in.TransactionHash,
		ExternalRef:      in.ExternalRef,
		Notes:            in.Notes,
	}
	if !in.CreatedAt.IsZero() {
		dep.CreatedAt = in.CreatedAt
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(dep)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create deposit: %w", res.Error)
	}
	if res.RowsAffected == 0 && in.ExternalRef != nil {
		var existing models.DepositRequest
		if err := db.Where("external_ref = ?", *in.ExternalRef).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("reload deposit by ref: %w", err)
		}
		return &existing, false, nil
	}
	return dep, true, nil
}

func (s *DepositService) Get(ctx context.Context, id string) (*models.DepositRequest, error) {
	var dep models.DepositRequest
	err := s.DB.WithContext(ctx).Preload("User").Where("id = ?", id).First(&dep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("deposit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load deposit %s: %w", id, err)
	}
	return &dep, nil
}

type DepositFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

func (s *DepositService) List(ctx context.Context, f DepositFilter) ([]models.DepositRequest, Pagination, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	filter := func(q *gorm.DB) *gorm.DB {
		if f.Status != "" && f.Status != "all" {
			q = q.Where("status = ?", f.Status)
		}
		if term := searchTerm(f.Search); term != "" {
			q = q.Where("user_id IN (?)", s.DB.Model(&models.User{}).Select("id").Where("search_key LIKE ?", term))
		}
		return q
	}

	db := s.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.DepositRequest{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count deposits: %w", err)
	}

	var deposits []models.DepositRequest
	if err := db.Scopes(filter).
		Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&deposits).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, newPagination(page, limit, total), nil
}
