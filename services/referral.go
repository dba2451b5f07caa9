package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-settlement/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralSettlement completes a referee's referral on its first confirmed deposit.
// The referral row's own status is what stops it from firing twice.
type ReferralSettlement struct {
	DB     *gorm.DB
	Ledger *BalanceLedger
	Bonus  decimal.Decimal
	log    *zap.Logger
}

func NewReferralSettlement(db *gorm.DB, ledger *BalanceLedger, bonus decimal.Decimal, log *zap.Logger) *ReferralSettlement {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferralSettlement{DB: db, Ledger: ledger, Bonus: bonus, log: log.Named("referrals")}
}

// EnsurePending records referee as referred by referrer. An existing row for the
// referee is left as is.
func (r *ReferralSettlement) EnsurePending(tx *gorm.DB, refereeID, referrerID, codeUsed string) error {
	ref := models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       referrerID,
		RefereeID:        refereeID,
		ReferralCodeUsed: codeUsed,
		Status:           models.ReferralPending,
		FirstDepositAmt:  decimal.Zero,
		RewardAmount:     decimal.Zero,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "referee_id"}},
		DoNothing: true,
	}).Create(&ref).Error
	if err != nil {
		return fmt.Errorf("create referral for %s: %w", refereeID, err)
	}
	return nil
}

// SettleIfFirstDeposit runs inside the deposit confirmation transaction, after the
// deposit row is already confirmed. It returns the completed referral, or nil when
// nothing changed.
func (r *ReferralSettlement) SettleIfFirstDeposit(tx *gorm.DB, user *models.User, deposit *models.DepositRequest) (*models.Referral, error) {
	if user.ReferredBy == nil || *user.ReferredBy == "" {
		return nil, nil
	}

	var confirmed int64
	if err := tx.Model(&models.DepositRequest{}).
		Where("user_id = ? AND status = ?", user.ID, models.DepositConfirmed).
		Count(&confirmed).Error; err != nil {
		return nil, fmt.Errorf("count confirmed deposits: %w", err)
	}
	if confirmed != 1 {
		return nil, nil
	}

	var ref models.Referral
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referee_id = ? AND referrer_id = ?", user.ID, *user.ReferredBy).
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.Warn("referred user has no referral record", zap.String("user_id", user.ID), zap.String("referrer_id", *user.ReferredBy))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load referral for %s: %w", user.ID, err)
	}
	if ref.Status != models.ReferralPending {
		return nil, nil
	}

	reward := decimal.Zero
	if r.Bonus.IsPositive() {
		// The referrer row is locked before the referral update to keep lock order stable.
		_, err = lockUser(tx, ref.ReferrerID)
		switch {
		case errors.Is(err, ErrNotFound):
			r.log.Warn("referrer missing, completing without reward", zap.String("referrer_id", ref.ReferrerID))
		case err != nil:
			return nil, err
		default:
			reward = r.Bonus
		}
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Referral{}).
		Where("id = ? AND status = ?", ref.ID, models.ReferralPending).
		Updates(map[string]interface{}{
			"status":            models.ReferralCompleted,
			"first_deposit_id":  deposit.ID,
			"first_deposit_amt": deposit.Amount,
			"reward_amount":     reward,
			"completed_at":      now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("complete referral %s: %w", ref.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, conflict("referral", ref.ID)
	}

	if reward.IsPositive() {
		if _, err := r.Ledger.CreditBase(tx, ref.ReferrerID, reward); err != nil {
			return nil, err
		}
	}

	ref.Status = models.ReferralCompleted
	ref.FirstDepositID = &deposit.ID
	ref.FirstDepositAmt = deposit.Amount
	ref.RewardAmount = reward
	ref.CompletedAt = &now
	return &ref, nil
}

// ReferralStats is derived from referral rows, never kept as a counter.
type ReferralStats struct {
	Total     int64 `json:"referralsTotal"`
	Completed int64 `json:"referralsCompleted"`
	Pending   int64 `json:"referralsPending"`
}

func (r *ReferralSettlement) StatsFor(ctx context.Context, referrerID string) (ReferralStats, error) {
	var rows []struct {
		Status models.ReferralStatus
		N      int64
	}
	err := r.DB.WithContext(ctx).Model(&models.Referral{}).
		Select("status, COUNT(*) AS n").
		Where("referrer_id = ?", referrerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return ReferralStats{}, fmt.Errorf("referral stats: %w", err)
	}
	var stats ReferralStats
	for _, row := range rows {
		stats.Total += row.N
		switch row.Status {
		case models.ReferralCompleted:
			stats.Completed = row.N
		case models.ReferralPending:
			stats.Pending = row.N
		}
	}
	return stats, nil
}

func (r *ReferralSettlement) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	if err := r.DB.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return refs, nil
}
