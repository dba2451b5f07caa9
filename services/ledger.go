package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewards-settlement/config"
	"rewards-settlement/events"
	"rewards-settlement/models"
	"rewards-settlement/monitoring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var maxAmount = decimal.New(1, 15)

// ParseAmount accepts a JSON number or a numeric string with at most two decimals.
func ParseAmount(field string, raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, validationError("%s is required", field)
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, validationError("%s must be a number", field)
		}
	}

	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, validationError("%s must be a finite number", field)
	}
	if value.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, validationError("%s is out of range", field)
	}
	if !value.Equal(value.Round(2)) {
		return decimal.Zero, validationError("%s supports at most two decimal places", field)
	}
	return value, nil
}

type BalanceLedger struct {
	DB     *gorm.DB
	Policy string
	Events events.Publisher
	log    *zap.Logger
}

func NewBalanceLedger(db *gorm.DB, policy string, pub events.Publisher, log *zap.Logger) *BalanceLedger {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if policy == "" {
		policy = config.NegativeTotalAllow
	}
	return &BalanceLedger{DB: db, Policy: policy, Events: pub, log: log.Named("ledger")}
}

func lockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return &user, nil
}

// writeUser applies fields only if the row still carries the version read under lock.
func writeUser(tx *gorm.DB, user *models.User, fields map[string]interface{}) error {
	fields["version"] = user.Version + 1
	res := tx.Model(&models.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update user %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		monitoring.SettlementConflicts.WithLabelValues("user").Inc()
		return conflict("user", user.ID)
	}
	user.Version++
	return nil
}

func creditLocked(tx *gorm.DB, user *models.User, amount decimal.Decimal, activate bool) error {
	if !amount.IsPositive() {
		return validationError("credit amount must be greater than zero")
	}
	base := user.BaseBalance.Add(amount)
	fields := map[string]interface{}{"base_balance": base}
	if activate {
		fields["has_deposited"] = true
		fields["tasks_unlocked"] = true
	}
	if err := writeUser(tx, user, fields); err != nil {
		return err
	}
	user.BaseBalance = base
	if activate {
		user.HasDeposited = true
		user.TasksUnlocked = true
	}
	return nil
}

// CreditBase appends amount to the user's base balance. It must run inside the
// caller's settlement transaction.
func (l *BalanceLedger) CreditBase(tx *gorm.DB, userID string, amount decimal.Decimal) (*models.User, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := creditLocked(tx, user, amount, false); err != nil {
		return nil, err
	}
	return user, nil
}

// CreditDeposit is CreditBase plus account activation.
func (l *BalanceLedger) CreditDeposit(tx *gorm.DB, userID string, amount decimal.Decimal) (*models.User, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := creditLocked(tx, user, amount, true); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAdditionalBalance replaces the admin adjustment. expectedVersion, when set,
// must match the stored version.
func (l *BalanceLedger) SetAdditionalBalance(ctx context.Context, userID string, value decimal.Decimal, expectedVersion *int64) (*models.User, error) {
	return l.adjust(ctx, "additional", userID, expectedVersion, func(*models.User) decimal.Decimal {
		return value
	})
}

// SetTotalBalance moves the adjustment so base + additional equals total. Base is untouched.
func (l *BalanceLedger) SetTotalBalance(ctx context.Context, userID string, total decimal.Decimal, expectedVersion *int64) (*models.User, error) {
	return l.adjust(ctx, "total", userID, expectedVersion, func(u *models.User) decimal.Decimal {
		return total.Sub(u.BaseBalance)
	})
}

func (l *BalanceLedger) adjust(ctx context.Context, kind, userID string, expectedVersion *int64, next func(*models.User) decimal.Decimal) (*models.User, error) {
	var user *models.User
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = lockUser(tx, userID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != user.Version {
			monitoring.SettlementConflicts.WithLabelValues("user").Inc()
			return conflict("user", userID)
		}

		additional := next(user)
		if l.Policy == config.NegativeTotalReject && user.BaseBalance.Add(additional).IsNegative() {
			return validationError("total balance cannot be negative")
		}

		if err := writeUser(tx, user, map[string]interface{}{"additional_balance": additional}); err != nil {
			return err
		}
		user.AdditionalBalance = additional
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.BalanceAdjustments.WithLabelValues(kind).Inc()
	l.log.Info("balance adjusted",
		zap.String("user_id", user.ID),
		zap.String("kind", kind),
		zap.String("additional", user.AdditionalBalance.String()),
		zap.String("total", user.TotalBalance().String()),
	)
	l.publishAdjusted(ctx, kind, user)
	return user, nil
}

// UnlockTasks activates a user without a deposit.
func (l *BalanceLedger) UnlockTasks(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = lockUser(tx, userID)
		if err != nil || user.TasksUnlocked {
			return err
		}
		if err := writeUser(tx, user, map[string]interface{}{"tasks_unlocked": true}); err != nil {
			return err
		}
		user.TasksUnlocked = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.BalanceAdjustments.WithLabelValues("unlock").Inc()
	return user, nil
}

// Snapshot reads the user's balances; the total is computed here, never stored.
func (l *BalanceLedger) Snapshot(ctx context.Context, userID string) (models.BalanceSnapshot, error) {
	var user models.User
	err := l.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.BalanceSnapshot{}, notFound("user", userID)
	}
	if err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Snapshot(), nil
}

type balanceAdjustedEvent struct {
	UserID     string          `json:"userId"`
	Kind       string          `json:"kind"`
	Base       decimal.Decimal `json:"base"`
	Additional decimal.Decimal `json:"additional"`
	Total      decimal.Decimal `json:"total"`
	At         time.Time       `json:"at"`
}

func (l *BalanceLedger) publishAdjusted(ctx context.Context, kind string, user *models.User) {
	evt := balanceAdjustedEvent{
		UserID:     user.ID,
		Kind:       kind,
		Base:       user.BaseBalance,
		Additional: user.AdditionalBalance,
		Total:      user.TotalBalance(),
		At:         time.Now().UTC(),
	}
	if err := l.Events.Publish(ctx, events.BalanceAdjusted, evt); err != nil {
		l.log.Warn("publish failed", zap.String("routing_key", events.BalanceAdjusted), zap.Error(err))
	}
}
