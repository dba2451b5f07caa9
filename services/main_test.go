package services

import (
	"context"
	"errors"
	"testing"

	"rewards-settlement/config"
	"rewards-settlement/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database. A single connection keeps
// concurrent callers serialized the way row locks would on postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type settlement struct {
	db        *gorm.DB
	ledger    *BalanceLedger
	referrals *ReferralSettlement
	deposits  *DepositService
	users     *UserService
}

func newSettlement(t *testing.T, bonus decimal.Decimal, policy string) *settlement {
	t.Helper()
	db := newTestDB(t)
	ledger := NewBalanceLedger(db, policy, nil, nil)
	referrals := NewReferralSettlement(db, ledger, bonus, nil)
	return &settlement{
		db:        db,
		ledger:    ledger,
		referrals: referrals,
		deposits:  NewDepositService(db, ledger, referrals, nil, nil),
		users:     NewUserService(db, referrals, nil),
	}
}

func (s *settlement) register(t *testing.T, id, code, referredByCode string) *models.User {
	t.Helper()
	user, err := s.users.Register(context.Background(), Registration{
		ID:             id,
		Username:       id,
		Email:          id + "@example.com",
		ReferralCode:   code,
		ReferredByCode: referredByCode,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return user
}

func (s *settlement) deposit(t *testing.T, userID, amount string) *models.DepositRequest {
	t.Helper()
	dep, created, err := s.deposits.Create(context.Background(), DepositIntake{
		UserID:           userID,
		Amount:           decimal.RequireFromString(amount),
		ReceiptReference: "receipts/" + userID + ".png",
	})
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if !created {
		t.Fatalf("deposit for %s was not created", userID)
	}
	return dep
}

func (s *settlement) balance(t *testing.T, userID string) models.BalanceSnapshot {
	t.Helper()
	snap, err := s.ledger.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("snapshot %s: %v", userID, err)
	}
	return snap
}

func assertKind(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func assertAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", what, want, got)
	}
}

var allowNegative = config.NegativeTotalAllow
