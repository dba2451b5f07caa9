package services

import (
	"context"
	"sync"
	"testing"

	"rewards-settlement/models"

	"github.com/shopspring/decimal"
)

func TestDepositReview_ConfirmCreditsExactlyOnce(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "u1", "CODEU1", "")
	dep := s.deposit(t, "u1", "100")

	res, err := s.deposits.Review(ctx, dep.ID, DecisionConfirm, "admin-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Deposit.Status != models.DepositConfirmed || res.Deposit.ConfirmedAt == nil {
		t.Fatalf("deposit not confirmed: %+v", res.Deposit)
	}
	if res.User == nil || !res.User.HasDeposited || !res.User.TasksUnlocked {
		t.Fatalf("user not activated: %+v", res.User)
	}
	assertAmount(t, "balance after confirm", res.User.Balance, "100")

	for _, decision := range []DepositDecision{DecisionConfirm, DecisionReject} {
		_, err := s.deposits.Review(ctx, dep.ID, decision, "admin-1")
		assertKind(t, err, ErrInvalidState)
	}

	snap := s.balance(t, "u1")
	assertAmount(t, "balance after repeated review", snap.Balance, "100")
	assertAmount(t, "total after repeated review", snap.TotalBalance, "100")
}

func TestDepositReview_RejectLeavesBalanceUntouched(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "u1", "CODEU1", "")
	dep := s.deposit(t, "u1", "1000")

	res, err := s.deposits.Review(ctx, dep.ID, DecisionReject, "admin-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Deposit.Status != models.DepositRejected || res.Deposit.RejectedAt == nil {
		t.Fatalf("deposit not rejected: %+v", res.Deposit)
	}
	if res.User != nil || res.Referral != nil {
		t.Fatalf("reject must not touch balances or referrals: %+v", res)
	}

	_, err = s.deposits.Review(ctx, dep.ID, DecisionConfirm, "admin-1")
	assertKind(t, err, ErrInvalidState)

	snap := s.balance(t, "u1")
	assertAmount(t, "balance", snap.Balance, "0")
	if snap.HasDeposited {
		t.Fatal("rejected deposit must not activate the user")
	}
}

func TestDepositReview_Errors(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()

	_, err := s.deposits.Review(ctx, "missing", DecisionConfirm, "")
	assertKind(t, err, ErrNotFound)

	_, err = s.deposits.Review(ctx, "missing", DepositDecision("approve"), "")
	assertKind(t, err, ErrValidation)
}

func TestDepositReview_ReferralCompletesOnFirstDepositOnly(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "referrer", "REFCODE1", "")
	s.register(t, "referee", "REFCODE2", "REFCODE1")

	first := s.deposit(t, "referee", "2000")
	res, err := s.deposits.Review(ctx, first.ID, DecisionConfirm, "admin-1")
	if err != nil {
		t.Fatalf("confirm first: %v", err)
	}
	if res.Referral == nil {
		t.Fatal("expected the referral to complete")
	}
	if res.Referral.Status != models.ReferralCompleted {
		t.Fatalf("expected completed, got %s", res.Referral.Status)
	}

	second := s.deposit(t, "referee", "500")
	res, err = s.deposits.Review(ctx, second.ID, DecisionConfirm, "admin-1")
	if err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	if res.Referral != nil {
		t.Fatalf("second deposit must not settle the referral again: %+v", res.Referral)
	}

	var ref models.Referral
	if err := s.db.Where("referee_id = ?", "referee").First(&ref).Error; err != nil {
		t.Fatalf("load referral: %v", err)
	}
	if ref.Status != models.ReferralCompleted || ref.FirstDepositID == nil || *ref.FirstDepositID != first.ID {
		t.Fatalf("referral should point at the first deposit: %+v", ref)
	}
	assertAmount(t, "first deposit amount", ref.FirstDepositAmt, "2000")
	if ref.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}

	stats, err := s.referrals.StatsFor(ctx, "referrer")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != (ReferralStats{Total: 1, Completed: 1}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	assertAmount(t, "referee balance", s.balance(t, "referee").Balance, "2500")
	assertAmount(t, "referrer balance", s.balance(t, "referrer").Balance, "0")
}

func TestDepositReview_RejectedFirstDepositDoesNotCount(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "referrer", "REFCODE1", "")
	s.register(t, "referee", "REFCODE2", "REFCODE1")

	rejected := s.deposit(t, "referee", "300")
	if _, err := s.deposits.Review(ctx, rejected.ID, DecisionReject, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	confirmed := s.deposit(t, "referee", "700")
	res, err := s.deposits.Review(ctx, confirmed.ID, DecisionConfirm, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Referral == nil || *res.Referral.FirstDepositID != confirmed.ID {
		t.Fatalf("referral should complete on the first confirmed deposit: %+v", res.Referral)
	}
}

func TestDepositReview_NoReferrer(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "solo", "SOLO0001", "")
	dep := s.deposit(t, "solo", "1500")

	res, err := s.deposits.Review(ctx, dep.ID, DecisionConfirm, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Referral != nil {
		t.Fatalf("unexpected referral: %+v", res.Referral)
	}
	var n int64
	s.db.Model(&models.Referral{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no referral rows, got %d", n)
	}
	assertAmount(t, "balance", s.balance(t, "solo").Balance, "1500")
}

func TestDepositReview_ReferralBonusCreditedOnce(t *testing.T) {
	s := newSettlement(t, decimal.RequireFromString("50"), allowNegative)
	ctx := context.Background()
	s.register(t, "referrer", "REFCODE1", "")
	s.register(t, "referee", "REFCODE2", "REFCODE1")

	for _, amount := range []string{"200", "300"} {
		dep := s.deposit(t, "referee", amount)
		if _, err := s.deposits.Review(ctx, dep.ID, DecisionConfirm, ""); err != nil {
			t.Fatalf("confirm %s: %v", amount, err)
		}
	}

	assertAmount(t, "referrer balance", s.balance(t, "referrer").Balance, "50")
	var ref models.Referral
	if err := s.db.Where("referee_id = ?", "referee").First(&ref).Error; err != nil {
		t.Fatalf("load referral: %v", err)
	}
	assertAmount(t, "reward", ref.RewardAmount, "50")
}

func TestDepositReview_ConcurrentConfirmsCreditOnce(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "u1", "CODEU1", "")
	dep := s.deposit(t, "u1", "100")

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.deposits.Review(ctx, dep.ID, DecisionConfirm, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, invalid int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindInvalidState:
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != workers-1 {
		t.Fatalf("expected one success, got ok=%d invalid=%d", ok, invalid)
	}
	assertAmount(t, "balance", s.balance(t, "u1").Balance, "100")
}

func TestDepositCreate(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "u1", "CODEU1", "")
	ref := "remote-1"

	first, created, err := s.deposits.Create(ctx, DepositIntake{UserID: "u1", Amount: decimal.NewFromInt(10), ExternalRef: &ref})
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	again, created, err := s.deposits.Create(ctx, DepositIntake{UserID: "u1", Amount: decimal.NewFromInt(10), ExternalRef: &ref})
	if err != nil || created {
		t.Fatalf("duplicate: created=%v err=%v", created, err)
	}
	if again.ID != first.ID {
		t.Fatalf("duplicate returned a different record: %s != %s", again.ID, first.ID)
	}

	_, _, err = s.deposits.Create(ctx, DepositIntake{UserID: "ghost", Amount: decimal.NewFromInt(10)})
	assertKind(t, err, ErrNotFound)
	_, _, err = s.deposits.Create(ctx, DepositIntake{UserID: "u1", Amount: decimal.Zero})
	assertKind(t, err, ErrValidation)
}

func TestDepositList(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	ctx := context.Background()
	s.register(t, "alice", "ALICE001", "")
	s.register(t, "bob", "BOB00001", "")
	s.deposit(t, "alice", "10")
	s.deposit(t, "alice", "20")
	dep := s.deposit(t, "bob", "30")
	if _, err := s.deposits.Review(ctx, dep.ID, DecisionConfirm, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	tests := []struct {
		name   string
		filter DepositFilter
		want   int64
	}{
		{"all", DepositFilter{}, 3},
		{"pending", DepositFilter{Status: "pending"}, 2},
		{"confirmed", DepositFilter{Status: "confirmed"}, 1},
		{"search", DepositFilter{Search: "ALI"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, page, err := s.deposits.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.Total != tt.want || int64(len(list)) != tt.want {
				t.Fatalf("expected %d, got total=%d len=%d", tt.want, page.Total, len(list))
			}
		})
	}

	list, page, err := s.deposits.List(ctx, DepositFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(list) != 1 || page.TotalPages != 2 || page.HasNextPage || !page.HasPrevPage {
		t.Fatalf("unexpected page: len=%d %+v", len(list), page)
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name                string
		page, limit         int
		wantPage, wantLimit int
	}{
		{"defaults", 0, 0, 1, defaultPageSize},
		{"negative", -3, -1, 1, defaultPageSize},
		{"limit capped", 2, 500, 2, maxPageSize},
		{"huge page", int(^uint(0) >> 1), 50, maxPage, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := normalizePage(tt.page, tt.limit)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Fatalf("normalizePage(%d, %d) = %d, %d", tt.page, tt.limit, page, limit)
			}
			if (page-1)*limit < 0 {
				t.Fatalf("offset overflowed for page %d", page)
			}
		})
	}
}

func TestDepositListHugePageIsEmpty(t *testing.T) {
	s := newSettlement(t, decimal.Zero, allowNegative)
	s.register(t, "alice", "ALICE001", "")
	s.deposit(t, "alice", "10")

	list, page, err := s.deposits.List(context.Background(), DepositFilter{Page: int(^uint(0) >> 1), Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 || page.CurrentPage != maxPage || page.HasNextPage {
		t.Fatalf("expected an empty last page, got len=%d %+v", len(list), page)
	}
}
