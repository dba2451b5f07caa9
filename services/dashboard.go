package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"rewards-settlement/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardService derives every figure from the records themselves; there are
// no separately maintained counters to drift.
type DashboardService struct {
	DB *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{DB: db}
}

type UserStats struct {
	Total         int64   `json:"total"`
	Verified      int64   `json:"verified"`
	Unverified    int64   `json:"unverified"`
	NewToday      int64   `json:"newToday"`
	NewThisMonth  int64   `json:"newThisMonth"`
	NewLastMonth  int64   `json:"newLastMonth"`
	MonthlyGrowth float64 `json:"monthlyGrowth"`
}

type DepositStats struct {
	Total       int64           `json:"total"`
	Pending     int64           `json:"pending"`
	Confirmed   int64           `json:"confirmed"`
	Rejected    int64           `json:"rejected"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type ReviewStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

type ReferralTotals struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

type WithdrawalStats struct {
	Total       int64           `json:"total"`
	Pending     int64           `json:"pending"`
	Processing  int64           `json:"processing"`
	Completed   int64           `json:"completed"`
	Rejected    int64           `json:"rejected"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type Activity struct {
	Type   string           `json:"type"`
	ID     string           `json:"id"`
	UserID string           `json:"userId"`
	Status string           `json:"status"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	At     time.Time        `json:"at"`
}

type DashboardStats struct {
	Users          UserStats       `json:"users"`
	Deposits       DepositStats    `json:"deposits"`
	Participations ReviewStats     `json:"participations"`
	Submissions    ReviewStats     `json:"taskSubmissions"`
	Referrals      ReferralTotals  `json:"referrals"`
	Withdrawals    WithdrawalStats `json:"withdrawals"`
	Balance        struct {
		Total decimal.Decimal `json:"total"`
	} `json:"balance"`
	RecentActivity []Activity `json:"recentActivity"`
}

type statusCount struct {
	Status string
	N      int64
}

func countByStatus(db *gorm.DB, model interface{}) (map[string]int64, int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make(map[string]int64, len(rows))
	var total int64
	for _, r := range rows {
		out[r.Status] = r.N
		total += r.N
	}
	return out, total, nil
}

func sumAmount(db *gorm.DB, model interface{}, expr, where string, args ...interface{}) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	q := db.Model(model).Select("SUM(" + expr + ")")
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func monthlyGrowth(thisMonth, lastMonth int64) float64 {
	if lastMonth == 0 {
		if thisMonth > 0 {
			return 100
		}
		return 0
	}
	growth := float64(thisMonth-lastMonth) / float64(lastMonth) * 100
	return math.Round(growth*10) / 10
}

func (s *DashboardService) Stats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	db := s.DB.WithContext(ctx)
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	stats := &DashboardStats{}
	u := &stats.Users
	for _, q := range []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&u.Total, "", nil},
		{&u.Verified, "verified = ?", []interface{}{true}},
		{&u.NewToday, "created_at >= ?", []interface{}{today}},
		{&u.NewThisMonth, "created_at >= ?", []interface{}{monthStart}},
		{&u.NewLastMonth, "created_at >= ? AND created_at < ?", []interface{}{lastMonthStart, monthStart}},
	} {
		tx := db.Model(&models.User{})
		if q.where != "" {
			tx = tx.Where(q.where, q.args...)
		}
		if err := tx.Count(q.dst).Error; err != nil {
			return nil, fmt.Errorf("user stats: %w", err)
		}
	}
	u.Unverified = u.Total - u.Verified
	u.MonthlyGrowth = monthlyGrowth(u.NewThisMonth, u.NewLastMonth)

	byStatus, total, err := countByStatus(db, &models.DepositRequest{})
	if err != nil {
		return nil, fmt.Errorf("deposit stats: %w", err)
	}
	stats.Deposits = DepositStats{
		Total:     total,
		Pending:   byStatus[string(models.DepositPending)],
		Confirmed: byStatus[string(models.DepositConfirmed)],
		Rejected:  byStatus[string(models.DepositRejected)],
	}
	if stats.Deposits.TotalAmount, err = sumAmount(db, &models.DepositRequest{}, "amount", "status = ?", models.DepositConfirmed); err != nil {
		return nil, fmt.Errorf("deposit total: %w", err)
	}

	for _, r := range []struct {
		dst   *ReviewStats
		model interface{}
	}{
		{&stats.Participations, &models.Participation{}},
		{&stats.Submissions, &models.TaskSubmission{}},
	} {
		byStatus, total, err := countByStatus(db, r.model)
		if err != nil {
			return nil, fmt.Errorf("review stats: %w", err)
		}
		*r.dst = ReviewStats{
			Total:    total,
			Pending:  byStatus[string(models.ReviewPending)],
			Approved: byStatus[string(models.ReviewApproved)],
			Rejected: byStatus[string(models.ReviewRejected)],
		}
	}

	byStatus, total, err = countByStatus(db, &models.Referral{})
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}
	stats.Referrals = ReferralTotals{
		Total:     total,
		Completed: byStatus[string(models.ReferralCompleted)],
		Pending:   byStatus[string(models.ReferralPending)],
	}

	byStatus, total, err = countByStatus(db, &models.WithdrawalRequest{})
	if err != nil {
		return nil, fmt.Errorf("withdrawal stats: %w", err)
	}
	stats.Withdrawals = WithdrawalStats{
		Total:      total,
		Pending:    byStatus[string(models.WithdrawalPending)],
		Processing: byStatus[string(models.WithdrawalProcessing)],
		Completed:  byStatus[string(models.WithdrawalCompleted)],
		Rejected:   byStatus[string(models.WithdrawalRejected)],
	}
	if stats.Withdrawals.TotalAmount, err = sumAmount(db, &models.WithdrawalRequest{}, "amount", "status = ?", models.WithdrawalCompleted); err != nil {
		return nil, fmt.Errorf("withdrawal total: %w", err)
	}

	if stats.Balance.Total, err = sumAmount(db, &models.User{}, "base_balance + additional_balance", ""); err != nil {
		return nil, fmt.Errorf("balance total: %w", err)
	}

	if stats.RecentActivity, err = s.recentActivity(db, 10); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *DashboardService) recentActivity(db *gorm.DB, limit int) ([]Activity, error) {
	var activity []Activity

	var deposits []models.DepositRequest
	if err := db.Where("status <> ?", models.DepositPending).Order("updated_at DESC").Limit(limit).Find(&deposits).Error; err != nil {
		return nil, fmt.Errorf("recent deposits: %w", err)
	}
	for _, d := range deposits {
		amount := d.Amount
		activity = append(activity, Activity{Type: "deposit", ID: d.ID, UserID: d.UserID, Status: string(d.Status), Amount: &amount, At: d.UpdatedAt})
	}

	var subs []models.TaskSubmission
	if err := db.Where("status <> ?", models.ReviewPending).Order("updated_at DESC").Limit(limit).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("recent submissions: %w", err)
	}
	for _, t := range subs {
		activity = append(activity, Activity{Type: "task_submission", ID: t.ID, UserID: t.UserID, Status: string(t.Status), At: t.UpdatedAt})
	}

	var withdrawals []models.WithdrawalRequest
	if err := db.Where("status <> ?", models.WithdrawalPending).Order("updated_at DESC").Limit(limit).Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("recent withdrawals: %w", err)
	}
	for _, w := range withdrawals {
		amount := w.Amount
		activity = append(activity, Activity{Type: "withdrawal", ID: w.ID, UserID: w.UserID, Status: string(w.Status), Amount: &amount, At: w.UpdatedAt})
	}

	sort.SliceStable(activity, func(i, j int) bool { return activity[i].At.After(activity[j].At) })
	if len(activity) > limit {
		activity = activity[:limit]
	}
	if activity == nil {
		activity = []Activity{}
	}
	return activity, nil
}
