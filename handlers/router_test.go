package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewards-settlement/middleware"
	"rewards-settlement/models"
	"rewards-settlement/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testSecret       = "test-admin-secret"
	testServiceToken = "test-service-token"
)

type testServer struct {
	app   *fiber.App
	svc   *Services
	token string
}

func newTestServer(t *testing.T) *testServer {
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
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger := services.NewBalanceLedger(db, "", nil, nil)
	referrals := services.NewReferralSettlement(db, ledger, decimal.Zero, nil)
	svc := &Services{
		Ledger:        ledger,
		Deposits:      services.NewDepositService(db, ledger, referrals, nil, nil),
		Users:         services.NewUserService(db, referrals, nil),
		Tasks:         services.NewTaskService(db, services.NewSubmissionReviewGateway(db, nil, nil), nil),
		Draws:         services.NewLuckyDrawService(db, services.NewParticipationReviewGateway(db, nil, nil), nil),
		Withdrawals:   services.NewWithdrawalService(db, nil, nil),
		Notifications: services.NewNotificationService(db, nil),
		Dashboard:     services.NewDashboardService(db),
	}

	app := fiber.New()
	Setup(app, svc, RouterConfig{AdminJWTSecret: testSecret, ServiceToken: testServiceToken})

	token, err := middleware.GenerateAdminToken(testSecret, "admin-1", middleware.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return &testServer{app: app, svc: svc, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if raw, _ := io.ReadAll(resp.Body); len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *testServer) admin(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	return s.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + s.token})
}

func (s *testServer) internal(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	return s.do(t, method, path, body, map[string]string{"X-Service-Token": testServiceToken})
}

func (s *testServer) seedUser(t *testing.T, id, code, referredBy string) {
	t.Helper()
	status, body := s.internal(t, http.MethodPost, "/internal/users", map[string]interface{}{
		"id":             id,
		"username":       id,
		"email":          id + "@example.com",
		"referralCode":   code,
		"referredByCode": referredBy,
	})
	if status != http.StatusCreated {
		t.Fatalf("seed user %s: %d %v", id, status, body)
	}
}

func (s *testServer) seedDeposit(t *testing.T, userID string, amount interface{}) string {
	t.Helper()
	status, body := s.internal(t, http.MethodPost, "/internal/deposits", map[string]interface{}{
		"userId":     userID,
		"amount":     amount,
		"receiptReference": "receipts/" + userID + ".png",
	})
	if status != http.StatusCreated {
		t.Fatalf("seed deposit: %d %v", status, body)
	}
	return body["deposit"].(map[string]interface{})["id"].(string)
}

func field(t *testing.T, body map[string]interface{}, path ...string) interface{} {
	t.Helper()
	var cur interface{} = body
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			t.Fatalf("no object at %q in %v", key, body)
		}
		cur = m[key]
	}
	return cur
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/health", nil, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", status, body)
	}
}

func TestDepositConfirmFlow(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "referrer", "REFCODE1", "")
	s.seedUser(t, "referee", "REFCODE2", "REFCODE1")
	depositID := s.seedDeposit(t, "referee", 2000)

	for _, path := range []string{"/api/admin/deposits/" + depositID + "/confirm", "/deposits/" + depositID + "/confirm"} {
		status, _ := s.do(t, http.MethodPut, path, nil, nil)
		if status != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, status)
		}
	}

	status, body := s.admin(t, http.MethodPut, "/api/admin/deposits/"+depositID+"/confirm", nil)
	if status != http.StatusOK {
		t.Fatalf("confirm: %d %v", status, body)
	}
	if field(t, body, "deposit", "status") != "confirmed" {
		t.Fatalf("deposit not confirmed: %v", body)
	}
	if field(t, body, "user", "balance") != 2000.0 || field(t, body, "user", "totalBalance") != 2000.0 {
		t.Fatalf("unexpected balances: %v", body["user"])
	}
	if field(t, body, "referral", "status") != "completed" {
		t.Fatalf("referral not completed: %v", body["referral"])
	}

	status, body = s.admin(t, http.MethodPut, "/deposits/"+depositID+"/confirm", nil)
	if status != http.StatusConflict || body["code"] != string(services.KindInvalidState) {
		t.Fatalf("second confirm: expected 409 InvalidState, got %d %v", status, body)
	}
	status, body = s.admin(t, http.MethodPut, "/api/admin/deposits/"+depositID+"/reject", nil)
	if status != http.StatusConflict {
		t.Fatalf("reject after confirm: expected 409, got %d %v", status, body)
	}

	status, body = s.admin(t, http.MethodPut, "/deposits/missing/confirm", nil)
	if status != http.StatusNotFound || body["code"] != string(services.KindNotFound) {
		t.Fatalf("missing deposit: expected 404, got %d %v", status, body)
	}

	status, body = s.admin(t, http.MethodGet, "/api/admin/users/referrer", nil)
	if status != http.StatusOK || field(t, body, "referrals", "referralsCompleted") != 1.0 {
		t.Fatalf("referrer stats: %d %v", status, body)
	}
}

func TestDepositReject(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "u1", "CODEU1", "")
	depositID := s.seedDeposit(t, "u1", "1000")

	status, body := s.admin(t, http.MethodPut, "/deposits/"+depositID+"/reject", nil)
	if status != http.StatusOK || field(t, body, "deposit", "status") != "rejected" {
		t.Fatalf("reject: %d %v", status, body)
	}
	if _, ok := body["user"]; ok {
		t.Fatalf("reject must not return a balance change: %v", body)
	}
	status, _ = s.admin(t, http.MethodPut, "/deposits/"+depositID+"/confirm", nil)
	if status != http.StatusConflict {
		t.Fatalf("confirm after reject: expected 409, got %d", status)
	}
}

func TestBalanceEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "u1", "CODEU1", "")
	depositID := s.seedDeposit(t, "u1", 100)
	if status, body := s.admin(t, http.MethodPut, "/deposits/"+depositID+"/confirm", nil); status != http.StatusOK {
		t.Fatalf("confirm: %d %v", status, body)
	}

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantTotal  float64
	}{
		{"additional", "/users/u1/additional-balance", map[string]interface{}{"additionalBalance": -50}, http.StatusOK, 50},
		{"additional as string", "/api/admin/users/u1/additional-balance", map[string]interface{}{"additionalBalance": "25.5"}, http.StatusOK, 125.5},
		{"total", "/users/u1/balance", map[string]interface{}{"balance": 300}, http.StatusOK, 300},
		{"not a number", "/users/u1/additional-balance", map[string]interface{}{"additionalBalance": "lots"}, http.StatusBadRequest, 0},
		{"missing value", "/users/u1/balance", map[string]interface{}{}, http.StatusBadRequest, 0},
		{"unknown user", "/users/ghost/additional-balance", map[string]interface{}{"additionalBalance": 1}, http.StatusNotFound, 0},
		{"stale version", "/users/u1/additional-balance", map[string]interface{}{"additionalBalance": 1, "version": 0}, http.StatusConflict, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.admin(t, http.MethodPut, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("expected %d, got %d %v", tt.wantStatus, status, body)
			}
			if status != http.StatusOK {
				return
			}
			if field(t, body, "user", "totalBalance") != tt.wantTotal || field(t, body, "user", "balance") != 100.0 {
				t.Fatalf("unexpected balances: %v", body["user"])
			}
		})
	}
}

func TestSubmissionAndParticipationReview(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "u1", "CODEU1", "")

	status, body := s.admin(t, http.MethodPost, "/api/admin/tasks", map[string]interface{}{"title": "Follow us", "reward": 10})
	if status != http.StatusCreated {
		t.Fatalf("create task: %d %v", status, body)
	}
	taskID := field(t, body, "task", "id").(string)
	status, body = s.internal(t, http.MethodPost, "/internal/task-submissions", map[string]interface{}{"taskId": taskID, "userId": "u1", "proofReference": "p.png"})
	if status != http.StatusCreated {
		t.Fatalf("submit: %d %v", status, body)
	}
	subID := field(t, body, "submission", "id").(string)

	status, body = s.admin(t, http.MethodPut, "/task-submissions/"+subID+"/review", map[string]interface{}{"status": "approved"})
	if status != http.StatusOK || field(t, body, "submission", "status") != "approved" {
		t.Fatalf("approve submission: %d %v", status, body)
	}
	status, _ = s.admin(t, http.MethodPut, "/task-submissions/"+subID+"/review", map[string]interface{}{"status": "rejected"})
	if status != http.StatusConflict {
		t.Fatalf("second review: expected 409, got %d", status)
	}

	start := time.Now().UTC().Add(-time.Hour)
	status, body = s.admin(t, http.MethodPost, "/api/admin/lucky-draws", map[string]interface{}{
		"title":     "Weekly",
		"startDate": start,
		"endDate":   start.Add(24 * time.Hour),
	})
	if status != http.StatusCreated {
		t.Fatalf("create draw: %d %v", status, body)
	}
	drawID := field(t, body, "draw", "id").(string)
	status, body = s.internal(t, http.MethodPost, "/internal/participations", map[string]interface{}{"drawId": drawID, "userId": "u1"})
	if status != http.StatusCreated {
		t.Fatalf("enter: %d %v", status, body)
	}
	entryID := field(t, body, "participation", "id").(string)

	status, body = s.admin(t, http.MethodPut, "/participations/"+entryID+"/reject", nil)
	if status != http.StatusOK || field(t, body, "participation", "status") != "rejected" {
		t.Fatalf("reject participation: %d %v", status, body)
	}
	status, _ = s.admin(t, http.MethodPut, "/api/admin/participations/"+entryID+"/approve", nil)
	if status != http.StatusConflict {
		t.Fatalf("approve after reject: expected 409, got %d", status)
	}
}

func TestInternalRoutesRequireServiceToken(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/internal/users", map[string]interface{}{"id": "u1", "username": "u1"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	status, _ = s.do(t, http.MethodPost, "/internal/users", map[string]interface{}{"id": "u1", "username": "u1"},
		map[string]string{"X-Service-Token": "wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong token, got %d", status)
	}

	s.seedUser(t, "u1", "CODEU1", "")
	ref := "remote-42"
	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		status, body := s.internal(t, http.MethodPost, "/internal/deposits", map[string]interface{}{
			"userId": "u1", "amount": 10, "externalRef": ref,
		})
		if status != want {
			t.Fatalf("deposit attempt %d: expected %d, got %d %v", i, want, status, body)
		}
	}
	status, body := s.admin(t, http.MethodGet, "/api/admin/deposits?status=pending", nil)
	if status != http.StatusOK || field(t, body, "pagination", "totalDeposits") != 1.0 {
		t.Fatalf("deposit list: %d %v", status, body)
	}
}
