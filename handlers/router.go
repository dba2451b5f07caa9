package handlers

import (
	"rewards-settlement/middleware"
	"rewards-settlement/models"
	"rewards-settlement/services"
	"rewards-settlement/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the routes call into.
type Services struct {
	Ledger        *services.BalanceLedger
	Deposits      *services.DepositService
	Users         *services.UserService
	Tasks         *services.TaskService
	Draws         *services.LuckyDrawService
	Withdrawals   *services.WithdrawalService
	Notifications *services.NotificationService
	Dashboard     *services.DashboardService
	Receipts      utils.ReceiptLinker
}

type RouterConfig struct {
	AdminJWTSecret string
	ServiceToken   string
	Log            *zap.Logger
}

// Setup mounts health, metrics, internal intake and the admin API on app.
func Setup(app *fiber.App, svc *Services, cfg RouterConfig) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	receipts := svc.Receipts
	if receipts == nil {
		receipts = utils.PassthroughReceipts{}
	}

	app.Use(middleware.RequestMetrics(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	internal := app.Group("/internal", middleware.ServiceTokenMiddleware(cfg.ServiceToken, log))
	SetupInternalRoutes(internal, svc)

	adminAuth := middleware.AdminAuthMiddleware(cfg.AdminJWTSecret, log)
	admin := app.Group("/api/admin", adminAuth)
	SetupDashboardRoutes(admin, svc.Dashboard)
	SetupDepositRoutes(admin, svc.Deposits, receipts)
	SetupUserRoutes(admin, svc.Users, svc.Ledger)
	SetupTaskRoutes(admin, svc.Tasks)
	SetupLuckyDrawRoutes(admin, svc.Draws)
	SetupWithdrawalRoutes(admin, svc.Withdrawals)
	SetupNotificationRoutes(admin, svc.Notifications)

	// Short settlement paths used by older dashboard builds.
	app.Put("/deposits/:id/confirm", adminAuth, reviewDeposit(svc.Deposits, services.DecisionConfirm))
	app.Put("/deposits/:id/reject", adminAuth, reviewDeposit(svc.Deposits, services.DecisionReject))
	app.Put("/users/:id/balance", adminAuth, setTotalBalance(svc.Ledger))
	app.Put("/users/:id/additional-balance", adminAuth, setAdditionalBalance(svc.Ledger))
	app.Put("/task-submissions/:id/review", adminAuth, reviewSubmission(svc.Tasks))
	app.Put("/participations/:id/approve", adminAuth, reviewParticipation(svc.Draws, models.ReviewApproved))
	app.Put("/participations/:id/reject", adminAuth, reviewParticipation(svc.Draws, models.ReviewRejected))
}
