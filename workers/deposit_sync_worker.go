package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"rewards-settlement/services"

	"go.uber.org/zap"
)

// RemoteDeposit is a deposit submitted on the user-facing side.
type RemoteDeposit struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          json.RawMessage `json:"amount"`
	ReceiptURL      string          `json:"receipt_url"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type GetDepositChangesResponse struct {
	Deposits []RemoteDeposit `json:"deposits"`
}

// DepositSyncWorker imports new deposits as pending. It never reviews them.
type DepositSyncWorker struct {
	deposits *services.DepositService
	feed     changeFeed
	interval time.Duration
	since    time.Time
	log      *zap.Logger
}

func NewDepositSyncWorker(deposits *services.DepositService, syncServiceBaseURL, serviceToken string, interval time.Duration, client *http.Client, log *zap.Logger) *DepositSyncWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &DepositSyncWorker{
		deposits: deposits,
		feed: changeFeed{
			baseURL:      syncServiceBaseURL,
			endpointPath: "/api/v1/public/deposits",
			serviceToken: serviceToken,
			httpClient:   client,
		},
		interval: interval,
		log:      log.Named("deposit_sync"),
	}
}

func (w *DepositSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting deposit sync worker", zap.Duration("interval", w.interval))
	go func() {
		poll(ctx, w.interval, w.SyncOnce, func(err error) {
			w.log.Error("❌ deposit sync batch failed", zap.Error(err))
		})
		w.log.Info("⏹️ deposit sync worker stopped")
	}()
}

func (w *DepositSyncWorker) SyncOnce(ctx context.Context) error {
	var response GetDepositChangesResponse
	if err := w.feed.fetch(ctx, w.since, &response); err != nil {
		return err
	}
	if len(response.Deposits) == 0 {
		return nil
	}

	var imported, duplicates, skipped, failed int
	latest := w.since
	for _, remote := range response.Deposits {
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}

		amount, err := services.ParseAmount("amount", remote.Amount)
		if err != nil {
			skipped++
			w.log.Warn("⚠️ skipping deposit with bad amount", zap.String("external_ref", remote.ID), zap.Error(err))
			continue
		}
		ref := remote.ID
		_, created, err := w.deposits.Create(ctx, services.DepositIntake{
			UserID:           remote.UserID,
			Amount:           amount,
			ReceiptReference: remote.ReceiptURL,
			TransactionHash:  remote.TransactionHash,
			ExternalRef:      &ref,
			CreatedAt:        remote.CreatedAt,
		})
		switch {
		case errors.Is(err, services.ErrNotFound):
			// The owner has not been mirrored yet; retry on a later batch.
			failed++
			w.log.Warn("⚠️ deposit owner unknown", zap.String("external_ref", remote.ID), zap.String("user_id", remote.UserID))
		case errors.Is(err, services.ErrValidation):
			skipped++
			w.log.Warn("⚠️ skipping invalid deposit", zap.String("external_ref", remote.ID), zap.Error(err))
		case err != nil:
			failed++
			w.log.Error("❌ failed to import deposit", zap.String("external_ref", remote.ID), zap.Error(err))
		case created:
			imported++
		default:
			duplicates++
		}
	}

	if failed == 0 {
		w.since = latest
	}
	w.log.Info("✅ deposits synced",
		zap.Int("received", len(response.Deposits)),
		zap.Int("imported", imported),
		zap.Int("duplicates", duplicates),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
