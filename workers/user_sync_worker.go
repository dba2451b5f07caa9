// workers/user_sync_worker.go
package workers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"rewards-settlement/services"

	"go.uber.org/zap"
)

// RemoteProfile matches the JSON the sync service returns for a user.
type RemoteProfile struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	ReferredByID  *string   `json:"referred_by_id,omitempty"`
	ReferralCode  string    `json:"referral_code"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type GetUserChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors profile-service users into the local users table.
// Only profile columns are refreshed; balances stay owned by the ledger.
type UserSyncWorker struct {
	users    *services.UserService
	feed     changeFeed
	interval time.Duration
	since    time.Time
	log      *zap.Logger
}

func NewUserSyncWorker(users *services.UserService, syncServiceBaseURL, serviceToken string, interval time.Duration, client *http.Client, log *zap.Logger) *UserSyncWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserSyncWorker{
		users: users,
		feed: changeFeed{
			baseURL:      syncServiceBaseURL,
			endpointPath: "/api/v1/public/profiles",
			serviceToken: serviceToken,
			httpClient:   client,
		},
		interval: interval,
		log:      log.Named("user_sync"),
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting user sync worker", zap.Duration("interval", w.interval))
	go func() {
		poll(ctx, w.interval, w.SyncOnce, func(err error) {
			w.log.Error("❌ user sync batch failed", zap.Error(err))
		})
		w.log.Info("⏹️ user sync worker stopped")
	}()
}

// SyncOnce pulls one batch of profile changes. The cursor only advances when
// every user in the batch was applied.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) error {
	var response GetUserChangesResponse
	if err := w.feed.fetch(ctx, w.since, &response); err != nil {
		return err
	}
	if len(response.Users) == 0 {
		return nil
	}

	// Referrers must exist locally before their referees are linked.
	sort.SliceStable(response.Users, func(i, j int) bool {
		return response.Users[i].CreatedAt.Before(response.Users[j].CreatedAt)
	})

	var created, updated, skipped, failed int
	latest := w.since
	for _, remote := range response.Users {
		id := remote.ExternalID
		if id == "" {
			id = remote.ID
		}
		reg := services.Registration{
			ID:           id,
			Username:     remote.Username,
			Email:        remote.Email,
			Verified:     remote.EmailVerified,
			ReferralCode: remote.ReferralCode,
			CreatedAt:    remote.CreatedAt,
		}
		if remote.ReferredByID != nil {
			reg.ReferredByID = *remote.ReferredByID
		}

		isNew, err := w.users.UpsertProfile(ctx, reg)
		switch {
		case errors.Is(err, services.ErrNotFound):
			// The referrer has not been mirrored yet; retry on a later batch.
			failed++
			w.log.Warn("⚠️ referrer unknown", zap.String("user_id", id), zap.String("referrer_id", reg.ReferredByID))
		case errors.Is(err, services.ErrValidation):
			skipped++
			w.log.Warn("⚠️ skipping invalid profile", zap.String("user_id", id), zap.Error(err))
		case err != nil:
			failed++
			w.log.Error("❌ failed to apply profile", zap.String("user_id", id), zap.Error(err))
		case isNew:
			created++
		default:
			updated++
		}
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
	}

	if failed == 0 {
		w.since = latest
	}
	w.log.Info("✅ users synced",
		zap.Int("received", len(response.Users)),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
