package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"SERVER_PORT", "PORT", "REFERRAL_BONUS", "NEGATIVE_TOTAL_POLICY", "EVENTS_EXCHANGE", "USER_SYNC_INTERVAL"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "3005" {
		t.Fatalf("expected default port 3005, got %q", cfg.ServerPort)
	}
	if !cfg.ReferralBonus.IsZero() {
		t.Fatalf("expected zero referral bonus, got %s", cfg.ReferralBonus)
	}
	if cfg.NegativeTotalPolicy != NegativeTotalAllow {
		t.Fatalf("expected allow policy, got %q", cfg.NegativeTotalPolicy)
	}
	if cfg.EventsExchange != "rewards_events" {
		t.Fatalf("expected default exchange, got %q", cfg.EventsExchange)
	}
	if cfg.UserSyncInterval != time.Minute {
		t.Fatalf("expected 1m user sync interval, got %s", cfg.UserSyncInterval)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "4000")
	setEnvWithCleanup(t, "PORT", "5000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "5000" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_ReferralBonusAndPolicy(t *testing.T) {
	cases := []struct {
		name       string
		bonus      string
		policy     string
		wantBonus  string
		wantPolicy string
	}{
		{"valid", "25.50", "REJECT", "25.5", NegativeTotalReject},
		{"garbage bonus", "abc", "allow", "0", NegativeTotalAllow},
		{"negative bonus", "-10", "clamp", "0", NegativeTotalAllow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			setEnvWithCleanup(t, "REFERRAL_BONUS", tc.bonus)
			setEnvWithCleanup(t, "NEGATIVE_TOTAL_POLICY", tc.policy)

			cfg, err := LoadConfig(t.TempDir())
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.ReferralBonus.String() != tc.wantBonus {
				t.Fatalf("expected bonus %s, got %s", tc.wantBonus, cfg.ReferralBonus)
			}
			if cfg.NegativeTotalPolicy != tc.wantPolicy {
				t.Fatalf("expected policy %q, got %q", tc.wantPolicy, cfg.NegativeTotalPolicy)
			}
		})
	}
}

func TestLoadConfig_ReadsDotEnvFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVICE_TOKEN")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVICE_TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServiceToken != "from-file" {
		t.Fatalf("expected token from .env, got %q", cfg.ServiceToken)
	}
}

func TestConfig_Origins(t *testing.T) {
	cfg := Config{AllowedOrigins: " http://a.test , ,http://b.test"}
	got := cfg.Origins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %#v", got)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
