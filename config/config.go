// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	NegativeTotalAllow  = "allow"
	NegativeTotalReject = "reject"
)

// Config holds all the configuration variables for the settlement service.
type Config struct {
	ServerPort     string `mapstructure:"SERVER_PORT"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	LogProduction  bool   `mapstructure:"LOG_PRODUCTION"`

	AdminJWTSecret string `mapstructure:"ADMIN_JWT_SECRET"`
	ServiceToken   string `mapstructure:"SERVICE_TOKEN"`

	SyncServiceURL      string        `mapstructure:"SYNC_SERVICE_URL"`
	UserSyncInterval    time.Duration `mapstructure:"USER_SYNC_INTERVAL"`
	DepositSyncInterval time.Duration `mapstructure:"DEPOSIT_SYNC_INTERVAL"`
	SchedulerInterval   time.Duration `mapstructure:"SCHEDULER_INTERVAL"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	CloudflareAccountID string        `mapstructure:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string        `mapstructure:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string        `mapstructure:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string        `mapstructure:"R2_BUCKET_NAME"`
	R2Endpoint          string        `mapstructure:"R2_ENDPOINT"`
	ReceiptURLTTL       time.Duration `mapstructure:"RECEIPT_URL_TTL"`

	ReferralBonusRaw    string `mapstructure:"REFERRAL_BONUS"`
	NegativeTotalPolicy string `mapstructure:"NEGATIVE_TOTAL_POLICY"`

	ReferralBonus decimal.Decimal `mapstructure:"-"`
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (c Config) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// R2Enabled reports whether receipt presigning can be configured.
func (c Config) R2Enabled() bool {
	return c.R2BucketName != "" && c.R2AccessKeyID != "" && (c.CloudflareAccountID != "" || c.R2Endpoint != "")
}

// LoadConfig reads configuration from environment variables and an optional .env in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "3005")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("LOG_PRODUCTION", false)
	viper.SetDefault("USER_SYNC_INTERVAL", "1m")
	viper.SetDefault("DEPOSIT_SYNC_INTERVAL", "30s")
	viper.SetDefault("SCHEDULER_INTERVAL", "1m")
	viper.SetDefault("EVENTS_EXCHANGE", "rewards_events")
	viper.SetDefault("RECEIPT_URL_TTL", "15m")
	viper.SetDefault("REFERRAL_BONUS", "0")
	viper.SetDefault("NEGATIVE_TOTAL_POLICY", NegativeTotalAllow)

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "ALLOWED_ORIGINS", "LOG_PRODUCTION",
		"ADMIN_JWT_SECRET", "SERVICE_TOKEN",
		"SYNC_SERVICE_URL", "USER_SYNC_INTERVAL", "DEPOSIT_SYNC_INTERVAL", "SCHEDULER_INTERVAL",
		"RABBITMQ_URL", "EVENTS_EXCHANGE",
		"CLOUDFLARE_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_SECRET", "R2_BUCKET_NAME", "R2_ENDPOINT", "RECEIPT_URL_TTL",
		"REFERRAL_BONUS", "NEGATIVE_TOTAL_POLICY",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("⚠️  failed to read config file, using environment values: %v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.ReferralBonus = decimal.Zero
	if raw := strings.TrimSpace(config.ReferralBonusRaw); raw != "" {
		bonus, parseErr := decimal.NewFromString(raw)
		switch {
		case parseErr != nil:
			log.Printf("⚠️  invalid REFERRAL_BONUS %q, using 0: %v", raw, parseErr)
		case bonus.IsNegative():
			log.Printf("⚠️  negative REFERRAL_BONUS %q, using 0", raw)
		default:
			config.ReferralBonus = bonus
		}
	}

	config.NegativeTotalPolicy = strings.ToLower(strings.TrimSpace(config.NegativeTotalPolicy))
	if config.NegativeTotalPolicy != NegativeTotalAllow && config.NegativeTotalPolicy != NegativeTotalReject {
		log.Printf("⚠️  unknown NEGATIVE_TOTAL_POLICY %q, falling back to %q", config.NegativeTotalPolicy, NegativeTotalAllow)
		config.NegativeTotalPolicy = NegativeTotalAllow
	}

	if config.UserSyncInterval <= 0 {
		config.UserSyncInterval = time.Minute
	}
	if config.DepositSyncInterval <= 0 {
		config.DepositSyncInterval = 30 * time.Second
	}
	if config.SchedulerInterval <= 0 {
		config.SchedulerInterval = time.Minute
	}
	if config.ReceiptURLTTL <= 0 {
		config.ReceiptURLTTL = 15 * time.Minute
	}

	return
}
