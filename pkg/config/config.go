package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Loyalty      LoyaltyConfig
	Inventory    InventoryConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.App.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Loyalty.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("%s must be json or console", EnvLogFmt)
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"POS_DB_DSN"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this as warnings; 0 disables.
	SlowQuery time.Duration `envconfig:"POS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
	Idempotency bool `envconfig:"POS_FEATURE_IDEMPOTENCY" default:"true"`
}

// LoyaltyConfig controls point accrual and redemption.
type LoyaltyConfig struct {
	PointsPerUnit int64  `envconfig:"POS_LOYALTY_POINTS_PER_UNIT" default:"10"`
	RedeemPolicy  string `envconfig:"POS_LOYALTY_REDEEM_POLICY" default:"legacy"`
}

func (l LoyaltyConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(l.RedeemPolicy)) {
	case RedeemPolicyLegacy, RedeemPolicyStrict:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvLoyaltyRedeemPolicy, RedeemPolicyLegacy, RedeemPolicyStrict)
	}
	if l.PointsPerUnit < 0 {
		return fmt.Errorf("%s must not be negative", EnvLoyaltyPointsPerUnit)
	}
	return nil
}

// StrictRedemption reports whether redemptions must be covered by the current balance.
func (l LoyaltyConfig) StrictRedemption() bool {
	return strings.EqualFold(strings.TrimSpace(l.RedeemPolicy), RedeemPolicyStrict)
}

type InventoryConfig struct {
	LowStockSweepLimit int `envconfig:"POS_INVENTORY_LOW_STOCK_SWEEP_LIMIT" default:"200"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	TransactionsTopic string `envconfig:"POS_PUBSUB_TRANSACTIONS_TOPIC" default:"pos-transactions"`
	InventoryTopic    string `envconfig:"POS_PUBSUB_INVENTORY_TOPIC" default:"pos-inventory"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"POS_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionBatch int `envconfig:"POS_OUTBOX_RETENTION_BATCH" default:"500"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"POS_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"POS_CRON_LOCK_TTL" default:"55m"`
	// Concurrency bounds how many maintenance jobs of one cycle run at once.
	Concurrency int `envconfig:"POS_CRON_CONCURRENCY" default:"1"`
	// MetricsAddr serves /metrics for the worker when set, e.g. ":9091".
	MetricsAddr string `envconfig:"POS_CRON_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
