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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Ledger       LedgerConfig
	Pickup       PickupConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MATCYCLE_APP_ENV" required:"true"`
	Port         string   `envconfig:"MATCYCLE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MATCYCLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MATCYCLE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"MATCYCLE_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"MATCYCLE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MATCYCLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MATCYCLE_DB_DSN"`
	Driver string `envconfig:"MATCYCLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MATCYCLE_DB_HOST"`
	LegacyPort     int    `envconfig:"MATCYCLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MATCYCLE_DB_USER"`
	LegacyPassword string `envconfig:"MATCYCLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MATCYCLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MATCYCLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MATCYCLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MATCYCLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MATCYCLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MATCYCLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MATCYCLE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MATCYCLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MATCYCLE_REDIS_ADDR"`
	Password     string        `envconfig:"MATCYCLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MATCYCLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MATCYCLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MATCYCLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MATCYCLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MATCYCLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MATCYCLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MATCYCLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MATCYCLE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MATCYCLE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MATCYCLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MATCYCLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MATCYCLE_PUBSUB_DOMAIN_TOPIC" default:"matcycle-domain-events"`
	DomainSubscription string `envconfig:"MATCYCLE_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"MATCYCLE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"MATCYCLE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"MATCYCLE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"MATCYCLE_OUTBOX_METRICS_ADDR" default:":9102"`
}

// LedgerConfig bounds code allocation.
type LedgerConfig struct {
	MaxAllocation   int `envconfig:"MATCYCLE_LEDGER_MAX_ALLOCATION" default:"500"`
	AttemptsPerCode int `envconfig:"MATCYCLE_LEDGER_ATTEMPTS_PER_CODE" default:"20"`
}

// CronConfig drives the scheduled maintenance worker.
type CronConfig struct {
	Interval             time.Duration `envconfig:"MATCYCLE_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays  int           `envconfig:"MATCYCLE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OverdueThresholdDays int           `envconfig:"MATCYCLE_CRON_OVERDUE_THRESHOLD_DAYS" default:"14"`
	MetricsAddr          string        `envconfig:"MATCYCLE_CRON_METRICS_ADDR" default:":9103"`
	Jobs                 []string      `envconfig:"MATCYCLE_CRON_JOBS"`
}

// PickupConfig bounds pickup batch orchestration.
type PickupConfig struct {
	MaxBatchSize  int `envconfig:"MATCYCLE_PICKUP_MAX_BATCH_SIZE" default:"50"`
	CancelRetries int `envconfig:"MATCYCLE_PICKUP_CANCEL_RETRIES" default:"3"`
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
