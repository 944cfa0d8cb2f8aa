package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BUYBACK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "BUYBACK_APP_ENV"
	EnvPort       = "BUYBACK_APP_PORT"
	EnvDBDSN      = "BUYBACK_DB_DSN"
	EnvDBHost     = "BUYBACK_DB_HOST"
	EnvDBUser     = "BUYBACK_DB_USER"
	EnvDBName     = "BUYBACK_DB_NAME"
	EnvRedisURL   = "BUYBACK_REDIS_URL"
	EnvUseSQLite  = "BUYBACK_USE_SQLITE"
	EnvPolicyFile = "BUYBACK_PRICING_POLICY_FILE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Pricing      PricingConfig
	PriceFeed    PriceFeedConfig
	Quotes       QuotesConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BUYBACK_APP_ENV" required:"true"`
	Port         string `envconfig:"BUYBACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BUYBACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUYBACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BUYBACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"BUYBACK_DB_DSN"`

	LegacyHost     string `envconfig:"BUYBACK_DB_HOST"`
	LegacyPort     int    `envconfig:"BUYBACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BUYBACK_DB_USER"`
	LegacyPassword string `envconfig:"BUYBACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"BUYBACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"BUYBACK_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"BUYBACK_SQLITE_PATH" default:"buyback.db"`

	MaxOpenConns    int           `envconfig:"BUYBACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUYBACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUYBACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUYBACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	UseSQLite       bool          `ignored:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BUYBACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BUYBACK_REDIS_ADDR"`
	Password     string        `envconfig:"BUYBACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUYBACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUYBACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUYBACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUYBACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUYBACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUYBACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BUYBACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BUYBACK_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig tunes the inventory ledger's transaction behaviour.
type LedgerConfig struct {
	MaxAttempts    int           `envconfig:"BUYBACK_LEDGER_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay time.Duration `envconfig:"BUYBACK_LEDGER_RETRY_BASE_DELAY" default:"25ms"`
	RetryMaxDelay  time.Duration `envconfig:"BUYBACK_LEDGER_RETRY_MAX_DELAY" default:"500ms"`
	LockTimeout    time.Duration `envconfig:"BUYBACK_LEDGER_LOCK_TIMEOUT" default:"5s"`
}

func (l LedgerConfig) validate() error {
	if l.MaxAttempts < 1 {
		return fmt.Errorf("BUYBACK_LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if l.RetryMaxDelay > 0 && l.RetryMaxDelay < l.RetryBaseDelay {
		return fmt.Errorf("BUYBACK_LEDGER_RETRY_MAX_DELAY must not be below the base delay")
	}
	return nil
}

type PricingConfig struct {
	// PolicyFile optionally points at a JSON payout policy; empty uses the built-in table.
	PolicyFile string `envconfig:"BUYBACK_PRICING_POLICY_FILE"`
}

type PriceFeedConfig struct {
	CacheTTL time.Duration `envconfig:"BUYBACK_PRICE_FEED_CACHE_TTL" default:"15m"`
}

type QuotesConfig struct {
	BatchLimit  int `envconfig:"BUYBACK_QUOTES_BATCH_LIMIT" default:"200"`
	Concurrency int `envconfig:"BUYBACK_QUOTES_CONCURRENCY" default:"8"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BUYBACK_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BUYBACK_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	db.UseSQLite = useSQLite
	if db.DSN != "" || useSQLite {
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
