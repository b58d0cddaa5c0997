package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Circulation  CirculationConfig
	Sweeps       SweepConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Circulation.LateFee(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHELFLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHELFLINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHELFLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHELFLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHELFLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHELFLINE_DB_DSN"`
	Driver string `envconfig:"SHELFLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHELFLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHELFLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHELFLINE_DB_USER"`
	LegacyPassword string `envconfig:"SHELFLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHELFLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHELFLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHELFLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHELFLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHELFLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHELFLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHELFLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHELFLINE_REDIS_ADDR"`
	Password     string        `envconfig:"SHELFLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHELFLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHELFLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHELFLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHELFLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHELFLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHELFLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CirculationConfig carries the lending policy knobs.
type CirculationConfig struct {
	MaxActiveLoansPerMember int    `envconfig:"SHELFLINE_MAX_ACTIVE_LOANS" default:"5"`
	LoanDurationDays        int    `envconfig:"SHELFLINE_LOAN_DURATION_DAYS" default:"14"`
	LateFeePerDay           string `envconfig:"SHELFLINE_LATE_FEE_PER_DAY" default:"0.50"`
	ReservationExpiryHours  int    `envconfig:"SHELFLINE_RESERVATION_EXPIRY_HOURS" default:"48"`
	DueSoonWindowHours      int    `envconfig:"SHELFLINE_DUE_SOON_WINDOW_HOURS" default:"24"`
}

// LateFee parses the per-day late fee. It works on any CirculationConfig
// value, not just one produced by Load.
func (c CirculationConfig) LateFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.LateFeePerDay))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing %s: %w", EnvLateFeePerDay, err)
	}
	if fee.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative", EnvLateFeePerDay)
	}
	return fee, nil
}

type SweepConfig struct {
	Interval              time.Duration `envconfig:"SHELFLINE_SWEEP_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"SHELFLINE_SWEEP_LOCK_TTL" default:"2h"`
	NotificationRetention int           `envconfig:"SHELFLINE_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHELFLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHELFLINE_AUTO_MIGRATE" default:"false"`
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
