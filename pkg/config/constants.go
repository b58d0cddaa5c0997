package config

// EnvPrefix is empty because every field carries a fully qualified envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv        = "SHELFLINE_APP_ENV"
	EnvPort          = "SHELFLINE_APP_PORT"
	EnvDBDSN         = "SHELFLINE_DB_DSN"
	EnvDBHost        = "SHELFLINE_DB_HOST"
	EnvDBUser        = "SHELFLINE_DB_USER"
	EnvDBName        = "SHELFLINE_DB_NAME"
	EnvRedisURL      = "SHELFLINE_REDIS_URL"
	EnvLateFeePerDay = "SHELFLINE_LATE_FEE_PER_DAY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
