package config

const EnvPrefix = "BOXLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "BOXLINK_APP_ENV"
	EnvPort     = "BOXLINK_APP_PORT"
	EnvLogLevel = "BOXLINK_LOG_LEVEL"

	EnvDBDSN    = "BOXLINK_DB_DSN"
	EnvDBDriver = "BOXLINK_DB_DRIVER"
	EnvDBHost   = "BOXLINK_DB_HOST"
	EnvDBUser   = "BOXLINK_DB_USER"
	EnvDBName   = "BOXLINK_DB_NAME"

	EnvRedisURL  = "BOXLINK_REDIS_URL"
	EnvRedisAddr = "BOXLINK_REDIS_ADDR"

	EnvJWTSecret              = "BOXLINK_JWT_SECRET"
	EnvJWTIssuer              = "BOXLINK_JWT_ISSUER"
	EnvJWTExpMins             = "BOXLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "BOXLINK_REFRESH_TOKEN_TTL_MINUTES"

	EnvUseSQLite = "BOXLINK_USE_SQLITE"

	EnvEnrollmentCodeLength = "BOXLINK_GYM_ENROLLMENT_CODE_LENGTH"
)
