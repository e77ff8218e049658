package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Gyms          GymsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	err := multierr.Combine(
		cfg.DB.resolveDSN(),
		cfg.Redis.validate(),
		cfg.JWT.validate(),
		cfg.Gyms.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOXLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"BOXLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOXLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOXLINK_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"BOXLINK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"BOXLINK_DB_DSN"`
	Driver string `envconfig:"BOXLINK_DB_DRIVER" default:"postgres"`

	// Discrete connection settings, used only when DSN is empty.
	Host     string `envconfig:"BOXLINK_DB_HOST"`
	Port     int    `envconfig:"BOXLINK_DB_PORT" default:"5432"`
	User     string `envconfig:"BOXLINK_DB_USER"`
	Password string `envconfig:"BOXLINK_DB_PASSWORD"`
	Name     string `envconfig:"BOXLINK_DB_NAME"`
	SSLMode  string `envconfig:"BOXLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOXLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOXLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOXLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOXLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"BOXLINK_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOXLINK_REDIS_URL"`
	Address      string        `envconfig:"BOXLINK_REDIS_ADDR"`
	Password     string        `envconfig:"BOXLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOXLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOXLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOXLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOXLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOXLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOXLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BOXLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BOXLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BOXLINK_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"BOXLINK_REFRESH_TOKEN_TTL_MINUTES" default:"20160"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

func (j JWTConfig) validate() error {
	if j.AccessTokenTTL() <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if j.RefreshTokenTTL() <= j.AccessTokenTTL() {
		return fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", j.RefreshTokenTTL(), j.AccessTokenTTL())
	}
	return nil
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOXLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOXLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOXLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOXLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOXLINK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BOXLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BOXLINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BOXLINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BOXLINK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BOXLINK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BOXLINK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	TrustedProxyHops   int           `envconfig:"BOXLINK_TRUSTED_PROXY_HOPS" default:"0"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOXLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOXLINK_AUTO_MIGRATE" default:"false"`
}

type GymsConfig struct {
	EnrollmentCodeLength int `envconfig:"BOXLINK_GYM_ENROLLMENT_CODE_LENGTH" default:"10"`
}

const defaultSQLiteDSN = "file:boxlink.db?_foreign_keys=on"

// resolveDSN fills DSN from the discrete BOXLINK_DB_* settings when it is
// not given directly. SQLite falls back to a local file.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DBDriverSQLite) {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

func (r RedisConfig) validate() error {
	if r.URL == "" && r.Address == "" {
		return fmt.Errorf("one of %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

func (g GymsConfig) validate() error {
	if g.EnrollmentCodeLength < 6 || g.EnrollmentCodeLength > 32 {
		return fmt.Errorf("%s must be between 6 and 32, got %d", EnvEnrollmentCodeLength, g.EnrollmentCodeLength)
	}
	return nil
}
