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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Directory    DirectoryConfig
	Dispatch     DispatchConfig
	Locations    LocationsConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIELDSERVE_APP_ENV" required:"true"`
	Port         string `envconfig:"FIELDSERVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FIELDSERVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIELDSERVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FIELDSERVE_DB_DSN"`
	Driver string `envconfig:"FIELDSERVE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FIELDSERVE_DB_HOST"`
	LegacyPort     int    `envconfig:"FIELDSERVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FIELDSERVE_DB_USER"`
	LegacyPassword string `envconfig:"FIELDSERVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FIELDSERVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FIELDSERVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FIELDSERVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FIELDSERVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FIELDSERVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FIELDSERVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FIELDSERVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FIELDSERVE_REDIS_ADDR"`
	Password     string        `envconfig:"FIELDSERVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FIELDSERVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FIELDSERVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FIELDSERVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FIELDSERVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FIELDSERVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FIELDSERVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FIELDSERVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FIELDSERVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FIELDSERVE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// DirectoryConfig tunes the technician directory client. FailOpen trades
// strict validation for dispatch availability when the directory is down.
type DirectoryConfig struct {
	BaseURL  string        `envconfig:"FIELDSERVE_DIRECTORY_BASE_URL"`
	APIKey   string        `envconfig:"FIELDSERVE_DIRECTORY_API_KEY"`
	Enabled  bool          `envconfig:"FIELDSERVE_DIRECTORY_ENABLED" default:"true"`
	FailOpen bool          `envconfig:"FIELDSERVE_DIRECTORY_FAIL_OPEN" default:"true"`
	Timeout  time.Duration `envconfig:"FIELDSERVE_DIRECTORY_TIMEOUT" default:"5s"`
	CacheTTL time.Duration `envconfig:"FIELDSERVE_DIRECTORY_CACHE_TTL" default:"5m"`
}

// DispatchConfig carries the tunables of the assignment engine.
type DispatchConfig struct {
	WorkloadWarningThreshold int `envconfig:"FIELDSERVE_DISPATCH_WORKLOAD_WARNING_THRESHOLD" default:"10"`
}

type LocationsConfig struct {
	TTL time.Duration `envconfig:"FIELDSERVE_LOCATION_TTL" default:"15m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FIELDSERVE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FIELDSERVE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FIELDSERVE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FIELDSERVE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TaskEventsTopic        string `envconfig:"FIELDSERVE_PUBSUB_TASK_EVENTS_TOPIC" default:"fs-task-events"`
	TaskEventsSubscription string `envconfig:"FIELDSERVE_PUBSUB_TASK_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FIELDSERVE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FIELDSERVE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FIELDSERVE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
