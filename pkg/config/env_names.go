package config

// EnvPrefix is passed to envconfig; variable names below are spelled out in
// full so tests and docs can reference them.
const EnvPrefix = "FIELDSERVE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "FIELDSERVE_APP_ENV"
	EnvPort     = "FIELDSERVE_APP_PORT"
	EnvLogLevel = "FIELDSERVE_LOG_LEVEL"

	EnvDBDSN  = "FIELDSERVE_DB_DSN"
	EnvDBHost = "FIELDSERVE_DB_HOST"
	EnvDBUser = "FIELDSERVE_DB_USER"
	EnvDBName = "FIELDSERVE_DB_NAME"

	EnvRedisURL = "FIELDSERVE_REDIS_URL"

	EnvJWTSecret  = "FIELDSERVE_JWT_SECRET"
	EnvJWTIssuer  = "FIELDSERVE_JWT_ISSUER"
	EnvJWTExpMins = "FIELDSERVE_JWT_EXPIRATION_MINUTES"

	EnvDirectoryBaseURL  = "FIELDSERVE_DIRECTORY_BASE_URL"
	EnvDirectoryEnabled  = "FIELDSERVE_DIRECTORY_ENABLED"
	EnvDirectoryFailOpen = "FIELDSERVE_DIRECTORY_FAIL_OPEN"

	EnvWorkloadWarningThreshold = "FIELDSERVE_DISPATCH_WORKLOAD_WARNING_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
