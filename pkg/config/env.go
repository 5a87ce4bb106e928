package config

// EnvPrefix is empty because every field carries its full MATCYCLE_* name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MATCYCLE_APP_ENV"
	EnvPort     = "MATCYCLE_APP_PORT"
	EnvDBDSN    = "MATCYCLE_DB_DSN"
	EnvDBHost   = "MATCYCLE_DB_HOST"
	EnvDBUser   = "MATCYCLE_DB_USER"
	EnvDBName   = "MATCYCLE_DB_NAME"
	EnvRedisURL = "MATCYCLE_REDIS_URL"

	EnvGCPProjectID      = "MATCYCLE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "MATCYCLE_PUBSUB_DOMAIN_TOPIC"

	EnvPickupMaxBatchSize = "MATCYCLE_PICKUP_MAX_BATCH_SIZE"
	EnvLedgerMaxAlloc     = "MATCYCLE_LEDGER_MAX_ALLOCATION"

	EnvLogFormat   = "MATCYCLE_LOG_FORMAT"
	EnvDBSlowQuery = "MATCYCLE_DB_SLOW_QUERY"
	EnvCronJobs    = "MATCYCLE_CRON_JOBS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
