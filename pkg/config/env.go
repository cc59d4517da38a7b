package config

// EnvPrefix is the envconfig prefix shared by every POS setting.
const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	RedeemPolicyLegacy = "legacy"
	RedeemPolicyStrict = "strict"
)

const (
	EnvAppEnv   = "POS_APP_ENV"
	EnvPort     = "POS_APP_PORT"
	EnvLogLevel = "POS_LOG_LEVEL"
	EnvLogFmt   = "POS_LOG_FORMAT"

	EnvDBDSN      = "POS_DB_DSN"
	EnvDBHost     = "POS_DB_HOST"
	EnvDBUser     = "POS_DB_USER"
	EnvDBPassword = "POS_DB_PASSWORD"
	EnvDBName     = "POS_DB_NAME"

	EnvRedisURL = "POS_REDIS_URL"

	EnvLoyaltyPointsPerUnit = "POS_LOYALTY_POINTS_PER_UNIT"
	EnvLoyaltyRedeemPolicy  = "POS_LOYALTY_REDEEM_POLICY"

	EnvGCPProjectID           = "POS_GCP_PROJECT_ID"
	EnvPubSubTransactionTopic = "POS_PUBSUB_TRANSACTIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
