package config

const (
	EnvPrefix = "EMOTRACE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "EMOTRACE_DB_DSN"
	EnvDBHost = "EMOTRACE_DB_HOST"
	EnvDBUser = "EMOTRACE_DB_USER"
	EnvDBName = "EMOTRACE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
