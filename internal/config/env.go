package config

import "strconv"

const (
	EnvRemoteToken    = "REMOTE_TABLE_TOKEN"
	EnvRemoteBaseID   = "REMOTE_TABLE_BASE_ID"
	EnvRemoteTable    = "REMOTE_TABLE_NAME"
	EnvRemoteEndpoint = "REMOTE_TABLE_ENDPOINT"
	EnvRemoteAttempts = "REMOTE_TABLE_MAX_ATTEMPTS"

	EnvS3Bucket          = "S3_BUCKET"
	EnvS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"
	EnvS3Endpoint        = "S3_ENDPOINT"
	EnvS3Prefix          = "S3_PREFIX"

	EnvSQLitePath = "SQLITE_PATH"

	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
	EnvServerPort = "SERVER_PORT"
)

// ApplyEnv overrides config with every non-empty variable returned by getenv.
func ApplyEnv(config *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	str(EnvRemoteToken, &config.Storage.Remote.Token)
	str(EnvRemoteBaseID, &config.Storage.Remote.BaseID)
	str(EnvRemoteTable, &config.Storage.Remote.Table)
	str(EnvRemoteEndpoint, &config.Storage.Remote.Endpoint)

	str(EnvS3Bucket, &config.Storage.S3.Bucket)
	str(EnvS3AccessKeyID, &config.Storage.S3.AccessKeyID)
	str(EnvS3SecretAccessKey, &config.Storage.S3.SecretAccessKey)
	str(EnvS3Endpoint, &config.Storage.S3.Endpoint)
	str(EnvS3Prefix, &config.Storage.S3.Prefix)

	str(EnvSQLitePath, &config.Storage.SQLite.Path)

	str(EnvLogLevel, &config.Logging.Level)
	str(EnvLogFormat, &config.Logging.Format)
	str(EnvServerPort, &config.Server.Port)

	if v := getenv(EnvRemoteAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Storage.Remote.MaxAttempts = n
		} else {
			configLogger.Warn().Str("value", v).Msg("Ignoring invalid " + EnvRemoteAttempts)
		}
	}
}
