package core

type Conf struct {
	Version               string `long:"version" description:"version of nonlocal engine" env:"NONLOCAL_VERSION"`
	DevMode               bool   `long:"dev-mode" description:"run in dev mode" env:"NONLOCAL_DEV_MODE"`
	DisableStdoutLog      bool   `long:"disable-stdout-log" description:"do not log in standard output" env:"NONLOCAL_DISABLE_STDOUT_LOG"`
	EnableFileLog         bool   `long:"enable-file-log" description:"enable log in file" env:"NONLOCAL_ENABLE_FILE_LOG"`
	LogDir                string `long:"log-dir" description:"rotating log file dir" default:"./shares/logs" env:"NONLOCAL_LOG_DIR"`
	LogLevel              string `long:"log-level" description:"log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" env:"NONLOCAL_LOG_LEVEL"`
	LogRotationMaxDays    int    `long:"log-rotation-max-days" description:"max days of log rotation" default:"7" env:"NONLOCAL_LOG_ROTATION_MAX_DAYS"`
	SettingPath           string `long:"setting-path" description:"setting file path" default:"./setting/setting.toml" env:"NONLOCAL_SETTING_PATH"`
	QueueMaxSize          int    `long:"queue-max-size" description:"experiment queue max size" default:"100" env:"NONLOCAL_QUEUE_MAX_SIZE"`
	OracleSeed            int64  `long:"oracle-seed" description:"seed of the simulator oracle (0 means time based)" default:"0" env:"NONLOCAL_ORACLE_SEED"`
	OracleLatencyMillis   int    `long:"oracle-latency-millis" description:"artificial latency of the simulator oracle per measurement" default:"0" env:"NONLOCAL_ORACLE_LATENCY_MILLIS"`
	OracleRetries         int    `long:"oracle-retries" description:"attempts per measurement when the oracle is unavailable" default:"1" env:"NONLOCAL_ORACLE_RETRIES"`
	OracleRetryIntervalMs int    `long:"oracle-retry-interval-millis" description:"initial backoff between oracle retries" default:"100" env:"NONLOCAL_ORACLE_RETRY_INTERVAL_MILLIS"`
	OtlpEndpoint          string `long:"otlp-endpoint" description:"OTLP/HTTP endpoint URL receiving run traces, tracing is off when empty" env:"NONLOCAL_OTLP_ENDPOINT"`
	SQLitePath            string `long:"sqlite-path" description:"sqlite result store path" default:"./shares/nonlocal.db" env:"NONLOCAL_SQLITE_PATH"`
}
