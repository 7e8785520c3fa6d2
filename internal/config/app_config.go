package config

type Configs struct {
	// App configuration
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	AppHost               string  `mapstructure:"app_host"`
	AppPort               int     `mapstructure:"app_port"`
	AppShutdownTimeoutSec int     `mapstructure:"app_shutdown_timeout_sec"`

	TelegrafAddress string `mapstructure:"telegraf_address"`

	// Model artifacts produced by the training pipeline
	ModelResultsPath string `mapstructure:"model_results_path"`

	// Per-request scratch storage
	ScratchDir         string `mapstructure:"scratch_dir"`
	ScratchSweepAgeSec int    `mapstructure:"scratch_sweep_age_sec"`

	// External predictor
	PredictorCommand   string `mapstructure:"predictor_command"`
	PredictorArgs      string `mapstructure:"predictor_args"`
	PredictorTimeoutMs int    `mapstructure:"predictor_timeout_ms"`

	PredictionCacheSizeMb int `mapstructure:"prediction_cache_size_mb"`
	PredictionCacheTTLSec int `mapstructure:"prediction_cache_ttl_sec"`

	MaxRequestBodyBytes int64  `mapstructure:"max_request_body_bytes"`
	CorsAllowedOrigins  string `mapstructure:"cors_allowed_origins"`

	OtelExporterOtlpEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}
