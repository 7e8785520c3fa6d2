package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultAppName        = "predict-server"
	DefaultPredictorCmd   = "igel"
	DefaultPredictorArgs  = "predict -dp {data_path} -mp {model_path} -df {description_file} -pf {output_path}"
	defaultPort           = 8000
	defaultBodyLimitBytes = 1 << 20
)

// ConfigHolder interface for app config
type ConfigHolder interface {
	GetStaticConfig() interface{}
}

// InitConfig loads Configs from the environment into the holder's static config.
func InitConfig(configHolder ConfigHolder) {
	viper.AutomaticEnv()

	staticConfig := configHolder.GetStaticConfig()
	cfg, ok := staticConfig.(*Configs)
	if !ok {
		log.Fatal().Msg("Failed to cast static config to *Configs")
	}

	bindEnvVars()
	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to unmarshal config from environment")
	}
	normalize(cfg)
	log.Info().Msg("Configuration loaded from environment variables")
}

// bindEnvVars maps env names to config keys, AutomaticEnv alone does not
// populate Unmarshal for keys viper has never seen.
func bindEnvVars() {
	bindings := map[string]string{
		"app_name":                    "APP_NAME",
		"app_env":                     "APP_ENV",
		"app_log_level":               "APP_LOG_LEVEL",
		"app_metric_sampling_rate":    "APP_METRIC_SAMPLING_RATE",
		"app_host":                    "APP_HOST",
		"app_port":                    "APP_PORT",
		"app_shutdown_timeout_sec":    "APP_SHUTDOWN_TIMEOUT_SEC",
		"telegraf_address":            "TELEGRAF_ADDRESS",
		"model_results_path":          "MODEL_RESULTS_PATH",
		"scratch_dir":                 "SCRATCH_DIR",
		"scratch_sweep_age_sec":       "SCRATCH_SWEEP_AGE_SEC",
		"predictor_command":           "PREDICTOR_COMMAND",
		"predictor_args":              "PREDICTOR_ARGS",
		"predictor_timeout_ms":        "PREDICTOR_TIMEOUT_MS",
		"prediction_cache_size_mb":    "PREDICTION_CACHE_SIZE_MB",
		"prediction_cache_ttl_sec":    "PREDICTION_CACHE_TTL_SEC",
		"max_request_body_bytes":      "MAX_REQUEST_BODY_BYTES",
		"cors_allowed_origins":        "CORS_ALLOWED_ORIGINS",
		"otel_exporter_otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatal().Err(err).Msgf("Failed to bind env %s", env)
		}
	}
}

func setDefaults() {
	viper.SetDefault("app_log_level", "INFO")
	viper.SetDefault("app_metric_sampling_rate", 1.0)
	viper.SetDefault("app_port", defaultPort)
	viper.SetDefault("app_shutdown_timeout_sec", 10)
	viper.SetDefault("telegraf_address", "localhost:8125")
	viper.SetDefault("scratch_dir", filepath.Join(os.TempDir(), DefaultAppName))
	viper.SetDefault("scratch_sweep_age_sec", 3600)
	viper.SetDefault("predictor_command", DefaultPredictorCmd)
	viper.SetDefault("predictor_args", DefaultPredictorArgs)
	viper.SetDefault("predictor_timeout_ms", 30000)
	viper.SetDefault("prediction_cache_ttl_sec", 300)
	viper.SetDefault("max_request_body_bytes", defaultBodyLimitBytes)
}

func normalize(cfg *Configs) {
	if len(cfg.AppName) == 0 {
		log.Warn().Msgf("App name not set, defaulting to '%s'", DefaultAppName)
		cfg.AppName = DefaultAppName
		viper.Set("APP_NAME", cfg.AppName)
	}
	cfg.ModelResultsPath = strings.TrimSpace(cfg.ModelResultsPath)
	if cfg.ModelResultsPath == "" {
		log.Warn().Msg("MODEL_RESULTS_PATH is not set, /predict will report the model as not configured")
	}
}

// CorsOrigins splits CorsAllowedOrigins, an empty result disables CORS.
func (c Configs) CorsOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CorsAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// PredictorArgList splits the argument template on whitespace.
func (c Configs) PredictorArgList() []string {
	return strings.Fields(c.PredictorArgs)
}
