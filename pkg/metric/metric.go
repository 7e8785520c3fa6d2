package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/Meesho/BharatMLStack/predict-server/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	ApiRequestCount          = "api_request_count"
	ApiRequestLatency        = "api_request_latency"
	PredictFailureCount      = "predict_failure_count"
	PredictorLatency         = "predictor_latency"
	ScratchReleaseErrorCount = "scratch_release_error_count"
	ScratchInFlight          = "scratch_in_flight"
	PredictionCacheHitCount  = "prediction_cache_hit_count"
	PredictionCacheMissCount = "prediction_cache_miss_count"
	CacheHitRate             = "in_memory_cache_hit_rate"
	CacheItemCount           = "in_memory_cache_item_count"
	CacheEvacuateCount       = "in_memory_cache_evacuate_count"
	CacheExpiryCount         = "in_memory_cache_expiry_count"

	defaultTelegrafAddress = "localhost:8125"
	defaultSamplingRate    = 1.0
)

var (
	// it is safe to use one client from multiple goroutines simultaneously
	statsDClient statsd.ClientInterface = getDefaultClient()
	samplingRate                        = defaultSamplingRate
	appName                             = ""
	initialized                         = false
	once         sync.Once
)

// Init initializes the metrics client
func Init(cfg config.Configs) {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		samplingRate = cfg.AppMetricSamplingRate
		if samplingRate <= 0 {
			samplingRate = defaultSamplingRate
		}
		appName = cfg.AppName
		address := cfg.TelegrafAddress
		if address == "" {
			address = defaultTelegrafAddress
		}
		globalTags := getGlobalTags(cfg)

		client, err := statsd.New(address, statsd.WithTags(globalTags))
		if err != nil {
			log.Panic().Err(err).Msg("StatsD client initialization failed")
		}
		statsDClient = client
		log.Info().Msgf("Metrics client initialized with telegraf address - %s, global tags - %v, and "+
			"sampling rate - %f", address, globalTags, samplingRate)
		initialized = true
	})
}

func getDefaultClient() statsd.ClientInterface {
	client, err := statsd.New(defaultTelegrafAddress)
	if err != nil {
		return &statsd.NoOpClient{}
	}
	return client
}

func getGlobalTags(cfg config.Configs) []string {
	if len(cfg.AppEnv) == 0 {
		log.Warn().Msg("APP_ENV is not set")
	}
	return []string{
		TagAsString(TagEnv, cfg.AppEnv),
		TagAsString(TagService, cfg.AppName),
	}
}

// Timing sends timing information
func Timing(name string, value time.Duration, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// count increases metric counter by value
func count(name string, value int64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr Increases metric counter by 1
func Incr(name string, tags []string) {
	count(name, 1, tags)
}

func Gauge(name string, value float64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Gauge(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}

// SetClientForTesting swaps the statsd client and returns a restore func.
func SetClientForTesting(client statsd.ClientInterface) func() {
	prev := statsDClient
	statsDClient = client
	return func() { statsDClient = prev }
}
