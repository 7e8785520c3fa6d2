package main

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/internal/artifact"
	"github.com/Meesho/BharatMLStack/predict-server/internal/config"
	"github.com/Meesho/BharatMLStack/predict-server/internal/controller"
	"github.com/Meesho/BharatMLStack/predict-server/internal/handler/predict"
	"github.com/Meesho/BharatMLStack/predict-server/internal/predictor"
	"github.com/Meesho/BharatMLStack/predict-server/internal/router"
	"github.com/Meesho/BharatMLStack/predict-server/internal/scratch"
	"github.com/Meesho/BharatMLStack/predict-server/internal/server"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/httpframework"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/inmemorycache"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/logger"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/tracing"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"
)

const predictionCacheName = "prediction_cache"

type AppConfig struct {
	Configs config.Configs
}

func (cfg *AppConfig) GetStaticConfig() interface{} {
	return &cfg.Configs
}

var (
	appConfig AppConfig
)

func main() {
	config.InitConfig(&appConfig)
	cfg := appConfig.Configs

	logger.Init(cfg)
	metric.Init(cfg)
	tracing.Init(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.ShutdownTracer(ctx)
	}()

	scratchManager, err := scratch.NewManager(cfg.ScratchDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare scratch directory")
	}
	if removed, err := scratchManager.Sweep(time.Duration(cfg.ScratchSweepAgeSec) * time.Second); err != nil {
		log.Warn().Err(err).Msg("scratch sweep failed")
	} else if removed > 0 {
		log.Info().Int("removed", removed).Msg("removed stale scratch directories")
	}

	resolver := artifact.NewResolver(cfg.ModelResultsPath)
	log.Info().Bool("model_configured", resolver.Configured()).Str("scratch_dir", scratchManager.Root()).Msg("predict pipeline ready")
	handler := predict.NewHandler(scratchManager, resolver, buildPredictor(cfg))

	httpframework.Init(buildMiddlewares(cfg)...)
	router.Init(controller.NewController(handler, cfg.MaxRequestBodyBytes))

	predictorTimeout := time.Duration(cfg.PredictorTimeoutMs) * time.Millisecond
	srv := server.NewServer(server.Options{
		Addr:            net.JoinHostPort(cfg.AppHost, strconv.Itoa(cfg.AppPort)),
		Handler:         httpframework.Instance(),
		WriteTimeout:    predictorTimeout + 15*time.Second,
		ShutdownTimeout: time.Duration(cfg.AppShutdownTimeoutSec) * time.Second,
	})
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("api-server exited with error")
	}
	log.Info().Int64("scratch_in_flight", scratchManager.InFlight()).Msg("api-server stopped")
}

func buildPredictor(cfg config.Configs) predictor.Predictor {
	var p predictor.Predictor = predictor.NewCommand(predictor.CommandConfig{
		Command: cfg.PredictorCommand,
		Args:    cfg.PredictorArgList(),
		Timeout: time.Duration(cfg.PredictorTimeoutMs) * time.Millisecond,
	})
	if cfg.PredictionCacheSizeMb > 0 {
		inmemorycache.Init(predictionCacheName, cfg.PredictionCacheSizeMb)
		p = predictor.NewCached(p, inmemorycache.Instance(), time.Duration(cfg.PredictionCacheTTLSec)*time.Second)
		log.Info().Int("size_mb", cfg.PredictionCacheSizeMb).Msg("prediction cache enabled")
	}
	return p
}

func buildMiddlewares(cfg config.Configs) []gin.HandlerFunc {
	origins := cfg.CorsOrigins()
	if len(origins) == 0 {
		return nil
	}
	corsConfig := cors.DefaultConfig()
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Content-Encoding", "X-Request-ID"}
	return []gin.HandlerFunc{cors.New(corsConfig)}
}
