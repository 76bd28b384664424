// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caliothemes/iGPTsave-sub002/internal/config"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
	provider "github.com/caliothemes/iGPTsave-sub002/internal/infra/adapters/provider"
	storage "github.com/caliothemes/iGPTsave-sub002/internal/infra/adapters/storage"
	pg "github.com/caliothemes/iGPTsave-sub002/internal/infra/db/postgres"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/logging"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/metrics"
	red "github.com/caliothemes/iGPTsave-sub002/internal/infra/redis"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/web"
	"github.com/caliothemes/iGPTsave-sub002/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (credit bypass, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled: credit checks are bypassed")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories / ledger ----
	accountRepo := pg.NewPostgresCreditAccountRepo(pool)
	txManager := pg.NewTxManager(pool)
	ledger := usecase.NewCreditLedger(accountRepo, locker, logger)

	// ---- Image host ----
	host, err := storage.NewHTTPImageHost(cfg.ImageHost.UploadURL, cfg.ImageHost.APIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("image host")
	}

	// ---- Providers ----
	runway, err := provider.NewRunwayAdapter(cfg.Providers.Runway.APIKey, cfg.Providers.Runway.BaseURL, cfg.Providers.Runway.Model, host, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("runway adapter")
	}
	replicate, err := provider.NewReplicateAdapter(cfg.Providers.Replicate.APIKey, cfg.Providers.Replicate.BaseURL, cfg.Providers.Replicate.Version, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("replicate adapter")
	}
	gemini, err := provider.NewGeminiAdapter(ctx, cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.BaseURL, cfg.Providers.Gemini.Model, host)
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini adapter")
	}

	// Generative background removal prefers OpenAI; Gemini stands in when
	// no OpenAI key is configured.
	var aiRemover adapter.GenerationProvider
	if cfg.Providers.OpenAI.APIKey != "" {
		aiRemover, err = provider.NewOpenAIAdapter(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model, host)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
	} else {
		logger.Warn().Msg("providers.openai.api_key not set; generative background removal uses gemini")
		aiRemover = gemini
	}

	limit := cfg.Providers.ConcurrentLimit
	video := provider.NewLimitedProvider(runway, limit)
	editor := provider.NewLimitedProvider(gemini, limit)
	remover := provider.NewLimitedProvider(replicate, limit)
	aiRemover = provider.NewLimitedProvider(aiRemover, limit)

	// ---- Use cases ----
	genUC := usecase.NewGenerationUseCase(ledger, video, editor, remover, aiRemover, rateLimiter, cfg, cfg.Runtime.Dev, logger)
	billUC := usecase.NewBillingUseCase(accountRepo, txManager, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.SecureCookie, cfg.Auth.CookieDomain, cfg.Auth.SessionTTL)
	srv := web.NewServer(genUC, billUC, ledger, auth, cfg.Polling.Budget(), cfg.Runtime.Dev, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // exceeds the polling budget
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
