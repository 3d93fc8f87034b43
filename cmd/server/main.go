// Command server runs the Fall Fest referral API.
//
// @title                      Fall Fest Referrals API
// @version                    1.0
// @description                Referral codes, attribution and the live referrer leaderboard for Fall Fest.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/fallfest-referrals/internal/config"
	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/feed"
	httpapi "github.com/tbourn/fallfest-referrals/internal/http"
	"github.com/tbourn/fallfest-referrals/internal/jobs"
	"github.com/tbourn/fallfest-referrals/internal/observability"
	"github.com/tbourn/fallfest-referrals/internal/repo"
	"github.com/tbourn/fallfest-referrals/internal/sysutil"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	sysutil.SetLogLevel(cfg.LogLevel)
	sysutil.ConfigureLogger(cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("could not read .env")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open store")
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentDB(db); err != nil {
			log.Fatal().Err(err).Msg("instrument store")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	changes := feed.NewBroker[domain.ChangeEvent](64)
	svc := httpapi.NewServices(db, cfg, changes)

	events, unsubscribe := changes.Subscribe()
	runner, err := jobs.Start(ctx, svc.Cache, svc.Pending, jobs.Options{
		RefreshEvery: cfg.Referral.LeaderboardRefresh,
		PurgeEvery:   time.Hour,
		Changes:      events,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("start jobs")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("driver", cfg.DBDriver).
			Str("base_path", cfg.APIBasePath).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// streams never finish on their own
	svc.Snapshots.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := runner.Stop(); err != nil {
		log.Warn().Err(err).Msg("jobs shutdown")
	}
	unsubscribe()
	changes.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
}
