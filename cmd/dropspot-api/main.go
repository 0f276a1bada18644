// README: Entry point; loads config, wires services, starts the HTTP server and shuts it down on signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"dropspot/internal/assistant"
	"dropspot/internal/auth"
	"dropspot/internal/clock"
	"dropspot/internal/config"
	httptransport "dropspot/internal/http"
	"dropspot/internal/infra"
	"dropspot/internal/logger"
	"dropspot/internal/maps"
	"dropspot/internal/metrics"
	"dropspot/internal/modules/admin"
	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/codegen"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/waitlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("dropspot-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if cfg.DB.MigrateOnStart {
		if err := infra.Migrate(dbPool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var geoIndex drop.Index
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		geoIndex = drop.NewGeoIndex(redisClient)
	} else {
		zlog.Info("redis disabled; nearby search scans the store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheus(reg)
	clk := clock.New()

	var geocoder drop.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey, cfg.Maps.Language)
		if err != nil {
			return err
		}
		geocoder = g
	}

	dropStore := drop.NewStore(dbPool)
	dropSvc := drop.NewService(dropStore, geoIndex, geocoder, clk, zlog)
	if err := dropSvc.RebuildIndex(ctx); err != nil {
		zlog.Warn("geo index rebuild failed; nearby search falls back to the store", zap.Error(err))
	}

	waitlistSvc := waitlist.NewService(waitlist.NewStore(dbPool), dropSvc, clk, zlog, rec)

	codes := codegen.NewGenerator(codegen.SeedConfig{
		RepoURL:          cfg.Seed.RepoURL,
		FirstCommitEpoch: cfg.Seed.FirstCommitEpoch,
		ProjectStart:     cfg.Seed.ProjectStart,
	})
	zlog.Info("claim code seed ready", zap.String("seed", codes.Seed()))
	claimSvc := claim.NewService(claim.NewStore(dbPool), dropSvc, waitlistSvc, codes, clk, zlog, rec)

	adminSvc := admin.NewService(admin.Deps{
		Drops:    dropSvc,
		Claims:   claimSvc,
		Waitlist: waitlistSvc,
		Stats:    admin.NewStore(dbPool),
		Scorer:   codes,
		Authz:    auth.NewAuthorizer(nil),
		Log:      zlog,
	})

	deps := httptransport.RouterDeps{
		Verifier: verifier,
		Drops:    dropSvc,
		Waitlist: waitlistSvc,
		Claims:   claimSvc,
		Admin:    adminSvc,
		Gatherer: reg,
		Metrics:  rec,
		Log:      zlog,
	}
	if cfg.AI.GeminiKey != "" {
		provider, err := assistant.NewGeminiProvider(ctx, cfg.AI.GeminiKey)
		if err != nil {
			return fmt.Errorf("gemini init: %w", err)
		}
		defer func() { _ = provider.Close() }()
		deps.Assistant = assistant.NewService(assistant.Deps{
			Provider:     provider,
			Quota:        assistant.NewQuotaStore(dbPool),
			Drops:        dropSvc,
			Waitlist:     waitlistSvc,
			Claims:       claimSvc,
			Stats:        adminSvc,
			MonthlyQuota: cfg.AI.MonthlyQuota,
			Clock:        clk,
			Log:          zlog,
			Metrics:      rec,
		})
	} else {
		zlog.Info("GEMINI_API_KEY not set; assistant routes disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: httptransport.NewRouter(deps)}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeFirebase:
		v, err := infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		return v, nil
	default:
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret, clock.New()), nil
	}
}
