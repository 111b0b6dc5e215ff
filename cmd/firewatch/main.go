// Package main provides the Firewatch entry point.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/api"
	"github.com/adriatica/firewatch/internal/config"
	"github.com/adriatica/firewatch/internal/geo"
	"github.com/adriatica/firewatch/internal/hotspots"
	"github.com/adriatica/firewatch/internal/intake"
	"github.com/adriatica/firewatch/internal/logging"
	"github.com/adriatica/firewatch/internal/session"
	"github.com/adriatica/firewatch/internal/store"
	"github.com/adriatica/firewatch/internal/telegram"
)

func main() {
	// 1. Configuration and logger.
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.UsingDevSecret() {
		logger.Warn("running with the built-in dev secret key; set " + config.EnvSecretKey)
	}

	// 2. Open the store and run retention chores.
	db, err := store.Open(store.Options{
		Driver:     cfg.DBDriver,
		DSN:        cfg.DBDSN,
		DeleteMode: cfg.DeleteMode,
	})
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := db.VacuumIfNeeded(ctx, logger); err != nil {
		logger.Warn("vacuum check failed", zap.Error(err))
	}
	go db.PurgeLoop(ctx, cfg.PurgeInterval, logger)

	// 3. Session backend: Redis when configured, in-memory otherwise.
	var sessions session.Store
	if cfg.RedisAddr != "" {
		sessions, err = session.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		logger.Info("session store: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = session.NewMemory(cfg.SessionTTL)
		logger.Info("session store: in-memory")
	}

	// 4. Telegram client and intake pipeline.
	if cfg.TelegramToken == "" {
		logger.Fatal("telegram token is required; set " + config.EnvTelegramToken)
	}
	bot := telegram.NewClient(cfg.TelegramToken, logger.Named("telegram"))

	handler := &intake.Handler{
		Events:     db,
		Live:       db,
		Sessions:   sessions,
		Bot:        bot,
		Secret:     []byte(cfg.SecretKey),
		BaseURL:    cfg.BaseURL,
		MapURL:     cfg.MapURL,
		CenterLat:  cfg.CenterLat,
		CenterLon:  cfg.CenterLon,
		CenterZoom: cfg.CenterZoom,
		Log:        logger.Named("intake"),
	}

	// 5. Hotspot feed, only when a feed URL is configured.
	var fetcher *hotspots.Fetcher
	if cfg.HotspotsURL != "" {
		fetcher = hotspots.NewFetcher(cfg.HotspotsURL, logger.Named("hotspots"))
		go fetcher.Run(ctx, cfg.HotspotsInterval)
	}

	// 6. HTTP server.
	webhookToken := cfg.WebhookSecret
	if webhookToken == "" {
		webhookToken = randomToken()
		logger.Info("generated webhook path token; set " + config.EnvWebhookSecret + " to pin it")
	}

	projector := &geo.Projector{Events: db, Live: db}
	serverOpts := []api.ServerOption{
		api.WithFileSource(bot),
		api.WithWebhook(handler, webhookToken),
		api.WithExporter(db),
		api.WithCORS(cfg.AllowedOrigins),
		api.WithMapCenter(cfg.CenterLat, cfg.CenterLon, cfg.CenterZoom),
	}
	if fetcher != nil {
		serverOpts = append(serverOpts, api.WithHotspots(fetcher))
	}

	server := api.NewServer(cfg.ListenAddr, logger.Named("http"), projector, db, []byte(cfg.SecretKey), serverOpts...)

	// 7. Register the webhook with Telegram when publicly reachable.
	if config.IsPublicHTTP(cfg.BaseURL) {
		webhookURL := cfg.BaseURL + "/telegram/webhook/" + webhookToken
		if err := bot.SetWebhook(ctx, webhookURL); err != nil {
			logger.Error("failed to register telegram webhook", zap.Error(err))
		} else {
			logger.Info("telegram webhook registered")
		}
	} else {
		logger.Warn("base URL is not public; telegram webhook not registered",
			zap.String("base_url", cfg.BaseURL))
	}

	// 8. Run until signalled, then shut down gracefully.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting firewatch", zap.String("addr", server.Addr()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-done:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("stopped")
}

// randomToken mints an unguessable webhook path segment for deployments
// that did not pin one.
func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
