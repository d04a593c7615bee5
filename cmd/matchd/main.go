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
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/api"
	"github.com/benty101/Meddycare-sub000/internal/db"
	"github.com/benty101/Meddycare-sub000/internal/directory"
	"github.com/benty101/Meddycare-sub000/internal/logger"
	"github.com/benty101/Meddycare-sub000/internal/matching"
	"github.com/benty101/Meddycare-sub000/internal/outbox"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	zlog.Info("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	carerDirectory := directory.NewGormDirectory(gormDB)
	generator := matching.NewGenerator(cfg.Matching, appStore, carerDirectory, zlog)

	var webpushOptions *webpush.Options
	sinks := []outbox.Sink{&outbox.LogSink{Log: zlog}}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		sinks = append(sinks, outbox.NewWebPushSink(appStore, webpushOptions, zlog))
	} else {
		zlog.Warn("VAPID keys not configured; family push notifications disabled")
	}

	dispatcher := outbox.NewDispatcher(cfg.Outbox, appStore, sinks, zlog)
	go dispatcher.Run(ctx)

	sweeper := matching.NewSweeper(cfg.Matching, appStore, zlog)
	go sweeper.Run(ctx)

	router := api.NewRouter(&cfg.Server, appStore, generator, webpushOptions, zlog)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	zlog.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("HTTP server shutdown failed", zap.Error(err))
	}

	zlog.Info("server gracefully stopped")
}
