package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/logger"
	"github.com/aimlclub/hackathon-portal/internal/server"
	"github.com/aimlclub/hackathon-portal/internal/site"
	"github.com/aimlclub/hackathon-portal/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	err = run(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("Portal stopped", zap.Error(err))
	}
	_ = zapLogger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lister store.CertificateLister
	if cfg.CertificatesSource == config.SourceDB {
		dbManager, err := database.Connect(ctx, cfg.DatabaseURL, zapLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		defer dbManager.Close()
		lister = dbManager
	}

	source, err := store.NewSource(cfg, lister)
	if err != nil {
		return err
	}
	recordStore := store.New(source, zapLogger)

	content, err := site.Load(cfg.SiteContentPath)
	if err != nil {
		return err
	}
	renderer, err := site.NewRenderer()
	if err != nil {
		return err
	}

	metrics := server.NewMetrics(recordStore)
	service := server.NewCertificateService(recordStore, renderer, content, metrics, zapLogger)

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           server.SetupRoutes(service, zapLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recordStore.Run(gctx, cfg.ReloadInterval)
	})

	g.Go(func() error {
		zapLogger.Info("Server starting", zap.String("addr", srv.Addr), zap.String("source", recordStore.Source()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
