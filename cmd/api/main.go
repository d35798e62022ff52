package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/crmassets/internal/config"
	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/logger"
	"github.com/abduss/crmassets/internal/record"
	"github.com/abduss/crmassets/internal/server"
	"github.com/abduss/crmassets/internal/storage"
	"github.com/abduss/crmassets/internal/upload"
	"github.com/abduss/crmassets/internal/uploader"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatal("connect minio", zap.Error(err))
	}
	backend := storage.NewMinIOBackend(minioClient, cfg.MinIO.Region, cfg.MinIO.PublicBaseURL)

	pipeline := uploader.Pipeline{
		Storage: backend,
		Records: record.NewRepository(dbPool),
		Containers: upload.Containers{
			upload.KindUser:    cfg.MinIO.Buckets.User,
			upload.KindContact: cfg.MinIO.Buckets.Contact,
			upload.KindCompany: cfg.MinIO.Buckets.Company,
		},
		MaxBytes:   cfg.Upload.MaxBytes,
		WriteCheck: cfg.MinIO.ProbeWrite,
		Logger:     log,
	}
	if cfg.Upload.VerifyPublicURL {
		pipeline.Checker = upload.NewHTTPChecker(cfg.Upload.VerifyTimeout)
	}

	processDiag := diagnostics.New(cfg.Diagnostics.Capacity, diagnostics.WithLogger(log))
	sessions, err := uploader.NewRegistry(cfg.Server.SessionCacheSize, func(opts uploader.Options) *uploader.Machine {
		diag := processDiag
		if cfg.Diagnostics.Scope == config.DiagnosticsScopeSession {
			diag = diagnostics.New(cfg.Diagnostics.Capacity, diagnostics.WithLogger(log))
		}
		return pipeline.NewMachine(diag, opts)
	})
	if err != nil {
		log.Fatal("create session registry", zap.Error(err))
	}

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		DB:          dbPool,
		Storage:     backend,
		Sessions:    sessions,
		Diagnostics: processDiag,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("asset upload API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
