package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/nfe-monitor/internal/common"
	"github.com/joseph-ayodele/nfe-monitor/internal/dedup"
	"github.com/joseph-ayodele/nfe-monitor/internal/dispatch"
	"github.com/joseph-ayodele/nfe-monitor/internal/ledger"
	"github.com/joseph-ayodele/nfe-monitor/internal/monitor"
	"github.com/joseph-ayodele/nfe-monitor/internal/ocr"
	"github.com/joseph-ayodele/nfe-monitor/internal/pipeline"
	"github.com/joseph-ayodele/nfe-monitor/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := common.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		return 1
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "code", common.ErrorCode(err), "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, cfg.Source, logger)
	if err != nil {
		logger.Error("failed to open source", "kind", cfg.Source.Kind, "error", err)
		return 1
	}

	store, err := ledger.Open(ctx, cfg.Ledger.DSN, logger)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close ledger", "error", err)
		}
	}()

	dispatcher := dispatch.New(cfg.Dispatch, logger)
	defer func() {
		if err := dispatch.Close(dispatcher); err != nil {
			logger.Warn("failed to close dispatcher", "error", err)
		}
	}()

	extractor := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger)
	registry := dedup.NewMemoryRegistry()
	proc := pipeline.NewProcessor(logger, extractor, registry, dispatcher, store)

	opts := []monitor.Option{
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithDocumentTimeout(cfg.Monitor.DocumentTimeout),
		monitor.WithCycleHook(func(monitor.CycleStats) {
			logger.Debug("dedup registry", "hashes", registry.Len())
		}),
	}
	if w, ok := src.(source.Watcher); ok {
		events, err := w.Watch(ctx)
		if err != nil {
			logger.Warn("inbox watch unavailable; polling only", "error", err)
		} else {
			opts = append(opts, monitor.WithWake(events))
		}
	}
	m := monitor.New(src, proc, logger, opts...)

	healthServer, stopHealth := startHealth(cfg.Server.HealthAddr, logger)
	defer stopHealth()

	logger.Info("nfe-monitor starting", "source", cfg.Source.Kind, "interval", cfg.Monitor.Interval.String())
	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	}
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("monitor exited", "error", err)
	}
	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return 0
}

func openSource(ctx context.Context, cfg common.SourceConfig, logger *slog.Logger) (source.Source, error) {
	if cfg.Kind == common.SourceLocal {
		s, err := source.NewLocalSource(cfg.LocalInboxDir, cfg.LocalProcessedDir, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := source.NewDriveSource(ctx, source.DriveConfig{
		CredentialsFile: cfg.DriveCredentialsFile,
		FolderID:        cfg.DriveFolderID,
		ProcessedID:     cfg.DriveProcessedID,
	}, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// startHealth serves the gRPC health service on addr; an empty addr disables it.
func startHealth(addr string, logger *slog.Logger) (*health.Server, func()) {
	if addr == "" {
		return nil, func() {}
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on health address", "addr", addr, "error", err)
		return nil, func() {}
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	logger.Info("health server listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
		}
	}()
	return healthServer, func() {
		done := make(chan struct{})
		go func() { grpcServer.GracefulStop(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			grpcServer.Stop()
		}
	}
}
