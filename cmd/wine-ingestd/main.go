// Command wine-ingestd serves the pipeline over gRPC.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/wine-ingest/internal/async"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/export"
	"github.com/joseph-ayodele/wine-ingest/internal/ingest"
	"github.com/joseph-ayodele/wine-ingest/internal/pipeline"
	repo "github.com/joseph-ayodele/wine-ingest/internal/repository"
	svc "github.com/joseph-ayodele/wine-ingest/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.RequireDatabase(); err != nil {
		logger.Error("missing DB_URL environment variable")
		os.Exit(1)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Ping DB to ensure connectivity
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	runs := repo.NewIngestRunRepository(db, logger)
	if err := runs.Migrate(ctx); err != nil {
		logger.Error("failed to migrate run store", "error", err)
		os.Exit(1)
	}

	proc, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Pipeline.ClampedConcurrency()),
		async.WithQueueSize(512),
		async.WithProcessTimeout(5*time.Minute),
		async.WithResultHandler(func(ctx context.Context, job async.Job, res entity.PipelineResult) {
			if err := repo.SaveResult(context.WithoutCancel(ctx), runs, res, job.ContentHash); err != nil {
				logger.Warn("queue.run.record_failed", "job_id", job.ID, "error", err)
			}
		}),
	)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()

	ingestor := ingest.NewFSIngestor(runs, 0, logger)
	ingestService := svc.NewIngestService(proc, ingestor, queue, runs, export.NewService(logger), logger)
	svc.RegisterIngestServer(grpcServer, ingestService)

	// Register gRPC health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	// Set the service as serving (empty string means overall server health)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	logger.Info("wine-ingestd listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	queue.Shutdown(context.Background())
}
