// Command wine-ingest runs the extraction pipeline over every inventory file of a
// directory and writes an XLSX report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/wine-ingest/internal/async"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/export"
	"github.com/joseph-ayodele/wine-ingest/internal/ingest"
	"github.com/joseph-ayodele/wine-ingest/internal/pipeline"
	repo "github.com/joseph-ayodele/wine-ingest/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory with inventory files (required)")
		out        = flag.String("out", "", "output XLSX path (default: wine-inventory.xlsx next to --dir)")
		inmem      = flag.Bool("inmem", false, "keep the run store in an in-memory SQLite database")
		skipHidden = flag.Bool("skip-hidden", true, "skip dot files and directories")
		workers    = flag.Int("workers", 4, "files processed concurrently")
		timeout    = flag.Duration("file-timeout", 5*time.Minute, "processing budget per file")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "wine-inventory.xlsx")
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	// The run store is optional: DB_URL, or --inmem for a throwaway SQLite database.
	var runs repo.IngestRunRepository
	var index ingest.HashIndex
	if *inmem {
		cfg.Database.DSN = "sqlite::memory:"
	}
	if cfg.Database.DSN != "" {
		db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
		if err != nil {
			logger.Error("failed to open run store", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runs = repo.NewIngestRunRepository(db, logger)
		if err := runs.Migrate(ctx); err != nil {
			logger.Error("failed to migrate run store", "error", err)
			os.Exit(1)
		}
		index = runs
	}

	var (
		mu      sync.Mutex
		results []entity.PipelineResult
	)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(*timeout),
		async.WithBaseContext(ctx),
		async.WithResultHandler(func(ctx context.Context, job async.Job, res entity.PipelineResult) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			if runs != nil {
				if err := repo.SaveResult(context.WithoutCancel(ctx), runs, res, job.ContentHash); err != nil {
					logger.Warn("batch.run.record_failed", "file_name", job.FileName, "error", err)
				}
			}
		}),
	)

	start := time.Now()
	ingestor := ingest.NewFSIngestor(index, 0, logger)
	_, stats, walkErr := ingestor.IngestDirectory(ctx, *dir, *skipHidden, func(ctx context.Context, f ingest.File) error {
		return queue.Enqueue(ctx, async.Job{
			FileName:    f.Filename,
			Ext:         f.FileExt,
			Content:     f.Content,
			ContentHash: f.ContentHash,
		})
	})
	queue.Shutdown(context.Background())
	if walkErr != nil {
		logger.Error("directory ingest stopped", "dir", *dir, "error", walkErr)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FileName < results[j].FileName })
	saved, wines := 0, 0
	for _, r := range results {
		if r.Saved() {
			saved++
			wines += len(r.Records)
		}
	}

	xlsx, err := export.NewService(logger).ReportXLSX(context.WithoutCancel(ctx), results)
	if err != nil {
		logger.Error("failed to build report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write report", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch.done",
		"dir", *dir,
		"report", *out,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"processed", len(results),
		"saved", saved,
		"failed", len(results)-saved,
		"wines", wines,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if walkErr != nil {
		os.Exit(1)
	}
}
