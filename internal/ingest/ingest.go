// Package ingest discovers inventory files on disk for the batch runner.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string `json:"source_path"`
	HashHex      string `json:"content_hash_hex"`
	FileExt      string `json:"file_ext"`
	Size         int    `json:"size"`
	Deduplicated bool   `json:"deduplicated"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// File is a discovered file with its content, ready for the pipeline.
type File struct {
	entity.SourceFile
	Content []byte
}

// Handler receives every non-duplicate file found by IngestDirectory.
type Handler func(ctx context.Context, f File) error

// HashIndex reports content already processed in an earlier run, typically the
// run store.
type HashIndex interface {
	HasContentHash(ctx context.Context, hash []byte) (bool, error)
}

// Ingestor is the behavior the batch runner depends on.
type Ingestor interface {
	// IngestPath reads and hashes a single file.
	IngestPath(ctx context.Context, path string) (File, IngestionResult, error)
	// IngestDirectory walks root and hands every new file to fn.
	IngestDirectory(ctx context.Context, root string, skipHidden bool, fn Handler) ([]IngestionResult, DirStats, error)
}
