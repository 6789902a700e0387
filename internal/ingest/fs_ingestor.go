package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// FSIngestor reads from the local filesystem. Identical content is only handed
// out once per ingestor, and never when the index already knows it.
type FSIngestor struct {
	index    HashIndex
	maxBytes int64
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFSIngestor builds an ingestor; index may be nil and maxBytes <= 0 means no limit.
func NewFSIngestor(index HashIndex, maxBytes int64, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{index: index, maxBytes: maxBytes, logger: logger, seen: map[string]struct{}{}}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (File, IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	out.FileExt = ext
	if ext == "" || !AllowedExt(ext) {
		return File{}, out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return File{}, out, fmt.Errorf("stat: %w", err)
	}
	if i.maxBytes > 0 && info.Size() > i.maxBytes {
		return File{}, out, fmt.Errorf("file is %d bytes, limit %d", info.Size(), i.maxBytes)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return File{}, out, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(content)
	out.HashHex = hex.EncodeToString(sum[:])
	out.Size = len(content)

	dup, err := i.seenBefore(ctx, sum[:], out.HashHex)
	if err != nil {
		return File{}, out, err
	}
	out.Deduplicated = dup

	f := File{
		SourceFile: entity.SourceFile{
			SourcePath:  abs,
			ContentHash: sum[:],
			Filename:    filepath.Base(abs),
			FileExt:     ext,
			FileSize:    len(content),
			ModifiedAt:  info.ModTime().UTC(),
		},
		Content: content,
	}
	return f, out, nil
}

func (i *FSIngestor) seenBefore(ctx context.Context, sum []byte, hexHash string) (bool, error) {
	i.mu.Lock()
	_, ok := i.seen[hexHash]
	i.seen[hexHash] = struct{}{}
	i.mu.Unlock()
	if ok {
		return true, nil
	}
	if i.index == nil {
		return false, nil
	}
	known, err := i.index.HasContentHash(ctx, sum)
	if err != nil {
		return false, fmt.Errorf("hash lookup: %w", err)
	}
	return known, nil
}

// IngestDirectory walks root, skips hidden entries if requested and calls fn for
// every supported file whose content was not seen yet. Returns per-file results +
// aggregate stats; a handler error stops the walk.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool, fn Handler) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		f, r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.logger.Warn("ingest.file.failed", "path", path, "error", err)
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
			i.logger.Info("ingest.file.duplicate", "path", r.SourcePath, "sha256", r.HashHex)
			return nil
		}
		if fn != nil {
			if err := fn(ctx, f); err != nil {
				return fmt.Errorf("handle %s: %w", path, err)
			}
		}
		return nil
	})

	i.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
