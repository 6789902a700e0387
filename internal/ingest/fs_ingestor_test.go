package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	known map[[32]byte]bool
	err   error
}

func (f fakeIndex) HasContentHash(_ context.Context, hash []byte) (bool, error) {
	var k [32]byte
	copy(k[:], hash)
	return f.known[k], f.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cantina.csv", "Nome,Annata\nBarolo,2016\n")
	writeFile(t, root, "copia/cantina-copy.csv", "Nome,Annata\nBarolo,2016\n")
	writeFile(t, root, "scan.JPG", "jpeg")
	writeFile(t, root, "notes.txt", "ignored")
	writeFile(t, root, ".hidden/secret.csv", "Nome\nX\n")
	writeFile(t, root, "empty.xlsx", "")

	ing := NewFSIngestor(nil, 0, nil)
	var got []string
	results, stats, err := ing.IngestDirectory(context.Background(), root, true, func(_ context.Context, f File) error {
		got = append(got, f.Filename)
		assert.Len(t, f.ContentHash, sha256.Size)
		assert.Equal(t, len(f.Content), f.FileSize)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(got)
	assert.Len(t, got, 3, "one of the two identical csv files is skipped")
	assert.Contains(t, got, "scan.JPG")
	assert.Contains(t, got, "empty.xlsx")
	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(4), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Len(t, results, 4)
}

func TestIngestDirectory_IndexAndHandlerErrors(t *testing.T) {
	root := t.TempDir()
	content := "Nome\nBarolo\n"
	writeFile(t, root, "a.csv", content)

	known := fakeIndex{known: map[[32]byte]bool{sha256.Sum256([]byte(content)): true}}
	calls := 0
	_, stats, err := NewFSIngestor(known, 0, nil).IngestDirectory(context.Background(), root, false, func(context.Context, File) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "content known to the index is skipped")
	assert.Equal(t, uint32(1), stats.Deduplicated)

	_, _, err = NewFSIngestor(nil, 0, nil).IngestDirectory(context.Background(), root, false, func(context.Context, File) error {
		return errors.New("queue closed")
	})
	assert.ErrorContains(t, err, "queue closed")

	_, stats, err = NewFSIngestor(fakeIndex{err: errors.New("db down")}, 0, nil).IngestDirectory(context.Background(), root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Failed)
}

func TestIngestPath(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.csv", "0123456789")

	_, _, err := NewFSIngestor(nil, 5, nil).IngestPath(context.Background(), big)
	assert.ErrorContains(t, err, "limit")

	_, res, err := NewFSIngestor(nil, 0, nil).IngestPath(context.Background(), writeFile(t, dir, "a.zip", "PK"))
	assert.Error(t, err)
	assert.Equal(t, "zip", res.FileExt)

	_, _, err = NewFSIngestor(nil, 0, nil).IngestPath(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.csv"))
	assert.False(t, IsHidden("."))
}
