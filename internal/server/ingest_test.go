package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/async"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/export"
	"github.com/joseph-ayodele/wine-ingest/internal/ingest"
	"github.com/joseph-ayodele/wine-ingest/internal/repository"
)

// fakeProcessor saves one record per line naming a wine and fails everything else.
type fakeProcessor struct{}

func (fakeProcessor) ProcessFile(_ context.Context, content []byte, fileName, _, cid string) entity.PipelineResult {
	res := entity.PipelineResult{
		CorrelationID:   cid,
		FileName:        fileName,
		Ext:             constants.NormalizeExt(filepath.Ext(fileName)),
		StagesAttempted: []string{constants.StageTabular},
	}
	for _, line := range strings.Split(string(content), "\n") {
		if name := strings.TrimSpace(line); name != "" && name != "nothing" {
			res.Records = append(res.Records, entity.WineRecord{Name: name, Qty: 1, SourceStage: constants.StageTabular})
		}
	}
	if len(res.Records) == 0 {
		res.Decision = constants.DecisionError
		res.ErrorKind = "NoValidRecords"
		res.Error = "NoValidRecords: no rows"
		return res
	}
	res.Decision = constants.DecisionSave
	res.StageUsed = constants.StageTabular
	res.Metrics = entity.Metrics{Stage: constants.StageTabular, SchemaScore: 1, ValidRows: 1}
	return res
}

func newRuns(t *testing.T) repository.IngestRunRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: "sqlite::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	runs := repository.NewIngestRunRepository(db, nil)
	require.NoError(t, runs.Migrate(context.Background()))
	return runs
}

func startServer(t *testing.T, srv IngestServer) *IngestClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterIngestServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewIngestClient(conn)
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestProcessFile(t *testing.T) {
	ctx := context.Background()
	runs := newRuns(t)
	client := startServer(t, NewIngestService(fakeProcessor{}, nil, nil, runs, nil, nil))

	out, err := client.ProcessFile(ctx, request(t, map[string]any{
		"file_name":      "cantina.csv",
		"correlation_id": "cid-1",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("Barolo\nSoave\n")),
	}))
	require.NoError(t, err)
	assert.Equal(t, "save", out.GetFields()["decision"].GetStringValue())
	assert.Equal(t, "cid-1", out.GetFields()["correlation_id"].GetStringValue())
	assert.Len(t, out.GetFields()["records"].GetListValue().GetValues(), 2)

	stored, err := runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].RecordCount)
}

func TestProcessFile_ErrorResult(t *testing.T) {
	client := startServer(t, NewIngestService(fakeProcessor{}, nil, nil, nil, nil, nil))

	_, err := client.ProcessFile(context.Background(), request(t, map[string]any{
		"file_name":      "empty.csv",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("nothing")),
	}))
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Contains(t, st.Message(), "NoValidRecords")

	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, "error", detail.GetFields()["decision"].GetStringValue())
}

func TestProcessFile_InvalidArgument(t *testing.T) {
	client := startServer(t, NewIngestService(fakeProcessor{}, nil, nil, nil, nil, nil))

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing file name", map[string]any{"content_base64": "QmFyb2xv"}},
		{"bad base64", map[string]any{"file_name": "a.csv", "content_base64": "%%%"}},
		{"empty content", map[string]any{"file_name": "a.csv"}},
		{"file name too long", map[string]any{"file_name": strings.Repeat("a", 256) + ".csv", "content_base64": "QmFyb2xv"}},
		{"correlation id too long", map[string]any{"file_name": "a.csv", "content_base64": "QmFyb2xv", "correlation_id": strings.Repeat("c", 129)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ProcessFile(context.Background(), request(t, tt.fields))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestIngestDirectory_QueuesAndRecords(t *testing.T) {
	ctx := context.Background()
	runs := newRuns(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cantina.csv"), []byte("Barolo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "copy.csv"), []byte("Barolo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	queue := async.NewProcessorQueue(fakeProcessor{}, nil,
		async.WithWorkers(2),
		async.WithResultHandler(func(ctx context.Context, job async.Job, res entity.PipelineResult) {
			_ = repository.SaveResult(ctx, runs, res, job.ContentHash)
		}),
	)
	ing := ingest.NewFSIngestor(runs, 0, nil)
	client := startServer(t, NewIngestService(fakeProcessor{}, ing, queue, runs, export.NewService(nil), nil))

	out, err := client.IngestDirectory(ctx, request(t, map[string]any{"root_path": root}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, out.GetFields()["matched"].GetNumberValue())
	assert.EqualValues(t, 1, out.GetFields()["deduplicated"].GetNumberValue())

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	listed, err := client.ListRuns(ctx, request(t, map[string]any{"limit": 5}))
	require.NoError(t, err)
	items := listed.GetFields()["runs"].GetListValue().GetValues()
	require.Len(t, items, 1)
	run := items[0].GetStructValue().GetFields()
	assert.Equal(t, "cantina.csv", run["file_name"].GetStringValue())
	_, hasRecords := run["records_json"]
	assert.False(t, hasRecords)

	report, err := client.ExportReport(ctx, request(t, map[string]any{}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.GetFields()["files"].GetNumberValue())
	data, err := base64.StdEncoding.DecodeString(report.GetFields()["xlsx_base64"].GetStringValue())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetWines)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Barolo", rows[1][1])
}

func TestUnconfiguredMethods(t *testing.T) {
	client := startServer(t, NewIngestService(fakeProcessor{}, nil, nil, nil, nil, nil))
	ctx := context.Background()

	_, err := client.ListRuns(ctx, request(t, nil))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	_, err = client.ExportReport(ctx, request(t, nil))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	_, err = client.IngestDirectory(ctx, request(t, map[string]any{"root_path": "/tmp"}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
