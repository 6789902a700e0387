package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/wine-ingest/internal/async"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/export"
	"github.com/joseph-ayodele/wine-ingest/internal/ingest"
	"github.com/joseph-ayodele/wine-ingest/internal/repository"
)

const (
	defaultListLimit    = 50
	maxFileNameLen      = 255
	maxCorrelationIDLen = 128
)

// IngestService implements IngestServer. Every collaborator but the processor
// may be nil; the methods that need a missing one answer Unimplemented.
type IngestService struct {
	processor async.FileProcessor
	ingestor  ingest.Ingestor
	queue     async.Queue
	runs      repository.IngestRunRepository
	reports   *export.Service
	logger    *slog.Logger
}

func NewIngestService(proc async.FileProcessor, ing ingest.Ingestor, queue async.Queue, runs repository.IngestRunRepository, reports *export.Service, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		processor: proc,
		ingestor:  ing,
		queue:     queue,
		runs:      runs,
		reports:   reports,
		logger:    logger,
	}
}

// ProcessFile runs the pipeline synchronously on
// {file_name, ext?, content_base64, correlation_id?}. A saved result is the
// response; an error result becomes a status whose code follows the error kind,
// with the result attached as a detail.
func (s *IngestService) ProcessFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileName := strings.TrimSpace(stringField(req, "file_name"))
	v := common.NewValidator().
		Field("file_name", fileName, common.Required, common.MaxLength(maxFileNameLen)).
		Field("content_base64", stringField(req, "content_base64"), common.Required).
		Field("correlation_id", stringField(req, "correlation_id"), common.MaxLength(maxCorrelationIDLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	content, err := base64.StdEncoding.DecodeString(stringField(req, "content_base64"))
	if err != nil {
		return nil, common.InvalidArgumentErrorf("content_base64: %v", err)
	}
	if len(content) == 0 {
		return nil, common.InvalidArgumentError("content_base64 is required")
	}

	res := s.processor.ProcessFile(ctx, content, fileName, stringField(req, "ext"), stringField(req, "correlation_id"))
	sum := sha256.Sum256(content)
	s.record(ctx, res, sum[:])

	out, err := toStruct(res)
	if err != nil {
		s.logger.Error("server.process_file.encode_failed", "correlation_id", res.CorrelationID, "error", err)
		return nil, common.InternalError("encode result")
	}
	if res.Saved() {
		return out, nil
	}

	st := common.ToStatus(common.ErrorKind(res.ErrorKind), res.Error)
	if withDetail, derr := st.WithDetails(out); derr == nil {
		st = withDetail
	}
	return nil, st.Err()
}

// IngestDirectory walks a server-side directory {root_path, skip_hidden?} and
// queues every new file. Results land in the run store as workers finish.
func (s *IngestService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil || s.queue == nil {
		return nil, status.Error(codes.Unimplemented, "directory ingest is not configured")
	}
	root := strings.TrimSpace(stringField(req, "root_path"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("root_path", root, common.Required)); err != nil {
		return nil, err
	}
	skipHidden := true
	if v, ok := req.GetFields()["skip_hidden"]; ok {
		skipHidden = v.GetBoolValue()
	}

	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden, func(ctx context.Context, f ingest.File) error {
		return s.queue.Enqueue(ctx, async.Job{
			FileName:    f.Filename,
			Ext:         f.FileExt,
			Content:     f.Content,
			ContentHash: f.ContentHash,
		})
	})
	if err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			return nil, status.Error(codes.Unavailable, "queue is shutting down")
		}
		return nil, status.Errorf(codes.InvalidArgument, "ingest directory: %v", err)
	}
	s.logger.Info("directory ingest completed",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	return toStruct(map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"queued":       stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"results":      results,
	})
}

// ListRuns returns the latest stored runs {limit?} without their records.
func (s *IngestService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unimplemented, "run store is not configured")
	}
	runs, err := s.runs.List(ctx, limitField(req))
	if err != nil {
		return nil, common.InternalError("list runs failed")
	}
	for i := range runs {
		runs[i].RecordsJSON = nil
	}
	return toStruct(map[string]any{"runs": runs})
}

// ExportReport renders the latest stored runs {limit?} as an XLSX report,
// returned as {xlsx_base64}.
func (s *IngestService) ExportReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil || s.reports == nil {
		return nil, status.Error(codes.Unimplemented, "reports are not configured")
	}
	runs, err := s.runs.List(ctx, limitField(req))
	if err != nil {
		return nil, common.InternalError("list runs failed")
	}
	results := make([]entity.PipelineResult, 0, len(runs))
	for _, run := range runs {
		res, err := run.Result()
		if err != nil {
			s.logger.Warn("export.run.unreadable", "run_id", run.ID, "error", err)
			continue
		}
		results = append(results, res)
	}
	xlsx, err := s.reports.ReportXLSX(ctx, results)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, common.InternalError(err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"files":       len(results),
		"xlsx_base64": base64.StdEncoding.EncodeToString(xlsx),
	})
}

func (s *IngestService) record(ctx context.Context, res entity.PipelineResult, hash []byte) {
	if s.runs == nil {
		return
	}
	if err := repository.SaveResult(ctx, s.runs, res, hash); err != nil {
		s.logger.Warn("server.run.record_failed", "correlation_id", res.CorrelationID, "error", err)
	}
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func limitField(req *structpb.Struct) int {
	if n := int(req.GetFields()["limit"].GetNumberValue()); n > 0 {
		return n
	}
	return defaultListLimit
}

// toStruct goes through JSON so the entity tags define the wire shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
