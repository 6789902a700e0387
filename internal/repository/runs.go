package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

const runsTable = "ingest_runs"

var runColumns = []string{
	"id",
	"correlation_id",
	"file_name",
	"file_ext",
	"content_hash",
	"started_at",
	"finished_at",
	"decision",
	"stage_used",
	"stages_attempted",
	"record_count",
	"schema_score",
	"valid_rows",
	"error_kind",
	"error_message",
	"metrics_json",
	"records_json",
}

// IngestRunRepository persists one audit row per pipeline invocation.
type IngestRunRepository interface {
	Migrate(ctx context.Context) error
	Save(ctx context.Context, run entity.IngestRun) error
	// HasContentHash reports whether a file with this sha256 was already saved.
	HasContentHash(ctx context.Context, hash []byte) (bool, error)
	List(ctx context.Context, limit int) ([]entity.IngestRun, error)
}

type ingestRunRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewIngestRunRepository(db *DB, logger *slog.Logger) IngestRunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestRunRepo{
		drv:    db.Driver,
		logger: logger,
	}
}

func (r *ingestRunRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// Migrate creates the runs table and its hash index when missing.
func (r *ingestRunRepo) Migrate(ctx context.Context) error {
	pg := r.drv.Dialect() == dialect.Postgres
	typ := func(postgres, sqlite string) string {
		if pg {
			return postgres
		}
		return sqlite
	}
	b := r.builder()
	cols := []entsql.Querier{
		b.Column("id").Type("TEXT PRIMARY KEY"),
		b.Column("correlation_id").Type("TEXT NOT NULL"),
		b.Column("file_name").Type("TEXT NOT NULL"),
		b.Column("file_ext").Type("TEXT NOT NULL"),
		b.Column("content_hash").Type(typ("BYTEA", "BLOB")),
		b.Column("started_at").Type(typ("TIMESTAMPTZ", "TIMESTAMP") + " NOT NULL"),
		b.Column("finished_at").Type(typ("TIMESTAMPTZ", "TIMESTAMP") + " NOT NULL"),
		b.Column("decision").Type("TEXT NOT NULL"),
		b.Column("stage_used").Type("TEXT NOT NULL DEFAULT ''"),
		b.Column("stages_attempted").Type("TEXT NOT NULL"),
		b.Column("record_count").Type("INTEGER NOT NULL"),
		b.Column("schema_score").Type(typ("DOUBLE PRECISION", "REAL") + " NOT NULL"),
		b.Column("valid_rows").Type(typ("DOUBLE PRECISION", "REAL") + " NOT NULL"),
		b.Column("error_kind").Type("TEXT"),
		b.Column("error_message").Type("TEXT"),
		b.Column("metrics_json").Type("TEXT"),
		b.Column("records_json").Type("TEXT"),
	}
	create := b.String(func(sb *entsql.Builder) {
		sb.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(runsTable).WriteString(" (").JoinComma(cols...).WriteString(")")
	})
	index := b.String(func(sb *entsql.Builder) {
		sb.WriteString("CREATE INDEX IF NOT EXISTS ").Ident(runsTable+"_content_hash_idx").
			WriteString(" ON ").Ident(runsTable).WriteString(" (").Ident("content_hash").WriteString(")")
	})
	for _, stmt := range []string{create, index} {
		if err := r.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			r.logger.Error("failed to migrate ingest runs", "error", err)
			return fmt.Errorf("migrate %s: %w", runsTable, err)
		}
	}
	r.logger.Debug("ingest runs table ready", "dialect", r.drv.Dialect())
	return nil
}

func (r *ingestRunRepo) Save(ctx context.Context, run entity.IngestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	stages, err := json.Marshal(run.StagesAttempted)
	if err != nil {
		return err
	}
	query, args := r.builder().Insert(runsTable).
		Columns(runColumns...).
		Values(
			run.ID.String(),
			run.CorrelationID,
			run.FileName,
			run.FileExt,
			run.ContentHash,
			run.StartedAt.UTC(),
			run.FinishedAt.UTC(),
			run.Decision,
			run.StageUsed,
			string(stages),
			run.RecordCount,
			run.SchemaScore,
			run.ValidRows,
			nullString(run.ErrorKind),
			nullString(run.ErrorMessage),
			nullJSON(run.MetricsJSON),
			nullJSON(run.RecordsJSON),
		).Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to save ingest run", "correlation_id", run.CorrelationID, "file", run.FileName, "error", err)
		return err
	}
	return nil
}

func (r *ingestRunRepo) HasContentHash(ctx context.Context, hash []byte) (bool, error) {
	b := r.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(runsTable)).
		Where(entsql.And(
			entsql.EQ("content_hash", hash),
			entsql.EQ("decision", string(constants.DecisionSave)),
		)).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to look up content hash", "error", err)
		return false, err
	}
	defer rows.Close()
	n, err := entsql.ScanInt(rows)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns the most recent runs first.
func (r *ingestRunRepo) List(ctx context.Context, limit int) ([]entity.IngestRun, error) {
	b := r.builder()
	sel := b.Select(runColumns...).
		From(b.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to list ingest runs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(rows entsql.ColumnScanner) (entity.IngestRun, error) {
	var (
		run               entity.IngestRun
		id, stages        string
		started, finished any
		errKind, errMsg   sql.NullString
		metrics, records  []byte
	)
	err := rows.Scan(
		&id,
		&run.CorrelationID,
		&run.FileName,
		&run.FileExt,
		&run.ContentHash,
		&started,
		&finished,
		&run.Decision,
		&run.StageUsed,
		&stages,
		&run.RecordCount,
		&run.SchemaScore,
		&run.ValidRows,
		&errKind,
		&errMsg,
		&metrics,
		&records,
	)
	if err != nil {
		return run, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return run, fmt.Errorf("run id %q: %w", id, err)
	}
	if run.StartedAt, err = asTime(started); err != nil {
		return run, err
	}
	if run.FinishedAt, err = asTime(finished); err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(stages), &run.StagesAttempted); err != nil {
		return run, fmt.Errorf("stages_attempted: %w", err)
	}
	if errKind.Valid {
		run.ErrorKind = &errKind.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if len(metrics) > 0 {
		run.MetricsJSON = json.RawMessage(metrics)
	}
	if len(records) > 0 {
		run.RecordsJSON = json.RawMessage(records)
	}
	return run, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

// asTime accepts what the drivers hand back for a timestamp column: time.Time
// from pgx, time.Time or text from sqlite.
func asTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// SaveResult stores the audit row of a finished pipeline result.
func SaveResult(ctx context.Context, repo IngestRunRepository, res entity.PipelineResult, hash []byte) error {
	started := time.Now().Add(-time.Duration(res.ElapsedSeconds * float64(time.Second)))
	run, err := entity.NewIngestRun(res, hash, started)
	if err != nil {
		return fmt.Errorf("build ingest run: %w", err)
	}
	return repo.Save(ctx, run)
}
