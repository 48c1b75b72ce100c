// Package store persists imported workout records in PostgreSQL.
//
// The import engine itself never touches the database. The server and CLI
// hand a finished core.ImportResult to SaveWorkouts, which writes every
// record in one transaction using COPY.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/runimport/internal/config"
	"github.com/JonMunkholm/runimport/internal/core"
)

// ErrStorageDisabled is returned when no database is configured.
var ErrStorageDisabled = errors.New("storage disabled: no database configured")

// TableName is the table SaveWorkouts writes to.
const TableName = "workout_imports"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workout_imports (
	id                    UUID PRIMARY KEY,
	source_file           TEXT,
	format                TEXT NOT NULL,
	encoding              TEXT NOT NULL,
	distance_meters       DOUBLE PRECISION,
	duration_seconds      DOUBLE PRECISION,
	avg_pace_seconds      DOUBLE PRECISION,
	avg_heart_rate        DOUBLE PRECISION,
	duration_seconds_list DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
	estimated_type        TEXT,
	estimated_intensity   TEXT,
	extensions            JSONB NOT NULL DEFAULT '{}',
	imported_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS workout_imports_imported_at_idx ON workout_imports (imported_at DESC);
`

// copyColumns is the column order of copyRow.
var copyColumns = []string{
	"id", "source_file", "format", "encoding",
	"distance_meters", "duration_seconds", "avg_pace_seconds", "avg_heart_rate",
	"duration_seconds_list", "estimated_type", "estimated_intensity",
	"extensions", "imported_at",
}

// Store writes import records through a connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Open connects to the configured database and verifies the connection.
// It returns ErrStorageDisabled when cfg has no URL.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if !cfg.Enabled() {
		return nil, ErrStorageDisabled
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the records table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveWorkouts writes every record of res and returns the number written.
// Either all records are written or none are.
func (s *Store) SaveWorkouts(ctx context.Context, res *core.ImportResult) (int64, error) {
	if res == nil || len(res.Records) == 0 {
		return 0, nil
	}

	importedAt := s.now().UTC()
	rows := make([][]any, len(res.Records))
	for i := range res.Records {
		row, err := copyRow(&res.Records[i], res.Encoding, importedAt)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		rows[i] = row
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx, pgx.Identifier{TableName}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy workouts: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// copyRow converts a record into values in copyColumns order.
func copyRow(rec *core.WorkoutImportRecord, encoding string, importedAt time.Time) ([]any, error) {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return nil, err
	}

	ext, err := json.Marshal(core.Sanitize(rec.Extensions))
	if err != nil {
		return nil, fmt.Errorf("encode extensions: %w", err)
	}
	if string(ext) == "null" {
		ext = []byte("{}")
	}

	list := rec.DurationSecondsList
	if list == nil {
		list = []float64{}
	}

	return []any{
		id,
		toPgText(rec.SourceFile),
		string(rec.Format),
		encoding,
		toPgFloat8(rec.DistanceMeters),
		toPgFloat8(rec.DurationSeconds),
		toPgFloat8(rec.AvgPaceSeconds),
		toPgFloat8(rec.AvgHeartRate),
		list,
		toPgText(rec.EstimatedType),
		toPgText(rec.EstimatedIntensity),
		string(ext),
		pgtype.Timestamptz{Time: importedAt, Valid: true},
	}, nil
}

func toPgUUID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgFloat8(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}
