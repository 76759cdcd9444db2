package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"FinScan/internal/domain/models"
	domrepo "FinScan/internal/domain/repository"
	applogger "FinScan/pkg/logger"
)

// sqlExecer is the part of *sql.DB the store needs.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// CHAnomalyStore writes flagged rows to a ClickHouse MergeTree table.
type CHAnomalyStore struct {
	db       sqlExecer
	database string
	table    string
	l        *applogger.Logger
}

const insertChunk = 2000

func NewCHAnomalyStore(db sqlExecer, database string) *CHAnomalyStore {
	return &CHAnomalyStore{db: db, database: database, table: database + ".anomalies", l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHAnomalyStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Schema returns the idempotent DDL for the store.
func (s *CHAnomalyStore) Schema() []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id     String,
    source     LowCardinality(String),
    row_index  UInt32,
    date       Nullable(DateTime),
    close      Nullable(Float64),
    volume     Nullable(Float64),
    row        String,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (source, run_id, row_index)`, s.table),
	}
}

func (s *CHAnomalyStore) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *CHAnomalyStore) StoreBatch(ctx context.Context, records []models.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(records); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(records) {
			hi = len(records)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*7)
		for _, r := range records[lo:hi] {
			row, err := json.Marshal(r.Row)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", r.RowIndex, err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.RunID,
				r.Source,
				uint32(r.RowIndex),
				nullableTime(r.Date),
				nullableFloat(r.Close),
				nullableFloat(r.Volume),
				string(row),
			)
		}

		q := fmt.Sprintf("INSERT INTO %s (run_id, source, row_index, date, close, volume, row) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert anomalies error",
				applogger.String("table", s.table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert anomalies: %w", err)
		}
	}
	s.l.Debug("clickhouse insert anomalies ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHAnomalyStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ domrepo.AnomalyStore = (*CHAnomalyStore)(nil)
