package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
)

// dialect captures the differences between the SQL backends
type dialect struct {
	name        string
	driver      string
	placeholder func(n int) string
	floatType   string
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	floatType:   "DOUBLE PRECISION",
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite3",
	placeholder: func(int) string { return "?" },
	floatType:   "REAL",
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// metricColumns are the value columns, in models.AllMetrics order
var metricColumns = func() []string {
	cols := make([]string, len(models.AllMetrics))
	for i, m := range models.AllMetrics {
		cols[i] = string(m)
	}
	return cols
}()

// SQLStore keeps readings in a relational table. Timestamps are stored as
// unix milliseconds so both dialects compare them numerically.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *logging.Logger
}

func newSQLStore(ctx context.Context, d dialect, cfg config.SQLStoreConfig, logger *logging.Logger) (*SQLStore, error) {
	table := cfg.Table
	if table == "" {
		table = "readings"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	if d.driver == sqliteDialect.driver {
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}

	s := &SQLStore{db: db, dialect: d, table: table, logger: logger}
	if cfg.AutoMigrate {
		if err := s.migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	cols := make([]string, 0, len(metricColumns)+2)
	cols = append(cols, "id TEXT PRIMARY KEY", "ts_ms BIGINT NOT NULL")
	for _, c := range metricColumns {
		cols = append(cols, fmt.Sprintf("%s %s", c, s.dialect.floatType))
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.table, strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_ts_idx ON %s (ts_ms)", s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s table: %w", s.table, err)
		}
	}

	s.logger.Info("Reading table ready", "dialect", s.dialect.name, "table", s.table)
	return nil
}

// FetchReadings returns matching readings, newest first
func (s *SQLStore) FetchReadings(ctx context.Context, filter Filter) ([]models.Reading, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CreatedAfter != nil {
		args = append(args, filter.CreatedAfter.UnixMilli())
		where = append(where, "ts_ms >= "+s.dialect.placeholder(len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, filter.CreatedBefore.UnixMilli())
		where = append(where, "ts_ms <= "+s.dialect.placeholder(len(args)))
	}

	var q strings.Builder
	fmt.Fprintf(&q, "SELECT id, ts_ms, %s FROM %s", strings.Join(metricColumns, ", "), s.table)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY ts_ms DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q.WriteString(" LIMIT " + s.dialect.placeholder(len(args)))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var readings []models.Reading
	values := make([]sql.NullFloat64, len(metricColumns))
	dest := make([]interface{}, 0, len(metricColumns)+2)

	for rows.Next() {
		var (
			id   string
			tsMs int64
		)
		dest = append(dest[:0], &id, &tsMs)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		r := models.Reading{ID: id, Timestamp: time.UnixMilli(tsMs).UTC()}
		for i, m := range models.AllMetrics {
			if values[i].Valid {
				r.SetValue(m, values[i].Float64)
			}
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return readings, nil
}

// InsertReadings writes readings in one transaction. Readings whose ID already
// exists are skipped.
func (s *SQLStore) InsertReadings(ctx context.Context, readings []models.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(metricColumns)+2)
	for i := range placeholders {
		placeholders[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (id, ts_ms, %s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
		s.table, strings.Join(metricColumns, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, r := range readings {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		args := make([]interface{}, 0, len(metricColumns)+2)
		args = append(args, id, r.Timestamp.UnixMilli())
		for _, m := range models.AllMetrics {
			if v, ok := r.Value(m); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert reading: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit readings: %w", err)
	}
	return inserted, nil
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}
