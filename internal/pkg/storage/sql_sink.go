package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Ensure SQLSink implements Sink
var _ Sink = (*SQLSink)(nil)

// Dialect captures the few differences between the SQL backends.
type Dialect struct {
	Driver      string
	SerialType  string
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{
		Driver:      "postgres",
		SerialType:  "BIGSERIAL PRIMARY KEY",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	SQLite = Dialect{
		Driver:      "sqlite",
		SerialType:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		Placeholder: func(int) string { return "?" },
	}
)

// SQLSink stores each table as a TEXT-column SQL table ordered by row_id.
type SQLSink struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLSink opens and pings the database. Schema is created by
// EnsureHeaders.
func NewSQLSink(ctx context.Context, dialect Dialect, dsn string) (*SQLSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s DSN is required", dialect.Driver)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect.Driver, err)
	}
	if dialect.Driver == SQLite.Driver {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Driver, err)
	}

	slog.Info("SQL sink initialized", "driver", dialect.Driver)
	return &SQLSink{db: db, dialect: dialect}, nil
}

func tableName(t Table) string {
	return pq.QuoteIdentifier(strings.ToLower(t.Name))
}

func columnList(t Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(cols, ", ")
}

func (s *SQLSink) insertQuery(t Table) string {
	ph := make([]string, len(t.Columns))
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName(t), columnList(t), strings.Join(ph, ", "))
}

// EnsureHeaders creates every table if missing.
func (s *SQLSink) EnsureHeaders(ctx context.Context) error {
	for _, t := range Tables {
		cols := make([]string, 0, len(t.Columns)+1)
		cols = append(cols, "row_id "+s.dialect.SerialType)
		for _, c := range t.Columns {
			cols = append(cols, pq.QuoteIdentifier(c)+" TEXT NOT NULL DEFAULT ''")
		}
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName(t), strings.Join(cols, ", "))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *SQLSink) Read(ctx context.Context, t Table) ([][]string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY row_id", columnList(t), tableName(t))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := make([]string, len(t.Columns))
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLSink) ClearAndWrite(ctx context.Context, t Table, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s rewrite: %w", t.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+tableName(t)); err != nil {
		return fmt.Errorf("clear %s: %w", t.Name, err)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.insertQuery(t))
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", t.Name, err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, args(t, row)...); err != nil {
				return fmt.Errorf("write %s: %w", t.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s rewrite: %w", t.Name, err)
	}
	return nil
}

func (s *SQLSink) Append(ctx context.Context, t Table, row []string) error {
	if _, err := s.db.ExecContext(ctx, s.insertQuery(t), args(t, row)...); err != nil {
		return fmt.Errorf("append %s: %w", t.Name, err)
	}
	return nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

func args(t Table, row []string) []any {
	cells := fit(t, row)
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
