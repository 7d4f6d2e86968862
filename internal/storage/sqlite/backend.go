package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

// maxBindParams is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
const maxBindParams = 999

// pingTimeout bounds the connection health check so a wedged filesystem
// cannot stall Connect indefinitely.
const pingTimeout = 5 * time.Second

// Backend implements storage.Backend on an embedded SQLite file.
//
// Key design points vs the network backends:
//   - SQLite is the fallback engine: it must come up without any external
//     service, so Connect only touches the local file.
//   - modernc.org/sqlite stores timestamps with TEXT affinity; this backend
//     binds time values as RFC3339Nano strings for reliable round-trips.
type Backend struct {
	path string
	cfg  storage.Config
	db   *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New constructs an unconnected sqlite backend. cfg.Path selects the database
// file; cfg.DSN is ignored.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite: missing path")
	}
	return &Backend{path: cfg.Path, cfg: cfg}, nil
}

func (b *Backend) Kind() string { return "sqlite" }

// Connect opens the database file and verifies it with a ping.
// Failure is logged and reported as false, never raised.
func (b *Backend) Connect(ctx context.Context) bool {
	if b.db != nil {
		return b.ping(ctx)
	}

	db, err := sql.Open("sqlite", "file:"+b.path+"?cache=shared")
	if err != nil {
		b.logf("backend=sqlite path=%s connect_error=%v", b.path, err)
		return false
	}
	// A file database serializes writers; one open connection avoids
	// SQLITE_BUSY churn under the bulk insert loop.
	db.SetMaxOpenConns(1)
	if b.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(b.cfg.ConnMaxLifetime)
	}

	b.db = db
	if !b.ping(ctx) {
		_ = db.Close()
		b.db = nil
		return false
	}
	return true
}

func (b *Backend) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := b.db.PingContext(ctx); err != nil {
		b.logf("backend=sqlite path=%s ping_error=%v", b.path, err)
		return false
	}
	return true
}

// Test reports whether the database answers a trivial query, connecting
// first when needed.
func (b *Backend) Test(ctx context.Context) bool {
	if b.db == nil && !b.Connect(ctx) {
		return false
	}
	var one int
	if err := b.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		b.logf("backend=sqlite path=%s test_error=%v", b.path, err)
		return false
	}
	return one == 1
}

// CreateTable drops any existing table of the same name and recreates it
// from the schema.
func (b *Backend) CreateTable(ctx context.Context, t schema.Table) error {
	if b.db == nil {
		return storage.ErrBackendUnavailable
	}

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", schema.QuoteIdent(schema.DialectSQLite, t.Name))
	if _, err := b.db.ExecContext(ctx, drop); err != nil {
		return &storage.SchemaError{Table: t.Name, Stmt: drop, Err: err}
	}

	ddl, err := t.CreateDDL(schema.DialectSQLite)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return &storage.SchemaError{Table: t.Name, Stmt: ddl, Err: err}
	}
	return nil
}

// EvolveTable adds schema columns missing from the existing table. When the
// table does not exist yet it is created instead.
func (b *Backend) EvolveTable(ctx context.Context, t schema.Table) error {
	if b.db == nil {
		return storage.ErrBackendUnavailable
	}

	existing, err := b.columnNames(ctx, t.Name)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	if len(existing) == 0 {
		return b.CreateTable(ctx, t)
	}

	stmts, err := t.AlterDDL(existing, schema.DialectSQLite)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: t.Name, Stmt: stmt, Err: err}
		}
	}
	return nil
}

// BulkInsert writes rows in batches sized to the bind-parameter limit.
func (b *Backend) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if b.db == nil {
		return 0, storage.ErrBackendUnavailable
	}
	if len(rows) == 0 {
		return 0, nil
	}

	batchRows := storage.RowsPerBatch(maxBindParams, len(columns))
	prefix := insertPrefix(table, columns)
	rowPlaceholder := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var inserted int64
	for start := 0; start < len(rows); start += batchRows {
		end := start + batchRows
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var sb strings.Builder
		sb.WriteString(prefix)
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(rowPlaceholder)
			for _, v := range row {
				args = append(args, bindValue(v))
			}
		}

		res, err := b.db.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, &storage.InsertError{Table: table, Expected: int64(len(rows)), Inserted: inserted, Err: err}
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if inserted != int64(len(rows)) {
		return inserted, &storage.InsertError{Table: table, Expected: int64(len(rows)), Inserted: inserted}
	}
	return inserted, nil
}

// TableInfo returns the live row count and column catalog for table.
func (b *Backend) TableInfo(ctx context.Context, table string) (storage.TableInfo, error) {
	if b.db == nil {
		return storage.TableInfo{}, storage.ErrBackendUnavailable
	}

	info := storage.TableInfo{Name: table}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.QuoteIdent(schema.DialectSQLite, table))
	if err := b.db.QueryRowContext(ctx, q).Scan(&info.RowCount); err != nil {
		return storage.TableInfo{}, fmt.Errorf("sqlite: count %s: %w", table, err)
	}

	cols, err := b.tableColumns(ctx, table)
	if err != nil {
		return storage.TableInfo{}, err
	}
	info.Columns = cols
	return info, nil
}

// Close releases the pool. Safe on a never-connected backend and safe twice.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Backend) logf(format string, v ...any) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Printf(format, v...)
	}
}

// columnNames reads the existing column names via PRAGMA table_info.
// A missing table yields an empty slice, not an error.
func (b *Backend) columnNames(ctx context.Context, table string) ([]string, error) {
	cols, err := b.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names, nil
}

func (b *Backend) tableColumns(ctx context.Context, table string) ([]storage.ColumnInfo, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", schema.QuoteIdent(schema.DialectSQLite, table))
	rows, err := b.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	defer rows.Close()

	var out []storage.ColumnInfo
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, err
		}
		out = append(out, storage.ColumnInfo{Name: name, Type: typ})
	}
	return out, rows.Err()
}

func insertPrefix(table string, columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, schema.QuoteIdent(schema.DialectSQLite, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		schema.QuoteIdent(schema.DialectSQLite, table), strings.Join(quoted, ", "))
}

// bindValue normalizes a cell and renders time values as RFC3339Nano text,
// the storable form for SQLite's TEXT affinity.
func bindValue(v any) any {
	v = storage.NormalizeValue(v)
	if ts, ok := v.(time.Time); ok {
		return ts.UTC().Format(time.RFC3339Nano)
	}
	return v
}

var _ storage.Backend = (*Backend)(nil)
