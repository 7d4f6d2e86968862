package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/schema"
	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/storage"
)

// maxBindParams is the protocol limit on bind parameters per statement
// (uint16 message field).
const maxBindParams = 65535

const pingTimeout = 5 * time.Second

// Backend implements storage.Backend for Postgres via pgxpool. It is the
// alternate primary engine for deployments without SQL Server.
type Backend struct {
	dsn  string
	cfg  storage.Config
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New constructs an unconnected postgres backend. cfg.DSN selects the
// server; cfg.Path is ignored.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: missing dsn")
	}
	return &Backend{dsn: cfg.DSN, cfg: cfg}, nil
}

func (b *Backend) Kind() string { return "postgres" }

// Connect builds the pool with the configured limits and verifies it with a
// bounded ping. Failure is logged and reported as false.
func (b *Backend) Connect(ctx context.Context) bool {
	if b.pool != nil {
		return b.ping(ctx)
	}

	pcfg, err := pgxpool.ParseConfig(b.dsn)
	if err != nil {
		b.logf("backend=postgres connect_error=%v", err)
		return false
	}
	if b.cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(b.cfg.MaxOpenConns)
	}
	if b.cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(b.cfg.MaxIdleConns)
	}
	if b.cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = b.cfg.ConnMaxLifetime
	}
	if b.cfg.ConnMaxIdleTime > 0 {
		pcfg.MaxConnIdleTime = b.cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		b.logf("backend=postgres connect_error=%v", err)
		return false
	}

	b.pool = pool
	if !b.ping(ctx) {
		pool.Close()
		b.pool = nil
		return false
	}
	return true
}

func (b *Backend) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := b.pool.Ping(ctx); err != nil {
		b.logf("backend=postgres ping_error=%v", err)
		return false
	}
	return true
}

// Test reports whether the server answers a trivial query, connecting first
// when needed.
func (b *Backend) Test(ctx context.Context) bool {
	if b.pool == nil && !b.Connect(ctx) {
		return false
	}
	var one int
	if err := b.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		b.logf("backend=postgres test_error=%v", err)
		return false
	}
	return one == 1
}

// CreateTable drops any existing table of the same name and recreates it.
func (b *Backend) CreateTable(ctx context.Context, t schema.Table) error {
	if b.pool == nil {
		return storage.ErrBackendUnavailable
	}

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", schema.QuoteIdent(schema.DialectPostgres, t.Name))
	if _, err := b.pool.Exec(ctx, drop); err != nil {
		return &storage.SchemaError{Table: t.Name, Stmt: drop, Err: err}
	}

	ddl, err := t.CreateDDL(schema.DialectPostgres)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	if _, err := b.pool.Exec(ctx, ddl); err != nil {
		return &storage.SchemaError{Table: t.Name, Stmt: ddl, Err: err}
	}
	return nil
}

// EvolveTable adds schema columns missing from the existing table, creating
// the table when it does not exist yet.
func (b *Backend) EvolveTable(ctx context.Context, t schema.Table) error {
	if b.pool == nil {
		return storage.ErrBackendUnavailable
	}

	existing, err := b.columnNames(ctx, t.Name)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	if len(existing) == 0 {
		return b.CreateTable(ctx, t)
	}

	stmts, err := t.AlterDDL(existing, schema.DialectPostgres)
	if err != nil {
		return &storage.SchemaError{Table: t.Name, Err: err}
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: t.Name, Stmt: stmt, Err: err}
		}
	}
	return nil
}

// BulkInsert writes rows in batches sized to the protocol parameter limit.
func (b *Backend) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if b.pool == nil {
		return 0, storage.ErrBackendUnavailable
	}
	if len(rows) == 0 {
		return 0, nil
	}

	batchRows := storage.RowsPerBatch(maxBindParams, len(columns))

	var inserted int64
	for start := 0; start < len(rows); start += batchRows {
		end := start + batchRows
		if end > len(rows) {
			end = len(rows)
		}

		q, args := buildBulkInsertSQL(table, columns, rows[start:end])
		tag, err := b.pool.Exec(ctx, q, args...)
		if err != nil {
			return inserted, &storage.InsertError{Table: table, Expected: int64(len(rows)), Inserted: inserted, Err: err}
		}
		inserted += tag.RowsAffected()
	}

	if inserted != int64(len(rows)) {
		return inserted, &storage.InsertError{Table: table, Expected: int64(len(rows)), Inserted: inserted}
	}
	return inserted, nil
}

// TableInfo returns the live row count and column catalog for table.
func (b *Backend) TableInfo(ctx context.Context, table string) (storage.TableInfo, error) {
	if b.pool == nil {
		return storage.TableInfo{}, storage.ErrBackendUnavailable
	}

	info := storage.TableInfo{Name: table}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.QuoteIdent(schema.DialectPostgres, table))
	if err := b.pool.QueryRow(ctx, q).Scan(&info.RowCount); err != nil {
		return storage.TableInfo{}, fmt.Errorf("postgres: count %s: %w", table, err)
	}

	rows, err := b.pool.Query(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position",
		table)
	if err != nil {
		return storage.TableInfo{}, fmt.Errorf("postgres: columns %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c storage.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return storage.TableInfo{}, err
		}
		info.Columns = append(info.Columns, c)
	}
	return info, rows.Err()
}

// Close releases the pool. Safe on a never-connected backend and safe twice.
func (b *Backend) Close() error {
	if b.pool == nil {
		return nil
	}
	b.pool.Close()
	b.pool = nil
	return nil
}

func (b *Backend) logf(format string, v ...any) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Printf(format, v...)
	}
}

// columnNames reads the existing column names from the information schema.
// A missing table yields an empty slice, not an error.
func (b *Backend) columnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position",
		table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// buildBulkInsertSQL renders a multi-row INSERT with $N placeholders and the
// matching args slice. pgx binds time.Time natively, so only sentinel
// normalization applies.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(schema.QuoteIdent(schema.DialectPostgres, table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(schema.QuoteIdent(schema.DialectPostgres, c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$")
			b.WriteString(strconv.Itoa(p))
			p++
			args = append(args, storage.NormalizeValue(v))
		}
		b.WriteString(")")
	}
	return b.String(), args
}

var _ storage.Backend = (*Backend)(nil)
