package schema

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor used when rendering DDL.
type Dialect string

const (
	DialectMSSQL    Dialect = "mssql"
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// typeMaps hold the FieldType -> column type mapping per dialect.
var (
	mssqlTypes = map[FieldType]string{
		TypeString:   "NVARCHAR(255)",
		TypeInteger:  "INT",
		TypeFloat:    "FLOAT",
		TypeBoolean:  "BIT",
		TypeDatetime: "DATETIME2",
		TypeText:     "NVARCHAR(MAX)",
	}
	sqliteTypes = map[FieldType]string{
		TypeString:   "TEXT",
		TypeInteger:  "INTEGER",
		TypeFloat:    "REAL",
		TypeBoolean:  "BOOLEAN",
		TypeDatetime: "TEXT",
		TypeText:     "TEXT",
	}
	postgresTypes = map[FieldType]string{
		TypeString:   "VARCHAR(255)",
		TypeInteger:  "INTEGER",
		TypeFloat:    "DOUBLE PRECISION",
		TypeBoolean:  "BOOLEAN",
		TypeDatetime: "TIMESTAMPTZ",
		TypeText:     "TEXT",
	}
)

// QuoteIdent quotes an identifier for the dialect.
// MSSQL uses bracket quoting with "]]" escaping; SQLite and Postgres use
// double quotes with doubling.
func QuoteIdent(dialect Dialect, ident string) string {
	if dialect == DialectMSSQL {
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// CreateDDL renders the CREATE TABLE statement for the table in the given
// dialect. The synthetic primary key column uses the dialect's identity
// syntax; every other column carries its mapped type and NOT NULL when the
// sample showed no missing values.
//
// Errors:
//   - Returns an error for an unknown dialect.
//   - Returns an error when the table has no columns.
func (t Table) CreateDDL(dialect Dialect) (string, error) {
	types, err := typeMapFor(dialect)
	if err != nil {
		return "", err
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("schema: table %q has no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.PrimaryKey {
			parts = append(parts, identityColumnDDL(dialect, c.Name))
			continue
		}
		def := QuoteIdent(dialect, c.Name) + " " + types[c.Type]
		if !c.Nullable {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(dialect, t.Name))
	b.WriteString(" (\n  ")
	b.WriteString(strings.Join(parts, ",\n  "))
	b.WriteString("\n)")
	return b.String(), nil
}

// AlterDDL renders one ALTER TABLE ... ADD statement for every table column
// not present in existingColumns, preserving schema column order. The
// comparison is case-insensitive. Returns an empty slice when the live table
// already has every column.
func (t Table) AlterDDL(existingColumns []string, dialect Dialect) ([]string, error) {
	types, err := typeMapFor(dialect)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(existingColumns))
	for _, c := range existingColumns {
		existing[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	var stmts []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			continue
		}
		if _, ok := existing[strings.ToLower(c.Name)]; ok {
			continue
		}

		// New columns join rows that predate them, so they must be nullable
		// regardless of what the sample suggested.
		def := QuoteIdent(dialect, c.Name) + " " + types[c.Type]
		switch dialect {
		case DialectMSSQL:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", QuoteIdent(dialect, t.Name), def))
		default:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdent(dialect, t.Name), def))
		}
	}
	return stmts, nil
}

func identityColumnDDL(dialect Dialect, name string) string {
	switch dialect {
	case DialectMSSQL:
		return QuoteIdent(dialect, name) + " INT IDENTITY(1,1) PRIMARY KEY"
	case DialectSQLite:
		return QuoteIdent(dialect, name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	default: // postgres
		return QuoteIdent(dialect, name) + " BIGSERIAL PRIMARY KEY"
	}
}

func typeMapFor(dialect Dialect) (map[FieldType]string, error) {
	switch dialect {
	case DialectMSSQL:
		return mssqlTypes, nil
	case DialectSQLite:
		return sqliteTypes, nil
	case DialectPostgres:
		return postgresTypes, nil
	default:
		return nil, fmt.Errorf("schema: unknown dialect %q", dialect)
	}
}
