package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/logging"
)

// ErrTableNotFound is returned when the legacy store has no such table.
var ErrTableNotFound = errors.New("source table not found")

// Reader is the legacy-store collaborator: a pure read of one named table.
type Reader interface {
	ReadTable(ctx context.Context, name string) (*catalog.Frame, error)
}

// Pool reads legacy tables through database/sql. It serves SQL Server
// (legacy data attached or upsized from the desktop database) and SQLite
// exports of the desktop file.
type Pool struct {
	db     *sql.DB
	dbType string
	schema string
}

// NewPool opens a pool for dbType ("mssql" or "sqlite") with the given DSN.
func NewPool(dbType, dsn, schema string, maxConns int) (*Pool, error) {
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(max(maxConns/4, 1))
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logging.Debug("Connected to %s source", dbType)
	return NewPoolFromDB(db, dbType, schema), nil
}

// NewPoolFromDB wraps an existing connection.
func NewPoolFromDB(db *sql.DB, dbType, schema string) *Pool {
	return &Pool{db: db, dbType: dbType, schema: schema}
}

func driverFor(dbType string) (string, error) {
	switch dbType {
	case "mssql", "sqlserver":
		return "sqlserver", nil
	case "sqlite":
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported source type %q (expected mssql or sqlite)", dbType)
}

// Close closes all connections in the pool.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Ping checks the connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// HasTable reports whether the legacy store has the named table or view.
func (p *Pool) HasTable(ctx context.Context, name string) (bool, error) {
	return p.tableExists(ctx, name)
}

// ReadTable reads every row of a legacy table.
func (p *Pool) ReadTable(ctx context.Context, name string) (*catalog.Frame, error) {
	exists, err := p.tableExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking table %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT * FROM "+p.qualify(name))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types of %s: %w", name, err)
	}

	frame := catalog.NewFrame(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		for i, v := range values {
			values[i] = convertValue(v, types[i].DatabaseTypeName())
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	logging.Debug("Read %d rows from %s", frame.Len(), name)
	return frame, nil
}

func (p *Pool) tableExists(ctx context.Context, name string) (bool, error) {
	var (
		query string
		args  []any
	)
	if p.dbType == "sqlite" {
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`
		args = []any{name}
	} else {
		query = `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table`
		args = []any{sql.Named("schema", p.schemaOrDefault()), sql.Named("table", name)}
	}

	var n int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Pool) schemaOrDefault() string {
	if p.schema == "" {
		return "dbo"
	}
	return p.schema
}

func (p *Pool) qualify(name string) string {
	if p.dbType == "sqlite" {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return quoteMSSQLIdent(p.schemaOrDefault()) + "." + quoteMSSQLIdent(name)
}

func quoteMSSQLIdent(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// convertValue normalizes driver values: GUID columns become canonical
// strings and other byte slices become text.
func convertValue(v any, dbTypeName string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if strings.EqualFold(dbTypeName, "UNIQUEIDENTIFIER") && len(b) == 16 {
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return strings.ToLower(id.String())
		}
	}
	return string(b)
}
