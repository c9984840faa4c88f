package target

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// querier is what both the pool and a transaction offer.
type querier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Postgres is a PostgreSQL destination backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and checks it with a ping.
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes all connections in the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks that the destination is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// BulkWrite copies rows with COPY inside a transaction.
func (p *Postgres) BulkWrite(ctx context.Context, id catalog.TableID, columns []string, rows [][]any) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return copyRows(ctx, tx, id, columns, rows)
	})
}

// Execute runs statements inside a transaction.
func (p *Postgres) Execute(ctx context.Context, id catalog.TableID, statements []Statement) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return execStatements(ctx, tx, id, statements)
	})
}

// InTx runs fn in one transaction.
func (p *Postgres) InTx(ctx context.Context, fn func(Sink) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(txSink{q: tx})
	})
}

// ResetSequence moves the column's backing sequence to its max value.
// Columns without a sequence are left alone.
func (p *Postgres) ResetSequence(ctx context.Context, id catalog.TableID, column string) error {
	sql := fmt.Sprintf(`
		SELECT setval(seq::regclass, COALESCE((SELECT MAX(%s) FROM %s), 1))
		FROM pg_get_serial_sequence($1, $2) AS seq
		WHERE seq IS NOT NULL
	`, quotePGIdent(column), qualifyPGTable(id))

	if _, err := p.pool.Exec(ctx, sql, qualifyPGTable(id), column); err != nil {
		return fmt.Errorf("resetting sequence for %s.%s: %w", id, column, err)
	}
	return nil
}

// txSink writes through an open transaction.
type txSink struct {
	q querier
}

func (s txSink) BulkWrite(ctx context.Context, id catalog.TableID, columns []string, rows [][]any) error {
	return copyRows(ctx, s.q, id, columns, rows)
}

func (s txSink) Execute(ctx context.Context, id catalog.TableID, statements []Statement) error {
	return execStatements(ctx, s.q, id, statements)
}

func copyRows(ctx context.Context, q querier, id catalog.TableID, columns []string, rows [][]any) error {
	ident := pgx.Identifier{id.Table}
	if id.Schema != "" {
		ident = pgx.Identifier{id.Schema, id.Table}
	}
	n, err := q.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying into %s: %w", id, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copying into %s: wrote %d of %d rows", id, n, len(rows))
	}
	return nil
}

func execStatements(ctx context.Context, q querier, id catalog.TableID, statements []Statement) error {
	for i, st := range statements {
		if _, err := q.Exec(ctx, st.SQL, st.Args...); err != nil {
			return fmt.Errorf("%s statement %d: %w", id, i+1, err)
		}
	}
	return nil
}
