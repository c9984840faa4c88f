// Package target writes resolved payloads to the destination store.
package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// Statement is one parameterized statement.
type Statement struct {
	SQL  string
	Args []any
}

// Sink accepts table writes. Each call is atomic: it either fully
// succeeds or leaves nothing behind.
type Sink interface {
	// BulkWrite inserts rows as one set.
	BulkWrite(ctx context.Context, id catalog.TableID, columns []string, rows [][]any) error
	// Execute runs statements in order.
	Execute(ctx context.Context, id catalog.TableID, statements []Statement) error
}

// Destination is a Sink that can also group writes into one transaction.
type Destination interface {
	Sink
	// InTx runs fn against a transactional sink and commits only if fn
	// returns nil.
	InTx(ctx context.Context, fn func(Sink) error) error
	Close()
}

// SequenceResetter is implemented by destinations whose surrogate columns
// are backed by sequences that must move past explicitly loaded values.
type SequenceResetter interface {
	ResetSequence(ctx context.Context, id catalog.TableID, column string) error
}

// Pinger is implemented by destinations that hold a live connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InsertStatements generates one INSERT per row with $n placeholders.
func InsertStatements(id catalog.TableID, columns []string, rows [][]any) []Statement {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quotePGIdent(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualifyPGTable(id), strings.Join(quoted, ", "), strings.Join(params, ", "))

	out := make([]Statement, len(rows))
	for i, row := range rows {
		args := make([]any, len(row))
		copy(args, row)
		out[i] = Statement{SQL: sql, Args: args}
	}
	return out
}
