package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyRows bulk inserts rows of T through the COPY protocol using the
// struct "db" tags. It needs a transaction in ctx; fan-out writes
// (notifications to every student of a course) go through it.
func CopyRows[T any](ctx context.Context, txm *TxManager, table string, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx := txm.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("copy into %s requires transaction context", table)
	}

	columns := ExtractDBColumns[T]()
	values := make([][]any, len(rows))
	for i, row := range rows {
		m := StructToMap(row)
		vals := make([]any, len(columns))
		for j, col := range columns {
			vals[j] = m[col]
		}
		values[i] = vals
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(values))
	if err != nil {
		return 0, MapError(err, table)
	}
	return n, nil
}
