package load

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/salesetl/internal/core"
)

// pgStore loads through a pgx pool using the COPY protocol.
type pgStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dest Destination) (*pgStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dest.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if dest.MaxConns > 0 {
		poolConfig.MaxConns = int32(dest.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func pgColumnType(k core.Kind) string {
	switch k {
	case core.KindInt:
		return "BIGINT"
	case core.KindFloat:
		return "DOUBLE PRECISION"
	case core.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (s *pgStore) Replace(ctx context.Context, ds *core.Dataset, table string) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	cols := ds.Columns()
	ident := pgx.Identifier{table}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + pgColumnType(c.Kind)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, names,
		pgx.CopyFromSlice(ds.Len(), func(i int) ([]any, error) {
			return rowArgs(ds, i), nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *pgStore) Sample(ctx context.Context, table string, limit int) (*Sample, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgx.Identifier{table}.Sanitize(), limit))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	sample := &Sample{Table: table}
	for _, fd := range rows.FieldDescriptions() {
		sample.Columns = append(sample.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i := range vals {
			vals[i] = formatValue(vals[i])
		}
		sample.Rows = append(sample.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return sample, nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}
