package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/salesetl/internal/core"
)

// sqlStore is the database/sql implementation shared by sqlite and mysql.
type sqlStore struct {
	driver string
	db     *sql.DB
}

func openSQL(ctx context.Context, dest Destination) (*sqlStore, error) {
	dsn := dest.DSN
	switch dest.Driver {
	case DriverSQLite:
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DriverMySQL:
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
	}

	db, err := sql.Open(dest.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dest.Driver, err)
	}
	if dest.MaxConns > 0 {
		db.SetMaxOpenConns(dest.MaxConns)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", dest.Driver, err)
	}
	return newSQLStore(dest.Driver, db), nil
}

func newSQLStore(driver string, db *sql.DB) *sqlStore {
	return &sqlStore{driver: driver, db: db}
}

func (s *sqlStore) quote(ident string) string {
	if s.driver == DriverMySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func (s *sqlStore) columnType(k core.Kind) string {
	switch k {
	case core.KindInt:
		if s.driver == DriverMySQL {
			return "BIGINT"
		}
		return "INTEGER"
	case core.KindFloat:
		if s.driver == DriverMySQL {
			return "DOUBLE"
		}
		return "REAL"
	case core.KindTime:
		if s.driver == DriverMySQL {
			return "DATETIME"
		}
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (s *sqlStore) Replace(ctx context.Context, ds *core.Dataset, table string) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	cols := ds.Columns()
	for _, c := range cols {
		if err := checkTable(c.Name); err != nil {
			return 0, fmt.Errorf("column: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.quote(table)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = s.quote(c.Name)
		defs[i] = names[i] + " " + s.columnType(c.Kind)
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", s.quote(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for i := 0; i < ds.Len(); i++ {
		if _, err := stmt.ExecContext(ctx, rowArgs(ds, i)...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *sqlStore) Sample(ctx context.Context, table string, limit int) (*Sample, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", s.quote(table), limit))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	sample := &Sample{Table: table, Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
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

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// rowArgs returns row i as driver arguments. Nulls become nil.
func rowArgs(ds *core.Dataset, i int) []any {
	vals := ds.RowValues(i)
	args := make([]any, len(vals))
	for j, v := range vals {
		args[j] = v.Any()
	}
	return args
}
