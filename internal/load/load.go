// Package load writes a validated dataset into a relational table and reads
// samples back for confirmation.
//
// Every write is a full replace inside one transaction: the table is dropped,
// recreated from the dataset's columns and filled. Any error rolls the
// transaction back, so a failed load never leaves a partial table behind.
package load

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/JonMunkholm/salesetl/internal/core"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("invalid table name")
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Destination names a database to load into.
type Destination struct {
	Driver   string
	DSN      string
	MaxConns int
}

func (d Destination) String() string {
	return d.Driver + ":" + redact(d.Driver, d.DSN)
}

// Store is an open connection to a destination.
type Store interface {
	// Replace drops table, recreates it from ds and inserts every row.
	// It returns the number of rows written.
	Replace(ctx context.Context, ds *core.Dataset, table string) (int64, error)

	// Sample returns up to limit rows of table.
	Sample(ctx context.Context, table string, limit int) (*Sample, error)

	Close() error
}

// Sample is a read-back of the first rows of a table.
type Sample struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Open connects to dest.
func Open(ctx context.Context, dest Destination) (Store, error) {
	switch dest.Driver {
	case DriverSQLite, DriverMySQL:
		s, err := openSQL(ctx, dest)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := openPostgres(ctx, dest)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, dest.Driver)
	}
}

// Load opens dest, replaces table with ds and closes the connection.
func Load(ctx context.Context, dest Destination, ds *core.Dataset, table string) (int64, error) {
	store, err := Open(ctx, dest)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	return store.Replace(ctx, ds, table)
}

// Verify opens dest and reads up to limit rows of table.
func Verify(ctx context.Context, dest Destination, table string, limit int) (*Sample, error) {
	store, err := Open(ctx, dest)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Sample(ctx, table, limit)
}

func checkTable(table string) error {
	if !identRegex.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}

// formatValue converts a scanned database value to something JSON and table
// renderers can print.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.DateTime)
	default:
		return val
	}
}
