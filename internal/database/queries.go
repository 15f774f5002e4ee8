package database

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration

	"analytics-uploader/internal/events"
)

const colID = "id"

var ErrBuildingQueryFailed = errors.New("building query failed")

// Dialect pairs a database/sql driver name with the goqu dialect that
// quotes identifiers and numbers placeholders for it. DialectPostgres has no
// driver name: PostgresDriver talks to pgx directly and only builds queries
// with it, so it cannot back a SQLDriver.
type Dialect struct {
	DriverName string
	Goqu       string
}

var (
	DialectPostgres = Dialect{Goqu: "postgres"}
	DialectLibPQ    = Dialect{DriverName: "postgres", Goqu: "postgres"}
	DialectMySQL    = Dialect{DriverName: "mysql", Goqu: "mysql"}
	DialectSQLite   = Dialect{DriverName: "sqlite", Goqu: "sqlite3"}
)

func maxIDQuery(dialect Dialect, table string) (string, error) {
	query, _, err := goqu.Dialect(dialect.Goqu).
		From(table).
		Select(goqu.MAX(colID)).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}
	return query, nil
}

func insertQuery(dialect Dialect, table string, ev events.AnalyticsEvent) (string, []interface{}, error) {
	cols := make([]interface{}, len(events.Fields))
	for i, f := range events.Fields {
		cols[i] = f
	}

	query, args, err := goqu.Dialect(dialect.Goqu).
		Insert(table).
		Prepared(true).
		Cols(cols...).
		Vals(ev.Values()).
		ToSQL()
	if err != nil {
		return "", nil, errors.Join(ErrBuildingQueryFailed, fmt.Errorf("insert into %s: %w", table, err))
	}
	return query, args, nil
}
