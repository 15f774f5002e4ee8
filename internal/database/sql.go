package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/events"
)

const defaultMySQLPort = "3306"

var ErrNoSQLDriver = errors.New("dialect has no database/sql driver")

// SQLDriver writes through database/sql. It serves MySQL, Postgres via
// lib/pq, and SQLite files.
type SQLDriver struct {
	db      *sqlx.DB
	dialect Dialect
	opts    Options
}

func NewSQLDriver(dialect Dialect, opts Options) *SQLDriver {
	return &SQLDriver{dialect: dialect, opts: opts}
}

// DSN renders creds in the format the dialect's driver expects. For SQLite
// the database field is the file path.
func (sd *SQLDriver) DSN(creds config.Credentials) string {
	switch sd.dialect {
	case DialectMySQL:
		cfg := mysql.NewConfig()
		cfg.User = creds.Username
		cfg.Passwd = creds.Password
		cfg.Net = "tcp"
		cfg.Addr = withDefaultPort(creds.Hostname, defaultMySQLPort)
		cfg.DBName = creds.Database
		return cfg.FormatDSN()
	case DialectSQLite:
		return creds.Database
	default:
		return postgresURL(creds)
	}
}

func withDefaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}

func (sd *SQLDriver) Connect(ctx context.Context, creds config.Credentials) error {
	if sd.dialect.DriverName == "" {
		return fmt.Errorf("%w: %s", ErrNoSQLDriver, sd.dialect.Goqu)
	}
	db, err := sqlx.ConnectContext(ctx, sd.dialect.DriverName, sd.DSN(creds))
	if err != nil {
		return err
	}
	if sd.dialect == DialectSQLite {
		// one writer; a second pooled connection would block on the file lock
		db.SetMaxOpenConns(1)
	}
	sd.db = db
	return nil
}

func (sd *SQLDriver) Close(_ context.Context) error {
	if sd.db == nil {
		return nil
	}
	return sd.db.Close()
}

func (sd *SQLDriver) MaxID(ctx context.Context) (int64, bool, error) {
	if sd.db == nil {
		return 0, false, ErrNotConnected
	}

	query, err := maxIDQuery(sd.dialect, sd.opts.Table)
	if err != nil {
		return 0, false, err
	}

	var maxID sql.NullInt64
	if err := sd.db.GetContext(ctx, &maxID, query); err != nil {
		return 0, false, err
	}
	return maxID.Int64, maxID.Valid, nil
}

func (sd *SQLDriver) ExecuteTx(ctx context.Context, txFunc func(Tx) error) (err error) {
	if sd.db == nil {
		return ErrNotConnected
	}

	tx, err := sd.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = txFunc(&sqlTx{tx: tx, dialect: sd.dialect, table: sd.opts.Table})
	return err
}

type sqlTx struct {
	tx      *sqlx.Tx
	dialect Dialect
	table   string
}

func (t *sqlTx) Insert(ctx context.Context, ev events.AnalyticsEvent) error {
	query, args, err := insertQuery(t.dialect, t.table, ev)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}
