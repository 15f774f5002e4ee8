package database

import (
	"context"
	"errors"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/events"
)

var ErrNotConnected = errors.New("driver is not connected")

type PostgresDriver struct {
	conn *pgx.Conn
	opts Options
}

func NewPostgresDriver(opts Options) *PostgresDriver {
	return &PostgresDriver{opts: opts}
}

// postgresURL builds a postgres:// connection string. Special characters in
// the username or password are escaped.
func postgresURL(creds config.Credentials) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   creds.Hostname,
		Path:   "/" + creds.Database,
	}
	return u.String()
}

func (pd *PostgresDriver) Connect(ctx context.Context, creds config.Credentials) error {
	return pd.ConnectDSN(ctx, postgresURL(creds))
}

// ConnectDSN connects with a ready-made connection string.
func (pd *PostgresDriver) ConnectDSN(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	pd.conn = conn
	return nil
}

func (pd *PostgresDriver) Close(ctx context.Context) error {
	if pd.conn == nil {
		return nil
	}
	return pd.conn.Close(ctx)
}

func (pd *PostgresDriver) MaxID(ctx context.Context) (int64, bool, error) {
	if pd.conn == nil {
		return 0, false, ErrNotConnected
	}

	query, err := maxIDQuery(DialectPostgres, pd.opts.Table)
	if err != nil {
		return 0, false, err
	}

	var maxID pgtype.Int8
	if err := pd.conn.QueryRow(ctx, query).Scan(&maxID); err != nil {
		return 0, false, err
	}
	return maxID.Int64, maxID.Valid, nil
}

func (pd *PostgresDriver) ExecuteTx(ctx context.Context, txFunc func(Tx) error) (err error) {
	if pd.conn == nil {
		return ErrNotConnected
	}

	tx, err := pd.conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p) // re-panic after rollback
		} else if err != nil {
			tx.Rollback(ctx) // err is non-nil; don't change it
		} else {
			err = tx.Commit(ctx) // err is nil; if Commit returns error, update err
		}
	}()

	err = txFunc(&postgresTx{tx: tx, table: pd.opts.Table})
	return err
}

type postgresTx struct {
	tx    pgx.Tx
	table string
}

func (t *postgresTx) Insert(ctx context.Context, ev events.AnalyticsEvent) error {
	query, args, err := insertQuery(DialectPostgres, t.table, ev)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, query, args...)
	return err
}
