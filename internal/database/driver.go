package database

import (
	"context"
	"fmt"
	"time"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/events"
)

// Result summarises one upload run.
type Result struct {
	Offset         int
	Read           int
	Skipped        int
	Operations     int64
	Errors         int64
	Throughput     float64
	P95Latency     time.Duration
	P99Latency     time.Duration
	AverageLatency time.Duration
	TotalTime      time.Duration
}

// Tx inserts events inside a transaction opened by DatabaseDriver.ExecuteTx.
type Tx interface {
	Insert(ctx context.Context, ev events.AnalyticsEvent) error
}

// DatabaseDriver is the destination store. ExecuteTx commits when txFunc
// returns nil and rolls back otherwise.
type DatabaseDriver interface {
	Connect(ctx context.Context, creds config.Credentials) error
	Close(ctx context.Context) error
	// MaxID reports the largest identifier in the table; ok is false when the
	// table is empty.
	MaxID(ctx context.Context) (maxID int64, ok bool, err error)
	ExecuteTx(ctx context.Context, txFunc func(Tx) error) error
}

// Options are shared by every driver.
type Options struct {
	Table string
	// FirstID is the identifier of the first row in an empty table. Only the
	// mongo driver assigns identifiers itself; SQL tables use their own.
	FirstID int64
}

// NewDriver returns an unconnected driver by name.
func NewDriver(name string, opts Options) (DatabaseDriver, error) {
	dbs := map[string]func(Options) DatabaseDriver{
		"postgres": func(o Options) DatabaseDriver { return NewPostgresDriver(o) },
		"libpq":    func(o Options) DatabaseDriver { return NewSQLDriver(DialectLibPQ, o) },
		"mysql":    func(o Options) DatabaseDriver { return NewSQLDriver(DialectMySQL, o) },
		"sqlite":   func(o Options) DatabaseDriver { return NewSQLDriver(DialectSQLite, o) },
		"mongo":    func(o Options) DatabaseDriver { return NewMongoDriver(o) },
	}

	newDriver, ok := dbs[name]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", name)
	}
	return newDriver(opts), nil
}
