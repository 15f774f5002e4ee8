package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/oarkflow/log"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/database"
	uperrors "analytics-uploader/internal/errors"
	"analytics-uploader/internal/events"
)

// Uploader inserts sorted events into the destination, resuming after the
// rows a previous run persisted.
type Uploader struct {
	db      database.DatabaseDriver
	commit  string
	firstID int64
	logger  *log.Logger
	runID   string
}

type Option func(*Uploader)

// WithCommitMode selects config.CommitTransaction (one transaction per run)
// or config.CommitRow (one per insert).
func WithCommitMode(mode string) Option {
	return func(u *Uploader) {
		u.commit = mode
	}
}

// WithFirstID sets the identifier the destination assigns to its first row.
func WithFirstID(id int64) Option {
	return func(u *Uploader) {
		u.firstID = id
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

func WithRunID(id string) Option {
	return func(u *Uploader) {
		u.runID = id
	}
}

func New(db database.DatabaseDriver, options ...Option) *Uploader {
	u := &Uploader{
		db:     db,
		commit: config.CommitTransaction,
		logger: &log.DefaultLogger,
	}
	for _, option := range options {
		option(u)
	}
	return u
}

// ResumeOffset returns how many sorted events are already stored: the highest
// identifier minus the first identifier plus one, or 0 for an empty table.
// It only reads.
func (u *Uploader) ResumeOffset(ctx context.Context) (int, error) {
	maxID, ok, err := u.db.MaxID(ctx)
	if err != nil {
		return 0, uperrors.New(uperrors.KindConnection, fmt.Errorf("query max id: %w", err))
	}
	if !ok {
		return 0, nil
	}

	n := maxID - u.firstID + 1
	if n < 0 {
		return 0, uperrors.New(uperrors.KindConfig, fmt.Errorf("max id %d is below first id %d", maxID, u.firstID))
	}
	return int(n), nil
}

// Skip drops the first n events. Asking for more than len(sorted) is an
// error; n == len(sorted) leaves nothing to upload.
func Skip(sorted []events.AnalyticsEvent, n int) ([]events.AnalyticsEvent, error) {
	if n < 0 {
		return nil, uperrors.New(uperrors.KindSkipPastEnd, fmt.Errorf("negative offset %d", n))
	}
	if n > len(sorted) {
		return nil, uperrors.New(uperrors.KindSkipPastEnd, fmt.Errorf("offset %d exceeds %d records", n, len(sorted)))
	}
	return sorted[n:], nil
}

// Upload skips offset events and inserts the rest one at a time, logging the
// wall-clock time of each insert. The first failing insert stops the loop. In
// transaction mode nothing from the run is kept on failure; in row mode the
// rows before the failure stay committed.
func (u *Uploader) Upload(ctx context.Context, sorted []events.AnalyticsEvent, offset int) (*database.Result, error) {
	result := &database.Result{
		Offset: offset,
		Read:   len(sorted),
	}
	totalStartTime := time.Now()

	pending, err := Skip(sorted, offset)
	if err != nil {
		return result, err
	}
	result.Skipped = offset

	histogram := newLatencyHistogram()

	insert := func(tx database.Tx, row int, ev events.AnalyticsEvent) error {
		opStartTime := time.Now()
		if err := tx.Insert(ctx, ev); err != nil {
			u.logger.Error().
				Str("run_id", u.runID).
				Int("row", row).
				Str("code", database.ErrorCode(err)).
				Err(err).
				Msg("insert failed")
			return uperrors.NewRowError(uperrors.KindInsert, row, err)
		}
		latency := time.Since(opStartTime)
		u.recordLatency(histogram, row, latency)
		u.logger.Info().
			Str("run_id", u.runID).
			Int("row", row).
			Dur("duration", latency).
			Str("time", ev.Time).
			Msg("processed row")
		return nil
	}

	switch u.commit {
	case config.CommitRow:
		err = u.uploadPerRow(ctx, pending, offset, insert, result)
	default:
		err = u.uploadInTransaction(ctx, pending, offset, insert, result, histogram)
	}
	if err != nil {
		result.Errors++
	}

	result.TotalTime = time.Since(totalStartTime)
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.Throughput = float64(result.Operations) / secs
	}
	result.AverageLatency = time.Duration(histogram.Mean()) * time.Microsecond
	result.P95Latency = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
	result.P99Latency = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond

	return result, err
}

// maxTrackedLatency bounds the histogram. Inserts too slow for it to hold are
// logged and left out of the percentiles.
const maxTrackedLatency = 10 * time.Second

// Latencies are recorded in microseconds, 3 significant figures.
func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, maxTrackedLatency.Microseconds(), 3)
}

func (u *Uploader) recordLatency(histogram *hdrhistogram.Histogram, row int, latency time.Duration) {
	if err := histogram.RecordValue(latency.Microseconds()); err != nil {
		u.logger.Warn().
			Str("run_id", u.runID).
			Int("row", row).
			Dur("duration", latency).
			Err(err).
			Msg("latency not recorded")
	}
}

type insertFunc func(tx database.Tx, row int, ev events.AnalyticsEvent) error

func (u *Uploader) uploadInTransaction(
	ctx context.Context,
	pending []events.AnalyticsEvent,
	offset int,
	insert insertFunc,
	result *database.Result,
	histogram *hdrhistogram.Histogram,
) error {
	started := false
	inserted := int64(0)

	err := u.db.ExecuteTx(ctx, func(tx database.Tx) error {
		// the driver may retry the whole transaction
		started = true
		inserted = 0
		histogram.Reset()

		for i, ev := range pending {
			if err := insert(tx, offset+i, ev); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})

	switch {
	case err == nil:
		result.Operations = inserted
		return nil
	case uperrors.KindOf(err) != uperrors.KindUnknown:
		return err
	case !started:
		return uperrors.New(uperrors.KindConnection, fmt.Errorf("begin transaction: %w", err))
	default:
		return uperrors.New(uperrors.KindInsert, fmt.Errorf("commit: %w", err))
	}
}

func (u *Uploader) uploadPerRow(
	ctx context.Context,
	pending []events.AnalyticsEvent,
	offset int,
	insert insertFunc,
	result *database.Result,
) error {
	for i, ev := range pending {
		row := offset + i
		started := false

		err := u.db.ExecuteTx(ctx, func(tx database.Tx) error {
			started = true
			return insert(tx, row, ev)
		})
		switch {
		case err == nil:
			result.Operations++
		case uperrors.KindOf(err) != uperrors.KindUnknown:
			return err
		case !started:
			return uperrors.NewRowError(uperrors.KindConnection, row, fmt.Errorf("begin transaction: %w", err))
		default:
			return uperrors.NewRowError(uperrors.KindInsert, row, fmt.Errorf("commit: %w", err))
		}
	}
	return nil
}
