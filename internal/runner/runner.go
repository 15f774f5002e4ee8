package runner

import (
	"context"
	"fmt"

	"github.com/oarkflow/log"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/database"
	uperrors "analytics-uploader/internal/errors"
	"analytics-uploader/internal/events"
	"analytics-uploader/internal/upload"
)

// Run performs one resumable upload: connect, compute the resume offset,
// read and filter the source, sort it, skip what is stored, insert the rest.
// The connection is closed on every path. Errors are tagged with their kind.
func Run(ctx context.Context, cfg *config.Config, creds config.Credentials, db database.DatabaseDriver, logger *log.Logger, runID string) (*database.Result, error) {
	if err := db.Connect(ctx, creds); err != nil {
		return nil, uperrors.New(uperrors.KindConnection, fmt.Errorf("connect to %s: %w", cfg.Destination.Driver, err))
	}
	defer func() {
		if closeErr := db.Close(ctx); closeErr != nil {
			logger.Warn().Str("run_id", runID).Err(closeErr).Msg("failed to close connection")
		}
	}()

	uploader := upload.New(db,
		upload.WithCommitMode(cfg.Destination.Commit),
		upload.WithFirstID(cfg.Destination.FirstID),
		upload.WithLogger(logger),
		upload.WithRunID(runID),
	)

	offset, err := uploader.ResumeOffset(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("run_id", runID).Int("offset", offset).Msgf("starting from %d", offset)

	sorted, err := events.Collect(events.ReadFile(cfg.Source.Path, cfg.Source.Prefix()))
	if err != nil {
		return nil, err
	}
	events.SortByTime(sorted)

	return uploader.Upload(ctx, sorted, offset)
}

// Report logs the outcome of Run. A failure is logged once with its kind and
// otherwise swallowed; the process exits normally either way. The summary
// line is only written for successful runs.
func Report(logger *log.Logger, runID string, result *database.Result, err error) {
	if err != nil {
		entry := logger.Error().
			Str("run_id", runID).
			Str("kind", uperrors.KindOf(err).String())
		if row := uperrors.RowOf(err); row >= 0 {
			entry = entry.Int("row", row)
		}
		if result != nil {
			entry = entry.Int("offset", result.Offset).Int64("uploaded", result.Operations)
		}
		entry.Err(err).Msg("upload aborted")
		return
	}

	if result == nil {
		return
	}
	logger.Info().
		Str("run_id", runID).
		Int("offset", result.Offset).
		Int("read", result.Read).
		Int("skipped", result.Skipped).
		Int64("uploaded", result.Operations).
		Dur("average_latency", result.AverageLatency).
		Dur("p95_latency", result.P95Latency).
		Dur("p99_latency", result.P99Latency).
		Dur("total_time", result.TotalTime).
		Float64("throughput", result.Throughput).
		Msg("upload finished")
}
