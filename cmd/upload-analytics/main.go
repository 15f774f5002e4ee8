package main

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/oarkflow/log"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/database"
	uperrors "analytics-uploader/internal/errors"
	"analytics-uploader/internal/runner"
)

func main() {
	logger := &log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.IOWriter{Writer: os.Stdout},
	}
	runID := uuid.NewString()

	cfg, err := config.LoadConfig(config.ConfigFileName)
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		runner.Report(logger, runID, nil, uperrors.New(uperrors.KindConfig, err))
		return
	}
	logger.Level = log.ParseLevel(cfg.Log.Level)

	creds, err := config.LoadCredentials(cfg.Credentials.Path, cfg.Credentials.Section)
	if err != nil {
		runner.Report(logger, runID, nil, uperrors.New(uperrors.KindConfig, err))
		return
	}

	driver, err := database.NewDriver(cfg.Destination.Driver, database.Options{
		Table:   cfg.Destination.Table,
		FirstID: cfg.Destination.FirstID,
	})
	if err != nil {
		runner.Report(logger, runID, nil, uperrors.New(uperrors.KindConfig, err))
		return
	}

	result, err := runner.Run(context.Background(), cfg, *creds, driver, logger, runID)
	runner.Report(logger, runID, result, err)
}
