package main

import (
	"context"
	"os"

	"caretrack/internal/backup"
	"caretrack/internal/cli"
	applog "caretrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentBackup)
	cfg := cli.LoadAndValidateConfig(logger)

	result := cli.InitStore(logger, cfg)
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Storage cleanup error", "error", err)
			}
		}
	}()

	ctx, stop := cli.SignalContext()
	defer stop()

	worker := backup.NewWorker(result.Store, cfg.BackupDir, cfg.BackupInterval, cfg.BackupKeep)

	logger.Info("Starting backup worker",
		"dir", cfg.BackupDir,
		"interval", cfg.BackupInterval.String(),
		"keep", cfg.BackupKeep,
	)
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Backup worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("Backup worker stopped")
}
