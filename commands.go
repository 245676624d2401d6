package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/username/aptledger/backend/src/config"
	"github.com/username/aptledger/backend/src/handlers"
	"github.com/username/aptledger/backend/src/logger"
	"github.com/username/aptledger/backend/src/migration"
	"github.com/username/aptledger/backend/src/models"
	"github.com/username/aptledger/backend/src/services"
	"github.com/username/aptledger/backend/src/store"
)

const shutdownTimeout = 10 * time.Second

// --- serveCmd ---

type serveCmd struct {
	port     string
	dataFile string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "migrates the record store if needed, then serves the dashboard API" }
func (*serveCmd) Usage() string {
	return `serve [-port <port>] [-data <file>]

Upgrades the record store to the current column layout, then serves
GET /load, POST /save, POST /delete, POST /reset and static files.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Port to listen on. Overrides PORT.")
	f.StringVar(&c.dataFile, "data", "", "Path of the CSV record store. Overrides DATA_FILE_PATH.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.LoadConfig()
	if c.port != "" {
		cfg.Port = c.port
	}
	if c.dataFile != "" {
		cfg.DataFilePath = c.dataFile
	}
	logger.InitLogger(cfg.LogLevel)

	logger.L.Info("Record dashboard server starting...")

	recordStore := store.NewCSVStore(cfg.DataFilePath, models.CurrentSchema)
	if _, err := migrateStore(cfg, recordStore); err != nil {
		logger.L.Error("Record store migration failed, refusing to start", "path", cfg.DataFilePath, "error", err)
		return subcommands.ExitFailure
	}

	recordService := services.NewRecordService(recordStore, models.CurrentSchema, services.Options{
		MaxFieldLength: cfg.MaxFieldLength,
		SanitizeHTML:   cfg.SanitizeHTML,
		CacheTTL:       cfg.LoadCacheTTL,
	})
	recordHandler := handlers.NewRecordHandler(recordService, cfg.MaxBodyBytes)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, recordHandler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Dashboard running", "address", server.Addr, "url", "http://localhost:"+cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		logger.L.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

// --- migrateCmd ---

type migrateCmd struct {
	dataFile string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "upgrades the record store to the current column layout and exits" }
func (*migrateCmd) Usage() string {
	return `migrate [-data <file>]

Rewrites the CSV record store with the current header if it uses an older
layout. The original file is copied next to it with the backup suffix first.
A store that is missing, empty or already current is left untouched.
`
}
func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataFile, "data", "", "Path of the CSV record store. Overrides DATA_FILE_PATH.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.LoadConfig()
	if c.dataFile != "" {
		cfg.DataFilePath = c.dataFile
	}
	logger.InitLogger(cfg.LogLevel)

	res, err := migrateStore(cfg, store.NewCSVStore(cfg.DataFilePath, models.CurrentSchema))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error migrating %s: %v\n", cfg.DataFilePath, err)
		return subcommands.ExitFailure
	}
	if !res.Migrated {
		fmt.Printf("%s is up to date, nothing to do.\n", cfg.DataFilePath)
		return subcommands.ExitSuccess
	}
	fmt.Printf("Upgraded %s (%d rows). Backup saved as %s\n", cfg.DataFilePath, res.Rows, res.BackupPath)
	return subcommands.ExitSuccess
}

func migrateStore(cfg *config.AppConfig, recordStore *store.CSVStore) (migration.Result, error) {
	return migration.NewSchemaMigrator(recordStore, models.CurrentSchema, cfg.BackupSuffix).Migrate()
}
