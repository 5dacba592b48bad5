/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, environment, flags)
  2. Open the record store (SQLite file, or memory with -db=":mem:")
     If the file cannot be opened, every API call answers 503
  3. Seed the default roster into an empty store
  4. Build controller, backup service and HTTP router
  5. Start the backup scheduler when an interval is set
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the backup scheduler
  4. Close database connection

EXAMPLES:
  ./server -db="./data/absence.db"
  ./server -db=":mem:" -log-level=debug
  ABSENCE_BACKUP_INTERVAL=6h ./server

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/absence/store"
	"github.com/warp/absence-tracker/api"
	"github.com/warp/absence-tracker/backup"
	"github.com/warp/absence-tracker/config"
	"github.com/warp/absence-tracker/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log := cfg.NewLogger()

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	recordStore, closeStore := openStore(cfg, log)
	defer closeStore()

	ctrl := absence.NewController(recordStore, absence.WithLogger(log))

	if cfg.Seed {
		created, err := absence.NewRoster(recordStore, log).SeedIfEmpty(context.Background())
		if err != nil {
			log.WithError(err).Warn("failed to seed default employees")
		} else if created > 0 {
			log.WithField("count", created).Info("seeded empty roster")
		}
	}

	sink, err := openSink(cfg.Backup)
	if err != nil {
		return fmt.Errorf("failed to open backup sink: %w", err)
	}
	backups := backup.NewService(ctrl, sink, cfg.Backup.Compress, log)

	scheduler := backup.NewScheduler(backups, cfg.Backup.Interval, log)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(recordStore, ctrl, backups, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore never fails: a store that cannot be opened is replaced by one
// that answers every call with StorageUnavailable.
func openStore(cfg config.Config, log *logrus.Logger) (absence.RecordStore, func()) {
	if cfg.UseMemoryStore() {
		log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), func() {}
	}

	db, err := sqlite.New(cfg.DBPath, sqlite.WithLogger(log))
	if err != nil {
		log.WithError(err).WithField("db", cfg.DBPath).Error("storage unavailable")
		return store.NewUnavailable(err), func() {}
	}
	return db, func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}
}

func openSink(cfg config.BackupConfig) (backup.Sink, error) {
	switch cfg.Driver {
	case string(backup.DriverS3):
		return backup.NewS3Sink(context.Background(), backup.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	default:
		return backup.NewFileSink(cfg.Dir)
	}
}
