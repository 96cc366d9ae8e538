package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/moneo-app/moneo/internal/cache"
	"github.com/moneo-app/moneo/internal/config"
	"github.com/moneo-app/moneo/internal/database"
	moneoHttp "github.com/moneo-app/moneo/internal/http"
	migrateHandler "github.com/moneo-app/moneo/internal/http/migrate"
	syncHandler "github.com/moneo-app/moneo/internal/http/syncapi"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/migration"
	"github.com/moneo-app/moneo/internal/notify"
	"github.com/moneo-app/moneo/internal/savings"
	"github.com/moneo-app/moneo/internal/store/postgres"
	"github.com/moneo-app/moneo/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	var (
		entityStore = postgres.New(db)
		userLocks   = lock.NewKeyed()
		savingLocks = lock.NewKeyed()
		runCache    = cache.New(5 * time.Minute)
		notifier    = notify.New(cfg.Notify.Provider)
		ledger      = savings.NewLedger(entityStore, savingLocks)
		importer    = migration.NewImporter(entityStore, ledger, userLocks, runCache, notifier)
		syncService = syncer.NewService(entityStore, userLocks)
	)

	var (
		migrationH = migrateHandler.NewHandler(importer)
		syncH      = syncHandler.NewHandler(syncService)
	)

	router := moneoHttp.New(cfg.Auth.JWTSecret, cfg.Server.AllowedOrigins, migrationH, syncH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
