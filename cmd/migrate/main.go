package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/pscheid92/accounthub/internal/database"
)

func main() {
	var (
		dbPath  = flag.String("db", os.Getenv("DB_PATH"), "SQLite database path (or set DB_PATH env)")
		verbose = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Database path required (--db or DB_PATH env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	store, err := database.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	slog.Info("Running migrations", "path", *dbPath)
	if err := store.RunMigrations(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	slog.Info("Migrations complete")
}
