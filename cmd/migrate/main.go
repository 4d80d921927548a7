package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/repository/postgres"
	"github.com/joho/godotenv"
)

const migrationsDir = "migrations"

func init() {
	time.Local = time.UTC
}

// Applies the SQL migrations in lexical order. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so reruns are safe.
func main() {
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		panic(err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		log.Fatalw("failed to read migrations directory", "dir", migrationsDir, "error", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(migrationsDir, name)
		contents, err := os.ReadFile(path)
		if err != nil {
			log.Fatalw("failed to read migration", "file", name, "error", err)
		}

		if _, err := db.Exec(string(contents)); err != nil {
			log.Fatalw("migration failed", "file", name, "error", err)
		}
		log.Infow("applied migration", "file", name)
	}

	log.Infow("migrations complete", "count", len(files))
}
