// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/seed"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status|reset>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Open without database.Connect so that production runs are not skipped
	// by its environment check.
	db, err := gorm.Open(postgres.Open(database.DSN(cfg)), &gorm.Config{
		Logger: database.NewGormLogger(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.Migrate(db.WithContext(ctx)); err != nil {
			return err
		}
		log.Println("schema migrated")
	case "status":
		migrator := db.WithContext(ctx).Migrator()
		for _, m := range database.PersistentModels() {
			log.Printf("%-24T present=%t", m, migrator.HasTable(m))
		}
	case "reset":
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to reset a production database")
		}
		if err := seed.ClearAll(ctx, db); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		log.Println("all rows deleted")
	default:
		return usage()
	}

	return nil
}
