// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"bloghub/internal/bootstrap"
	"bloghub/internal/config"
	"bloghub/internal/database"
	"bloghub/internal/repository"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <auto|status|backfill-pending>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}
	if err := bootstrap.LoadEnv(); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Connect applies the schema on its own when this is set.
	cfg.DBAutoMigrate = false

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "auto":
		if err := database.ApplySchema(ctx, db); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		log.Printf("driver=%s ready=%t missing_tables=%d missing_indexes=%d",
			status.Driver, status.Ready(), len(status.MissingTables), len(status.MissingIndexes))
		for _, t := range status.MissingTables {
			log.Printf("missing table: %s", t)
		}
		for _, i := range status.MissingIndexes {
			log.Printf("missing index: %s", i)
		}
	case "backfill-pending":
		n, err := repository.NewUserRepository(db).BackfillPending(ctx)
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		log.Printf("moved %d users from none to pending", n)
	default:
		return usage()
	}
	return nil
}
