package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/lumenhub-core/internal/infrastructure/config"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/database"
	"github.com/nerrad567/lumenhub-core/migrations"
)

const migrateUsage = "usage: lumenhub migrate status|up|down"

var errMigrateUsage = errors.New(migrateUsage)

// runMigrate manages the device directory schema without starting the hub.
//
//	status  list applied and pending migrations
//	up      apply pending migrations
//	down    roll back the most recent migration
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errMigrateUsage
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == database.MemoryPath {
		return fmt.Errorf("database path is %s; nothing to migrate", database.MemoryPath)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly, nothing to flush

	m := database.NewMigrator(db, migrations.FS, ".")

	switch args[0] {
	case "status":
		applied, pending, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, rec := range applied {
			fmt.Fprintf(out, "applied  %s  %s\n", rec.Version, rec.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, mig := range pending {
			fmt.Fprintf(out, "pending  %s  %s\n", mig.Version, mig.Name)
		}
		return nil
	case "up":
		if err := m.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "down":
		if err := m.MigrateDown(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back latest migration")
		return nil
	default:
		return errMigrateUsage
	}
}
