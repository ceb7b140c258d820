package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/chargeplan/internal/recordstore/sqlstore"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the versioned postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the record store tables on dialects without versioned migrations.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(sqlstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate record store: %w", err)
	}
	return nil
}
