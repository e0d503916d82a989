// Package migrations holds the chorerules schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed files/*.sql
var schemaFiles embed.FS

// Up brings the configuration, preset, analytics and outbox tables to the
// latest version. Applying an up-to-date database is a no-op.
func Up(ctx context.Context, db *sql.DB) error {
	files, err := fs.Sub(schemaFiles, "files")
	if err != nil {
		return fmt.Errorf("open migration files: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, files)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, r := range results {
		log.Printf("migration applied version=%d file=%s took=%s", r.Source.Version, r.Source.Path, r.Duration)
	}
	return nil
}
