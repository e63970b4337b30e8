// Package migrations embeds the monitor's SQL schema migrations. The bot
// applies them itself at startup; cmd/migrate drives the rest of the goose
// lifecycle out of process.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS

// Configure points goose at the embedded migration files and the sqlite
// dialect. Callers driving goose directly must call this first.
func Configure() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run applies all pending migrations so a fresh monitor database is usable
// without the migrate CLI.
func Run(db *sql.DB) error {
	if err := Configure(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
