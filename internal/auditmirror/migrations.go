package auditmirror

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate runs the mirror's own schema migrations from sourceDir against
// dsn. The mirror's schema is versioned independently of the event log,
// which has no schema at all — one file per event (spec.md §6.1).
func Migrate(sourceDir, dsn string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", sourceDir), dsn)
	if err != nil {
		return fmt.Errorf("auditmirror: open migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("auditmirror: migrate up: %w", err)
	}
	return nil
}
