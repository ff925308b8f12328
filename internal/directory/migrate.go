package directory

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the directory tables for driver if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	ddl, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %q: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("applying %s schema: %w", driver, err)
	}
	return nil
}
