package directory_test

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/internal/directory/directorytest"
	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *database.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	db, err := database.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:         envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:     envOrDefault("TEST_POSTGRES_DB", "ppam_test"),
		User:         envOrDefault("TEST_POSTGRES_USER", "postgres"),
		Password:     envOrDefault("TEST_POSTGRES_PASSWORD", "postgres"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func TestPostgresStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	require.NoError(t, directory.Migrate(ctx, db.DB, db.Driver))
	_, err := db.DB.ExecContext(ctx, `TRUNCATE person_roles, persons, roles, sub_areas, units RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	im := directory.NewImporter(db, directory.ImportOptions{Delimiter: ';', Encoding: "utf8"})
	stats, err := im.Import(ctx, strings.NewReader(directorytest.SeedCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Persons)

	store := directory.NewSQLStore(db.DB)
	persons, err := store.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, persons, 4)

	got, err := store.FindPersons(ctx, directory.Filter{Codes: []string{"north 12"}, Terms: []string{"alto"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ana Ruiz", "Pedro Lopez"}, names(got))

	fields, err := store.TextFields(ctx)
	require.NoError(t, err)
	assert.Contains(t, fields, "Barrio Alto")
}
