// Package directorytest provides a seeded in-memory directory for tests.
package directorytest

import (
	"context"
	"strings"
	"testing"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
)

// SeedCSV is a small directory in the seed file format. Central and Oeste
// have no sub-areas; the last row has no name and is skipped.
const SeedCSV = `Nombre;Telefono;Circuito;Congregacion;Privilegios;Territorios
Maria Gonzalez;555-1234;east 5;Central;Anciano,Publicador;
Pedro Lopez;;north 12;Norte;;Barrio Alto|Los Pinos
Ana Ruiz;555-9876;north 12;Norte;Precursor Regular;
Luis Perez;;west 3;Oeste;;
;555-0000;west 3;Oeste;;
`

// NewSQLite returns a migrated, empty in-memory SQLite directory.
func NewSQLite(t testing.TB) *database.Client {
	t.Helper()
	client, err := database.New(config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := directory.Migrate(context.Background(), client.DB, client.Driver); err != nil {
		t.Fatalf("migrating sqlite: %v", err)
	}
	return client
}

// Seeded returns an in-memory directory loaded with csv.
func Seeded(t testing.TB, csv string) *database.Client {
	t.Helper()
	client := NewSQLite(t)
	im := directory.NewImporter(client, directory.ImportOptions{Delimiter: ';', Encoding: "utf8"})
	if _, err := im.Import(context.Background(), strings.NewReader(csv)); err != nil {
		t.Fatalf("seeding directory: %v", err)
	}
	return client
}
