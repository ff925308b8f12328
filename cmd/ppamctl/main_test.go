package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory/directorytest"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/engine"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/formatter"
)

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PPAM_DATABASE_DRIVER", "sqlite3")
	t.Setenv("PPAM_SQLITE_PATH", filepath.Join(dir, "ppam.db"))
	t.Setenv("PPAM_KAFKA_ENABLED", "false")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"ppamctl"}, args...))
	return out.String(), err
}

func TestMigrateSeedAndSearch(t *testing.T) {
	dir := sqliteEnv(t)
	csvPath := filepath.Join(dir, "seed.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(directorytest.SeedCSV), 0o600))

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated sqlite3 schema")

	out, err = run(t, "seed", "--file", csvPath, "--encoding", "utf8")
	require.NoError(t, err)
	assert.Contains(t, out, "persons=4")
	assert.Contains(t, out, "skipped=1")

	out, err = run(t, "search", "maria")
	require.NoError(t, err)
	assert.Contains(t, out, "Maria Gonzalez")
	assert.Contains(t, out, "east 5")
}

func TestSeedRejectsMultiCharDelimiter(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "seed", "--file", "x.csv", "--delimiter", ";;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single character")
}

func TestSeedMissingFile(t *testing.T) {
	dir := sqliteEnv(t)
	t.Setenv("PPAM_SEED_FILE", filepath.Join(dir, "missing.csv"))
	_, err := run(t, "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening seed file")
}

func TestSeedUsesDirectoryConfig(t *testing.T) {
	dir := sqliteEnv(t)
	latin1, err := charmap.ISO8859_1.NewEncoder().String(
		"Nombre;Telefono;Circuito;Congregacion\nJosé Muñoz;555-1111;Málaga 2;Peñón\n")
	require.NoError(t, err)
	seedPath := filepath.Join(dir, "contactos.csv")
	require.NoError(t, os.WriteFile(seedPath, []byte(latin1), 0o600))
	t.Setenv("PPAM_SEED_FILE", seedPath)

	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "persons=1")

	out, err = run(t, "search", "muñoz")
	require.NoError(t, err)
	assert.Contains(t, out, "José Muñoz")
	assert.Contains(t, out, "Málaga 2")
}

func TestSeedFlagsOverrideDirectoryConfig(t *testing.T) {
	dir := sqliteEnv(t)
	t.Setenv("PPAM_SEED_FILE", filepath.Join(dir, "missing.csv"))
	csvPath := filepath.Join(dir, "seed.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("Nombre,Telefono,Circuito,Congregacion\nAna Ruiz,,north 12,Norte\n"), 0o600))

	out, err := run(t, "seed", "-f", csvPath, "--delimiter", ",", "--encoding", "utf8")
	require.NoError(t, err)
	assert.Contains(t, out, "persons=1")
}

func TestRebuildWithoutKafkaOrURL(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "rebuild")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url")
}

func TestRebuildOverHTTP(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"rebuilt"}`))
	}))
	defer srv.Close()

	out, err := run(t, "rebuild", "--url", srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "POST /api/v1/index/rebuild", gotPath)
	assert.Contains(t, out, "rebuilt")
}

func TestRebuildOverHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := run(t, "rebuild", "--url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestPrintResult(t *testing.T) {
	result := &engine.Result{
		Total: 1,
		Results: []formatter.Record{
			{ID: 1, Name: "Ana Ruiz", Phone: "555-9876", GroupingCode: "north 12", UnitName: "Norte", RoleTags: []string{"Precursor Regular"}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, result, false))
	assert.Contains(t, buf.String(), "[Precursor Regular]")
	assert.Contains(t, buf.String(), "1 result(s)")

	buf.Reset()
	require.NoError(t, printResult(&buf, result, true))
	assert.Contains(t, buf.String(), `"grouping_code": "north 12"`)
}
