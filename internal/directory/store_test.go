package directory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/internal/directory/directorytest"
)

func names(persons []directory.Person) []string {
	out := make([]string, len(persons))
	for i, p := range persons {
		out[i] = p.Name
	}
	return out
}

func TestImport(t *testing.T) {
	client := directorytest.NewSQLite(t)
	im := directory.NewImporter(client, directory.ImportOptions{Delimiter: ';', Encoding: "utf8"})

	stats, err := im.Import(context.Background(), strings.NewReader(directorytest.SeedCSV))
	require.NoError(t, err)
	assert.Equal(t, directory.ImportStats{
		Rows: 5, Persons: 4, Units: 3, SubAreas: 2, Skipped: 1,
	}, stats)

	again, err := im.Import(context.Background(), strings.NewReader(directorytest.SeedCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Persons)
	assert.Equal(t, 4, again.Existing)
	assert.Equal(t, 0, again.Units)
	assert.Equal(t, 0, again.SubAreas)
}

func TestImportLatin1(t *testing.T) {
	client := directorytest.NewSQLite(t)
	im := directory.NewImporter(client, directory.ImportOptions{})

	// "Peña" and "Teléfono" encoded as ISO-8859-1.
	raw := "Nombre;Tel\xe9fono;Circuito;Congregacion\nJos\xe9 Pe\xf1a;1;south 2;Sur\n"
	stats, err := im.Import(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Persons)

	persons, err := directory.NewSQLStore(client.DB).ListPersons(context.Background())
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "José Peña", persons[0].Name)
	assert.Equal(t, "1", persons[0].Phone)
}

func TestImportRejectsUnknownEncoding(t *testing.T) {
	client := directorytest.NewSQLite(t)
	im := directory.NewImporter(client, directory.ImportOptions{Encoding: "ebcdic"})
	_, err := im.Import(context.Background(), strings.NewReader("Nombre\nx\n"))
	assert.Error(t, err)
}

func TestTextFields(t *testing.T) {
	client := directorytest.Seeded(t, directorytest.SeedCSV)
	fields, err := directory.NewSQLStore(client.DB).TextFields(context.Background())
	require.NoError(t, err)
	for _, want := range []string{"Maria Gonzalez", "Central", "east 5", "north 12", "Barrio Alto", "Los Pinos"} {
		assert.Contains(t, fields, want)
	}
}

func TestListPersons(t *testing.T) {
	client := directorytest.Seeded(t, directorytest.SeedCSV)
	persons, err := directory.NewSQLStore(client.DB).ListPersons(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana Ruiz", "Luis Perez", "Maria Gonzalez", "Pedro Lopez"}, names(persons))

	maria := persons[2]
	require.NotNil(t, maria.Unit)
	assert.Equal(t, "Central", maria.Unit.Name)
	assert.Equal(t, "east 5", maria.Unit.Circuit)
	assert.Equal(t, "555-1234", maria.Phone)
	assert.Equal(t, []string{"Anciano", "Publicador"}, maria.Roles)

	assert.Empty(t, persons[1].Phone)
	assert.Empty(t, persons[1].Roles)
}

func TestFindPersons(t *testing.T) {
	client := directorytest.Seeded(t, directorytest.SeedCSV)
	store := directory.NewSQLStore(client.DB)

	tests := []struct {
		name   string
		filter directory.Filter
		want   []string
	}{
		{"person name, unit without sub-areas", directory.Filter{Terms: []string{"maria"}}, []string{"Maria Gonzalez"}},
		{"case-insensitive", directory.Filter{Terms: []string{"MARIA"}}, []string{"Maria Gonzalez"}},
		{"unit name", directory.Filter{Terms: []string{"oeste"}}, []string{"Luis Perez"}},
		{"sub-area name", directory.Filter{Terms: []string{"alto"}}, []string{"Ana Ruiz", "Pedro Lopez"}},
		{"terms are combined with AND", directory.Filter{Terms: []string{"alto", "ana"}}, []string{"Ana Ruiz"}},
		{"code on circuit", directory.Filter{Codes: []string{"north 12"}}, []string{"Ana Ruiz", "Pedro Lopez"}},
		{"code and term", directory.Filter{Codes: []string{"north 12"}, Terms: []string{"pedro"}}, []string{"Pedro Lopez"}},
		{"code never matches names", directory.Filter{Codes: []string{"central"}}, []string{}},
		{"like metacharacters are literal", directory.Filter{Terms: []string{"%"}}, []string{}},
		{"underscore is literal", directory.Filter{Terms: []string{"_"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindPersons(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFindPersonsIsDistinct(t *testing.T) {
	client := directorytest.Seeded(t, directorytest.SeedCSV)
	// Pedro's unit has two sub-areas, so the join yields two rows for him.
	got, err := directory.NewSQLStore(client.DB).FindPersons(context.Background(), directory.Filter{Terms: []string{"pedro"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pedro Lopez", got[0].Name)
}

func TestFindPersonsKeepsOrphans(t *testing.T) {
	client := directorytest.Seeded(t, directorytest.SeedCSV)
	_, err := client.DB.Exec(`INSERT INTO persons (name, phone, unit_id) VALUES ('Orfa Sinunidad', NULL, NULL)`)
	require.NoError(t, err)

	got, err := directory.NewSQLStore(client.DB).FindPersons(context.Background(), directory.Filter{Terms: []string{"orfa"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Unit)
}

func TestPing(t *testing.T) {
	client := directorytest.NewSQLite(t)
	assert.NoError(t, directory.NewSQLStore(client.DB).Ping(context.Background()))
}

func TestFindPersonsFoldsAccentedCapitals(t *testing.T) {
	client := directorytest.Seeded(t, "Nombre;Telefono;Circuito;Congregacion\nÁngel Álvarez;;Málaga 2;Óvalo\n")
	store := directory.NewSQLStore(client.DB)

	for _, f := range []directory.Filter{
		{Terms: []string{"ángel"}},
		{Terms: []string{"Álvarez"}},
		{Terms: []string{"óvalo"}},
		{Codes: []string{"málaga 2"}},
	} {
		got, err := store.FindPersons(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ángel Álvarez"}, names(got), "filter %+v", f)
	}
}
