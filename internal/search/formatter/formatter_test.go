package formatter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
)

func TestFormat(t *testing.T) {
	unit := &directory.Unit{ID: 7, Name: "Central", Circuit: "east 5"}
	rec, ok := Format(directory.Person{ID: 1, Name: "Maria Gonzalez", Phone: "555", UnitID: 7, Unit: unit, Roles: []string{"Anciano"}})
	if !ok {
		t.Fatal("expected person to format")
	}
	want := Record{ID: 1, Name: "Maria Gonzalez", Phone: "555", GroupingCode: "east 5", UnitName: "Central", RoleTags: []string{"Anciano"}}
	if rec.ID != want.ID || rec.Name != want.Name || rec.GroupingCode != want.GroupingCode || rec.UnitName != want.UnitName || len(rec.RoleTags) != 1 {
		t.Errorf("Format() = %+v, want %+v", rec, want)
	}
}

func TestFormatRoleTagsNeverNull(t *testing.T) {
	rec, _ := Format(directory.Person{ID: 1, Name: "x", Unit: &directory.Unit{}})
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"role_tags":[]`) {
		t.Errorf("expected empty role_tags array, got %s", data)
	}
}

func TestFormatAllSkipsOrphans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	persons := []directory.Person{
		{ID: 1, Name: "a", Unit: &directory.Unit{Name: "u"}},
		{ID: 2, Name: "orphan", UnitID: 99},
		{ID: 3, Name: "c", Unit: &directory.Unit{Name: "u"}},
	}
	records := FormatAll(persons, logger)
	if len(records) != 2 || records[0].ID != 1 || records[1].ID != 3 {
		t.Fatalf("FormatAll() = %+v", records)
	}
	if !strings.Contains(buf.String(), "person_id=2") {
		t.Errorf("expected skipped person to be logged, got %q", buf.String())
	}
}
