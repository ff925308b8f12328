// Package directory is the read side of the contact directory: persons,
// the units (congregations) they belong to and the sub-areas (territories)
// of each unit. The search engine only reads through Store; the importer is
// the single writer and is used for seeding.
package directory

import "context"

type Person struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Phone  string   `json:"phone,omitempty"`
	UnitID int64    `json:"unit_id"`
	Unit   *Unit    `json:"unit,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

type Unit struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Circuit  string    `json:"circuit"`
	SubAreas []SubArea `json:"sub_areas,omitempty"`
}

type SubArea struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UnitID int64  `json:"unit_id"`
}

// Filter is the AND-of-ORs predicate of one query clause. Every code must
// appear in the unit circuit and every term must appear in the person name,
// the unit name or one of the unit's sub-area names. Matching is
// case-insensitive substring matching.
type Filter struct {
	Codes []string
	Terms []string
}

func (f Filter) Empty() bool {
	return len(f.Codes) == 0 && len(f.Terms) == 0
}

// Store is the directory as seen by the search engine.
type Store interface {
	// TextFields returns every person name, unit name, unit circuit and
	// sub-area name for vocabulary construction.
	TextFields(ctx context.Context) ([]string, error)
	// ListPersons returns the whole directory ordered by name.
	ListPersons(ctx context.Context) ([]Person, error)
	// FindPersons returns the distinct persons satisfying f, ordered by
	// name. Persons whose unit has no sub-areas remain eligible.
	FindPersons(ctx context.Context, f Filter) ([]Person, error)
	Ping(ctx context.Context) error
}
