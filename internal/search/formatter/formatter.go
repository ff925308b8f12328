// Package formatter projects directory persons into the public search
// record shape.
package formatter

import (
	"log/slog"

	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
)

// Record is one search result as returned to clients.
type Record struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	GroupingCode string   `json:"grouping_code"`
	UnitName     string   `json:"unit_name"`
	RoleTags     []string `json:"role_tags"`
}

// Format projects p. It reports false when p's unit cannot be resolved.
func Format(p directory.Person) (Record, bool) {
	if p.Unit == nil {
		return Record{}, false
	}
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return Record{
		ID:           p.ID,
		Name:         p.Name,
		Phone:        p.Phone,
		GroupingCode: p.Unit.Circuit,
		UnitName:     p.Unit.Name,
		RoleTags:     roles,
	}, true
}

// FormatAll formats persons in order, skipping and logging the ones that
// cannot be formatted.
func FormatAll(persons []directory.Person, logger *slog.Logger) []Record {
	records := make([]Record, 0, len(persons))
	for _, p := range persons {
		rec, ok := Format(p)
		if !ok {
			logger.Warn("skipping person with unresolved unit", "person_id", p.ID, "unit_id", p.UnitID)
			continue
		}
		records = append(records, rec)
	}
	return records
}
