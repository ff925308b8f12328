package directory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// roleBatchSize bounds the IN list of the role lookup.
const roleBatchSize = 500

const personColumns = `p.id, p.name, COALESCE(p.phone, ''), COALESCE(p.unit_id, 0), u.id, u.name, u.circuit`

// SQLStore reads the directory through database/sql. Queries use $n
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: slog.Default().With("component", "directory-store"),
	}
}

func (s *SQLStore) TextFields(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM persons
		UNION ALL SELECT name FROM units
		UNION ALL SELECT circuit FROM units
		UNION ALL SELECT name FROM sub_areas`)
	if err != nil {
		return nil, fmt.Errorf("querying text fields: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f sql.NullString
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning text field: %w", err)
		}
		if f.Valid && f.String != "" {
			fields = append(fields, f.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating text fields: %w", err)
	}
	return fields, nil
}

func (s *SQLStore) ListPersons(ctx context.Context) ([]Person, error) {
	query := `SELECT ` + personColumns + `
		FROM persons p
		LEFT JOIN units u ON u.id = p.unit_id
		ORDER BY p.name, p.id`
	return s.queryPersons(ctx, query)
}

func (s *SQLStore) FindPersons(ctx context.Context, f Filter) ([]Person, error) {
	query, args := buildFindQuery(f)
	s.logger.Debug("finding persons", "codes", len(f.Codes), "terms", len(f.Terms))
	return s.queryPersons(ctx, query, args...)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// buildFindQuery renders f as one joined SELECT. Every code and term gets a
// single placeholder; a term's placeholder is reused across its three
// columns, so placeholders first appear in ascending order.
func buildFindQuery(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v string) string {
		args = append(args, likePattern(v))
		return fmt.Sprintf("$%d", len(args))
	}
	for _, code := range f.Codes {
		conds = append(conds, fmt.Sprintf(`LOWER(u.circuit) LIKE %s ESCAPE '\'`, next(code)))
	}
	for _, term := range f.Terms {
		ph := next(term)
		conds = append(conds, fmt.Sprintf(
			`(LOWER(p.name) LIKE %[1]s ESCAPE '\' OR LOWER(u.name) LIKE %[1]s ESCAPE '\' OR LOWER(s.name) LIKE %[1]s ESCAPE '\')`,
			ph,
		))
	}

	var b strings.Builder
	b.WriteString(`SELECT DISTINCT ` + personColumns + `
		FROM persons p
		LEFT JOIN units u ON u.id = p.unit_id
		LEFT JOIN sub_areas s ON s.unit_id = u.id`)
	if len(conds) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString("\n\t\tORDER BY p.name, p.id")
	return b.String(), args
}

// likePattern lower-cases v, escapes LIKE metacharacters and wraps it for a
// substring match.
func likePattern(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(v)) + "%"
}

func (s *SQLStore) queryPersons(ctx context.Context, query string, args ...any) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	units := make(map[int64]*Unit)
	persons := make([]Person, 0)
	for rows.Next() {
		var (
			p           Person
			unitID      sql.NullInt64
			unitName    sql.NullString
			unitCircuit sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.UnitID, &unitID, &unitName, &unitCircuit); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		if unitID.Valid {
			u, ok := units[unitID.Int64]
			if !ok {
				u = &Unit{ID: unitID.Int64, Name: unitName.String, Circuit: unitCircuit.String}
				units[unitID.Int64] = u
			}
			p.Unit = u
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating persons: %w", err)
	}
	if err := s.attachRoles(ctx, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

func (s *SQLStore) attachRoles(ctx context.Context, persons []Person) error {
	if len(persons) == 0 {
		return nil
	}
	byID := make(map[int64]int, len(persons))
	for i, p := range persons {
		byID[p.ID] = i
	}
	for start := 0; start < len(persons); start += roleBatchSize {
		end := min(start+roleBatchSize, len(persons))
		batch := persons[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, p := range batch {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = p.ID
		}
		query := `SELECT pr.person_id, r.name
			FROM person_roles pr
			JOIN roles r ON r.id = pr.role_id
			WHERE pr.person_id IN (` + strings.Join(placeholders, ", ") + `)
			ORDER BY pr.person_id, r.name`
		if err := s.scanRoles(ctx, query, args, persons, byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) scanRoles(ctx context.Context, query string, args []any, persons []Person, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			personID int64
			role     string
		)
		if err := rows.Scan(&personID, &role); err != nil {
			return fmt.Errorf("scanning role: %w", err)
		}
		if i, ok := byID[personID]; ok {
			persons[i].Roles = append(persons[i].Roles, role)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating roles: %w", err)
	}
	return nil
}
