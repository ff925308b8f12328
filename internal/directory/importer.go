package directory

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
)

// DefaultRoles is the role catalogue created by every import.
var DefaultRoles = []string{
	"Superintendente Viajante",
	"Anciano",
	"Siervo Ministerial",
	"Precursor Especial",
	"Precursor Regular",
	"Precursor Auxiliar",
	"Publicador",
	"Betelita",
}

const (
	colName     = "name"
	colPhone    = "phone"
	colCircuit  = "circuit"
	colUnit     = "unit"
	colRoles    = "roles"
	colSubAreas = "subareas"
)

var headerAliases = map[string]string{
	"nombre":       colName,
	"name":         colName,
	"telefono":     colPhone,
	"teléfono":     colPhone,
	"phone":        colPhone,
	"circuito":     colCircuit,
	"circuit":      colCircuit,
	"congregacion": colUnit,
	"congregación": colUnit,
	"unit":         colUnit,
	"privilegios":  colRoles,
	"roles":        colRoles,
	"territorios":  colSubAreas,
	"subareas":     colSubAreas,
	"sub_areas":    colSubAreas,
}

type ImportOptions struct {
	Delimiter rune
	// Encoding is "latin1" or "utf8".
	Encoding string
}

type ImportStats struct {
	Rows     int `json:"rows"`
	Persons  int `json:"persons"`
	Existing int `json:"existing"`
	Units    int `json:"units"`
	SubAreas int `json:"sub_areas"`
	Skipped  int `json:"skipped"`
}

// Importer seeds the directory from a contacts CSV. Units are de-duplicated
// by (circuit, name) and persons by (name, unit), so re-running an import is
// harmless. The whole file is imported in one transaction.
type Importer struct {
	client *database.Client
	opts   ImportOptions
	logger *slog.Logger
}

func NewImporter(client *database.Client, opts ImportOptions) *Importer {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.Encoding == "" {
		opts.Encoding = "latin1"
	}
	return &Importer{
		client: client,
		opts:   opts,
		logger: slog.Default().With("component", "directory-importer"),
	}
}

func (im *Importer) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f)
}

func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats

	rows, err := im.readRows(r)
	if err != nil {
		return stats, err
	}
	stats.Rows = len(rows)

	err = im.client.InTx(ctx, func(tx *sql.Tx) error {
		w := &txWriter{
			tx:       tx,
			units:    make(map[[2]string]int64),
			subAreas: make(map[string]struct{}),
			roles:    make(map[string]int64),
		}
		for _, role := range DefaultRoles {
			if _, err := w.roleID(ctx, role); err != nil {
				return err
			}
		}
		for i, row := range rows {
			name := strings.TrimSpace(row[colName])
			unitName := strings.TrimSpace(row[colUnit])
			if name == "" || unitName == "" {
				stats.Skipped++
				im.logger.Warn("skipping seed row", "row", i+2, "reason", "missing name or unit")
				continue
			}
			unitID, created, err := w.unitID(ctx, strings.TrimSpace(row[colCircuit]), unitName)
			if err != nil {
				return err
			}
			if created {
				stats.Units++
			}
			for _, area := range splitList(row[colSubAreas]) {
				created, err := w.ensureSubArea(ctx, unitID, area)
				if err != nil {
					return err
				}
				if created {
					stats.SubAreas++
				}
			}
			personID, created, err := w.personID(ctx, name, strings.TrimSpace(row[colPhone]), unitID)
			if err != nil {
				return err
			}
			if created {
				stats.Persons++
			} else {
				stats.Existing++
			}
			for _, role := range splitList(row[colRoles]) {
				roleID, err := w.roleID(ctx, role)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO person_roles (person_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
					personID, roleID,
				); err != nil {
					return fmt.Errorf("assigning role %q: %w", role, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("importing directory: %w", err)
	}
	im.logger.Info("directory imported",
		"rows", stats.Rows,
		"persons", stats.Persons,
		"existing", stats.Existing,
		"units", stats.Units,
		"sub_areas", stats.SubAreas,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// readRows decodes the CSV into header-keyed maps using the canonical column
// names. Unknown columns are ignored.
func (im *Importer) readRows(r io.Reader) ([]map[string]string, error) {
	switch strings.ToLower(im.opts.Encoding) {
	case "latin1", "latin-1", "iso-8859-1":
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	case "utf8", "utf-8":
	default:
		return nil, fmt.Errorf("unsupported csv encoding %q", im.opts.Encoding)
	}

	cr := csv.NewReader(r)
	cr.Comma = im.opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		columns[i] = headerAliases[h]
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		row := make(map[string]string, len(columns))
		for i, v := range record {
			if i < len(columns) && columns[i] != "" {
				row[columns[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '|' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// txWriter performs get-or-create lookups inside the import transaction.
type txWriter struct {
	tx       *sql.Tx
	units    map[[2]string]int64
	subAreas map[string]struct{}
	roles    map[string]int64
}

func (w *txWriter) unitID(ctx context.Context, circuit, name string) (int64, bool, error) {
	key := [2]string{circuit, name}
	if id, ok := w.units[key]; ok {
		return id, false, nil
	}
	id, created, err := w.getOrCreate(ctx,
		`SELECT id FROM units WHERE circuit = $1 AND name = $2`,
		`INSERT INTO units (circuit, name) VALUES ($1, $2) RETURNING id`,
		circuit, name,
	)
	if err != nil {
		return 0, false, fmt.Errorf("unit %q/%q: %w", circuit, name, err)
	}
	w.units[key] = id
	return id, created, nil
}

func (w *txWriter) ensureSubArea(ctx context.Context, unitID int64, name string) (bool, error) {
	key := fmt.Sprintf("%d/%s", unitID, name)
	if _, ok := w.subAreas[key]; ok {
		return false, nil
	}
	_, created, err := w.getOrCreate(ctx,
		`SELECT id FROM sub_areas WHERE unit_id = $1 AND name = $2`,
		`INSERT INTO sub_areas (unit_id, name) VALUES ($1, $2) RETURNING id`,
		unitID, name,
	)
	if err != nil {
		return false, fmt.Errorf("sub-area %q: %w", name, err)
	}
	w.subAreas[key] = struct{}{}
	return created, nil
}

func (w *txWriter) roleID(ctx context.Context, name string) (int64, error) {
	if id, ok := w.roles[name]; ok {
		return id, nil
	}
	id, _, err := w.getOrCreate(ctx,
		`SELECT id FROM roles WHERE name = $1`,
		`INSERT INTO roles (name) VALUES ($1) RETURNING id`,
		name,
	)
	if err != nil {
		return 0, fmt.Errorf("role %q: %w", name, err)
	}
	w.roles[name] = id
	return id, nil
}

func (w *txWriter) personID(ctx context.Context, name, phone string, unitID int64) (int64, bool, error) {
	var id int64
	err := w.tx.QueryRowContext(ctx,
		`SELECT id FROM persons WHERE name = $1 AND unit_id = $2`, name, unitID,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("looking up person %q: %w", name, err)
	}
	var phoneArg any
	if phone != "" {
		phoneArg = phone
	}
	if err := w.tx.QueryRowContext(ctx,
		`INSERT INTO persons (name, phone, unit_id) VALUES ($1, $2, $3) RETURNING id`,
		name, phoneArg, unitID,
	).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("inserting person %q: %w", name, err)
	}
	return id, true, nil
}

func (w *txWriter) getOrCreate(ctx context.Context, selectQuery, insertQuery string, args ...any) (int64, bool, error) {
	var id int64
	err := w.tx.QueryRowContext(ctx, selectQuery, args...).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	if err := w.tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}
