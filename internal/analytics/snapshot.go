package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
)

var snapshotDDL = map[string]string{
	config.DriverPostgres: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL
)`,
	config.DriverSQLite: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          INTEGER PRIMARY KEY,
    data        TEXT NOT NULL,
    captured_at INTEGER NOT NULL
)`,
}

// Snapshot is a persisted copy of the aggregated stats.
type Snapshot struct {
	CapturedAt time.Time       `json:"captured_at"`
	Stats      AggregatedStats `json:"stats"`
}

// SnapshotStore persists periodic copies of the aggregator state so totals
// survive restarts of the search service.
type SnapshotStore struct {
	db     *database.Client
	logger *slog.Logger
}

func NewSnapshotStore(db *database.Client) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

func (s *SnapshotStore) Migrate(ctx context.Context) error {
	ddl, ok := snapshotDDL[s.db.Driver]
	if !ok {
		return fmt.Errorf("no analytics schema for driver %q", s.db.Driver)
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// capturedAt is stored as unix milliseconds on SQLite.
func (s *SnapshotStore) capturedAt(t time.Time) any {
	if s.db.Driver == config.DriverSQLite {
		return t.UnixMilli()
	}
	return t
}

func (s *SnapshotStore) Save(ctx context.Context, stats AggregatedStats, at time.Time) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		string(data), s.capturedAt(at.UTC()),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// List returns up to limit snapshots, newest first. Corrupt rows are
// skipped.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			data []byte
			snap Snapshot
		)
		if s.db.Driver == config.DriverSQLite {
			var ms int64
			if err := rows.Scan(&data, &ms); err != nil {
				return nil, fmt.Errorf("scanning snapshot: %w", err)
			}
			snap.CapturedAt = time.UnixMilli(ms).UTC()
		} else if err := rows.Scan(&data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Latest returns the newest snapshot, or nil when there is none.
func (s *SnapshotStore) Latest(ctx context.Context) (*Snapshot, error) {
	snaps, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// StartPeriodicSave snapshots agg every interval until ctx is cancelled,
// with a final snapshot on the way out.
func (s *SnapshotStore) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if err := s.Save(ctx, agg.Stats(), now); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.Save(saveCtx, agg.Stats(), time.Now()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
