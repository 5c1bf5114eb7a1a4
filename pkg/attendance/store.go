package attendance

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldclock/fieldclock/pkg/logx"
)

// Store persists clock records and day scores in a local sqlite database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS clock_records (
	id TEXT PRIMARY KEY,
	staff_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	lat REAL NOT NULL,
	lng REAL NOT NULL,
	accuracy_m REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	confidence_score INTEGER NOT NULL,
	is_mocked INTEGER NOT NULL,
	reasons TEXT NOT NULL DEFAULT '[]',
	is_inside INTEGER NOT NULL,
	area_name TEXT NOT NULL DEFAULT '',
	distance_to_edge_m REAL,
	address TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clock_records_staff_day
	ON clock_records (staff_id, recorded_at);

CREATE TABLE IF NOT EXISTS day_scores (
	staff_id TEXT NOT NULL,
	date TEXT NOT NULL,
	score INTEGER NOT NULL,
	updated TIMESTAMP NOT NULL,
	PRIMARY KEY (staff_id, date)
);
`

// OpenStore opens (creating if needed) the attendance database at path.
func OpenStore(path string, logger *logx.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate attendance store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Insert persists a clock record.
func (s *Store) Insert(rec *Record) error {
	reasons, err := json.Marshal(rec.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO clock_records (
			id, staff_id, kind, status, lat, lng, accuracy_m, sample_count,
			confidence_score, is_mocked, reasons, is_inside, area_name,
			distance_to_edge_m, address, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StaffID, string(rec.Kind), string(rec.Status),
		rec.Point.Lat, rec.Point.Lng, rec.AccuracyMeters, rec.SampleCount,
		rec.ConfidenceScore, rec.IsMocked, string(reasons), rec.IsInside,
		rec.AreaName, rec.DistanceToEdge, rec.Address, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert clock record: %w", err)
	}
	return nil
}

// ListDay returns a staff member's records for the given local date, oldest
// first.
func (s *Store) ListDay(staffID string, day time.Time) ([]*Record, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows, err := s.db.Query(`
		SELECT id, staff_id, kind, status, lat, lng, accuracy_m, sample_count,
			confidence_score, is_mocked, reasons, is_inside, area_name,
			distance_to_edge_m, address, recorded_at
		FROM clock_records
		WHERE staff_id = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at ASC`,
		staffID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query clock records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var reasons string
		var kind, status string
		err := rows.Scan(
			&rec.ID, &rec.StaffID, &kind, &status,
			&rec.Point.Lat, &rec.Point.Lng, &rec.AccuracyMeters, &rec.SampleCount,
			&rec.ConfidenceScore, &rec.IsMocked, &reasons, &rec.IsInside,
			&rec.AreaName, &rec.DistanceToEdge, &rec.Address, &rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clock record: %w", err)
		}
		rec.Kind = EventKind(kind)
		rec.Status = Status(status)
		if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
			rec.Reasons = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertDayScore stores the score for a staff member's day.
func (s *Store) UpsertDayScore(score *DayScore) error {
	_, err := s.db.Exec(`
		INSERT INTO day_scores (staff_id, date, score, updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(staff_id, date) DO UPDATE SET score = excluded.score, updated = excluded.updated`,
		score.StaffID, score.Date, score.Score, score.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert day score: %w", err)
	}
	return nil
}

// DayScore loads the score for a staff member's date. Returns (nil, nil) when
// absent.
func (s *Store) DayScore(staffID, date string) (*DayScore, error) {
	row := s.db.QueryRow(
		`SELECT staff_id, date, score, updated FROM day_scores WHERE staff_id = ? AND date = ?`,
		staffID, date,
	)

	score := &DayScore{}
	err := row.Scan(&score.StaffID, &score.Date, &score.Score, &score.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load day score: %w", err)
	}
	return score, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
