package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"impact-backend/internal/models"
)

// SQLiteDB is the default store, a local SQLite file
type SQLiteDB struct {
	db *sql.DB
}

var _ Store = (*SQLiteDB)(nil)

// NewSQLiteDB opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// single writer; also keeps an in-memory database on one connection
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("Opened SQLite store at %s", path)
	return s, nil
}

func (s *SQLiteDB) initSchema() error {
	for _, tableSQL := range SQLiteTables() {
		if _, err := s.db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// InsertInjury saves a detected injury
func (s *SQLiteDB) InsertInjury(ctx context.Context, record *models.InjuryRecord) error {
	query := `
		INSERT INTO InjuryRecords (id, device_id, date, time, injury_count, direction, x, y, z, magnitude, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.DeviceID,
		record.Date,
		record.Time,
		record.InjuryCount,
		record.Direction,
		record.X,
		record.Y,
		record.Z,
		record.Magnitude,
		record.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert injury record: %w", err)
	}

	return nil
}

// QueryInjuries returns detected injuries matching filter, oldest first
func (s *SQLiteDB) QueryInjuries(ctx context.Context, filter InjuryFilter) ([]models.InjuryRecord, error) {
	query := `
		SELECT id, device_id, date, time, injury_count, direction, x, y, z, magnitude, recorded_at
		FROM InjuryRecords
	`
	var where []string
	var args []interface{}

	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query injury records: %w", err)
	}
	defer rows.Close()

	var records []models.InjuryRecord
	for rows.Next() {
		var r models.InjuryRecord
		var recordedAt int64
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Date, &r.Time, &r.InjuryCount, &r.Direction,
			&r.X, &r.Y, &r.Z, &r.Magnitude, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan injury record: %w", err)
		}
		r.RecordedAt = time.UnixMilli(recordedAt).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read injury records: %w", err)
	}

	return records, nil
}

// InsertManualInjury saves a manually entered injury
func (s *SQLiteDB) InsertManualInjury(ctx context.Context, injury *models.ManualInjury) error {
	query := `
		INSERT INTO brain_injury (id, region, mesh_name, x, y, z, eye, verbal, motor, total, severity, injury_date, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		injury.ID,
		injury.Region,
		injury.MeshName,
		injury.X,
		injury.Y,
		injury.Z,
		injury.Eye,
		injury.Verbal,
		injury.Motor,
		injury.Total,
		injury.Severity,
		injury.InjuryDate,
		injury.SubmittedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert manual injury: %w", err)
	}

	return nil
}

// QueryManualInjuries returns all manual injuries, oldest first
func (s *SQLiteDB) QueryManualInjuries(ctx context.Context) ([]models.ManualInjury, error) {
	query := `
		SELECT id, region, mesh_name, x, y, z, eye, verbal, motor, total, severity, injury_date, submitted_at
		FROM brain_injury
		ORDER BY submitted_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual injuries: %w", err)
	}
	defer rows.Close()

	var injuries []models.ManualInjury
	for rows.Next() {
		var m models.ManualInjury
		var submittedAt int64
		if err := rows.Scan(&m.ID, &m.Region, &m.MeshName, &m.X, &m.Y, &m.Z,
			&m.Eye, &m.Verbal, &m.Motor, &m.Total, &m.Severity, &m.InjuryDate, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manual injury: %w", err)
		}
		m.SubmittedAt = time.UnixMilli(submittedAt).UTC()
		injuries = append(injuries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manual injuries: %w", err)
	}

	return injuries, nil
}
