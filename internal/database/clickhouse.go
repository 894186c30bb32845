package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"impact-backend/internal/models"
)

// ClickHouseDB stores injury history in ClickHouse for fleet-wide analysis
type ClickHouseDB struct {
	conn driver.Conn
}

var _ Store = (*ClickHouseDB)(nil)

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	if err := db.InitSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema() error {
	ctx := context.Background()

	for _, tableSQL := range ClickHouseTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// InsertInjury saves a detected injury
func (db *ClickHouseDB) InsertInjury(ctx context.Context, record *models.InjuryRecord) error {
	query := `
		INSERT INTO injury_records (id, device_id, date, time, injury_count, direction, x, y, z, magnitude, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		record.ID,
		record.DeviceID,
		record.Date,
		record.Time,
		int32(record.InjuryCount),
		record.Direction,
		record.X,
		record.Y,
		record.Z,
		record.Magnitude,
		record.RecordedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert injury record: %w", err)
	}

	return nil
}

// QueryInjuries returns detected injuries matching filter, oldest first
func (db *ClickHouseDB) QueryInjuries(ctx context.Context, filter InjuryFilter) ([]models.InjuryRecord, error) {
	query := `
		SELECT id, device_id, date, time, injury_count, direction, x, y, z, magnitude, recorded_at
		FROM injury_records
	`
	var where []string
	var args []interface{}

	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, filter.Since)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at ASC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query injury records: %w", err)
	}
	defer rows.Close()

	var records []models.InjuryRecord
	for rows.Next() {
		var r models.InjuryRecord
		var count int32
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Date, &r.Time, &count, &r.Direction,
			&r.X, &r.Y, &r.Z, &r.Magnitude, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan injury record: %w", err)
		}
		r.InjuryCount = int(count)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read injury records: %w", err)
	}

	return records, nil
}

// InsertManualInjury saves a manually entered injury
func (db *ClickHouseDB) InsertManualInjury(ctx context.Context, injury *models.ManualInjury) error {
	query := `
		INSERT INTO brain_injury (id, region, mesh_name, x, y, z, eye, verbal, motor, total, severity, injury_date, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		injury.ID,
		injury.Region,
		injury.MeshName,
		injury.X,
		injury.Y,
		injury.Z,
		int32(injury.Eye),
		int32(injury.Verbal),
		int32(injury.Motor),
		int32(injury.Total),
		injury.Severity,
		injury.InjuryDate,
		injury.SubmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert manual injury: %w", err)
	}

	return nil
}

// QueryManualInjuries returns all manual injuries, oldest first
func (db *ClickHouseDB) QueryManualInjuries(ctx context.Context) ([]models.ManualInjury, error) {
	query := `
		SELECT id, region, mesh_name, x, y, z, eye, verbal, motor, total, severity, injury_date, submitted_at
		FROM brain_injury
		ORDER BY submitted_at ASC, id ASC
	`

	rows, err := db.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual injuries: %w", err)
	}
	defer rows.Close()

	var injuries []models.ManualInjury
	for rows.Next() {
		var m models.ManualInjury
		var eye, verbal, motor, total int32
		if err := rows.Scan(&m.ID, &m.Region, &m.MeshName, &m.X, &m.Y, &m.Z,
			&eye, &verbal, &motor, &total, &m.Severity, &m.InjuryDate, &m.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manual injury: %w", err)
		}
		m.Eye, m.Verbal, m.Motor, m.Total = int(eye), int(verbal), int(motor), int(total)
		injuries = append(injuries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manual injuries: %w", err)
	}

	return injuries, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
