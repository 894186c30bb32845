package database

import (
	"context"
	"fmt"
	"time"

	"impact-backend/internal/models"
)

// Store persists detected injuries and manual injury records
type Store interface {
	InsertInjury(ctx context.Context, record *models.InjuryRecord) error
	QueryInjuries(ctx context.Context, filter InjuryFilter) ([]models.InjuryRecord, error)
	InsertManualInjury(ctx context.Context, injury *models.ManualInjury) error
	QueryManualInjuries(ctx context.Context) ([]models.ManualInjury, error)
	Close() error
}

// InjuryFilter narrows QueryInjuries. Zero values match everything.
// Results are ordered oldest first.
type InjuryFilter struct {
	DeviceID string
	Since    time.Time
	Limit    int
}

// Store drivers
const (
	DriverSQLite     = "sqlite"
	DriverClickHouse = "clickhouse"
)

// Config selects and configures the store implementation
type Config struct {
	Driver string

	SQLitePath string

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

// Open connects the configured store and initializes its schema
func Open(config Config) (Store, error) {
	switch config.Driver {
	case DriverSQLite, "":
		db, err := NewSQLiteDB(config.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverClickHouse:
		db, err := NewClickHouseDB(config.ClickHouseAddr, config.ClickHouseDatabase, config.ClickHouseUsername, config.ClickHousePassword)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Driver)
	}
}
