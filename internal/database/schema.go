package database

// SQL schemas for the SQLite store. Table and column names of
// InjuryRecords follow the mobile app's on-device history table.
const (
	// SQLiteInjuryRecordsTableSQL creates the InjuryRecords table
	SQLiteInjuryRecordsTableSQL = `
		CREATE TABLE IF NOT EXISTS InjuryRecords (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			injury_count INTEGER NOT NULL DEFAULT 1,
			direction TEXT NOT NULL,
			x REAL,
			y REAL,
			z REAL,
			magnitude REAL,
			recorded_at INTEGER NOT NULL -- Unix milliseconds
		);
		CREATE INDEX IF NOT EXISTS idx_injury_records_device ON InjuryRecords(device_id, recorded_at);
	`

	// SQLiteBrainInjuryTableSQL creates the brain_injury table
	SQLiteBrainInjuryTableSQL = `
		CREATE TABLE IF NOT EXISTS brain_injury (
			id TEXT PRIMARY KEY,
			region TEXT,
			mesh_name TEXT NOT NULL,
			x REAL,
			y REAL,
			z REAL,
			eye INTEGER NOT NULL,
			verbal INTEGER NOT NULL,
			motor INTEGER NOT NULL,
			total INTEGER NOT NULL,
			severity TEXT NOT NULL,
			injury_date TEXT,
			submitted_at INTEGER NOT NULL -- Unix milliseconds
		);
	`
)

// SQL schemas for the ClickHouse store
const (
	// ClickHouseInjuryRecordsTableSQL creates the injury_records table
	ClickHouseInjuryRecordsTableSQL = `
		CREATE TABLE IF NOT EXISTS injury_records (
			id String,
			device_id String,
			date String,
			time String,
			injury_count Int32,
			direction LowCardinality(String),
			x Float64,
			y Float64,
			z Float64,
			magnitude Float64,
			recorded_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (device_id, recorded_at)
		PARTITION BY toYYYYMM(recorded_at)
	`

	// ClickHouseBrainInjuryTableSQL creates the brain_injury table
	ClickHouseBrainInjuryTableSQL = `
		CREATE TABLE IF NOT EXISTS brain_injury (
			id String,
			region String,
			mesh_name String,
			x Float64,
			y Float64,
			z Float64,
			eye Int32,
			verbal Int32,
			motor Int32,
			total Int32,
			severity LowCardinality(String),
			injury_date String,
			submitted_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY submitted_at
	`
)

// SQLiteTables returns the SQLite schema in creation order
func SQLiteTables() []string {
	return []string{
		SQLiteInjuryRecordsTableSQL,
		SQLiteBrainInjuryTableSQL,
	}
}

// ClickHouseTables returns the ClickHouse schema in creation order
func ClickHouseTables() []string {
	return []string{
		ClickHouseInjuryRecordsTableSQL,
		ClickHouseBrainInjuryTableSQL,
	}
}
