package pointstore

import (
	"context"
	"path/filepath"
	"testing"
)

// testSchemaSQL mirrors the three migration files under /migrations;
// duplicated here (rather than imported) to keep this package's tests
// independent of the migrations package, which itself imports
// pointstore to register the embedded filesystem.
const testSchemaSQL = `
CREATE TABLE controller_points (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	iot_device_point_id TEXT NOT NULL,
	controller_id TEXT NOT NULL,
	object_type TEXT NOT NULL,
	object_instance INTEGER NOT NULL,
	controller_ip TEXT NOT NULL,
	controller_port INTEGER NOT NULL,
	controller_device_instance INTEGER NOT NULL,
	present_value TEXT,
	units TEXT,
	created_at TEXT NOT NULL,
	created_at_unix_milli INTEGER NOT NULL,
	is_uploaded INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	status_flags TEXT,
	event_state TEXT,
	out_of_service INTEGER,
	reliability TEXT,
	error_info TEXT,
	min_pres_value REAL,
	max_pres_value REAL,
	high_limit REAL,
	low_limit REAL,
	resolution REAL,
	priority_array TEXT,
	relinquish_default REAL,
	cov_increment REAL,
	time_delay INTEGER,
	time_delay_normal INTEGER,
	notification_class INTEGER,
	notify_type TEXT,
	deadband REAL,
	limit_enable TEXT,
	event_enable TEXT,
	acked_transitions TEXT,
	event_time_stamps TEXT,
	event_message_texts TEXT,
	event_message_texts_config TEXT,
	event_algorithm_inhibit INTEGER,
	event_algorithm_inhibit_ref TEXT,
	reliability_evaluation_inhibit INTEGER,
	description TEXT,
	object_name TEXT
);

CREATE TABLE iot_device_status (
	singleton_guard INTEGER PRIMARY KEY CHECK (singleton_guard = 1),
	cpu_percent REAL,
	memory_percent REAL,
	disk_percent REAL,
	temperature REAL,
	uptime_seconds INTEGER,
	load_average TEXT,
	monitoring_status TEXT NOT NULL DEFAULT 'INITIALIZING',
	mqtt_connection_status TEXT NOT NULL DEFAULT 'DISCONNECTED',
	bacnet_connection_status TEXT NOT NULL DEFAULT 'DISCONNECTED',
	connected_device_count INTEGER NOT NULL DEFAULT 0,
	monitored_point_count INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE bacnet_config (
	singleton_guard INTEGER PRIMARY KEY CHECK (singleton_guard = 1),
	config_json TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// openTestDB creates a temporary SQLite-backed DB with the schema
// applied directly.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if _, err := db.ExecContext(context.Background(), testSchemaSQL); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}
	return db
}
