// Package sqlite implements cmdb.Client over a local SQLite snapshot of the
// inventory.
//
// Each entity is stored as its JSON document plus the indexed columns the
// graph builder filters on. Snapshots are loaded with Import, usually from a
// YAML file read by LoadSnapshotYAML.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"meshgen/internal/cmdb"

	_ "modernc.org/sqlite"
)

// Repository implements cmdb.Client using SQLite
type Repository struct {
	db *sql.DB
}

var _ cmdb.Client = (*Repository)(nil)

// New opens (and migrates) a snapshot database. Use ":memory:" for a
// throwaway snapshot.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database lives in a single connection
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		data JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interfaces (
		id INTEGER PRIMARY KEY,
		device_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		data JSON NOT NULL,
		FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS ip_addresses (
		id INTEGER PRIMARY KEY,
		interface_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		data JSON NOT NULL,
		FOREIGN KEY (interface_id) REFERENCES interfaces(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS prefixes (
		id INTEGER PRIMARY KEY,
		prefix TEXT NOT NULL,
		data JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_devices_name ON devices(lower(name));
	CREATE INDEX IF NOT EXISTS idx_interfaces_device ON interfaces(device_id);
	CREATE INDEX IF NOT EXISTS idx_ip_addresses_interface ON ip_addresses(interface_id);
	CREATE INDEX IF NOT EXISTS idx_prefixes_prefix ON prefixes(prefix);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ListDevices lists devices matching the filter
func (r *Repository) ListDevices(ctx context.Context, f cmdb.Filter) ([]cmdb.Device, error) {
	var w where
	w.in("lower(name)", lowerAll(f.Name))
	w.contains("lower(name)", lowerAll(f.NameIC))
	w.in("id", intArgs(f.ID))
	return query[cmdb.Device](ctx, r.db, "devices", w)
}

// ListInterfaces lists interfaces matching the filter
func (r *Repository) ListInterfaces(ctx context.Context, f cmdb.Filter) ([]cmdb.Interface, error) {
	var w where
	w.in("id", intArgs(f.ID))
	w.in("device_id", intArgs(f.DeviceID))
	return query[cmdb.Interface](ctx, r.db, "interfaces", w)
}

// ListIPAddresses lists IP addresses matching the filter
func (r *Repository) ListIPAddresses(ctx context.Context, f cmdb.Filter) ([]cmdb.IPAddress, error) {
	var w where
	w.in("id", intArgs(f.ID))
	w.in("interface_id", intArgs(f.InterfaceID))
	return query[cmdb.IPAddress](ctx, r.db, "ip_addresses", w)
}

// ListPrefixes lists prefixes matching the filter
func (r *Repository) ListPrefixes(ctx context.Context, f cmdb.Filter) ([]cmdb.Prefix, error) {
	var w where
	w.in("id", intArgs(f.ID))
	w.in("prefix", stringArgs(f.Prefix))
	return query[cmdb.Prefix](ctx, r.db, "prefixes", w)
}

// GetDevice retrieves a single device by id
func (r *Repository) GetDevice(ctx context.Context, id int) (*cmdb.Device, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM devices WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device %d: %w", id, cmdb.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	var device cmdb.Device
	if err := json.Unmarshal([]byte(data), &device); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device data: %w", err)
	}
	return &device, nil
}

// query loads the JSON documents of table rows matching w, ordered by id
func query[T any](ctx context.Context, db *sql.DB, table string, w where) ([]T, error) {
	stmt := "SELECT data FROM " + table
	if len(w.clauses) > 0 {
		stmt += " WHERE " + strings.Join(w.clauses, " AND ")
	}
	stmt += " ORDER BY id"

	rows, err := db.QueryContext(ctx, stmt, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", table, err)
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return results, nil
}
