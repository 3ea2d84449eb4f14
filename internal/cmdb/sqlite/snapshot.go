package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"meshgen/internal/cmdb"
)

// Snapshot is a point-in-time copy of the inventory
type Snapshot struct {
	Devices     []cmdb.Device    `yaml:"devices"`
	Interfaces  []cmdb.Interface `yaml:"interfaces"`
	IPAddresses []cmdb.IPAddress `yaml:"ip_addresses,omitempty"`
	Prefixes    []cmdb.Prefix    `yaml:"prefixes,omitempty"`
	// Cables are expanded into connected endpoints on both interfaces
	Cables []Cable `yaml:"cables,omitempty"`
}

// Cable connects two interfaces identified by device and interface name
type Cable struct {
	A CableEnd `yaml:"a"`
	B CableEnd `yaml:"b"`
}

// CableEnd is one termination of a cable
type CableEnd struct {
	Device    string `yaml:"device"`
	Interface string `yaml:"interface"`
}

// LoadSnapshotYAML reads a snapshot from a YAML file
func LoadSnapshotYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseSnapshotYAML(data)
}

// ParseSnapshotYAML parses a snapshot from YAML bytes
func ParseSnapshotYAML(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &snap, nil
}

// Import replaces the repository content with the snapshot in a single
// transaction
func (r *Repository) Import(ctx context.Context, snap *Snapshot) error {
	interfaces, err := expandCables(snap)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"ip_addresses", "interfaces", "prefixes", "devices"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, d := range snap.Devices {
		if err := insert(ctx, tx, `INSERT INTO devices (id, name, data) VALUES (?, ?, ?)`, d, d.ID, d.Name); err != nil {
			return fmt.Errorf("failed to insert device %s: %w", d.Name, err)
		}
	}
	for _, i := range interfaces {
		if err := insert(ctx, tx, `INSERT INTO interfaces (id, device_id, name, data) VALUES (?, ?, ?, ?)`, i, i.ID, i.Device.ID, i.Name); err != nil {
			return fmt.Errorf("failed to insert interface %s:%s: %w", i.Device.Name, i.Name, err)
		}
	}
	for _, ip := range snap.IPAddresses {
		if err := insert(ctx, tx, `INSERT INTO ip_addresses (id, interface_id, address, data) VALUES (?, ?, ?, ?)`, ip, ip.ID, ip.AssignedObjectID, ip.Address); err != nil {
			return fmt.Errorf("failed to insert ip address %s: %w", ip.Address, err)
		}
	}
	for _, p := range snap.Prefixes {
		if err := insert(ctx, tx, `INSERT INTO prefixes (id, prefix, data) VALUES (?, ?, ?)`, p, p.ID, p.Prefix); err != nil {
			return fmt.Errorf("failed to insert prefix %s: %w", p.Prefix, err)
		}
	}

	return tx.Commit()
}

// insert stores doc as JSON in the last column of stmt
func insert(ctx context.Context, tx *sql.Tx, stmt string, doc any, columns ...any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, stmt, append(columns, string(data))...)
	return err
}

// expandCables returns a copy of the snapshot interfaces with device
// references filled in and every cable recorded as a connected endpoint on
// both of its interfaces
func expandCables(snap *Snapshot) ([]cmdb.Interface, error) {
	deviceNames := make(map[int]string, len(snap.Devices))
	deviceIDs := make(map[string]int, len(snap.Devices))
	for _, d := range snap.Devices {
		deviceNames[d.ID] = d.Name
		deviceIDs[d.Name] = d.ID
	}

	type portKey struct {
		device int
		name   string
	}
	interfaces := make([]cmdb.Interface, len(snap.Interfaces))
	ports := make(map[portKey]int, len(snap.Interfaces))
	for i, iface := range snap.Interfaces {
		iface.ConnectedEndpoints = slices.Clone(iface.ConnectedEndpoints)
		if iface.Device.Name == "" {
			iface.Device.Name = deviceNames[iface.Device.ID]
		}
		interfaces[i] = iface
		ports[portKey{iface.Device.ID, iface.Name}] = i
	}

	lookup := func(end CableEnd) (int, error) {
		deviceID, ok := deviceIDs[end.Device]
		if !ok {
			return 0, fmt.Errorf("cable references unknown device %q", end.Device)
		}
		idx, ok := ports[portKey{deviceID, end.Interface}]
		if !ok {
			return 0, fmt.Errorf("cable references unknown interface %s:%s", end.Device, end.Interface)
		}
		return idx, nil
	}

	connect := func(from, to int) {
		remote := interfaces[to]
		for _, e := range interfaces[from].ConnectedEndpoints {
			if e.ID == remote.ID {
				return
			}
		}
		interfaces[from].ConnectedEndpoints = append(interfaces[from].ConnectedEndpoints, cmdb.Endpoint{
			ID:     remote.ID,
			Name:   remote.Name,
			Device: remote.Device,
		})
	}

	for _, cable := range snap.Cables {
		a, err := lookup(cable.A)
		if err != nil {
			return nil, err
		}
		b, err := lookup(cable.B)
		if err != nil {
			return nil, err
		}
		connect(a, b)
		connect(b, a)
	}

	return interfaces, nil
}
