// Package cmdb defines the inventory source-of-truth collaborator.
//
// The mesh engine reads devices, interfaces, IP addresses and prefixes
// through the Client interface. Two implementations ship with meshgen:
//
//   - netbox: the NetBox REST API over HTTP
//   - sqlite: an offline snapshot of the same entities
//
// Results are always fully materialized; pagination is the implementation's
// concern.
package cmdb

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a single-entity lookup has no match
var ErrNotFound = errors.New("not found")

// Filter narrows a list query. Empty fields do not filter. Fields that do not
// apply to an entity type are ignored.
type Filter struct {
	// Name matches device names exactly (case-insensitive)
	Name []string
	// NameIC matches device names containing any value (case-insensitive)
	NameIC []string
	// ID matches entity ids
	ID []int
	// DeviceID matches interfaces by owning device
	DeviceID []int
	// InterfaceID matches IP addresses by assigned interface
	InterfaceID []int
	// Prefix matches prefixes by exact CIDR
	Prefix []string
}

// Client is the CMDB read API used by the device graph builder
type Client interface {
	ListDevices(ctx context.Context, f Filter) ([]Device, error)
	ListInterfaces(ctx context.Context, f Filter) ([]Interface, error)
	ListIPAddresses(ctx context.Context, f Filter) ([]IPAddress, error)
	ListPrefixes(ctx context.Context, f Filter) ([]Prefix, error)
	GetDevice(ctx context.Context, id int) (*Device, error)
}
