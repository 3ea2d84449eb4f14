// Package storage builds the device graph the mesh engine works on.
//
// A Storage turns CMDB entities into domain devices: each device carries its
// interfaces, the IP addresses on them (with their containing prefix when the
// CMDB has one with exactly the same network), and the distinct devices on the
// far side of its cables. Neighbors are loaded one hop deep only and carry just
// the interfaces that face the queried device set.
//
// Devices remember which Storage built them; connection lookups across
// storages are rejected.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"meshgen/internal/cmdb"
	"meshgen/internal/domain"
)

// ErrForeignDevice is returned when a device was built by another Storage
var ErrForeignDevice = errors.New("device does not belong to this storage")

var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// Options configures a Storage
type Options struct {
	// ExactHostFilter resolves queries by exact name instead of substring
	ExactHostFilter bool
	// Classifier defaults to DefaultClassifier
	Classifier Classifier
}

// Storage is the device graph builder
type Storage struct {
	client          cmdb.Client
	exactHostFilter bool
	classifier      Classifier
	graphID         string

	mu       sync.RWMutex
	allFQDNs []string
}

// New creates a Storage reading from client
func New(client cmdb.Client, opts Options) *Storage {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &Storage{
		client:          client,
		exactHostFilter: opts.ExactHostFilter,
		classifier:      classifier,
		graphID:         uuid.NewString(),
	}
}

// LoadDevices resolves a query into CMDB devices
func (s *Storage) LoadDevices(ctx context.Context, q Query) ([]cmdb.Device, error) {
	if q.IsEmpty() {
		return nil, nil
	}

	if s.exactHostFilter {
		devices, err := s.client.ListDevices(ctx, cmdb.Filter{Name: q.Globs})
		if err != nil {
			return nil, fmt.Errorf("load devices: %w", err)
		}
		return uniqueDevices(devices), nil
	}

	q = q.withHostnameDots()
	devices, err := s.client.ListDevices(ctx, cmdb.Filter{NameIC: q.Globs})
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	return uniqueDevices(lo.Filter(devices, func(d cmdb.Device, _ int) bool {
		return q.matches(d.Name)
	})), nil
}

// uniqueDevices keeps the first occurrence of every device id
func uniqueDevices(devices []cmdb.Device) []cmdb.Device {
	return lo.UniqBy(devices, func(d cmdb.Device) int { return d.ID })
}

// ResolveObjectIDs returns the CMDB ids of the devices matching q
func (s *Storage) ResolveObjectIDs(ctx context.Context, q Query) ([]int, error) {
	devices, err := s.LoadDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	return lo.Map(devices, func(d cmdb.Device, _ int) int { return d.ID }), nil
}

// ResolveFQDNs returns the names of the devices matching q
func (s *Storage) ResolveFQDNs(ctx context.Context, q Query) ([]string, error) {
	devices, err := s.LoadDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	return lo.Map(devices, func(d cmdb.Device, _ int) string { return d.Name }), nil
}

// ResolveAllFQDNs returns the name of every device in the CMDB. The list is
// fetched once per Storage and shared by concurrent readers.
func (s *Storage) ResolveAllFQDNs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	cached := s.allFQDNs
	s.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allFQDNs == nil {
		devices, err := s.client.ListDevices(ctx, cmdb.Filter{})
		if err != nil {
			return nil, fmt.Errorf("resolve all fqdns: %w", err)
		}
		s.allFQDNs = lo.Map(devices, func(d cmdb.Device, _ int) string { return d.Name })
	}
	return slices.Clone(s.allFQDNs), nil
}

// FlushCache drops the cached fleet name list
func (s *Storage) FlushCache() {
	s.mu.Lock()
	s.allFQDNs = nil
	s.mu.Unlock()
}

// MakeDevices builds every device matching q with interfaces, addresses and
// neighbors. A query matching nothing yields an empty result.
func (s *Storage) MakeDevices(ctx context.Context, q Query) ([]*domain.Device, error) {
	raw, err := s.LoadDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []*domain.Device{}, nil
	}

	devices := make([]*domain.Device, 0, len(raw))
	byID := make(map[int]*domain.Device, len(raw))
	for _, d := range raw {
		device := s.extendDevice(d, nil, []*domain.Device{})
		devices = append(devices, device)
		byID[d.ID] = device
	}

	interfaces, err := s.loadInterfaces(ctx, cmdb.Filter{DeviceID: lo.Keys(byID)})
	if err != nil {
		return nil, err
	}
	neighbors, err := s.loadNeighbors(ctx, interfaces)
	if err != nil {
		return nil, err
	}
	if err := attach(byID, interfaces, neighbors); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"query":      q.Globs,
		"devices":    len(devices),
		"interfaces": len(interfaces),
		"neighbors":  len(neighbors),
	}).Debug("built devices")

	return devices, nil
}

// GetDevice builds a single device by CMDB id
func (s *Storage) GetDevice(ctx context.Context, id int) (*domain.Device, error) {
	raw, err := s.client.GetDevice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	device := s.extendDevice(*raw, nil, []*domain.Device{})
	interfaces, err := s.loadInterfaces(ctx, cmdb.Filter{DeviceID: []int{raw.ID}})
	if err != nil {
		return nil, err
	}
	neighbors, err := s.loadNeighbors(ctx, interfaces)
	if err != nil {
		return nil, err
	}
	if err := attach(map[int]*domain.Device{raw.ID: device}, interfaces, neighbors); err != nil {
		return nil, err
	}
	return device, nil
}

// SearchConnections returns every cable between device and neighbor as
// (local, remote) interface pairs
func (s *Storage) SearchConnections(device, neighbor *domain.Device) ([]domain.Connection, error) {
	if device.GraphID != s.graphID {
		return nil, fmt.Errorf("device %s: %w", device.FQDN, ErrForeignDevice)
	}
	if neighbor.GraphID != s.graphID {
		return nil, fmt.Errorf("neighbor %s: %w", neighbor.FQDN, ErrForeignDevice)
	}

	var res []domain.Connection
	for _, local := range device.Interfaces {
		for _, endpoint := range local.ConnectedEndpoints {
			if endpoint.DeviceID != neighbor.ID {
				continue
			}
			if remote, ok := neighbor.Interface(endpoint.Name); ok {
				res = append(res, domain.Connection{Local: local, Remote: remote})
			}
		}
	}
	return res, nil
}

// attach distributes interfaces to their devices and records each distinct
// neighbor once per device, however many cables lead to it
func attach(devices map[int]*domain.Device, interfaces []*domain.Interface, neighbors map[int]*domain.Device) error {
	seen := make(map[int]map[int]struct{}, len(devices))
	for _, iface := range interfaces {
		device, ok := devices[iface.DeviceID]
		if !ok {
			continue
		}
		device.Interfaces = append(device.Interfaces, iface)

		for _, e := range iface.ConnectedEndpoints {
			neighbor, ok := neighbors[e.DeviceID]
			if !ok {
				return fmt.Errorf("interface %s:%s: connected device %d not found", device.FQDN, iface.Name, e.DeviceID)
			}
			if seen[device.ID] == nil {
				seen[device.ID] = make(map[int]struct{})
			}
			if _, dup := seen[device.ID][neighbor.ID]; dup {
				continue
			}
			seen[device.ID][neighbor.ID] = struct{}{}
			device.Neighbors = append(device.Neighbors, neighbor)
		}
	}
	return nil
}

func (s *Storage) extendDevice(d cmdb.Device, interfaces []*domain.Interface, neighbors []*domain.Device) *domain.Device {
	var manufacturer, model string
	if d.DeviceType != nil {
		model = d.DeviceType.Model
		if d.DeviceType.Manufacturer != nil {
			manufacturer = d.DeviceType.Manufacturer.Name
		}
	}
	platform := cmdb.RefName(d.Platform)
	hw, breed := s.classifier.Classify(manufacturer, model, platform)

	return &domain.Device{
		ID:           d.ID,
		Hostname:     domain.ShortName(d.Name),
		FQDN:         d.Name,
		Hardware:     hw,
		Breed:        breed,
		Platform:     platform,
		Role:         cmdb.RefName(d.Role),
		Site:         cmdb.RefName(d.Site),
		Status:       cmdb.LabelValue(d.Status),
		ManagementIP: d.ManagementAddress(),
		Interfaces:   interfaces,
		Neighbors:    neighbors,
		GraphID:      s.graphID,
	}
}

// loadInterfaces fetches interfaces with their addresses and prefixes
func (s *Storage) loadInterfaces(ctx context.Context, f cmdb.Filter) ([]*domain.Interface, error) {
	raw, err := s.client.ListInterfaces(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load interfaces: %w", err)
	}
	return s.extendInterfaces(ctx, raw)
}

func (s *Storage) extendInterfaces(ctx context.Context, raw []cmdb.Interface) ([]*domain.Interface, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	interfaces := make([]*domain.Interface, 0, len(raw))
	byID := make(map[int]*domain.Interface, len(raw))
	for _, r := range raw {
		iface := toInterface(r)
		interfaces = append(interfaces, iface)
		byID[iface.ID] = iface
	}

	ips, err := s.client.ListIPAddresses(ctx, cmdb.Filter{InterfaceID: lo.Keys(byID)})
	if err != nil {
		return nil, fmt.Errorf("load ip addresses: %w", err)
	}

	networks := make(map[string]string, len(ips))
	for _, ip := range ips {
		network, err := domain.NetworkOf(ip.Address)
		if err != nil {
			log.WithField("address", ip.Address).WithError(err).Warn("skipping prefix lookup for malformed address")
			continue
		}
		networks[ip.Address] = network
	}

	prefixes := map[string]*domain.Prefix{}
	if len(networks) > 0 {
		raw, err := s.client.ListPrefixes(ctx, cmdb.Filter{Prefix: lo.Uniq(lo.Values(networks))})
		if err != nil {
			return nil, fmt.Errorf("load prefixes: %w", err)
		}
		for _, p := range raw {
			prefixes[p.Prefix] = toPrefix(p)
		}
	}

	for _, ip := range ips {
		iface, ok := byID[ip.AssignedObjectID]
		if !ok {
			continue
		}
		addr := toIPAddress(ip)
		if network, ok := networks[ip.Address]; ok {
			addr.Prefix = prefixes[network]
		}
		iface.IPAddresses = append(iface.IPAddresses, addr)
	}
	return interfaces, nil
}

// loadNeighbors loads the devices on the far side of the interfaces' cables.
// Only the connected interfaces are attached, and the neighbors' own neighbors
// are left nil.
func (s *Storage) loadNeighbors(ctx context.Context, interfaces []*domain.Interface) (map[int]*domain.Device, error) {
	endpoints := lo.FlatMap(interfaces, func(i *domain.Interface, _ int) []domain.Endpoint {
		return i.ConnectedEndpoints
	})
	neighbors := make(map[int]*domain.Device)
	if len(endpoints) == 0 {
		return neighbors, nil
	}

	remoteIDs := lo.Uniq(lo.Map(endpoints, func(e domain.Endpoint, _ int) int { return e.ID }))
	deviceIDs := lo.Uniq(lo.Map(endpoints, func(e domain.Endpoint, _ int) int { return e.DeviceID }))

	remote, err := s.loadInterfaces(ctx, cmdb.Filter{ID: remoteIDs})
	if err != nil {
		return nil, err
	}
	remoteByDevice := lo.GroupBy(remote, func(i *domain.Interface) int { return i.DeviceID })

	devices, err := s.client.ListDevices(ctx, cmdb.Filter{ID: deviceIDs})
	if err != nil {
		return nil, fmt.Errorf("load neighbors: %w", err)
	}
	for _, d := range devices {
		neighbors[d.ID] = s.extendDevice(d, remoteByDevice[d.ID], nil)
	}
	return neighbors, nil
}

func toInterface(r cmdb.Interface) *domain.Interface {
	iface := &domain.Interface{
		ID:          r.ID,
		Name:        r.Name,
		DeviceID:    r.Device.ID,
		Type:        cmdb.LabelValue(r.Type),
		Description: r.Description,
		Enabled:     r.Enabled,
		LAG:         cmdb.RefName(r.LAG),
		MACAddress:  r.MACAddress,
		Mode:        cmdb.LabelValue(r.Mode),
	}
	if r.MTU != nil {
		iface.MTU = *r.MTU
	}
	for _, e := range r.ConnectedEndpoints {
		iface.ConnectedEndpoints = append(iface.ConnectedEndpoints, domain.Endpoint{
			ID:         e.ID,
			Name:       e.Name,
			DeviceID:   e.Device.ID,
			DeviceName: e.Device.Name,
		})
	}
	return iface
}

func toIPAddress(r cmdb.IPAddress) *domain.IPAddress {
	addr := &domain.IPAddress{
		ID:          r.ID,
		Address:     r.Address,
		InterfaceID: r.AssignedObjectID,
		VRF:         cmdb.RefName(r.VRF),
		Status:      cmdb.LabelValue(r.Status),
	}
	if r.Family != nil {
		addr.Family = r.Family.Value
	}
	return addr
}

func toPrefix(r cmdb.Prefix) *domain.Prefix {
	p := &domain.Prefix{
		ID:          r.ID,
		Prefix:      r.Prefix,
		Site:        cmdb.RefName(r.Site),
		VRF:         cmdb.RefName(r.VRF),
		Role:        cmdb.RefName(r.Role),
		Description: r.Description,
	}
	if r.VLAN != nil {
		p.VLAN = r.VLAN.VID
	}
	return p
}
