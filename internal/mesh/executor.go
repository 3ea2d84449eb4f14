// Package mesh resolves BGP sessions for a device from declarative rules.
//
// Rules are matched by device name through a Registry. Global rules shape
// device-wide options, direct rules describe sessions over physical links and
// indirect rules describe sessions between any two devices of the fleet. Every
// rule fills in optional attributes; the Executor folds them with Merge and
// converts the result into resolved bgp types.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"meshgen/internal/bgp"
	"meshgen/internal/domain"
	"meshgen/internal/storage"
)

// ErrUnresolvedTarget is returned when the far end of an indirect rule
// cannot be found
var ErrUnresolvedTarget = errors.New("unresolved indirect target")

var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// DeviceStorage is what the executor needs from the device graph
type DeviceStorage interface {
	ResolveAllFQDNs(ctx context.Context) ([]string, error)
	MakeDevices(ctx context.Context, q storage.Query) ([]*domain.Device, error)
	SearchConnections(device, neighbor *domain.Device) ([]domain.Connection, error)
}

// Executor runs registry rules for one device at a time. It keeps no state
// between calls.
type Executor struct {
	registry Registry
	storage  DeviceStorage
}

// NewExecutor creates an executor
func NewExecutor(registry Registry, storage DeviceStorage) *Executor {
	return &Executor{registry: registry, storage: storage}
}

// peerPair is what rules said about both ends of one session
type peerPair struct {
	far       *domain.Device
	local     PeerDTO
	connected PeerDTO
	ports     []string
}

// peerSet collects pairs keyed by far end fqdn in first-seen order
type peerSet struct {
	kind   string
	order  []string
	byFQDN map[string]*peerPair
}

func newPeerSet(kind string) *peerSet {
	return &peerSet{kind: kind, byFQDN: make(map[string]*peerPair)}
}

func (s *peerSet) add(logger *logrus.Entry, rule string, far *domain.Device, local, connected PeerDTO, session SessionDTO, ports []string) {
	shared := PeerDTO{SessionDTO: session}
	local = Merge(local, shared)
	connected = Merge(connected, shared)

	p, ok := s.byFQDN[far.FQDN]
	if !ok {
		p = &peerPair{far: far}
		s.byFQDN[far.FQDN] = p
		s.order = append(s.order, far.FQDN)
	} else {
		warnOverrides(logger.WithFields(logrus.Fields{"peer": far.FQDN, "rule": rule, "side": "local"}), p.local.Overrides(local))
		warnOverrides(logger.WithFields(logrus.Fields{"peer": far.FQDN, "rule": rule, "side": "connected"}), p.connected.Overrides(connected))
	}
	p.local = Merge(p.local, local)
	p.connected = Merge(p.connected, connected)
	p.ports = union(p.ports, ports)
}

func warnOverrides(logger *logrus.Entry, fields []string) {
	if len(fields) > 0 {
		logger.WithField("fields", strings.Join(fields, ",")).Warn("rule overrides values set by an earlier rule")
	}
}

// ExecuteFor runs every matching rule for device and returns its merged
// global options and peers. Direct peers come first, then indirect ones.
func (e *Executor) ExecuteFor(ctx context.Context, device *domain.Device) (*MeshExecutionResult, error) {
	res, err := e.executeFor(ctx, device)
	if err != nil {
		executions.WithLabelValues("error").Inc()
		return nil, err
	}
	executions.WithLabelValues("ok").Inc()
	peersGenerated.Add(float64(len(res.Peers)))
	return res, nil
}

func (e *Executor) executeFor(ctx context.Context, device *domain.Device) (*MeshExecutionResult, error) {
	if device == nil {
		return nil, fmt.Errorf("execute mesh: nil device")
	}
	logger := log.WithField("device", device.FQDN)

	global := e.executeGlobal(logger, device)

	direct, err := e.executeDirect(logger, device)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", device.FQDN, err)
	}
	indirect, err := e.executeIndirect(ctx, logger, device)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", device.FQDN, err)
	}

	peers := make([]bgp.Peer, 0, len(direct.order)+len(indirect.order))
	for _, set := range []*peerSet{direct, indirect} {
		for _, fqdn := range set.order {
			p := set.byFQDN[fqdn]
			var iface string
			if len(p.ports) == 1 {
				iface = p.ports[0]
			}
			peer, err := ToBGPPeer(p.local, p.connected, p.far, iface)
			if err != nil {
				return nil, fmt.Errorf("device %s: %s peer %s: %w", device.FQDN, set.kind, fqdn, err)
			}
			peers = append(peers, peer)
		}
	}

	logger.WithFields(logrus.Fields{
		"direct":   len(direct.order),
		"indirect": len(indirect.order),
	}).Debug("mesh executed")

	return &MeshExecutionResult{GlobalOptions: global, Peers: peers}, nil
}

func (e *Executor) executeGlobal(logger *logrus.Entry, device *domain.Device) GlobalOptionsDTO {
	var acc GlobalOptionsDTO
	for _, rule := range e.registry.LookupGlobal(device.FQDN) {
		opts := &GlobalOptions{Match: rule.Match, Device: device}
		rule.Handler(opts)
		rulesExecuted.WithLabelValues("global").Inc()

		warnOverrides(logger.WithField("rule", rule.Pattern), acc.Overrides(opts.GlobalOptionsDTO))
		acc = Merge(acc, opts.GlobalOptionsDTO)
	}
	return Merge(DefaultGlobalOptions(), acc)
}

func (e *Executor) executeDirect(logger *logrus.Entry, device *domain.Device) (*peerSet, error) {
	set := newPeerSet("direct")
	neighbors := lo.SliceToMap(device.Neighbors, func(n *domain.Device) (string, *domain.Device) {
		return n.FQDN, n
	})
	names := lo.Map(device.Neighbors, func(n *domain.Device, _ int) string { return n.FQDN })
	links := make(map[string][]domain.Connection)

	for _, rule := range e.registry.LookupDirect(device.FQDN, names) {
		farName, localMatch, farMatch := rule.NameRight, rule.MatchLeft, rule.MatchRight
		if !rule.DirectOrder {
			farName, localMatch, farMatch = rule.NameLeft, rule.MatchRight, rule.MatchLeft
		}
		far, ok := neighbors[farName]
		if !ok {
			return nil, fmt.Errorf("direct rule %q: %s is not a neighbor", rule.Pattern, farName)
		}

		conns, ok := links[farName]
		if !ok {
			var err error
			conns, err = e.storage.SearchConnections(device, far)
			if err != nil {
				return nil, fmt.Errorf("direct rule %q: %w", rule.Pattern, err)
			}
			links[farName] = conns
		}

		local := &DirectPeer{
			Match:  localMatch,
			Device: device,
			Ports:  lo.Map(conns, func(c domain.Connection, _ int) string { return c.Local.Name }),
		}
		remote := &DirectPeer{
			Match:  farMatch,
			Device: far,
			Ports:  lo.Map(conns, func(c domain.Connection, _ int) string { return c.Remote.Name }),
		}
		session := &Session{}
		if rule.DirectOrder {
			rule.Handler(local, remote, session)
		} else {
			rule.Handler(remote, local, session)
		}
		rulesExecuted.WithLabelValues("direct").Inc()

		set.add(logger, rule.Pattern, far, local.PeerDTO, remote.PeerDTO, session.SessionDTO, local.Ports)
	}
	return set, nil
}

func (e *Executor) executeIndirect(ctx context.Context, logger *logrus.Entry, device *domain.Device) (*peerSet, error) {
	set := newPeerSet("indirect")

	all, err := e.storage.ResolveAllFQDNs(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fleet: %w", err)
	}
	others := lo.Filter(all, func(name string, _ int) bool { return name != device.FQDN })
	resolved := make(map[string]*domain.Device)

	for _, rule := range e.registry.LookupIndirect(device.FQDN, others) {
		farName, localMatch, farMatch := rule.NameRight, rule.MatchLeft, rule.MatchRight
		if !rule.DirectOrder {
			farName, localMatch, farMatch = rule.NameLeft, rule.MatchRight, rule.MatchLeft
		}

		far, ok := resolved[farName]
		if !ok {
			far, err = e.resolve(ctx, farName)
			if err != nil {
				return nil, fmt.Errorf("indirect rule %q: %w", rule.Pattern, err)
			}
			resolved[farName] = far
		}

		local := &IndirectPeer{Match: localMatch, Device: device}
		remote := &IndirectPeer{Match: farMatch, Device: far}
		session := &Session{}
		if rule.DirectOrder {
			rule.Handler(local, remote, session)
		} else {
			rule.Handler(remote, local, session)
		}
		rulesExecuted.WithLabelValues("indirect").Inc()

		set.add(logger, rule.Pattern, far, local.PeerDTO, remote.PeerDTO, session.SessionDTO, nil)
	}
	return set, nil
}

// resolve fetches a device by its exact fqdn
func (e *Executor) resolve(ctx context.Context, fqdn string) (*domain.Device, error) {
	devices, err := e.storage.MakeDevices(ctx, storage.NewQuery(fqdn))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fqdn, err)
	}
	far, ok := lo.Find(devices, func(d *domain.Device) bool {
		return strings.EqualFold(d.FQDN, fqdn)
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, fqdn)
	}
	return far, nil
}
