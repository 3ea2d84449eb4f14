package mesh

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"meshgen/internal/bgp"
	"meshgen/internal/domain"
)

var (
	// ErrMutuallyExclusive is returned when more than one of lag, svi and
	// subif is set on the same interface directive
	ErrMutuallyExclusive = errors.New("mutually exclusive interface directives")
	// ErrInvalidPeer is returned when a merged peer lacks required data
	ErrInvalidPeer = errors.New("invalid peer")
)

// ToInterfaceChanges builds the interface directive of one side of a peering
func ToInterfaceChanges(dto PeerDTO) (*bgp.InterfaceChanges, error) {
	view := NewView(dto)

	set := lo.Filter([]string{"lag", "svi", "subif"}, func(name string, _ int) bool {
		return view.Has(name)
	})
	if len(set) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrMutuallyExclusive, strings.Join(set, ", "))
	}
	if view.Has("lag_links_min") && !view.Has("lag") {
		return nil, fmt.Errorf("%w: lag_links_min requires lag", ErrInvalidPeer)
	}
	if !view.Has("addr") {
		return nil, fmt.Errorf("%w: interface directive without an address", ErrInvalidPeer)
	}

	return &bgp.InterfaceChanges{
		Addr:        view.String("addr", ""),
		LAG:         view.IntPtr("lag"),
		LAGLinksMin: view.IntPtr("lag_links_min"),
		SVI:         view.IntPtr("svi"),
		Subif:       view.IntPtr("subif"),
		VRF:         view.String("vrf", ""),
	}, nil
}

// parsePeerAddr accepts a bare address or interface notation (addr/len)
func parsePeerAddr(s string) (netip.Addr, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Addr(), nil
	}
	return netip.ParseAddr(s)
}

// ToBGPPeer turns a merged pair into a BGP neighbor of the local device.
// local is what rules said about our own side, connected is the far end.
func ToBGPPeer(local, connected PeerDTO, device *domain.Device, iface string) (bgp.Peer, error) {
	remote := NewView(connected)
	own := NewView(local)

	if !remote.Has("addr") {
		return bgp.Peer{}, fmt.Errorf("%w: no address", ErrInvalidPeer)
	}
	addr, err := parsePeerAddr(remote.String("addr", ""))
	if err != nil {
		return bgp.Peer{}, fmt.Errorf("%w: %w", ErrInvalidPeer, err)
	}
	if !remote.Has("asnum") {
		return bgp.Peer{}, fmt.Errorf("%w: no remote AS for %s", ErrInvalidPeer, addr)
	}

	// our side's asnum is the local AS of the session; an explicit
	// session local_as only fills in when the side has none
	localAS := own.ASNPtr("asnum")
	if sessionAS := own.ASNPtr("local_as"); localAS == nil {
		localAS = sessionAS
	} else if sessionAS != nil && *sessionAS != *localAS {
		log.WithFields(logrus.Fields{
			"peer":     addr,
			"asnum":    *localAS,
			"local_as": *sessionAS,
		}).Warn("local_as differs from the local asnum, using asnum")
	}

	peer := bgp.Peer{
		Addr:         addr,
		RemoteAS:     remote.ASN("asnum", 0),
		Interface:    iface,
		Description:  remote.String("description", ""),
		VRFName:      remote.String("vrf", ""),
		GroupName:    remote.String("group_name", ""),
		ImportPolicy: remote.String("import_policy", ""),
		ExportPolicy: remote.String("export_policy", ""),
		UpdateSource: remote.String("update_source", ""),
		Families:     slices.Clone(remote.Families("families", nil)),
		Options: bgp.PeerOptions{
			LocalAS:             localAS,
			BFD:                 own.BoolPtr("bfd"),
			Multipath:           own.BoolPtr("multipath"),
			SendCommunity:       own.BoolPtr("send_community"),
			SoftReconfiguration: own.BoolPtr("soft_reconfiguration"),
			Multihop:            own.IntPtr("multihop"),
			Password:            own.String("password", ""),
		},
	}
	if device != nil {
		peer.Hostname = device.Hostname
	}

	if local.HasInterfaceChanges() {
		changes, err := ToInterfaceChanges(local)
		if err != nil {
			return bgp.Peer{}, err
		}
		peer.InterfaceChanges = changes
	}
	return peer, nil
}

// ToBGPGlobalOptions flattens merged global options, listing groups and VRFs
// by name
func ToBGPGlobalOptions(dto GlobalOptionsDTO) bgp.GlobalOptions {
	view := NewView(dto)

	var groups []bgp.PeerGroup
	for _, name := range slices.Sorted(maps.Keys(dto.Groups)) {
		g := dto.Groups[name]
		if g == nil {
			continue
		}
		gv := NewView(*g)
		groups = append(groups, bgp.PeerGroup{
			Name:         name,
			RemoteAS:     gv.ASNPtr("remote_as"),
			LocalAS:      gv.ASNPtr("local_as"),
			Description:  gv.String("description", ""),
			UpdateSource: gv.String("update_source", ""),
			ImportPolicy: gv.String("import_policy", ""),
			ExportPolicy: gv.String("export_policy", ""),
			Families:     slices.Clone(g.Families),
			BFD:          gv.Bool("bfd", false),
		})
	}

	var vrfs []bgp.VrfOptions
	if set := lo.OmitBy(dto.VRF, func(_ string, v *VrfOptionsDTO) bool { return v == nil }); len(set) > 0 {
		vrfs = lo.MapToSlice(set, func(name string, v *VrfOptionsDTO) bgp.VrfOptions {
			return bgp.VrfOptions{
				Name:               name,
				RouteDistinguisher: lo.FromPtr(v.RouteDistinguisher),
				ImportRT:           slices.Clone(v.ImportRT),
				ExportRT:           slices.Clone(v.ExportRT),
				Families:           slices.Clone(v.Families),
			}
		})
		slices.SortFunc(vrfs, func(a, b bgp.VrfOptions) int { return cmp.Compare(a.Name, b.Name) })
	}

	return bgp.GlobalOptions{
		LocalAS:   view.ASNPtr("local_as"),
		RouterID:  view.String("router_id", ""),
		Loops:     view.Int("loops", 0),
		Multipath: view.Int("multipath", 0),
		Families:  slices.Clone(dto.Families),
		Groups:    groups,
		VRFs:      vrfs,
	}
}
