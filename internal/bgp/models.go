// Package bgp defines the strict BGP configuration values produced by the mesh
// engine and consumed by configuration renderers.
//
// Every type here is fully resolved: addresses are parsed, ASNs are numeric and
// optional settings are pointers only where "not configured" has a distinct
// meaning to a renderer.
package bgp

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ASN is a 4-byte autonomous system number
type ASN uint32

// ParseASN accepts plain ("65001") and asdot ("1.10") notation
func ParseASN(s string) (ASN, error) {
	s = strings.TrimSpace(s)
	if high, low, ok := strings.Cut(s, "."); ok {
		h, err := strconv.ParseUint(high, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid asdot ASN %q: %w", s, err)
		}
		l, err := strconv.ParseUint(low, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid asdot ASN %q: %w", s, err)
		}
		return ASN(h<<16 | l), nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ASN %q: %w", s, err)
	}
	return ASN(v), nil
}

// String returns the asplain representation
func (a ASN) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// UnmarshalYAML accepts both notations of ParseASN
func (a *ASN) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: ASN must be a scalar", n.Line)
	}
	v, err := ParseASN(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*a = v
	return nil
}

// Family is a BGP address family
type Family string

const (
	FamilyIPv4Unicast Family = "ipv4_unicast"
	FamilyIPv6Unicast Family = "ipv6_unicast"
	FamilyIPv4Labeled Family = "ipv4_labeled_unicast"
	FamilyIPv6Labeled Family = "ipv6_labeled_unicast"
	FamilyL2VPNEVPN   Family = "l2vpn_evpn"
	FamilyL3VPN       Family = "l3vpn"
)

// Valid reports whether f is a known family
func (f Family) Valid() bool {
	switch f {
	case FamilyIPv4Unicast, FamilyIPv6Unicast, FamilyIPv4Labeled,
		FamilyIPv6Labeled, FamilyL2VPNEVPN, FamilyL3VPN:
		return true
	}
	return false
}

// PeerOptions holds per-session knobs taken from the local side of a peering
type PeerOptions struct {
	LocalAS             *ASN   `json:"local_as,omitempty" yaml:"local_as,omitempty"`
	BFD                 *bool  `json:"bfd,omitempty" yaml:"bfd,omitempty"`
	Multipath           *bool  `json:"multipath,omitempty" yaml:"multipath,omitempty"`
	SendCommunity       *bool  `json:"send_community,omitempty" yaml:"send_community,omitempty"`
	SoftReconfiguration *bool  `json:"soft_reconfiguration,omitempty" yaml:"soft_reconfiguration,omitempty"`
	Multihop            *int   `json:"multihop,omitempty" yaml:"multihop,omitempty"`
	Password            string `json:"password,omitempty" yaml:"password,omitempty"`
}

// InterfaceChanges describes how the local interface facing a peer must be
// reshaped. At most one of LAG, SVI and Subif is set.
type InterfaceChanges struct {
	Addr        string `json:"addr" yaml:"addr"`
	LAG         *int   `json:"lag,omitempty" yaml:"lag,omitempty"`
	LAGLinksMin *int   `json:"lag_links_min,omitempty" yaml:"lag_links_min,omitempty"`
	SVI         *int   `json:"svi,omitempty" yaml:"svi,omitempty"`
	Subif       *int   `json:"subif,omitempty" yaml:"subif,omitempty"`
	VRF         string `json:"vrf,omitempty" yaml:"vrf,omitempty"`
}

// Peer is a single resolved BGP neighbor
type Peer struct {
	Addr             netip.Addr        `json:"addr" yaml:"addr"`
	RemoteAS         ASN               `json:"remote_as" yaml:"remote_as"`
	Hostname         string            `json:"hostname" yaml:"hostname"`
	Interface        string            `json:"interface,omitempty" yaml:"interface,omitempty"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	VRFName          string            `json:"vrf_name,omitempty" yaml:"vrf_name,omitempty"`
	GroupName        string            `json:"group_name,omitempty" yaml:"group_name,omitempty"`
	ImportPolicy     string            `json:"import_policy,omitempty" yaml:"import_policy,omitempty"`
	ExportPolicy     string            `json:"export_policy,omitempty" yaml:"export_policy,omitempty"`
	UpdateSource     string            `json:"update_source,omitempty" yaml:"update_source,omitempty"`
	Families         []Family          `json:"families,omitempty" yaml:"families,omitempty"`
	Options          PeerOptions       `json:"options" yaml:"options"`
	InterfaceChanges *InterfaceChanges `json:"interface_changes,omitempty" yaml:"interface_changes,omitempty"`
}

// PeerGroup is a named template of neighbor settings
type PeerGroup struct {
	Name         string   `json:"name" yaml:"name"`
	RemoteAS     *ASN     `json:"remote_as,omitempty" yaml:"remote_as,omitempty"`
	LocalAS      *ASN     `json:"local_as,omitempty" yaml:"local_as,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	UpdateSource string   `json:"update_source,omitempty" yaml:"update_source,omitempty"`
	ImportPolicy string   `json:"import_policy,omitempty" yaml:"import_policy,omitempty"`
	ExportPolicy string   `json:"export_policy,omitempty" yaml:"export_policy,omitempty"`
	Families     []Family `json:"families,omitempty" yaml:"families,omitempty"`
	BFD          bool     `json:"bfd,omitempty" yaml:"bfd,omitempty"`
}

// VrfOptions carries per-VRF BGP settings
type VrfOptions struct {
	Name               string   `json:"name" yaml:"name"`
	RouteDistinguisher string   `json:"route_distinguisher,omitempty" yaml:"route_distinguisher,omitempty"`
	ImportRT           []string `json:"import_rt,omitempty" yaml:"import_rt,omitempty"`
	ExportRT           []string `json:"export_rt,omitempty" yaml:"export_rt,omitempty"`
	Families           []Family `json:"families,omitempty" yaml:"families,omitempty"`
}

// GlobalOptions are the device-wide BGP settings
type GlobalOptions struct {
	LocalAS   *ASN         `json:"local_as,omitempty" yaml:"local_as,omitempty"`
	RouterID  string       `json:"router_id,omitempty" yaml:"router_id,omitempty"`
	Loops     int          `json:"loops" yaml:"loops"`
	Multipath int          `json:"multipath" yaml:"multipath"`
	Families  []Family     `json:"families,omitempty" yaml:"families,omitempty"`
	Groups    []PeerGroup  `json:"groups,omitempty" yaml:"groups,omitempty"`
	VRFs      []VrfOptions `json:"vrfs,omitempty" yaml:"vrfs,omitempty"`
}
