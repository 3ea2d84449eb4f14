package cmdb

import (
	"encoding/json"
	"net/netip"
)

// Ref is a brief nested reference to another entity
type Ref struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Manufacturer of a device type
type Manufacturer struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
}

// DeviceType is a hardware model
type DeviceType struct {
	ID           int           `json:"id" yaml:"id"`
	Model        string        `json:"model" yaml:"model"`
	Manufacturer *Manufacturer `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
}

// Label is a NetBox choice field
type Label struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// IPRef is a brief nested IP address
type IPRef struct {
	ID      int    `json:"id" yaml:"id"`
	Family  int    `json:"family,omitempty" yaml:"family,omitempty"`
	Address string `json:"address" yaml:"address"`
}

// Device as returned by the CMDB
type Device struct {
	ID         int         `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	DeviceType *DeviceType `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Platform   *Ref        `json:"platform,omitempty" yaml:"platform,omitempty"`
	Role       *Ref        `json:"role,omitempty" yaml:"role,omitempty"`
	Site       *Ref        `json:"site,omitempty" yaml:"site,omitempty"`
	Status     *Label      `json:"status,omitempty" yaml:"status,omitempty"`
	PrimaryIP  *IPRef      `json:"primary_ip,omitempty" yaml:"primary_ip,omitempty"`
	PrimaryIP4 *IPRef      `json:"primary_ip4,omitempty" yaml:"primary_ip4,omitempty"`
	PrimaryIP6 *IPRef      `json:"primary_ip6,omitempty" yaml:"primary_ip6,omitempty"`
}

// UnmarshalJSON accepts both the NetBox 4 "role" key and the NetBox 3
// "device_role" key
func (d *Device) UnmarshalJSON(data []byte) error {
	type device Device
	var raw struct {
		device
		DeviceRole *Ref `json:"device_role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Device(raw.device)
	if d.Role == nil {
		d.Role = raw.DeviceRole
	}
	return nil
}

// ManagementAddress returns the host address of the primary IP, preferring
// primary_ip, then IPv4, then IPv6. Empty when none is set.
func (d *Device) ManagementAddress() string {
	for _, ip := range []*IPRef{d.PrimaryIP, d.PrimaryIP4, d.PrimaryIP6} {
		if ip == nil || ip.Address == "" {
			continue
		}
		if p, err := netip.ParsePrefix(ip.Address); err == nil {
			return p.Addr().String()
		}
		if a, err := netip.ParseAddr(ip.Address); err == nil {
			return a.String()
		}
	}
	return ""
}

// Endpoint is a cable peer of an interface
type Endpoint struct {
	ID     int    `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Device Ref    `json:"device" yaml:"device"`
}

// Interface as returned by the CMDB
type Interface struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Device      Ref    `json:"device" yaml:"device"`
	Type        *Label `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	MTU         *int   `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	LAG         *Ref   `json:"lag,omitempty" yaml:"lag,omitempty"`
	MACAddress  string `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	Mode        *Label `json:"mode,omitempty" yaml:"mode,omitempty"`

	ConnectedEndpoints []Endpoint `json:"connected_endpoints,omitempty" yaml:"connected_endpoints,omitempty"`
}

// Family is the IP version choice field of an address
type Family struct {
	Value int    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// IPAddress as returned by the CMDB
type IPAddress struct {
	ID               int     `json:"id" yaml:"id"`
	Address          string  `json:"address" yaml:"address"`
	AssignedObjectID int     `json:"assigned_object_id" yaml:"assigned_object_id"`
	Family           *Family `json:"family,omitempty" yaml:"family,omitempty"`
	VRF              *Ref    `json:"vrf,omitempty" yaml:"vrf,omitempty"`
	Status           *Label  `json:"status,omitempty" yaml:"status,omitempty"`
}

// VLAN reference on a prefix
type VLAN struct {
	ID   int    `json:"id" yaml:"id"`
	VID  int    `json:"vid" yaml:"vid"`
	Name string `json:"name" yaml:"name"`
}

// Prefix as returned by the CMDB
type Prefix struct {
	ID          int    `json:"id" yaml:"id"`
	Prefix      string `json:"prefix" yaml:"prefix"`
	Site        *Ref   `json:"site,omitempty" yaml:"site,omitempty"`
	VRF         *Ref   `json:"vrf,omitempty" yaml:"vrf,omitempty"`
	VLAN        *VLAN  `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	Role        *Ref   `json:"role,omitempty" yaml:"role,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// RefName returns the name of a nullable reference
func RefName(r *Ref) string {
	if r == nil {
		return ""
	}
	return r.Name
}

// LabelValue returns the value of a nullable choice field
func LabelValue(l *Label) string {
	if l == nil {
		return ""
	}
	return l.Value
}
