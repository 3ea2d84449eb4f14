package domain

import (
	"net/netip"
	"strings"
)

// Hardware identifies the vendor and model of a device
type Hardware struct {
	Vendor string `json:"vendor" yaml:"vendor"`
	Model  string `json:"model" yaml:"model"`
}

// String returns "vendor model", or "unknown" when nothing was classified
func (h Hardware) String() string {
	s := strings.TrimSpace(h.Vendor + " " + h.Model)
	if s == "" {
		return "unknown"
	}
	return s
}

// Device is a network device with its interfaces and physical neighbors.
//
// Neighbors is nil for devices loaded as someone else's neighbor: the graph
// is only ever one hop deep.
type Device struct {
	ID           int          `json:"id"`
	Hostname     string       `json:"hostname"`
	FQDN         string       `json:"fqdn"`
	Hardware     Hardware     `json:"hardware"`
	Breed        string       `json:"breed"`
	Platform     string       `json:"platform,omitempty"`
	Role         string       `json:"role,omitempty"`
	Site         string       `json:"site,omitempty"`
	Status       string       `json:"status,omitempty"`
	ManagementIP string       `json:"management_ip,omitempty"`
	Interfaces   []*Interface `json:"interfaces"`
	Neighbors    []*Device    `json:"neighbors,omitempty"`

	// GraphID identifies the storage instance that built this device
	GraphID string `json:"-"`
}

// ShortName returns the first DNS label of a device name
func ShortName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Interface looks up an interface by name
func (d *Device) Interface(name string) (*Interface, bool) {
	for _, iface := range d.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return nil, false
}

// Neighbor looks up a neighbor by fully-qualified name
func (d *Device) Neighbor(fqdn string) (*Device, bool) {
	for _, n := range d.Neighbors {
		if n.FQDN == fqdn {
			return n, true
		}
	}
	return nil, false
}

// Endpoint is the far end of a cable attached to an interface
type Endpoint struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	DeviceID   int    `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// Interface is a device port
type Interface struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	DeviceID    int          `json:"device_id"`
	Type        string       `json:"type,omitempty"`
	Description string       `json:"description,omitempty"`
	Enabled     bool         `json:"enabled"`
	MTU         int          `json:"mtu,omitempty"`
	LAG         string       `json:"lag,omitempty"`
	MACAddress  string       `json:"mac_address,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	IPAddresses []*IPAddress `json:"ip_addresses"`

	ConnectedEndpoints []Endpoint `json:"connected_endpoints,omitempty"`
}

// ConnectedTo reports whether any endpoint of the interface sits on deviceID
func (i *Interface) ConnectedTo(deviceID int) bool {
	for _, e := range i.ConnectedEndpoints {
		if e.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// IPAddress is an address assigned to an interface
type IPAddress struct {
	ID          int     `json:"id"`
	Address     string  `json:"address"`
	InterfaceID int     `json:"interface_id"`
	Family      int     `json:"family"`
	VRF         string  `json:"vrf,omitempty"`
	Status      string  `json:"status,omitempty"`
	Prefix      *Prefix `json:"prefix,omitempty"`
}

// Network returns the containing network of the address in canonical form,
// e.g. "10.0.0.1/31" yields "10.0.0.0/31"
func (a *IPAddress) Network() (string, error) {
	return NetworkOf(a.Address)
}

// NetworkOf computes the network of an address in interface notation
func NetworkOf(address string) (string, error) {
	p, err := netip.ParsePrefix(address)
	if err != nil {
		return "", err
	}
	return p.Masked().String(), nil
}

// Prefix is an IPAM network
type Prefix struct {
	ID          int    `json:"id"`
	Prefix      string `json:"prefix"`
	Site        string `json:"site,omitempty"`
	VRF         string `json:"vrf,omitempty"`
	VLAN        int    `json:"vlan,omitempty"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
}

// Connection is one physical link between two devices
type Connection struct {
	Local  *Interface `json:"local"`
	Remote *Interface `json:"remote"`
}
