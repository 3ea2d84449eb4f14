// Package codec exports mesh results for renderers and automation tools.
package codec

import (
	"io"

	"meshgen/internal/bgp"
	"meshgen/internal/domain"
	"meshgen/internal/mesh"
)

// Document is the exported BGP configuration of one device
type Document struct {
	Device        string            `json:"device" yaml:"device"`
	Hostname      string            `json:"hostname" yaml:"hostname"`
	Breed         string            `json:"breed,omitempty" yaml:"breed,omitempty"`
	Role          string            `json:"role,omitempty" yaml:"role,omitempty"`
	ManagementIP  string            `json:"management_ip,omitempty" yaml:"management_ip,omitempty"`
	GlobalOptions bgp.GlobalOptions `json:"global_options" yaml:"global_options"`
	Peers         []bgp.Peer        `json:"peers" yaml:"peers"`
}

// NewDocument flattens an execution result for device
func NewDocument(device *domain.Device, res *mesh.MeshExecutionResult) Document {
	peers := res.Peers
	if peers == nil {
		peers = []bgp.Peer{}
	}
	return Document{
		Device:        device.FQDN,
		Hostname:      device.Hostname,
		Breed:         device.Breed,
		Role:          device.Role,
		ManagementIP:  device.ManagementIP,
		GlobalOptions: mesh.ToBGPGlobalOptions(res.GlobalOptions),
		Peers:         peers,
	}
}

// Importer reads documents back from a format
type Importer interface {
	Parse(r io.Reader) ([]Document, error)
	Format() string
}

// Exporter writes documents in a format
type Exporter interface {
	Export(docs []Document, w io.Writer) error
	Format() string
}

// Exporters returns every exporter keyed by format
func Exporters() map[string]Exporter {
	out := make(map[string]Exporter)
	for _, e := range []Exporter{NewJSONCodec(), NewYAMLCodec(), NewAnsibleCodec()} {
		out[e.Format()] = e
	}
	return out
}
