package codec

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"meshgen/internal/bgp"
)

// AnsibleCodec handles Ansible inventory import/export. Hosts are grouped by
// device role and carry their BGP configuration as host vars.
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string            `yaml:"ansible_host,omitempty"`
	NetworkOS   string            `yaml:"ansible_network_os,omitempty"`
	Hostname    string            `yaml:"hostname,omitempty"`
	Role        string            `yaml:"role,omitempty"`
	BGPGlobal   bgp.GlobalOptions `yaml:"bgp_global"`
	BGPPeers    []bgp.Peer        `yaml:"bgp_peers"`
}

// Parse imports documents from an Ansible inventory
func (c *AnsibleCodec) Parse(r io.Reader) ([]Document, error) {
	var inv ansibleInventory
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse Ansible inventory: %w", err)
	}

	var docs []Document
	for _, group := range sortedKeys(inv.All.Children) {
		for _, id := range sortedKeys(inv.All.Children[group].Hosts) {
			docs = append(docs, c.hostToDocument(id, group, inv.All.Children[group].Hosts[id]))
		}
	}
	for _, id := range sortedKeys(inv.All.Hosts) {
		docs = append(docs, c.hostToDocument(id, "", inv.All.Hosts[id]))
	}
	return docs, nil
}

// hostToDocument converts an inventory host back into a document
func (c *AnsibleCodec) hostToDocument(id, group string, host ansibleHost) Document {
	doc := Document{
		Device:        id,
		Hostname:      host.Hostname,
		Breed:         host.NetworkOS,
		Role:          host.Role,
		GlobalOptions: host.BGPGlobal,
		Peers:         host.BGPPeers,
	}
	if host.AnsibleHost != id {
		doc.ManagementIP = host.AnsibleHost
	}
	if doc.Role == "" && group != "ungrouped" {
		doc.Role = group
	}
	return doc
}

// groupName turns a device role into an inventory group name
func groupName(role string) string {
	if role == "" {
		return "ungrouped"
	}
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(strings.ToLower(role))
}

// Export exports documents as an Ansible inventory
func (c *AnsibleCodec) Export(docs []Document, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
		},
	}

	for _, doc := range docs {
		name := groupName(doc.Role)
		group, ok := inv.All.Children[name]
		if !ok {
			group = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
			inv.All.Children[name] = group
		}
		address := doc.ManagementIP
		if address == "" {
			address = doc.Device
		}
		group.Hosts[doc.Device] = ansibleHost{
			AnsibleHost: address,
			NetworkOS:   doc.Breed,
			Hostname:    doc.Hostname,
			Role:        doc.Role,
			BGPGlobal:   doc.GlobalOptions,
			BGPPeers:    doc.Peers,
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
