package codec

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgen/internal/bgp"
	"meshgen/internal/domain"
	"meshgen/internal/mesh"
)

func sampleDocs() []Document {
	device := &domain.Device{FQDN: "leaf1.dc1.example.com", Hostname: "leaf1", Breed: "eos4", Role: "Leaf"}
	res := &mesh.MeshExecutionResult{
		GlobalOptions: mesh.Merge(mesh.DefaultGlobalOptions(), mesh.GlobalOptionsDTO{
			LocalAS: mesh.Ptr(bgp.ASN(65200)),
			Groups:  map[string]*mesh.PeerGroupDTO{"SPINES": {RemoteAS: mesh.Ptr(bgp.ASN(65100))}},
		}),
		Peers: []bgp.Peer{{
			Addr:      netip.MustParseAddr("10.1.1.0"),
			RemoteAS:  65100,
			Hostname:  "spine1",
			Interface: "Ethernet1",
			GroupName: "SPINES",
			Families:  []bgp.Family{bgp.FamilyIPv4Unicast},
			Options:   bgp.PeerOptions{BFD: mesh.Ptr(true)},
		}},
	}
	return []Document{NewDocument(device, res)}
}

func TestNewDocument(t *testing.T) {
	doc := sampleDocs()[0]
	assert.Equal(t, "leaf1.dc1.example.com", doc.Device)
	assert.Equal(t, "eos4", doc.Breed)
	assert.Equal(t, bgp.ASN(65200), *doc.GlobalOptions.LocalAS)
	require.Len(t, doc.GlobalOptions.Groups, 1)
	assert.Equal(t, "SPINES", doc.GlobalOptions.Groups[0].Name)

	empty := NewDocument(&domain.Device{FQDN: "x"}, &mesh.MeshExecutionResult{})
	assert.NotNil(t, empty.Peers)
}

func TestJSONCodec(t *testing.T) {
	c := NewJSONCodec()
	assert.Equal(t, "json", c.Format())

	var buf bytes.Buffer
	require.NoError(t, c.Export(sampleDocs(), &buf))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, 1)
	peers := raw[0]["peers"].([]any)
	peer := peers[0].(map[string]any)
	assert.Equal(t, "10.1.1.0", peer["addr"])
	assert.Equal(t, float64(65100), peer["remote_as"])

	docs, err := c.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleDocs(), docs)

	buf.Reset()
	require.NoError(t, c.Export(nil, &buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLCodec(t *testing.T) {
	c := NewYAMLCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(sampleDocs(), &buf))
	out := buf.String()
	assert.Contains(t, out, "devices:")
	assert.Contains(t, out, "addr: 10.1.1.0")
	assert.Contains(t, out, "remote_as: 65100")

	docs, err := c.Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, sampleDocs(), docs)
}

func TestAnsibleCodec(t *testing.T) {
	c := NewAnsibleCodec()
	assert.Equal(t, "ansible-inventory", c.Format())

	var buf bytes.Buffer
	require.NoError(t, c.Export(sampleDocs(), &buf))
	out := buf.String()
	assert.Contains(t, out, "leaf:")
	assert.Contains(t, out, "ansible_network_os: eos4")
	assert.Contains(t, out, "bgp_peers:")

	docs, err := c.Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "leaf1.dc1.example.com", docs[0].Device)
	assert.Equal(t, "Leaf", docs[0].Role)
	assert.Equal(t, sampleDocs()[0].Peers, docs[0].Peers)
}

func TestAnsibleCodecManagementAddress(t *testing.T) {
	docs := sampleDocs()
	docs[0].ManagementIP = "192.0.2.11"
	c := NewAnsibleCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(docs, &buf))
	assert.Contains(t, buf.String(), "ansible_host: 192.0.2.11")

	parsed, err := c.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "192.0.2.11", parsed[0].ManagementIP)
	assert.Equal(t, "leaf1.dc1.example.com", parsed[0].Device)
}

func TestExporters(t *testing.T) {
	e := Exporters()
	assert.Contains(t, e, "json")
	assert.Contains(t, e, "yaml")
	assert.Contains(t, e, "ansible-inventory")
}
