package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgen/internal/cmdb"
)

const snapshotYAML = `
devices:
  - id: 1
    name: r1.example.com
    device_type: {id: 1, model: MX204, manufacturer: {id: 1, name: Juniper}}
  - id: 2
    name: r2.example.com
  - id: 3
    name: R10.example.com
interfaces:
  - {id: 10, name: eth0, device: {id: 1}}
  - {id: 11, name: eth1, device: {id: 1}}
  - {id: 20, name: eth2, device: {id: 2}}
  - {id: 21, name: eth3, device: {id: 2}}
ip_addresses:
  - {id: 100, address: 10.0.0.0/31, assigned_object_id: 10}
  - {id: 101, address: 10.0.0.1/31, assigned_object_id: 20}
prefixes:
  - {id: 1000, prefix: 10.0.0.0/31, description: r1-r2}
cables:
  - a: {device: r1.example.com, interface: eth0}
    b: {device: r2.example.com, interface: eth2}
  - a: {device: r1.example.com, interface: eth1}
    b: {device: r2.example.com, interface: eth3}
`

// newTestRepo creates an in-memory repository loaded with snapshotYAML
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})

	snap, err := ParseSnapshotYAML([]byte(snapshotYAML))
	require.NoError(t, err)
	require.NoError(t, repo.Import(context.Background(), snap))
	return repo
}

func names(devices []cmdb.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Name
	}
	return out
}

func TestListDevices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter cmdb.Filter
		want   []string
	}{
		{"no filter returns all", cmdb.Filter{}, []string{"r1.example.com", "r2.example.com", "R10.example.com"}},
		{"exact name is case-insensitive", cmdb.Filter{Name: []string{"r10.EXAMPLE.com"}}, []string{"R10.example.com"}},
		{"exact name does not match substrings", cmdb.Filter{Name: []string{"r1"}}, []string{}},
		{"contains matches a superset", cmdb.Filter{NameIC: []string{"r1"}}, []string{"r1.example.com", "R10.example.com"}},
		{"contains with several values", cmdb.Filter{NameIC: []string{"r1.", "r2."}}, []string{"r1.example.com", "r2.example.com"}},
		{"by id", cmdb.Filter{ID: []int{2, 3}}, []string{"r2.example.com", "R10.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := repo.ListDevices(ctx, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(devices))
		})
	}
}

func TestImportExpandsCables(t *testing.T) {
	repo := newTestRepo(t)

	ifaces, err := repo.ListInterfaces(context.Background(), cmdb.Filter{DeviceID: []int{1}})
	require.NoError(t, err)
	require.Len(t, ifaces, 2)

	eth0 := ifaces[0]
	assert.Equal(t, "eth0", eth0.Name)
	assert.Equal(t, "r1.example.com", eth0.Device.Name)
	require.Len(t, eth0.ConnectedEndpoints, 1)
	assert.Equal(t, cmdb.Endpoint{ID: 20, Name: "eth2", Device: cmdb.Ref{ID: 2, Name: "r2.example.com"}}, eth0.ConnectedEndpoints[0])

	remote, err := repo.ListInterfaces(context.Background(), cmdb.Filter{ID: []int{21}})
	require.NoError(t, err)
	require.Len(t, remote, 1)
	require.Len(t, remote[0].ConnectedEndpoints, 1)
	assert.Equal(t, "eth1", remote[0].ConnectedEndpoints[0].Name)
}

func TestListAddressesAndPrefixes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ips, err := repo.ListIPAddresses(ctx, cmdb.Filter{InterfaceID: []int{10, 11}})
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "10.0.0.0/31", ips[0].Address)

	prefixes, err := repo.ListPrefixes(ctx, cmdb.Filter{Prefix: []string{"10.0.0.0/31", "10.9.9.0/24"}})
	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "r1-r2", prefixes[0].Description)
}

func TestGetDevice(t *testing.T) {
	repo := newTestRepo(t)

	device, err := repo.GetDevice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "r1.example.com", device.Name)
	require.NotNil(t, device.DeviceType)
	assert.Equal(t, "Juniper", device.DeviceType.Manufacturer.Name)

	_, err = repo.GetDevice(context.Background(), 99)
	assert.ErrorIs(t, err, cmdb.ErrNotFound)
}

func TestImportRejectsUnknownCableEnd(t *testing.T) {
	repo, err := New(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	snap := &Snapshot{
		Devices:    []cmdb.Device{{ID: 1, Name: "r1"}},
		Interfaces: []cmdb.Interface{{ID: 1, Name: "eth0", Device: cmdb.Ref{ID: 1}}},
		Cables: []Cable{{
			A: CableEnd{Device: "r1", Interface: "eth0"},
			B: CableEnd{Device: "r2", Interface: "eth0"},
		}},
	}
	err = repo.Import(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown device "r2"`)
}

func TestImportReplacesContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Import(ctx, &Snapshot{Devices: []cmdb.Device{{ID: 7, Name: "only.example.com"}}}))

	devices, err := repo.ListDevices(ctx, cmdb.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"only.example.com"}, names(devices))

	ifaces, err := repo.ListInterfaces(ctx, cmdb.Filter{})
	require.NoError(t, err)
	assert.Empty(t, ifaces)
}
