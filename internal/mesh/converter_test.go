package mesh

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgen/internal/bgp"
	"meshgen/internal/domain"
)

func TestView(t *testing.T) {
	dto := PeerDTO{
		Addr:       Ptr("10.0.0.1/31"),
		Asnum:      Ptr(bgp.ASN(65001)),
		SessionDTO: SessionDTO{BFD: Ptr(false), Families: []bgp.Family{bgp.FamilyIPv4Unicast}},
	}
	v := NewView(dto)

	assert.True(t, v.Has("addr"))
	assert.False(t, v.Has("description"))
	assert.False(t, v.Has("no_such_field"))

	assert.Equal(t, "10.0.0.1/31", v.String("addr", "x"))
	assert.Equal(t, "fallback", v.String("description", "fallback"))
	assert.Equal(t, bgp.ASN(65001), v.ASN("asnum", 0))
	assert.False(t, v.Bool("bfd", true))
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast}, v.Families("families", nil))

	// wrong type reads as unset
	assert.Equal(t, 7, v.Int("addr", 7))
	assert.Nil(t, v.IntPtr("addr"))
	assert.Nil(t, v.StringPtr("vrf"))
	require.NotNil(t, v.BoolPtr("bfd"))

	assert.False(t, NewView(nil).Has("addr"))
}

func TestToInterfaceChanges(t *testing.T) {
	tests := []struct {
		name    string
		dto     PeerDTO
		wantErr error
	}{
		{"lag", PeerDTO{Addr: Ptr("10.0.0.0/31"), Lag: Ptr(1), LagLinksMin: Ptr(2)}, nil},
		{"svi", PeerDTO{Addr: Ptr("10.0.0.0/31"), SVI: Ptr(100)}, nil},
		{"subif with vrf", PeerDTO{Addr: Ptr("10.0.0.0/31"), Subif: Ptr(10), VRF: Ptr("blue")}, nil},
		{"lag and svi", PeerDTO{Addr: Ptr("10.0.0.0/31"), Lag: Ptr(1), SVI: Ptr(100)}, ErrMutuallyExclusive},
		{"lag and subif", PeerDTO{Addr: Ptr("10.0.0.0/31"), Lag: Ptr(1), Subif: Ptr(5)}, ErrMutuallyExclusive},
		{"svi and subif", PeerDTO{Addr: Ptr("10.0.0.0/31"), SVI: Ptr(1), Subif: Ptr(5)}, ErrMutuallyExclusive},
		{"links min without lag", PeerDTO{Addr: Ptr("10.0.0.0/31"), LagLinksMin: Ptr(2)}, ErrInvalidPeer},
		{"no address", PeerDTO{SVI: Ptr(100)}, ErrInvalidPeer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInterfaceChanges(tt.dto)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *tt.dto.Addr, got.Addr)
		})
	}
}

func TestToBGPPeer(t *testing.T) {
	far := &domain.Device{FQDN: "spine1.dc1.example.com", Hostname: "spine1"}
	local := PeerDTO{
		Addr: Ptr("10.0.0.0/31"),
		Lag:  Ptr(10),
		SessionDTO: SessionDTO{
			BFD:      Ptr(true),
			Password: Ptr("s3cret"),
			LocalAS:  Ptr(bgp.ASN(64512)),
		},
	}
	connected := PeerDTO{
		Addr:        Ptr("10.0.0.1/31"),
		Asnum:       Ptr(bgp.ASN(65100)),
		Description: Ptr("spine1"),
		SessionDTO: SessionDTO{
			GroupName: Ptr("SPINES"),
			Families:  []bgp.Family{bgp.FamilyIPv4Unicast},
		},
	}

	peer, err := ToBGPPeer(local, connected, far, "eth0")
	require.NoError(t, err)

	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), peer.Addr)
	assert.Equal(t, bgp.ASN(65100), peer.RemoteAS)
	assert.Equal(t, "spine1", peer.Hostname)
	assert.Equal(t, "eth0", peer.Interface)
	assert.Equal(t, "SPINES", peer.GroupName)
	assert.Equal(t, "spine1", peer.Description)
	assert.Empty(t, peer.VRFName)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast}, peer.Families)
	assert.True(t, *peer.Options.BFD)
	assert.Equal(t, "s3cret", peer.Options.Password)
	assert.Equal(t, bgp.ASN(64512), *peer.Options.LocalAS)
	assert.Nil(t, peer.Options.Multihop)

	require.NotNil(t, peer.InterfaceChanges)
	assert.Equal(t, "10.0.0.0/31", peer.InterfaceChanges.Addr)
	assert.Equal(t, 10, *peer.InterfaceChanges.LAG)
}

func TestToBGPPeerLocalAS(t *testing.T) {
	connected := PeerDTO{Addr: Ptr("10.0.0.1/31"), Asnum: Ptr(bgp.ASN(65002))}

	tests := []struct {
		name  string
		local PeerDTO
		want  *bgp.ASN
	}{
		{"from asnum", PeerDTO{Addr: Ptr("10.0.0.0/31"), Asnum: Ptr(bgp.ASN(65001))}, Ptr(bgp.ASN(65001))},
		{"session fallback", PeerDTO{SessionDTO: SessionDTO{LocalAS: Ptr(bgp.ASN(64512))}}, Ptr(bgp.ASN(64512))},
		{
			"asnum wins over session",
			PeerDTO{Asnum: Ptr(bgp.ASN(65001)), SessionDTO: SessionDTO{LocalAS: Ptr(bgp.ASN(64512))}},
			Ptr(bgp.ASN(65001)),
		},
		{"unset", PeerDTO{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, err := ToBGPPeer(tt.local, connected, nil, "")
			require.NoError(t, err)
			assert.Equal(t, bgp.ASN(65002), peer.RemoteAS)
			assert.Equal(t, tt.want, peer.Options.LocalAS)
		})
	}
}

func TestToBGPPeerErrors(t *testing.T) {
	far := &domain.Device{FQDN: "r2.example.com", Hostname: "r2"}

	_, err := ToBGPPeer(PeerDTO{}, PeerDTO{Asnum: Ptr(bgp.ASN(1))}, far, "")
	assert.ErrorIs(t, err, ErrInvalidPeer)

	_, err = ToBGPPeer(PeerDTO{}, PeerDTO{Addr: Ptr("10.0.0.1")}, far, "")
	assert.ErrorIs(t, err, ErrInvalidPeer)

	_, err = ToBGPPeer(PeerDTO{}, PeerDTO{Addr: Ptr("not-an-ip"), Asnum: Ptr(bgp.ASN(1))}, far, "")
	assert.ErrorIs(t, err, ErrInvalidPeer)

	local := PeerDTO{Addr: Ptr("10.0.0.0/31"), Lag: Ptr(1), SVI: Ptr(100)}
	_, err = ToBGPPeer(local, PeerDTO{Addr: Ptr("10.0.0.1"), Asnum: Ptr(bgp.ASN(1))}, far, "")
	assert.ErrorIs(t, err, ErrMutuallyExclusive)
}

func TestToBGPGlobalOptions(t *testing.T) {
	dto := Merge(DefaultGlobalOptions(), GlobalOptionsDTO{
		LocalAS:  Ptr(bgp.ASN(65000)),
		RouterID: Ptr("10.255.0.1"),
		Groups: map[string]*PeerGroupDTO{
			"spines": {RemoteAS: Ptr(bgp.ASN(65100)), BFD: Ptr(true)},
			"leaves": {Description: Ptr("leaf downlinks")},
		},
		VRF: map[string]*VrfOptionsDTO{
			"red":  {RouteDistinguisher: Ptr("10.255.0.1:2")},
			"blue": {ImportRT: []string{"65000:1"}},
		},
	})

	got := ToBGPGlobalOptions(dto)
	assert.Equal(t, bgp.ASN(65000), *got.LocalAS)
	assert.Equal(t, "10.255.0.1", got.RouterID)
	assert.Equal(t, 0, got.Loops)

	require.Len(t, got.Groups, 2)
	assert.Equal(t, "leaves", got.Groups[0].Name)
	assert.Equal(t, "leaf downlinks", got.Groups[0].Description)
	assert.Equal(t, "spines", got.Groups[1].Name)
	assert.True(t, got.Groups[1].BFD)
	assert.Equal(t, bgp.ASN(65100), *got.Groups[1].RemoteAS)

	require.Len(t, got.VRFs, 2)
	assert.Equal(t, "blue", got.VRFs[0].Name)
	assert.Equal(t, []string{"65000:1"}, got.VRFs[0].ImportRT)
	assert.Equal(t, "red", got.VRFs[1].Name)
	assert.Equal(t, "10.255.0.1:2", got.VRFs[1].RouteDistinguisher)
}

func TestToBGPGlobalOptionsSkipsNilEntries(t *testing.T) {
	dto := GlobalOptionsDTO{
		Groups: map[string]*PeerGroupDTO{"empty": nil, "spines": {BFD: Ptr(true)}},
		VRF:    map[string]*VrfOptionsDTO{"blue": nil},
	}

	var got bgp.GlobalOptions
	require.NotPanics(t, func() { got = ToBGPGlobalOptions(dto) })
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "spines", got.Groups[0].Name)
	assert.Nil(t, got.VRFs)
}
