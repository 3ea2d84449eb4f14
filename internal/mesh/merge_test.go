package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meshgen/internal/bgp"
)

func TestMergeRightBiased(t *testing.T) {
	a := PeerDTO{Addr: Ptr("10.0.0.1"), Asnum: Ptr(bgp.ASN(65001)), Description: Ptr("to spine")}
	b := PeerDTO{Asnum: Ptr(bgp.ASN(65002)), VRF: Ptr("blue")}

	got := Merge(a, b)
	assert.Equal(t, "10.0.0.1", *got.Addr)
	assert.Equal(t, bgp.ASN(65002), *got.Asnum)
	assert.Equal(t, "to spine", *got.Description)
	assert.Equal(t, "blue", *got.VRF)
}

func TestMergeUnsetNeverOverwrites(t *testing.T) {
	a := PeerDTO{SessionDTO: SessionDTO{BFD: Ptr(true), Multihop: Ptr(2)}}
	got := Merge(a, PeerDTO{}, PeerDTO{})
	assert.True(t, *got.BFD)
	assert.Equal(t, 2, *got.Multihop)
}

func TestMergeFamiliesUnion(t *testing.T) {
	a := SessionDTO{Families: []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyL2VPNEVPN}}
	b := SessionDTO{Families: []bgp.Family{bgp.FamilyIPv6Unicast, bgp.FamilyIPv4Unicast}}

	got := Merge(a, b)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyL2VPNEVPN, bgp.FamilyIPv6Unicast}, got.Families)
}

func TestMergeIsAssociative(t *testing.T) {
	a := GlobalOptionsDTO{
		LocalAS:  Ptr(bgp.ASN(65000)),
		Families: []bgp.Family{bgp.FamilyIPv4Unicast},
		Groups: map[string]*PeerGroupDTO{
			"spines": {RemoteAS: Ptr(bgp.ASN(65100)), Families: []bgp.Family{bgp.FamilyIPv4Unicast}},
		},
	}
	b := GlobalOptionsDTO{
		RouterID: Ptr("10.255.0.1"),
		Families: []bgp.Family{bgp.FamilyL2VPNEVPN},
		Groups: map[string]*PeerGroupDTO{
			"spines": {Description: Ptr("spine uplinks"), Families: []bgp.Family{bgp.FamilyL2VPNEVPN}},
			"leaves": {BFD: Ptr(true)},
		},
		VRF: map[string]*VrfOptionsDTO{
			"blue": {ImportRT: []string{"65000:1"}},
		},
	}
	c := GlobalOptionsDTO{
		LocalAS: Ptr(bgp.ASN(65010)),
		Groups: map[string]*PeerGroupDTO{
			"spines": {RemoteAS: Ptr(bgp.ASN(65200))},
		},
		VRF: map[string]*VrfOptionsDTO{
			"blue": {ImportRT: []string{"65000:2", "65000:1"}, RouteDistinguisher: Ptr("10.255.0.1:1")},
		},
	}

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	flat := Merge(a, b, c)
	assert.Equal(t, left, right)
	assert.Equal(t, left, flat)

	assert.Equal(t, bgp.ASN(65010), *flat.LocalAS)
	assert.Equal(t, bgp.ASN(65200), *flat.Groups["spines"].RemoteAS)
	assert.Equal(t, "spine uplinks", *flat.Groups["spines"].Description)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyL2VPNEVPN}, flat.Groups["spines"].Families)
	assert.Equal(t, []string{"65000:1", "65000:2"}, flat.VRF["blue"].ImportRT)
	assert.Contains(t, flat.Groups, "leaves")
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := GlobalOptionsDTO{
		Families: []bgp.Family{bgp.FamilyIPv4Unicast},
		Groups:   map[string]*PeerGroupDTO{"spines": {RemoteAS: Ptr(bgp.ASN(1))}},
	}
	b := GlobalOptionsDTO{
		Families: []bgp.Family{bgp.FamilyIPv6Unicast},
		Groups:   map[string]*PeerGroupDTO{"spines": {RemoteAS: Ptr(bgp.ASN(2))}},
	}

	got := Merge(a, b)
	*got.Groups["spines"].RemoteAS = 3
	got.Families[0] = bgp.FamilyL3VPN

	assert.Equal(t, bgp.ASN(1), *a.Groups["spines"].RemoteAS)
	assert.Equal(t, bgp.ASN(2), *b.Groups["spines"].RemoteAS)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast}, a.Families)
	assert.Len(t, a.Groups, 1)
}

func TestMergeSingleValueCopies(t *testing.T) {
	a := PeerDTO{Addr: Ptr("10.0.0.1")}
	got := Merge(a)
	*got.Addr = "10.0.0.9"
	assert.Equal(t, "10.0.0.1", *a.Addr)
}

func TestOverrides(t *testing.T) {
	a := PeerDTO{Addr: Ptr("10.0.0.1"), Asnum: Ptr(bgp.ASN(65001)), SessionDTO: SessionDTO{BFD: Ptr(true)}}
	b := PeerDTO{Addr: Ptr("10.0.0.1"), Asnum: Ptr(bgp.ASN(65002)), SessionDTO: SessionDTO{BFD: Ptr(false)}, VRF: Ptr("blue")}

	assert.Equal(t, []string{"asnum", "bfd"}, a.Overrides(b))
	assert.Empty(t, a.Overrides(PeerDTO{}))

	g := GlobalOptionsDTO{LocalAS: Ptr(bgp.ASN(65001))}
	assert.Equal(t, []string{"local_as"}, g.Overrides(GlobalOptionsDTO{LocalAS: Ptr(bgp.ASN(65002))}))
}
