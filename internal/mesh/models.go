package mesh

import (
	"meshgen/internal/bgp"
	"meshgen/internal/domain"
)

// Ptr returns a pointer to v, for filling optional DTO fields
func Ptr[T any](v T) *T {
	return &v
}

// MatchedArgs holds the named placeholders captured by a rule pattern
type MatchedArgs map[string]string

// SessionDTO holds settings shared by both ends of one peering session.
// Nil fields are unset.
type SessionDTO struct {
	Families            []bgp.Family
	GroupName           *string
	ImportPolicy        *string
	ExportPolicy        *string
	UpdateSource        *string
	Password            *string
	BFD                 *bool
	Multipath           *bool
	SendCommunity       *bool
	SoftReconfiguration *bool
	Multihop            *int
	LocalAS             *bgp.ASN
}

// PeerDTO accumulates what rules say about one side of a peering. Nil fields
// are unset.
type PeerDTO struct {
	SessionDTO

	Addr        *string
	Asnum       *bgp.ASN
	Description *string
	VRF         *string

	// interface directives; at most one of Lag, SVI and Subif may be set
	Lag         *int
	LagLinksMin *int
	SVI         *int
	Subif       *int
}

// HasInterfaceChanges reports whether any interface directive is set
func (p PeerDTO) HasInterfaceChanges() bool {
	return p.Lag != nil || p.LagLinksMin != nil || p.SVI != nil || p.Subif != nil
}

// PeerGroupDTO describes a peer group declared by global rules
type PeerGroupDTO struct {
	RemoteAS     *bgp.ASN
	LocalAS      *bgp.ASN
	Description  *string
	UpdateSource *string
	ImportPolicy *string
	ExportPolicy *string
	BFD          *bool
	Families     []bgp.Family
}

// VrfOptionsDTO describes a VRF declared by global rules
type VrfOptionsDTO struct {
	RouteDistinguisher *string
	ImportRT           []string
	ExportRT           []string
	Families           []bgp.Family
}

// GlobalOptionsDTO accumulates device-wide settings from global rules
type GlobalOptionsDTO struct {
	LocalAS   *bgp.ASN
	RouterID  *string
	Loops     *int
	Multipath *int
	Families  []bgp.Family
	VRF       map[string]*VrfOptionsDTO
	Groups    map[string]*PeerGroupDTO
}

// DefaultGlobalOptions seeds the global pass: no AS loops allowed and no
// multipath unless a rule says otherwise
func DefaultGlobalOptions() GlobalOptionsDTO {
	return GlobalOptionsDTO{
		Loops:     Ptr(0),
		Multipath: Ptr(0),
	}
}

// GlobalOptions is handed to global rule handlers
type GlobalOptions struct {
	GlobalOptionsDTO
	Match  MatchedArgs
	Device *domain.Device
}

// Group returns the named peer group, declaring it if needed
func (g *GlobalOptions) Group(name string) *PeerGroupDTO {
	if g.Groups == nil {
		g.Groups = make(map[string]*PeerGroupDTO)
	}
	if g.Groups[name] == nil {
		g.Groups[name] = &PeerGroupDTO{}
	}
	return g.Groups[name]
}

// VRFOptions returns the named VRF, declaring it if needed
func (g *GlobalOptions) VRFOptions(name string) *VrfOptionsDTO {
	if g.VRF == nil {
		g.VRF = make(map[string]*VrfOptionsDTO)
	}
	if g.VRF[name] == nil {
		g.VRF[name] = &VrfOptionsDTO{}
	}
	return g.VRF[name]
}

// DirectPeer is one side of a physically connected peering as seen by a rule
// handler. Ports lists that side's interfaces on the cables between the pair.
type DirectPeer struct {
	PeerDTO
	Match  MatchedArgs
	Device *domain.Device
	Ports  []string
}

// IndirectPeer is one side of a peering between non-adjacent devices
type IndirectPeer struct {
	PeerDTO
	Match  MatchedArgs
	Device *domain.Device
}

// Session is shared by both sides of a peering during one rule execution
type Session struct {
	SessionDTO
}

// MeshExecutionResult is everything the mesh produced for one device
type MeshExecutionResult struct {
	GlobalOptions GlobalOptionsDTO
	Peers         []bgp.Peer
}
