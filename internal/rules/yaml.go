// Package rules loads mesh rules from YAML files.
//
// A rule file has three lists. Global entries match one device pattern and
// carry device-wide options. Direct and indirect entries match a pair of
// patterns and carry values for the left device, the right device and the
// session between them:
//
//	global:
//	  - match: "{any:.*}"
//	    options:
//	      local_as: 65000
//	      groups:
//	        SPINES: {remote_as: 65100, families: [ipv4_unicast]}
//	direct:
//	  - match: ["spine{s}.dc1.example.com", "leaf{l}.dc1.example.com"]
//	    left:    {addr: "10.{s}.{l}.0/31", asnum: 65100}
//	    right:   {addr: "10.{s}.{l}.1/31", asnum: "65200", group_name: SPINES}
//	    session: {bfd: true}
//
// String values may reference the placeholders captured by the patterns.
package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"meshgen/internal/bgp"
	"meshgen/internal/mesh"
)

// FileYAML represents the YAML file structure
type FileYAML struct {
	Global   []GlobalYAML `yaml:"global,omitempty"`
	Direct   []PairYAML   `yaml:"direct,omitempty"`
	Indirect []PairYAML   `yaml:"indirect,omitempty"`
}

// GlobalYAML is a global rule
type GlobalYAML struct {
	Match   string      `yaml:"match"`
	Options OptionsYAML `yaml:"options"`
}

// OptionsYAML represents device-wide options
type OptionsYAML struct {
	LocalAS   *bgp.ASN             `yaml:"local_as,omitempty"`
	RouterID  *string              `yaml:"router_id,omitempty"`
	Loops     *int                 `yaml:"loops,omitempty"`
	Multipath *int                 `yaml:"multipath,omitempty"`
	Families  []bgp.Family         `yaml:"families,omitempty"`
	Groups    map[string]GroupYAML `yaml:"groups,omitempty"`
	VRF       map[string]VrfYAML   `yaml:"vrf,omitempty"`
}

// GroupYAML represents a peer group
type GroupYAML struct {
	RemoteAS     *bgp.ASN     `yaml:"remote_as,omitempty"`
	LocalAS      *bgp.ASN     `yaml:"local_as,omitempty"`
	Description  *string      `yaml:"description,omitempty"`
	UpdateSource *string      `yaml:"update_source,omitempty"`
	ImportPolicy *string      `yaml:"import_policy,omitempty"`
	ExportPolicy *string      `yaml:"export_policy,omitempty"`
	BFD          *bool        `yaml:"bfd,omitempty"`
	Families     []bgp.Family `yaml:"families,omitempty"`
}

// VrfYAML represents a VRF
type VrfYAML struct {
	RouteDistinguisher *string      `yaml:"route_distinguisher,omitempty"`
	ImportRT           []string     `yaml:"import_rt,omitempty"`
	ExportRT           []string     `yaml:"export_rt,omitempty"`
	Families           []bgp.Family `yaml:"families,omitempty"`
}

// PairYAML is a direct or indirect rule. Match holds the left and right
// patterns.
type PairYAML struct {
	Match   []string    `yaml:"match"`
	Left    PeerYAML    `yaml:"left,omitempty"`
	Right   PeerYAML    `yaml:"right,omitempty"`
	Session SessionYAML `yaml:"session,omitempty"`
}

// SessionYAML represents settings shared by both sides
type SessionYAML struct {
	Families            []bgp.Family `yaml:"families,omitempty"`
	GroupName           *string      `yaml:"group_name,omitempty"`
	ImportPolicy        *string      `yaml:"import_policy,omitempty"`
	ExportPolicy        *string      `yaml:"export_policy,omitempty"`
	UpdateSource        *string      `yaml:"update_source,omitempty"`
	Password            *string      `yaml:"password,omitempty"`
	BFD                 *bool        `yaml:"bfd,omitempty"`
	Multipath           *bool        `yaml:"multipath,omitempty"`
	SendCommunity       *bool        `yaml:"send_community,omitempty"`
	SoftReconfiguration *bool        `yaml:"soft_reconfiguration,omitempty"`
	Multihop            *int         `yaml:"multihop,omitempty"`
	LocalAS             *bgp.ASN     `yaml:"local_as,omitempty"`
}

// PeerYAML represents one side of a peering
type PeerYAML struct {
	SessionYAML `yaml:",inline"`

	Addr        *string  `yaml:"addr,omitempty"`
	Asnum       *bgp.ASN `yaml:"asnum,omitempty"`
	Description *string  `yaml:"description,omitempty"`
	VRF         *string  `yaml:"vrf,omitempty"`
	Lag         *int     `yaml:"lag,omitempty"`
	LagLinksMin *int     `yaml:"lag_links_min,omitempty"`
	SVI         *int     `yaml:"svi,omitempty"`
	Subif       *int     `yaml:"subif,omitempty"`
}

// Registrar accepts rule handlers; mesh.PatternRegistry implements it
type Registrar interface {
	Global(pattern string, h mesh.GlobalHandler) error
	Direct(left, right string, h mesh.DirectHandler) error
	Indirect(left, right string, h mesh.IndirectHandler) error
}

// File is a validated rule file
type File struct {
	y FileYAML
}

// LoadYAML loads rules from a YAML file
func LoadYAML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseYAML(data)
}

// ParseYAML parses and validates rules from YAML bytes
func ParseYAML(data []byte) (*File, error) {
	var y FileYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&y); err != nil {
		return nil, err
	}
	return &File{y: y}, nil
}

// Len returns the number of global, direct and indirect rules
func (f *File) Len() (global, direct, indirect int) {
	return len(f.y.Global), len(f.y.Direct), len(f.y.Indirect)
}

// Register adds every rule of the file to r in file order
func (f *File) Register(r Registrar) error {
	for i, g := range f.y.Global {
		if err := r.Global(g.Match, globalHandler(g.Options)); err != nil {
			return fmt.Errorf("global rule %d: %w", i, err)
		}
	}
	for i, p := range f.y.Direct {
		if err := r.Direct(p.Match[0], p.Match[1], directHandler(p)); err != nil {
			return fmt.Errorf("direct rule %d: %w", i, err)
		}
	}
	for i, p := range f.y.Indirect {
		if err := r.Indirect(p.Match[0], p.Match[1], indirectHandler(p)); err != nil {
			return fmt.Errorf("indirect rule %d: %w", i, err)
		}
	}
	return nil
}

func globalHandler(o OptionsYAML) mesh.GlobalHandler {
	return func(opts *mesh.GlobalOptions) {
		x := expander(opts.Match)
		opts.GlobalOptionsDTO = mesh.Merge(opts.GlobalOptionsDTO, o.toDTO(x))
	}
}

func directHandler(p PairYAML) mesh.DirectHandler {
	return func(left, right *mesh.DirectPeer, session *mesh.Session) {
		x := pairArgs(left.Match, right.Match)
		left.PeerDTO = mesh.Merge(left.PeerDTO, p.Left.toDTO(x))
		right.PeerDTO = mesh.Merge(right.PeerDTO, p.Right.toDTO(x))
		session.SessionDTO = mesh.Merge(session.SessionDTO, p.Session.toDTO(x))
	}
}

func indirectHandler(p PairYAML) mesh.IndirectHandler {
	return func(left, right *mesh.IndirectPeer, session *mesh.Session) {
		x := pairArgs(left.Match, right.Match)
		left.PeerDTO = mesh.Merge(left.PeerDTO, p.Left.toDTO(x))
		right.PeerDTO = mesh.Merge(right.PeerDTO, p.Right.toDTO(x))
		session.SessionDTO = mesh.Merge(session.SessionDTO, p.Session.toDTO(x))
	}
}

func pairArgs(left, right mesh.MatchedArgs) expander {
	x := make(expander, len(left)+len(right))
	for k, v := range left {
		x[k] = v
	}
	for k, v := range right {
		x[k] = v
	}
	return x
}

// placeholderRe finds {name} references in values
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expander substitutes placeholders with matched values
type expander map[string]string

func (x expander) expand(s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		return x[m[1:len(m)-1]]
	})
}

func (x expander) str(p *string) *string {
	if p == nil {
		return nil
	}
	return mesh.Ptr(x.expand(*p))
}

func (x expander) strs(l []string) []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = x.expand(s)
	}
	return out
}

func (o OptionsYAML) toDTO(x expander) mesh.GlobalOptionsDTO {
	dto := mesh.GlobalOptionsDTO{
		LocalAS:   o.LocalAS,
		RouterID:  x.str(o.RouterID),
		Loops:     o.Loops,
		Multipath: o.Multipath,
		Families:  o.Families,
	}
	if len(o.Groups) > 0 {
		dto.Groups = make(map[string]*mesh.PeerGroupDTO, len(o.Groups))
		for name, g := range o.Groups {
			dto.Groups[x.expand(name)] = &mesh.PeerGroupDTO{
				RemoteAS:     g.RemoteAS,
				LocalAS:      g.LocalAS,
				Description:  x.str(g.Description),
				UpdateSource: x.str(g.UpdateSource),
				ImportPolicy: x.str(g.ImportPolicy),
				ExportPolicy: x.str(g.ExportPolicy),
				BFD:          g.BFD,
				Families:     g.Families,
			}
		}
	}
	if len(o.VRF) > 0 {
		dto.VRF = make(map[string]*mesh.VrfOptionsDTO, len(o.VRF))
		for name, v := range o.VRF {
			dto.VRF[x.expand(name)] = &mesh.VrfOptionsDTO{
				RouteDistinguisher: x.str(v.RouteDistinguisher),
				ImportRT:           x.strs(v.ImportRT),
				ExportRT:           x.strs(v.ExportRT),
				Families:           v.Families,
			}
		}
	}
	return dto
}

func (s SessionYAML) toDTO(x expander) mesh.SessionDTO {
	return mesh.SessionDTO{
		Families:            s.Families,
		GroupName:           x.str(s.GroupName),
		ImportPolicy:        x.str(s.ImportPolicy),
		ExportPolicy:        x.str(s.ExportPolicy),
		UpdateSource:        x.str(s.UpdateSource),
		Password:            x.str(s.Password),
		BFD:                 s.BFD,
		Multipath:           s.Multipath,
		SendCommunity:       s.SendCommunity,
		SoftReconfiguration: s.SoftReconfiguration,
		Multihop:            s.Multihop,
		LocalAS:             s.LocalAS,
	}
}

func (p PeerYAML) toDTO(x expander) mesh.PeerDTO {
	return mesh.PeerDTO{
		SessionDTO:  p.SessionYAML.toDTO(x),
		Addr:        x.str(p.Addr),
		Asnum:       p.Asnum,
		Description: x.str(p.Description),
		VRF:         x.str(p.VRF),
		Lag:         p.Lag,
		LagLinksMin: p.LagLinksMin,
		SVI:         p.SVI,
		Subif:       p.Subif,
	}
}
