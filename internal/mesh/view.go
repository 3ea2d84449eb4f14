package mesh

import (
	"meshgen/internal/bgp"
)

// FieldSource exposes named optional attributes. ok is false when the
// attribute is unset.
type FieldSource interface {
	Field(name string) (value any, ok bool)
}

// View reads attributes from a FieldSource with per-read defaults.
// A value of the wrong type reads as unset.
type View struct {
	src FieldSource
}

// NewView wraps src
func NewView(src FieldSource) View {
	return View{src: src}
}

// Has reports whether name is set
func (v View) Has(name string) bool {
	if v.src == nil {
		return false
	}
	_, ok := v.src.Field(name)
	return ok
}

// Get returns the raw value of name, or def when unset
func (v View) Get(name string, def any) any {
	if v.src == nil {
		return def
	}
	if val, ok := v.src.Field(name); ok {
		return val
	}
	return def
}

func get[T any](v View, name string, def T) T {
	if val, ok := v.Get(name, def).(T); ok {
		return val
	}
	return def
}

// String reads a string attribute
func (v View) String(name, def string) string { return get(v, name, def) }

// Int reads an integer attribute
func (v View) Int(name string, def int) int { return get(v, name, def) }

// Bool reads a boolean attribute
func (v View) Bool(name string, def bool) bool { return get(v, name, def) }

// ASN reads an AS number attribute
func (v View) ASN(name string, def bgp.ASN) bgp.ASN { return get(v, name, def) }

// Families reads an address family list
func (v View) Families(name string, def []bgp.Family) []bgp.Family { return get(v, name, def) }

// StringPtr reads a string attribute, nil when unset
func (v View) StringPtr(name string) *string { return getPtr[string](v, name) }

// IntPtr reads an integer attribute, nil when unset
func (v View) IntPtr(name string) *int { return getPtr[int](v, name) }

// BoolPtr reads a boolean attribute, nil when unset
func (v View) BoolPtr(name string) *bool { return getPtr[bool](v, name) }

// ASNPtr reads an AS number attribute, nil when unset
func (v View) ASNPtr(name string) *bgp.ASN { return getPtr[bgp.ASN](v, name) }

func getPtr[T any](v View, name string) *T {
	if val, ok := v.Get(name, nil).(T); ok {
		return &val
	}
	return nil
}

func field[T any](p *T) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func listField[T any](l []T) (any, bool) {
	if len(l) == 0 {
		return nil, false
	}
	return l, true
}

// Field implements FieldSource
func (s SessionDTO) Field(name string) (any, bool) {
	switch name {
	case "families":
		return listField(s.Families)
	case "group_name":
		return field(s.GroupName)
	case "import_policy":
		return field(s.ImportPolicy)
	case "export_policy":
		return field(s.ExportPolicy)
	case "update_source":
		return field(s.UpdateSource)
	case "password":
		return field(s.Password)
	case "bfd":
		return field(s.BFD)
	case "multipath":
		return field(s.Multipath)
	case "send_community":
		return field(s.SendCommunity)
	case "soft_reconfiguration":
		return field(s.SoftReconfiguration)
	case "multihop":
		return field(s.Multihop)
	case "local_as":
		return field(s.LocalAS)
	}
	return nil, false
}

// Field implements FieldSource
func (p PeerDTO) Field(name string) (any, bool) {
	switch name {
	case "addr":
		return field(p.Addr)
	case "asnum":
		return field(p.Asnum)
	case "description":
		return field(p.Description)
	case "vrf":
		return field(p.VRF)
	case "lag":
		return field(p.Lag)
	case "lag_links_min":
		return field(p.LagLinksMin)
	case "svi":
		return field(p.SVI)
	case "subif":
		return field(p.Subif)
	}
	return p.SessionDTO.Field(name)
}

// Field implements FieldSource
func (g GlobalOptionsDTO) Field(name string) (any, bool) {
	switch name {
	case "local_as", "asnum":
		return field(g.LocalAS)
	case "router_id":
		return field(g.RouterID)
	case "loops":
		return field(g.Loops)
	case "multipath":
		return field(g.Multipath)
	case "families":
		return listField(g.Families)
	}
	return nil, false
}

// Field implements FieldSource
func (g PeerGroupDTO) Field(name string) (any, bool) {
	switch name {
	case "remote_as":
		return field(g.RemoteAS)
	case "local_as":
		return field(g.LocalAS)
	case "description":
		return field(g.Description)
	case "update_source":
		return field(g.UpdateSource)
	case "import_policy":
		return field(g.ImportPolicy)
	case "export_policy":
		return field(g.ExportPolicy)
	case "bfd":
		return field(g.BFD)
	case "families":
		return listField(g.Families)
	}
	return nil, false
}

var (
	sessionScalars = []string{
		"group_name", "import_policy", "export_policy", "update_source", "password",
		"bfd", "multipath", "send_community", "soft_reconfiguration", "multihop", "local_as",
	}
	peerScalars   = append([]string{"addr", "asnum", "description", "vrf", "lag", "lag_links_min", "svi", "subif"}, sessionScalars...)
	globalScalars = []string{"local_as", "router_id", "loops", "multipath"}
)

// overrides lists scalar fields set in both a and b to different values
func overrides(a, b FieldSource, names []string) []string {
	var out []string
	for _, name := range names {
		av, aok := a.Field(name)
		bv, bok := b.Field(name)
		if aok && bok && av != bv {
			out = append(out, name)
		}
	}
	return out
}

// Overrides lists the fields that merging o into p would replace with a
// different value
func (p PeerDTO) Overrides(o PeerDTO) []string {
	return overrides(p, o, peerScalars)
}

// Overrides lists the fields that merging o into g would replace with a
// different value
func (g GlobalOptionsDTO) Overrides(o GlobalOptionsDTO) []string {
	return overrides(g, o, globalScalars)
}
