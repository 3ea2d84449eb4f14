package mesh

// GlobalHandler fills in device-wide options
type GlobalHandler func(opts *GlobalOptions)

// DirectHandler fills in both sides of a peering over a physical link
type DirectHandler func(left, right *DirectPeer, session *Session)

// IndirectHandler fills in both sides of a peering between any two devices
type IndirectHandler func(left, right *IndirectPeer, session *Session)

// GlobalRule is a global handler matched against a device
type GlobalRule struct {
	Pattern string
	Name    string
	Match   MatchedArgs
	Handler GlobalHandler
}

// DirectRule is a direct handler matched against a device pair. NameLeft is
// the device the left pattern matched; DirectOrder is true when that is the
// device being generated.
type DirectRule struct {
	Pattern     string
	NameLeft    string
	NameRight   string
	MatchLeft   MatchedArgs
	MatchRight  MatchedArgs
	DirectOrder bool
	Handler     DirectHandler
}

// IndirectRule is an indirect handler matched against a device pair
type IndirectRule struct {
	Pattern     string
	NameLeft    string
	NameRight   string
	MatchLeft   MatchedArgs
	MatchRight  MatchedArgs
	DirectOrder bool
	Handler     IndirectHandler
}

// Registry finds the rules that apply to a device. Results keep
// registration order.
type Registry interface {
	LookupGlobal(fqdn string) []GlobalRule
	LookupDirect(fqdn string, neighbors []string) []DirectRule
	LookupIndirect(fqdn string, devices []string) []IndirectRule
}
