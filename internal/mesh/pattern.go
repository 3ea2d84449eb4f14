package mesh

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// placeholderRe finds {name} and {name:regexp} placeholders
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::([^{}]+))?\}`)

// Pattern matches device names. A {name} placeholder captures one run of
// characters without dots, {name:expr} captures whatever expr matches.
// Patterns are anchored and case-insensitive.
type Pattern struct {
	raw   string
	re    *regexp.Regexp
	names []string
}

// CompilePattern parses a device name pattern
func CompilePattern(pattern string) (*Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	var (
		sb    strings.Builder
		names []string
		last  int
	)
	sb.WriteString("(?i)^")
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		sb.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		name := pattern[loc[2]:loc[3]]
		expr := `[^.]+`
		if loc[4] >= 0 {
			expr = pattern[loc[4]:loc[5]]
		}
		for _, n := range names {
			if n == name {
				return nil, fmt.Errorf("pattern %q: placeholder %q used twice", pattern, name)
			}
		}
		names = append(names, name)
		fmt.Fprintf(&sb, "(?P<%s>%s)", name, expr)
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(pattern[last:]))
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, re: re, names: names}, nil
}

// String returns the pattern as written
func (p *Pattern) String() string { return p.raw }

// Names returns the placeholder names in order of appearance
func (p *Pattern) Names() []string { return p.names }

// Match reports whether name matches and returns the captured placeholders
func (p *Pattern) Match(name string) (MatchedArgs, bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	args := make(MatchedArgs, len(p.names))
	for i, sub := range p.re.SubexpNames() {
		if sub != "" {
			args[sub] = m[i]
		}
	}
	return args, true
}

type globalEntry struct {
	pattern *Pattern
	handler GlobalHandler
}

type pairEntry[H any] struct {
	left, right *Pattern
	handler     H
}

func (e pairEntry[H]) String() string {
	return e.left.raw + " ~ " + e.right.raw
}

// pairMatch is one oriented match of a pair entry
type pairMatch struct {
	nameLeft, nameRight   string
	matchLeft, matchRight MatchedArgs
	directOrder           bool
}

// match tries device as the left side first, then as the right side
func (e pairEntry[H]) match(device, other string) (pairMatch, bool) {
	if l, ok := e.left.Match(device); ok {
		if r, ok := e.right.Match(other); ok {
			return pairMatch{device, other, l, r, true}, true
		}
	}
	if l, ok := e.left.Match(other); ok {
		if r, ok := e.right.Match(device); ok {
			return pairMatch{other, device, l, r, false}, true
		}
	}
	return pairMatch{}, false
}

// PatternRegistry is a Registry of handlers keyed by name patterns. Lookup
// order is registration order, then the order of the candidate names.
type PatternRegistry struct {
	mu        sync.RWMutex
	globals   []globalEntry
	directs   []pairEntry[DirectHandler]
	indirects []pairEntry[IndirectHandler]
}

var _ Registry = (*PatternRegistry)(nil)

// NewPatternRegistry returns an empty registry
func NewPatternRegistry() *PatternRegistry {
	return &PatternRegistry{}
}

// Global registers a handler for devices matching pattern
func (r *PatternRegistry) Global(pattern string, h GlobalHandler) error {
	p, err := CompilePattern(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals = append(r.globals, globalEntry{pattern: p, handler: h})
	return nil
}

// Direct registers a handler for connected device pairs
func (r *PatternRegistry) Direct(left, right string, h DirectHandler) error {
	e, err := compilePair[DirectHandler](left, right, h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directs = append(r.directs, e)
	return nil
}

// Indirect registers a handler for device pairs with no link between them
func (r *PatternRegistry) Indirect(left, right string, h IndirectHandler) error {
	e, err := compilePair[IndirectHandler](left, right, h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indirects = append(r.indirects, e)
	return nil
}

func compilePair[H any](left, right string, h H) (pairEntry[H], error) {
	l, err := CompilePattern(left)
	if err != nil {
		return pairEntry[H]{}, err
	}
	r, err := CompilePattern(right)
	if err != nil {
		return pairEntry[H]{}, err
	}
	return pairEntry[H]{left: l, right: r, handler: h}, nil
}

// LookupGlobal implements Registry
func (r *PatternRegistry) LookupGlobal(fqdn string) []GlobalRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []GlobalRule
	for _, e := range r.globals {
		if m, ok := e.pattern.Match(fqdn); ok {
			out = append(out, GlobalRule{
				Pattern: e.pattern.raw,
				Name:    fqdn,
				Match:   m,
				Handler: e.handler,
			})
		}
	}
	return out
}

// LookupDirect implements Registry
func (r *PatternRegistry) LookupDirect(fqdn string, neighbors []string) []DirectRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DirectRule
	for _, e := range r.directs {
		for _, n := range neighbors {
			if n == fqdn {
				continue
			}
			if m, ok := e.match(fqdn, n); ok {
				out = append(out, DirectRule{
					Pattern:     e.String(),
					NameLeft:    m.nameLeft,
					NameRight:   m.nameRight,
					MatchLeft:   m.matchLeft,
					MatchRight:  m.matchRight,
					DirectOrder: m.directOrder,
					Handler:     e.handler,
				})
			}
		}
	}
	return out
}

// LookupIndirect implements Registry
func (r *PatternRegistry) LookupIndirect(fqdn string, devices []string) []IndirectRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []IndirectRule
	for _, e := range r.indirects {
		for _, n := range devices {
			if n == fqdn {
				continue
			}
			if m, ok := e.match(fqdn, n); ok {
				out = append(out, IndirectRule{
					Pattern:     e.String(),
					NameLeft:    m.nameLeft,
					NameRight:   m.nameRight,
					MatchLeft:   m.matchLeft,
					MatchRight:  m.matchRight,
					DirectOrder: m.directOrder,
					Handler:     e.handler,
				})
			}
		}
	}
	return out
}
