package storage

import (
	"strings"
)

// Query selects devices by name. Each glob is either a full device name or a
// fragment of one; empty globs are ignored.
type Query struct {
	Globs []string
}

// NewQuery builds a query from name globs
func NewQuery(globs ...string) Query {
	q := Query{}
	for _, g := range globs {
		if g = strings.TrimSpace(g); g != "" {
			q.Globs = append(q.Globs, g)
		}
	}
	return q
}

// IsEmpty reports whether the query selects nothing
func (q Query) IsEmpty() bool {
	return len(q.Globs) == 0
}

// withHostnameDots returns a copy of q where every bare hostname (no dot) is
// suffixed with ".". Substring lookups then cannot hit a longer hostname that
// shares the prefix, so "sw1" never selects "sw10.example.com".
func (q Query) withHostnameDots() Query {
	out := Query{Globs: make([]string, len(q.Globs))}
	for i, g := range q.Globs {
		if !strings.Contains(g, ".") {
			g += "."
		}
		out.Globs[i] = g
	}
	return out
}

// matches re-checks a name returned by the upstream "contains" filter, which
// is a superset match. A glob must occur at the start of a DNS label.
func (q Query) matches(name string) bool {
	name = strings.ToLower(name)
	for _, g := range q.Globs {
		if containsAtLabel(name, strings.ToLower(g)) {
			return true
		}
	}
	return false
}

func containsAtLabel(name, sub string) bool {
	for offset := 0; offset <= len(name)-len(sub); {
		idx := strings.Index(name[offset:], sub)
		if idx < 0 {
			return false
		}
		idx += offset
		if idx == 0 || name[idx-1] == '.' {
			return true
		}
		offset = idx + 1
	}
	return false
}
