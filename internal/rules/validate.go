package rules

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"meshgen/internal/bgp"
	"meshgen/internal/mesh"
)

// ErrUnknownPlaceholder is returned when a value references a placeholder
// its patterns do not capture
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

func validate(y *FileYAML) error {
	var errs []error
	for i, g := range y.Global {
		if err := validateGlobal(g); err != nil {
			errs = append(errs, fmt.Errorf("global rule %d: %w", i, err))
		}
	}
	for i, p := range y.Direct {
		if err := validatePair(p); err != nil {
			errs = append(errs, fmt.Errorf("direct rule %d: %w", i, err))
		}
	}
	for i, p := range y.Indirect {
		if err := validatePair(p); err != nil {
			errs = append(errs, fmt.Errorf("indirect rule %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateGlobal(g GlobalYAML) error {
	p, err := mesh.CompilePattern(g.Match)
	if err != nil {
		return err
	}
	o := g.Options

	templates := []*string{o.RouterID}
	families := slices.Clone(o.Families)
	for name, grp := range o.Groups {
		templates = append(templates, &name, grp.Description, grp.UpdateSource, grp.ImportPolicy, grp.ExportPolicy)
		families = append(families, grp.Families...)
	}
	for name, v := range o.VRF {
		templates = append(templates, &name, v.RouteDistinguisher)
		templates = append(templates, lo.ToSlicePtr(v.ImportRT)...)
		templates = append(templates, lo.ToSlicePtr(v.ExportRT)...)
		families = append(families, v.Families...)
	}

	if err := checkFamilies(families); err != nil {
		return err
	}
	return checkPlaceholders(p.Names(), templates)
}

func validatePair(y PairYAML) error {
	if len(y.Match) != 2 {
		return fmt.Errorf("match needs exactly two patterns, got %d", len(y.Match))
	}
	left, err := mesh.CompilePattern(y.Match[0])
	if err != nil {
		return err
	}
	right, err := mesh.CompilePattern(y.Match[1])
	if err != nil {
		return err
	}
	if dup := lo.Intersect(left.Names(), right.Names()); len(dup) > 0 {
		return fmt.Errorf("placeholder %s captured by both patterns", strings.Join(dup, ", "))
	}

	templates := slices.Concat(peerTemplates(y.Left), peerTemplates(y.Right), sessionTemplates(y.Session))
	if err := checkFamilies(slices.Concat(y.Left.Families, y.Right.Families, y.Session.Families)); err != nil {
		return err
	}
	if err := checkInterfaceDirectives(y.Left); err != nil {
		return fmt.Errorf("left: %w", err)
	}
	if err := checkInterfaceDirectives(y.Right); err != nil {
		return fmt.Errorf("right: %w", err)
	}
	return checkPlaceholders(slices.Concat(left.Names(), right.Names()), templates)
}

func sessionTemplates(s SessionYAML) []*string {
	return []*string{s.GroupName, s.ImportPolicy, s.ExportPolicy, s.UpdateSource, s.Password}
}

func peerTemplates(p PeerYAML) []*string {
	return append(sessionTemplates(p.SessionYAML), p.Addr, p.Description, p.VRF)
}

// checkInterfaceDirectives rejects directives that can never convert
func checkInterfaceDirectives(p PeerYAML) error {
	set := lo.Filter([]*int{p.Lag, p.SVI, p.Subif}, func(v *int, _ int) bool { return v != nil })
	if len(set) > 1 {
		return mesh.ErrMutuallyExclusive
	}
	return nil
}

func checkFamilies(families []bgp.Family) error {
	for _, f := range families {
		if !f.Valid() {
			return fmt.Errorf("unknown address family %q", f)
		}
	}
	return nil
}

func checkPlaceholders(names []string, templates []*string) error {
	for _, t := range templates {
		if t == nil {
			continue
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(*t, -1) {
			if !slices.Contains(names, m[1]) {
				return fmt.Errorf("%w %q in %q", ErrUnknownPlaceholder, m[1], *t)
			}
		}
	}
	return nil
}
