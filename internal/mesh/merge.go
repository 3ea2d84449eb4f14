package mesh

import (
	"maps"
	"slices"

	"github.com/samber/lo"
)

// Mergeable is implemented by DTOs that fold rule outputs together
type Mergeable[T any] interface {
	Merge(other T) T
}

// Merge folds values left to right. Scalars set in a later value replace
// earlier ones, list fields are unioned in first-seen order and nested maps
// merge per key. Inputs are never modified.
func Merge[T Mergeable[T]](first T, rest ...T) T {
	return lo.Reduce(rest, func(acc T, next T, _ int) T {
		return acc.Merge(next)
	}, first.Merge(zero[T]()))
}

func zero[T any]() T {
	var v T
	return v
}

// pick returns a copy of b when set, otherwise a copy of a
func pick[T any](a, b *T) *T {
	switch {
	case b != nil:
		return Ptr(*b)
	case a != nil:
		return Ptr(*a)
	default:
		return nil
	}
}

// union concatenates and removes duplicates keeping first occurrence
func union[T comparable](a, b []T) []T {
	out := lo.Uniq(slices.Concat(a, b))
	if len(out) == 0 {
		return nil
	}
	return out
}

// Merge implements Mergeable
func (s SessionDTO) Merge(o SessionDTO) SessionDTO {
	return SessionDTO{
		Families:            union(s.Families, o.Families),
		GroupName:           pick(s.GroupName, o.GroupName),
		ImportPolicy:        pick(s.ImportPolicy, o.ImportPolicy),
		ExportPolicy:        pick(s.ExportPolicy, o.ExportPolicy),
		UpdateSource:        pick(s.UpdateSource, o.UpdateSource),
		Password:            pick(s.Password, o.Password),
		BFD:                 pick(s.BFD, o.BFD),
		Multipath:           pick(s.Multipath, o.Multipath),
		SendCommunity:       pick(s.SendCommunity, o.SendCommunity),
		SoftReconfiguration: pick(s.SoftReconfiguration, o.SoftReconfiguration),
		Multihop:            pick(s.Multihop, o.Multihop),
		LocalAS:             pick(s.LocalAS, o.LocalAS),
	}
}

// Merge implements Mergeable
func (p PeerDTO) Merge(o PeerDTO) PeerDTO {
	return PeerDTO{
		SessionDTO:  p.SessionDTO.Merge(o.SessionDTO),
		Addr:        pick(p.Addr, o.Addr),
		Asnum:       pick(p.Asnum, o.Asnum),
		Description: pick(p.Description, o.Description),
		VRF:         pick(p.VRF, o.VRF),
		Lag:         pick(p.Lag, o.Lag),
		LagLinksMin: pick(p.LagLinksMin, o.LagLinksMin),
		SVI:         pick(p.SVI, o.SVI),
		Subif:       pick(p.Subif, o.Subif),
	}
}

// Merge implements Mergeable
func (g PeerGroupDTO) Merge(o PeerGroupDTO) PeerGroupDTO {
	return PeerGroupDTO{
		RemoteAS:     pick(g.RemoteAS, o.RemoteAS),
		LocalAS:      pick(g.LocalAS, o.LocalAS),
		Description:  pick(g.Description, o.Description),
		UpdateSource: pick(g.UpdateSource, o.UpdateSource),
		ImportPolicy: pick(g.ImportPolicy, o.ImportPolicy),
		ExportPolicy: pick(g.ExportPolicy, o.ExportPolicy),
		BFD:          pick(g.BFD, o.BFD),
		Families:     union(g.Families, o.Families),
	}
}

// Merge implements Mergeable
func (v VrfOptionsDTO) Merge(o VrfOptionsDTO) VrfOptionsDTO {
	return VrfOptionsDTO{
		RouteDistinguisher: pick(v.RouteDistinguisher, o.RouteDistinguisher),
		ImportRT:           union(v.ImportRT, o.ImportRT),
		ExportRT:           union(v.ExportRT, o.ExportRT),
		Families:           union(v.Families, o.Families),
	}
}

// Merge implements Mergeable
func (g GlobalOptionsDTO) Merge(o GlobalOptionsDTO) GlobalOptionsDTO {
	return GlobalOptionsDTO{
		LocalAS:   pick(g.LocalAS, o.LocalAS),
		RouterID:  pick(g.RouterID, o.RouterID),
		Loops:     pick(g.Loops, o.Loops),
		Multipath: pick(g.Multipath, o.Multipath),
		Families:  union(g.Families, o.Families),
		VRF:       mergeKeyed(g.VRF, o.VRF),
		Groups:    mergeKeyed(g.Groups, o.Groups),
	}
}

// mergeKeyed merges two maps of DTO pointers per key into fresh values
func mergeKeyed[T Mergeable[T]](a, b map[string]*T) map[string]*T {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]*T, len(a)+len(b))
	for _, k := range lo.Uniq(slices.Concat(slices.Sorted(maps.Keys(a)), slices.Sorted(maps.Keys(b)))) {
		var left, right T
		if v := a[k]; v != nil {
			left = *v
		}
		if v := b[k]; v != nil {
			right = *v
		}
		out[k] = Ptr(left.Merge(right))
	}
	return out
}
