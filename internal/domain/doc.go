// Package domain defines the device graph that BGP rules are evaluated over.
//
// A Device carries its interfaces with their addresses and the prefixes they
// belong to, plus the devices cabled to it. Neighbors are loaded one hop deep
// only, so walking Neighbors never recurses.
//
// Connection is one physical link between two devices, expressed as the local
// and remote Interface. Parallel links between the same pair yield one
// Connection each.
//
// The package has no dependencies on storage or transport.
package domain
