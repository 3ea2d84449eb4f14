// Package service implements the meshgen application layer.
//
// MeshService coordinates the device graph, the rule registry and the mesh
// executor for the CLI and the HTTP handlers.
//
// # Rules
//
// Rules are loaded from a YAML file into a fresh registry. A reload swaps the
// registry atomically; a rule file that fails to parse leaves the previous
// registry in place.
//
// # Event System
//
// The service publishes events via EventBus so connected clients can follow
// rule reloads, inventory refreshes and generation runs over Server-Sent
// Events.
package service
