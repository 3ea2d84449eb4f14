// Package handler implements the HTTP API of meshgen serve.
//
// # Routes
//
//	GET  /api/devices?q=leaf1,leaf2          devices with neighbor names
//	GET  /api/mesh?q=leaf1&format=yaml       generated BGP configuration
//	POST /api/rules/reload                   re-read the rule file
//	POST /api/inventory/refresh              drop cached CMDB lookups
//	GET  /healthz                            liveness
//
// The q parameter may be repeated or comma separated. format is one of json,
// yaml or ansible-inventory.
//
// Errors are returned as JSON with an {error, details} structure. An empty
// selection maps to 404 and rule data that cannot form a peer maps to 422.
package handler
