package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"meshgen/internal/codec"
	"meshgen/internal/domain"
	"meshgen/internal/mesh"
	"meshgen/internal/service"
	"meshgen/internal/storage"
)

var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DeviceSummary describes a device and the names of its neighbors
type DeviceSummary struct {
	FQDN      string          `json:"fqdn"`
	Hostname  string          `json:"hostname"`
	Hardware  domain.Hardware `json:"hardware"`
	Breed     string          `json:"breed"`
	Role      string          `json:"role,omitempty"`
	Site      string          `json:"site,omitempty"`
	MgmtIP    string          `json:"management_ip,omitempty"`
	Neighbors []string        `json:"neighbors"`
}

// MeshHandler serves generated BGP configuration over HTTP
type MeshHandler struct {
	svc       *service.MeshService
	exporters map[string]codec.Exporter
}

// NewMeshHandler creates a handler backed by svc
func NewMeshHandler(svc *service.MeshService) *MeshHandler {
	return &MeshHandler{svc: svc, exporters: codec.Exporters()}
}

// Register mounts the API routes on mux
func (h *MeshHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/mesh", h.GetMesh)
	mux.HandleFunc("POST /api/rules/reload", h.ReloadRules)
	mux.HandleFunc("POST /api/inventory/refresh", h.RefreshInventory)
	mux.HandleFunc("GET /healthz", h.Health)
}

func queryFrom(r *http.Request) (storage.Query, bool) {
	var globs []string
	for _, v := range r.URL.Query()["q"] {
		globs = append(globs, strings.Split(v, ",")...)
	}
	q := storage.NewQuery(globs...)
	return q, !q.IsEmpty()
}

// ListDevices returns the devices selected by ?q=
func (h *MeshHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	q, ok := queryFrom(r)
	if !ok {
		h.writeError(w, "Missing query", "q is required", http.StatusBadRequest)
		return
	}

	devices, err := h.svc.Devices(r.Context(), q)
	if err != nil {
		h.fail(w, "Failed to load devices", err)
		return
	}

	h.writeJSON(w, lo.Map(devices, func(d *domain.Device, _ int) DeviceSummary {
		return DeviceSummary{
			FQDN:     d.FQDN,
			Hostname: d.Hostname,
			Hardware: d.Hardware,
			Breed:    d.Breed,
			Role:     d.Role,
			Site:     d.Site,
			MgmtIP:   d.ManagementIP,
			Neighbors: lo.Map(d.Neighbors, func(n *domain.Device, _ int) string {
				return n.FQDN
			}),
		}
	}), http.StatusOK)
}

// GetMesh generates configuration for ?q= in ?format= (json by default)
func (h *MeshHandler) GetMesh(w http.ResponseWriter, r *http.Request) {
	q, ok := queryFrom(r)
	if !ok {
		h.writeError(w, "Missing query", "q is required", http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	exporter, ok := h.exporters[format]
	if !ok {
		h.writeError(w, "Unknown format", format, http.StatusBadRequest)
		return
	}

	docs, err := h.svc.Generate(r.Context(), q)
	if err != nil {
		h.fail(w, "Failed to generate mesh", err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Export(docs, &buf); err != nil {
		h.fail(w, "Failed to export mesh", err)
		return
	}

	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/yaml")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Warn("write mesh response")
	}
}

// ReloadRules re-reads the rule file
func (h *MeshHandler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadRules(); err != nil {
		h.writeError(w, "Rules rejected", err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.writeJSON(w, map[string]string{"status": "reloaded"}, http.StatusOK)
}

// RefreshInventory drops cached CMDB lookups
func (h *MeshHandler) RefreshInventory(w http.ResponseWriter, r *http.Request) {
	h.svc.RefreshInventory()
	h.writeJSON(w, map[string]string{"status": "refreshed"}, http.StatusOK)
}

// Health reports liveness
func (h *MeshHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// fail maps service errors to status codes
func (h *MeshHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoDevices):
		status = http.StatusNotFound
	case errors.Is(err, mesh.ErrInvalidPeer),
		errors.Is(err, mesh.ErrMutuallyExclusive),
		errors.Is(err, mesh.ErrUnresolvedTarget):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error(msg)
	}
	h.writeError(w, msg, err.Error(), status)
}

func (h *MeshHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("encode JSON response")
	}
}

func (h *MeshHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
