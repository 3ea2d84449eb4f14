package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgen/internal/cmdb/sqlite"
	"meshgen/internal/codec"
	"meshgen/internal/service"
	"meshgen/internal/storage"
)

const inventory = `
devices:
  - {id: 1, name: spine1.example.com}
  - {id: 2, name: leaf1.example.com}
interfaces:
  - {id: 10, name: et1, device: {id: 1}}
  - {id: 20, name: et49, device: {id: 2}}
cables:
  - a: {device: spine1.example.com, interface: et1}
    b: {device: leaf1.example.com, interface: et49}
`

const rules = `
global:
  - match: "{any:.*}"
    options: {local_as: 65000}
direct:
  - match: ["spine{s}.example.com", "leaf{l}.example.com"]
    left: {addr: "10.{s}.{l}.0/31", asnum: 65100}
    right: {addr: "10.{s}.{l}.1/31", asnum: 65200}
`

func newTestMux(t *testing.T) (*http.ServeMux, string) {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	snap, err := sqlite.ParseSnapshotYAML([]byte(inventory))
	require.NoError(t, err)
	require.NoError(t, repo.Import(context.Background(), snap))

	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0644))

	svc, err := service.NewMeshService(storage.New(repo, storage.Options{}), rulesPath, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewMeshHandler(svc).Register(mux)
	return mux, rulesPath
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListDevices(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(mux, http.MethodGet, "/api/devices?q=spine1")
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []DeviceSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "spine1.example.com", devices[0].FQDN)
	assert.Equal(t, []string{"leaf1.example.com"}, devices[0].Neighbors)
}

func TestGetMesh(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(mux, http.MethodGet, "/api/mesh?q=leaf1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var docs []codec.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Peers, 1)
	assert.Equal(t, "10.1.1.0", docs[0].Peers[0].Addr.String())
	assert.Equal(t, "et49", docs[0].Peers[0].Interface)

	rec = do(mux, http.MethodGet, "/api/mesh?q=leaf1&format=yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "devices:")
}

func TestGetMeshErrors(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing query", "/api/mesh", http.StatusBadRequest},
		{"unknown format", "/api/mesh?q=leaf1&format=toml", http.StatusBadRequest},
		{"no devices", "/api/mesh?q=border9", http.StatusNotFound},
		{"devices missing query", "/api/devices", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestReloadRules(t *testing.T) {
	mux, rulesPath := newTestMux(t)

	assert.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/api/rules/reload").Code)

	require.NoError(t, os.WriteFile(rulesPath, []byte("direct: [{match: [\"only-one\"]}]\n"), 0644))
	assert.Equal(t, http.StatusUnprocessableEntity, do(mux, http.MethodPost, "/api/rules/reload").Code)
}

func TestHealthAndRefresh(t *testing.T) {
	mux, _ := newTestMux(t)

	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/api/inventory/refresh").Code)
}
