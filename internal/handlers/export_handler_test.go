package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"gltf-export-service/internal/config"
	"gltf-export-service/internal/decoder"
	"gltf-export-service/internal/models"
	"gltf-export-service/internal/pipeline"
	"gltf-export-service/internal/services"
)

const plateDocument = `{
  "objects": [
    {
      "name": "Plate",
      "geometry": {
        "kind": "mesh",
        "mesh": {
          "vertices": [[0,0,0],[1,0,0],[1,1,0],[0,1,0]],
          "normals": [[0,0,1],[0,0,1],[0,0,1],[0,0,1]],
          "faces": [[0,1,2,3]]
        }
      },
      "attributes": {"selected": 2}
    },
    {"name": "Solid", "geometry": {"kind": "brep"}, "attributes": {}}
  ]
}`

const corruptDocument = `{
  "objects": [
    {"geometry": {"kind": "mesh", "mesh": {
      "vertices": [[0,0,0],[1,0,0],[1,1,0]],
      "normals": [[0,0,1]],
      "faces": [[0,1,2]]
    }}}
  ]
}`

type memRepo struct {
	mu      sync.Mutex
	exports map[uuid.UUID]models.Export
}

func (r *memRepo) Create(_ context.Context, e *models.Export) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[e.ID] = *e
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *memRepo) List(_ context.Context, _, _ int) ([]models.Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Export, 0, len(r.exports))
	for _, e := range r.exports {
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exports[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.exports, id)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.Errorf("missing %s", key)
	}
	return data, nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func setupApp(t *testing.T, withCache bool) *fiber.App {
	t.Helper()
	log := zaptest.NewLogger(t)

	reg := decoder.NewRegistry()
	reg.Register(".json", decoder.JSONDecoder{})

	var cs *services.CacheStrategy
	if withCache {
		var err error
		cs, err = services.NewCacheStrategy(config.CacheConfig{
			MemoryMaxBytes: 1 << 20,
			FileDir:        t.TempDir(),
			FileMaxBytes:   1 << 20,
			TTL:            time.Hour,
		}, nil, nil, log)
		require.NoError(t, err)
		t.Cleanup(cs.Close)
	}

	svc := services.NewExportService(
		&memRepo{exports: make(map[uuid.UUID]models.Export)},
		&memStore{objects: make(map[string][]byte)},
		cs,
		pipeline.NewConverter(nil, nil, log),
		reg,
		config.ExportConfig{SelectionPredicate: "any", Format: "gltf"},
		log,
	)

	app := fiber.New()
	RegisterRoutes(app.Group("/api/export"), NewExportHandler(svc, log), NewCacheHandler(cs, log))
	return app
}

func uploadRequest(t *testing.T, path, filename, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestConvertEndpoint(t *testing.T) {
	app := setupApp(t, false)

	resp, err := app.Test(uploadRequest(t, "/api/export/convert", "plate.json", plateDocument, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "model/gltf+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="plate.gltf"`)
	assert.Equal(t, "1", resp.Header.Get("X-Export-Nodes"))
	assert.Equal(t, "1", resp.Header.Get("X-Export-Skipped"))
	assert.NotEmpty(t, resp.Header.Get("X-Latency-Total-Ms"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "asset")
	assert.Contains(t, doc, "nodes")
}

func TestConvertEndpointGLBSelectedOnly(t *testing.T) {
	app := setupApp(t, false)

	req := uploadRequest(t, "/api/export/convert", "plate.json", plateDocument,
		map[string]string{"exportSelectedOnly": "true", "format": "glb"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "model/gltf-binary", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0", resp.Header.Get("X-Export-Skipped"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(body[:4]))
}

func TestConvertEndpointErrors(t *testing.T) {
	app := setupApp(t, false)

	tests := []struct {
		name     string
		filename string
		body     string
		fields   map[string]string
		status   int
	}{
		{"unsupported extension", "model.obj", "v 0 0 0", nil, fiber.StatusBadRequest},
		{"bad predicate", "plate.json", plateDocument, map[string]string{"predicate": "some"}, fiber.StatusBadRequest},
		{"bad flag", "plate.json", plateDocument, map[string]string{"exportSelectedOnly": "maybe"}, fiber.StatusBadRequest},
		{"malformed document", "plate.json", "{", nil, fiber.StatusUnprocessableEntity},
		{"corrupt mesh", "corrupt.json", corruptDocument, nil, fiber.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(uploadRequest(t, "/api/export/convert", tt.filename, tt.body, tt.fields), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]interface{}
			decodeBody(t, resp, &body)
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestCorruptMeshReportsStageAndObject(t *testing.T) {
	app := setupApp(t, false)

	resp, err := app.Test(uploadRequest(t, "/api/export/convert", "corrupt.json", corruptDocument, nil), -1)
	require.NoError(t, err)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "assemble", body["stage"])
	assert.Equal(t, float64(0), body["objectIndex"])
}

func TestExportLifecycle(t *testing.T) {
	app := setupApp(t, true)

	resp, err := app.Test(uploadRequest(t, "/api/export/exports", "plate.json", plateDocument,
		map[string]string{"format": "glb"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created CreateExportResponse
	decodeBody(t, resp, &created)
	require.NotNil(t, created.Export)
	assert.Equal(t, "glb", created.Export.Format)
	require.Len(t, created.Warnings, 1)
	assert.Equal(t, "brep", created.Warnings[0].Kind)
	id := created.Export.ID.String()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/exports/"+id, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got models.Export
	decodeBody(t, resp, &got)
	assert.Equal(t, "plate.json", got.OriginalFilename)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/exports", nil), -1)
	require.NoError(t, err)
	var list []models.Export
	decodeBody(t, resp, &list)
	assert.Len(t, list, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/exports/"+id+"/download", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "model/gltf-binary", resp.Header.Get("Content-Type"))
	assert.Equal(t, "true", resp.Header.Get("X-Cache-Hit"))
	assert.Equal(t, "MEMORY", resp.Header.Get("X-Cache-Layer-Used"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), id+".glb")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[:4]))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/cache/stats", nil), -1)
	require.NoError(t, err)
	var stats services.MultiLayerCacheStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, 1, stats.Memory.Exports)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/export/exports/"+id, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/exports/"+id, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestInvalidIDs(t *testing.T) {
	app := setupApp(t, false)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/export/exports/not-a-uuid", nil),
		httptest.NewRequest(http.MethodGet, "/api/export/exports/not-a-uuid/download", nil),
		httptest.NewRequest(http.MethodDelete, "/api/export/exports/not-a-uuid", nil),
		httptest.NewRequest(http.MethodGet, "/api/export/exports?limit=-1", nil),
	} {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, req.URL.String())
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/export/exports/"+uuid.NewString()+"/download", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	app := setupApp(t, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/export/cache/stats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/export/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCacheEndpoints(t *testing.T) {
	app := setupApp(t, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/export/cache/clear", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/export/cache/exports/"+uuid.NewString(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/export/cache/exports/bad", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
