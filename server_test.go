package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/aptledger/backend/src/config"
	"github.com/username/aptledger/backend/src/handlers"
	"github.com/username/aptledger/backend/src/models"
	"github.com/username/aptledger/backend/src/services"
	"github.com/username/aptledger/backend/src/store"
)

type testServer struct {
	cfg     *config.AppConfig
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(cfg *config.AppConfig)) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DataFilePath:   filepath.Join(dir, "data.csv"),
		BackupSuffix:   ".bak",
		StaticDir:      dir,
		MaxBodyBytes:   1 << 20,
		MaxFieldLength: 1024,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st := store.NewCSVStore(cfg.DataFilePath, models.CurrentSchema)
	svc := services.NewRecordService(st, models.CurrentSchema, services.Options{
		MaxFieldLength: cfg.MaxFieldLength,
		CacheTTL:       cfg.LoadCacheTTL,
	})
	return &testServer{cfg: cfg, handler: newRouter(cfg, handlers.NewRecordHandler(svc, cfg.MaxBodyBytes))}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_SaveLoadDeleteReset(t *testing.T) {
	s := newTestServer(t, nil)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/save", `{"id":"1","amount":"10"}`).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/save", `{"id":"2","amount":"20"}`).Code)

	w := s.do(http.MethodPost, "/delete", `{"id":"1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, w.Body.String())

	content, err := os.ReadFile(s.cfg.DataFilePath)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(models.CurrentSchema, ",")+"\n2,-,-,-,-,20,-,-,-,-,-\n", string(content))

	w = s.do(http.MethodGet, "/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0]["id"])

	w = s.do(http.MethodPost, "/reset", "")
	assert.JSONEq(t, `{"status":"reset"}`, w.Body.String())
	w = s.do(http.MethodGet, "/load", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRouter_RequestIDHeader(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/load", "")

	assert.NotEmpty(t, w.Header().Get(handlers.RequestIDHeader))
}

func TestRouter_StaticFallback(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.StaticDir, "app.js"), []byte("// dashboard"), 0o644))

	w := s.do(http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "// dashboard", w.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/unknown", "").Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodPost, "/load", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/save", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/load", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 2
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/load", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/load", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/load", "").Code)
}

func TestMigrateStore_UpgradesBeforeServing(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{DataFilePath: filepath.Join(dir, "data.csv"), BackupSuffix: ".bak"}
	original := "id,date,amount\n1,2024-01-01,50\n"
	require.NoError(t, os.WriteFile(cfg.DataFilePath, []byte(original), 0o644))

	res, err := migrateStore(cfg, store.NewCSVStore(cfg.DataFilePath, models.CurrentSchema))
	require.NoError(t, err)
	assert.True(t, res.Migrated)

	backup, err := os.ReadFile(cfg.DataFilePath + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, string(backup))

	res, err = migrateStore(cfg, store.NewCSVStore(cfg.DataFilePath, models.CurrentSchema))
	require.NoError(t, err)
	assert.False(t, res.Migrated)
}
