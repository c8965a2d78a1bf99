package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperengineering/hostmerge/internal/store"
	"github.com/hyperengineering/hostmerge/internal/types"
)

const testAPIKey = "test-key-12345"

// fakeStore backs the API with in-memory assets.
type fakeStore struct {
	assets []store.StoredAsset
	err    error
}

func (f *fakeStore) GetAsset(ctx context.Context, id string) (*store.StoredAsset, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.assets {
		if f.assets[i].ID == id {
			return &f.assets[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListAssets(ctx context.Context, limit, offset int) ([]store.StoredAsset, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit <= 0 {
		return f.assets, nil
	}
	if offset >= len(f.assets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.assets) {
		end = len(f.assets)
	}
	return f.assets[offset:end], nil
}

func (f *fakeStore) CountAssets(ctx context.Context) (int64, error) {
	return int64(len(f.assets)), f.err
}

func (f *fakeStore) GetStats(ctx context.Context) (*store.StoreStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.StoreStats{
		AssetCount:   int64(len(f.assets)),
		SourceCounts: map[string]int64{types.SourceQualys: int64(len(f.assets))},
	}, nil
}

func newTestRouter(f *fakeStore) http.Handler {
	return NewRouter(NewHandler(f, testAPIKey, "test"))
}

func authedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func twoAssets() []store.StoredAsset {
	return []store.StoredAsset{
		{ID: "01A", Host: types.UnifiedHost{Hostname: "web-01", OSPlatform: "Linux"}},
		{ID: "01B", Host: types.UnifiedHost{Hostname: "db-01", OSPlatform: "Windows"}},
	}
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(&fakeStore{assets: twoAssets()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.AssetCount != 2 {
		t.Errorf("body: %+v", body)
	}
}

func TestAssetsRequireAuth(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	for _, path := range []string{"/api/v1/assets", "/api/v1/assets/01A", "/api/v1/stats", "/api/v1/report"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Errorf("%s: expected problem+json, got %q", path, ct)
		}
	}
}

func TestAuthRejectsWrongToken(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListAssets(t *testing.T) {
	router := newTestRouter(&fakeStore{assets: twoAssets()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/assets"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Assets []struct {
			ID   string          `json:"id"`
			Host json.RawMessage `json:"host"`
		} `json:"assets"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Assets) != 2 {
		t.Fatalf("body: %+v", body)
	}
	if body.Assets[0].ID != "01A" {
		t.Errorf("first asset id: got %q", body.Assets[0].ID)
	}
}

func TestListAssetsRejectsBadParams(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/assets?limit=0"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetAsset(t *testing.T) {
	router := newTestRouter(&fakeStore{assets: twoAssets()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/assets/01B"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		ID   string            `json:"id"`
		Host types.UnifiedHost `json:"host"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "01B" || body.Host.Hostname != "db-01" {
		t.Errorf("body: %+v", body)
	}
}

func TestGetAssetNotFound(t *testing.T) {
	router := newTestRouter(&fakeStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/assets/missing"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Status != http.StatusNotFound || p.Title != "Not Found" {
		t.Errorf("problem: %+v", p)
	}
}

func TestStats(t *testing.T) {
	router := newTestRouter(&fakeStore{assets: twoAssets()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/stats"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats store.StoreStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.AssetCount != 2 || stats.SourceCounts[types.SourceQualys] != 2 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestReportEndpoint(t *testing.T) {
	router := newTestRouter(&fakeStore{assets: twoAssets()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/report"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		TotalAssets    int            `json:"total_assets"`
		OSDistribution map[string]int `json:"os_distribution"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalAssets != 2 {
		t.Errorf("total: got %d", body.TotalAssets)
	}
	if body.OSDistribution["Linux"] != 1 || body.OSDistribution["Windows"] != 1 {
		t.Errorf("distribution: %v", body.OSDistribution)
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	router := newTestRouter(&fakeStore{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/assets"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Detail != "Internal Server Error" {
		t.Errorf("internal detail must not leak, got %q", p.Detail)
	}
}
