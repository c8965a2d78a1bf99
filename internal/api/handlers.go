// Package api serves the read-only inventory HTTP surface: asset listing,
// asset lookup, aggregate stats, and the inventory report.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/hostmerge/internal/report"
	"github.com/hyperengineering/hostmerge/internal/store"
)

const defaultListLimit = 100

// AssetReader is the slice of the store the API reads.
type AssetReader interface {
	GetAsset(ctx context.Context, id string) (*store.StoredAsset, error)
	ListAssets(ctx context.Context, limit, offset int) ([]store.StoredAsset, error)
	CountAssets(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*store.StoreStats, error)
}

// Handler holds the API dependencies.
type Handler struct {
	store   AssetReader
	apiKey  string
	version string
}

// NewHandler creates an API handler over the given store.
func NewHandler(s AssetReader, apiKey, version string) *Handler {
	return &Handler{store: s, apiKey: apiKey, version: version}
}

// healthResponse is the health check payload.
type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	AssetCount int64  `json:"asset_count"`
}

// assetEnvelope wraps one stored asset with its store-assigned id.
type assetEnvelope struct {
	ID   string          `json:"id"`
	Host json.RawMessage `json:"host"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountAssets(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    h.version,
		AssetCount: count,
	})
}

// ListAssets handles GET /api/v1/assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || offset < 0 {
		WriteProblem(w, r, http.StatusBadRequest, "limit must be >= 1 and offset >= 0")
		return
	}

	assets, err := h.store.ListAssets(r.Context(), limit, offset)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	items := make([]assetEnvelope, 0, len(assets))
	for _, asset := range assets {
		doc, err := json.Marshal(asset.Host)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		items = append(items, assetEnvelope{ID: asset.ID, Host: doc})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assets": items,
		"count":  len(items),
	})
}

// GetAsset handles GET /api/v1/assets/{id}.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asset, err := h.store.GetAsset(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	doc, err := json.Marshal(asset.Host)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assetEnvelope{ID: asset.ID, Host: doc})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Report handles GET /api/v1/report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.store.(report.AssetLister)
	if !ok {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Report unavailable")
		return
	}

	summary, err := report.Generate(r.Context(), lister, time.Now().UTC())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
