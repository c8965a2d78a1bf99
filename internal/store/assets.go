package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/hostmerge/internal/types"
	"github.com/oklog/ulid/v2"
)

// StoredAsset is one persisted unified host with its store-assigned id.
type StoredAsset struct {
	ID   string
	Host types.UnifiedHost
}

// StoreStats holds aggregate inventory statistics.
type StoreStats struct {
	AssetCount   int64            `json:"asset_count"`
	SourceCounts map[string]int64 `json:"source_counts"`
}

// nullable maps the empty string to SQL NULL so the partial indexes and
// IS NOT NULL queries behave.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// InsertAsset persists a new unified host and its source-id bindings in one
// transaction, returning the assigned id.
func (s *SQLiteStore) InsertAsset(ctx context.Context, host *types.UnifiedHost) (string, error) {
	doc, err := json.Marshal(host)
	if err != nil {
		return "", fmt.Errorf("marshal asset doc: %w", err)
	}

	id := ulid.Make().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO unified_assets (id, primary_mac_address, cloud_instance_id, hostname, private_ip, public_ip, doc, record_created_at, record_last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nullable(host.PrimaryMACAddress), nullable(host.CloudInstanceID),
		nullable(host.Hostname), nullable(host.PrivateIP), nullable(host.PublicIP),
		string(doc), host.RecordCreatedAt, host.RecordLastUpdatedAt)
	if err != nil {
		return "", fmt.Errorf("insert asset: %w", err)
	}

	if err := insertSourceIDs(ctx, tx, id, host.SourceIDs); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// UpdateAsset replaces the stored record and re-binds its source ids.
// record_created_at is never touched here; the doc carries the authoritative
// timestamps.
func (s *SQLiteStore) UpdateAsset(ctx context.Context, id string, host *types.UnifiedHost) error {
	doc, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("marshal asset doc: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE unified_assets
		SET primary_mac_address = ?, cloud_instance_id = ?, hostname = ?, private_ip = ?, public_ip = ?, doc = ?, record_last_updated_at = ?
		WHERE id = ?
	`, nullable(host.PrimaryMACAddress), nullable(host.CloudInstanceID),
		nullable(host.Hostname), nullable(host.PrivateIP), nullable(host.PublicIP),
		string(doc), host.RecordLastUpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_source_ids WHERE asset_id = ?`, id); err != nil {
		return fmt.Errorf("clear source ids: %w", err)
	}
	if err := insertSourceIDs(ctx, tx, id, host.SourceIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertSourceIDs(ctx context.Context, tx *sql.Tx, assetID string, sourceIDs map[string]string) error {
	for key, value := range sourceIDs {
		if value == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO asset_source_ids (source_key, source_id, asset_id)
			VALUES (?, ?, ?)
		`, key, value, assetID)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s=%s", ErrDuplicateSourceID, key, value)
			}
			return fmt.Errorf("insert source id: %w", err)
		}
	}
	return nil
}

// FindCandidates runs the disjunctive identifier query over the non-empty
// subset of {mac, cloud instance id, hostname}. Results are ordered by id,
// so candidate iteration order is insertion-order deterministic.
func (s *SQLiteStore) FindCandidates(ctx context.Context, mac, cloudInstanceID, hostname string) ([]StoredAsset, error) {
	var clauses []string
	var args []any
	if mac != "" {
		clauses = append(clauses, "primary_mac_address = ?")
		args = append(args, mac)
	}
	if cloudInstanceID != "" {
		clauses = append(clauses, "cloud_instance_id = ?")
		args = append(args, cloudInstanceID)
	}
	if hostname != "" {
		clauses = append(clauses, "hostname = ?")
		args = append(args, hostname)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	query := `SELECT id, doc FROM unified_assets WHERE ` +
		strings.Join(clauses, " OR ") + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// GetAsset returns one stored asset by id.
func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*StoredAsset, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM unified_assets WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}

	asset := StoredAsset{ID: id}
	if err := json.Unmarshal([]byte(doc), &asset.Host); err != nil {
		return nil, fmt.Errorf("unmarshal asset doc: %w", err)
	}
	return &asset, nil
}

// ListAssets returns stored assets ordered by id. limit <= 0 means all.
func (s *SQLiteStore) ListAssets(ctx context.Context, limit, offset int) ([]StoredAsset, error) {
	query := `SELECT id, doc FROM unified_assets ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// CountAssets returns the number of stored assets.
func (s *SQLiteStore) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unified_assets`).Scan(&count)
	return count, err
}

// GetStats returns aggregate inventory statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*StoreStats, error) {
	count, err := s.CountAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_key, COUNT(*) FROM asset_source_ids GROUP BY source_key
	`)
	if err != nil {
		return nil, fmt.Errorf("count source ids: %w", err)
	}
	defer rows.Close()

	stats := &StoreStats{AssetCount: count, SourceCounts: map[string]int64{}}
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		stats.SourceCounts[types.SourceTagForIDKey(key)] = n
	}
	return stats, rows.Err()
}

func scanAssets(rows *sql.Rows) ([]StoredAsset, error) {
	var assets []StoredAsset
	for rows.Next() {
		var asset StoredAsset
		var doc string
		if err := rows.Scan(&asset.ID, &doc); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &asset.Host); err != nil {
			return nil, fmt.Errorf("unmarshal asset doc: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}
