package factors

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"luma/internal/config"
	"luma/internal/storage"
)

// SyncService pulls factor revisions from the registry into the local
// database so extraction runs against a fresh offline snapshot.
type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

// LoadTable builds a factor table from the synced database set, falling
// back to the built-in seed when no sync has run yet.
func LoadTable(db *storage.DB) (*Table, error) {
	stored, err := db.ListFactors()
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		stored = Seed()
	}
	return NewTable(stored)
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	factors, err := s.client.GetFactorsScrollAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertFactors(factors); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("factors.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	if err := s.writeSnapshotIfNeeded(true); err != nil {
		return 0, err
	}
	return len(factors), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context) (int, error) {
	factors, err := s.client.GetFactorsIncremental(ctx)
	if err != nil {
		return 0, err
	}
	if len(factors) > 0 {
		if err := s.db.UpsertFactors(factors); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("factors.last_incremental_sync", time.Now().UTC().Format(time.RFC3339))
	if err := s.writeSnapshotIfNeeded(false); err != nil {
		return 0, err
	}
	return len(factors), nil
}

// writeSnapshotIfNeeded dumps the full factor set to the output dir at
// most once a month, for audit diffs against registry revisions.
func (s *SyncService) writeSnapshotIfNeeded(force bool) error {
	const key = "factors.last_snapshot"
	last, err := s.db.GetMetadata(key)
	if err != nil {
		return err
	}

	if !force && last != nil {
		if parsed, err := time.Parse(time.RFC3339, *last); err == nil {
			if time.Since(parsed) < 30*24*time.Hour {
				return nil
			}
		}
	}

	factors, err := s.db.ListFactors()
	if err != nil {
		return err
	}
	blob, _ := json.MarshalIndent(factors, "", "  ")
	snapshotPath := filepath.Join(s.cfg.OutputDir, "factors-snapshot.json")
	if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(snapshotPath, blob, 0o644); err != nil {
		return err
	}
	return s.db.SetMetadata(key, time.Now().UTC().Format(time.RFC3339))
}
