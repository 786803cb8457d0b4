package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/domainwatch/internal/domain"
)

// SnapshotRepo stores the latest snapshot per tracked domain.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

// GetSnapshot returns the stored snapshot, or nil when the domain has none yet.
func (r *SnapshotRepo) GetSnapshot(ctx context.Context, trackedDomainID string) (*domain.Snapshot, error) {
	var reg, certs, prov []byte
	s := &domain.Snapshot{TrackedDomainID: trackedDomainID}
	err := r.db.QueryRowContext(ctx, `
		SELECT registration, certificates, providers, created_at
		FROM domain_snapshots
		WHERE tracked_domain_id = $1
	`, trackedDomainID).Scan(&reg, &certs, &prov, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	for _, part := range []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"registration", reg, &s.Registration},
		{"certificates", certs, &s.Certificates},
		{"providers", prov, &s.Providers},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", part.name, err)
		}
	}
	return s, nil
}

// UpsertSnapshot replaces the stored snapshot for the domain.
func (r *SnapshotRepo) UpsertSnapshot(ctx context.Context, s *domain.Snapshot) error {
	reg, err := jsonOrNull(s.Registration != nil, s.Registration)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	prov, err := jsonOrNull(s.Providers != nil, s.Providers)
	if err != nil {
		return fmt.Errorf("encode providers: %w", err)
	}
	certList := s.Certificates
	if certList == nil {
		certList = []domain.Certificate{}
	}
	certs, err := json.Marshal(certList)
	if err != nil {
		return fmt.Errorf("encode certificates: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO domain_snapshots (tracked_domain_id, registration, certificates, providers, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tracked_domain_id) DO UPDATE
		SET registration = EXCLUDED.registration,
		    certificates = EXCLUDED.certificates,
		    providers = EXCLUDED.providers,
		    created_at = EXCLUDED.created_at
		RETURNING created_at
	`, s.TrackedDomainID, reg, certs, prov).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// jsonOrNull encodes v, or returns nil (SQL NULL) when present is false.
func jsonOrNull(present bool, v interface{}) (interface{}, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MonitorRepo combines the tracked-domain and snapshot tables for the
// snapshot refresh.
type MonitorRepo struct {
	*TrackedDomainRepo
	*SnapshotRepo
}

// NewMonitorRepo creates a MonitorRepo over db.
func NewMonitorRepo(db *sql.DB) *MonitorRepo {
	return &MonitorRepo{TrackedDomainRepo: NewTrackedDomainRepo(db), SnapshotRepo: NewSnapshotRepo(db)}
}
