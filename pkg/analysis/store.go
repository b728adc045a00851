package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/postgres"
)

// Store persists Analyses keyed by Fingerprint (§3.1).
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Analysis, bool, error)
	Put(ctx context.Context, a Analysis) error
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type postgresStore struct {
	db *postgres.Client
}

// NewPostgresStore returns a Store backed by the analyses table (§3.1).
func NewPostgresStore(db *postgres.Client) Store {
	return &postgresStore{db: db}
}

// InitSchema creates the analyses table if it does not exist.
func InitSchema(ctx context.Context, db *postgres.Client) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			fingerprint     TEXT PRIMARY KEY,
			provider        TEXT NOT NULL,
			recommendation  TEXT NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			reasoning       TEXT NOT NULL,
			risk_assessment TEXT NOT NULL,
			structured      JSONB NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ NOT NULL,
			expires_at      TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("init analyses schema: %w", err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, fp Fingerprint) (Analysis, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT provider, recommendation, confidence, reasoning, risk_assessment, structured, created_at, expires_at
		FROM analyses WHERE fingerprint = $1
	`, string(fp))

	var a Analysis
	var structured []byte
	err := row.Scan(&a.Provider, &a.Recommendation, &a.Confidence, &a.Reasoning, &a.RiskAssessment, &structured, &a.CreatedAt, &a.ExpiresAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return Analysis{}, false, nil
		}
		return Analysis{}, false, fmt.Errorf("get analysis %s: %w", fp, err)
	}
	a.Fingerprint = fp
	if len(structured) > 0 {
		_ = json.Unmarshal(structured, &a.Structured)
	}
	if time.Now().After(a.ExpiresAt) {
		return Analysis{}, false, nil
	}
	return a, true, nil
}

// Put inserts or refreshes an Analysis atomically, replacing an expired entry
// with the refreshed one (§3.1).
func (s *postgresStore) Put(ctx context.Context, a Analysis) error {
	structured, err := json.Marshal(a.Structured)
	if err != nil {
		return fmt.Errorf("marshal structured fields: %w", err)
	}

	err = s.db.Exec(ctx, `
		INSERT INTO analyses (fingerprint, provider, recommendation, confidence, reasoning, risk_assessment, structured, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fingerprint) DO UPDATE SET
			provider = EXCLUDED.provider,
			recommendation = EXCLUDED.recommendation,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			risk_assessment = EXCLUDED.risk_assessment,
			structured = EXCLUDED.structured,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, string(a.Fingerprint), a.Provider, a.Recommendation, a.Confidence, a.Reasoning, a.RiskAssessment, structured, a.CreatedAt, a.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put analysis %s: %w", a.Fingerprint, err)
	}
	return nil
}

// PurgeOlderThan deletes analyses older than age regardless of status (§4.3).
// Binds a computed timestamp cutoff rather than age itself: pgx has no
// time.Duration->interval encoding, so `now() - created_at > $1` either fails
// to encode against an interval param or compares against a bigint of
// nanoseconds with no matching operator.
func (s *postgresStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}
