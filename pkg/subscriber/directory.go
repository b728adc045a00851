package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/govsentinel/sentinel/pkg/postgres"
)

// postgresDirectory is a minimal read-through stub for Directory (§6.1): org
// CRUD and subscription payments are explicitly out of scope, so this table
// exists purely as the seam the Matcher reads through, not as a
// subscription-management system.
type postgresDirectory struct {
	db *postgres.Client
}

// NewPostgresDirectory builds a Directory backed by the subscribers table.
func NewPostgresDirectory(db *postgres.Client) Directory {
	return &postgresDirectory{db: db}
}

// InitSchema creates the subscribers table if it does not already exist.
func InitSchema(ctx context.Context, db *postgres.Client) error {
	err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS subscribers (
			subscriber_id  TEXT PRIMARY KEY,
			address        TEXT NOT NULL,
			chains         JSONB NOT NULL DEFAULT '[]',
			policy         JSONB NOT NULL DEFAULT '{}',
			active_until   TIMESTAMPTZ NOT NULL,
			active         BOOLEAN NOT NULL DEFAULT true
		)
	`)
	if err != nil {
		return fmt.Errorf("init subscribers schema: %w", err)
	}
	return nil
}

func (d *postgresDirectory) ListForChain(ctx context.Context, chainID string) ([]Subscriber, error) {
	rows, err := d.db.Query(ctx, `
		SELECT subscriber_id, address, chains, policy, active_until, active
		FROM subscribers
		WHERE active AND chains ? $1
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers for %s: %w", chainID, err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var s Subscriber
		var chainsRaw, policyRaw []byte
		if err := rows.Scan(&s.SubscriberID, &s.Address, &chainsRaw, &policyRaw, &s.ActiveUntil, &s.Active); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		if err := json.Unmarshal(chainsRaw, &s.Chains); err != nil {
			return nil, fmt.Errorf("unmarshal chains for %s: %w", s.SubscriberID, err)
		}
		if err := json.Unmarshal(policyRaw, &s.Policy); err != nil {
			return nil, fmt.Errorf("unmarshal policy for %s: %w", s.SubscriberID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return out, nil
}
