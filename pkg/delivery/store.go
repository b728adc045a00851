package delivery

import (
	"context"
	"fmt"

	"github.com/govsentinel/sentinel/pkg/postgres"
)

// Store persists DeliveryMarks (§3.1's delivery_marks table).
type Store interface {
	// Exists probes for an existing mark (§4.7 steps 1 and 3).
	Exists(ctx context.Context, k Key) (bool, error)
	// Insert attempts the compare-and-insert primitive: it returns inserted=false,
	// nil when another writer already holds the mark (ON CONFLICT DO NOTHING,
	// zero rows affected), never an error for that case.
	Insert(ctx context.Context, m Mark) (inserted bool, err error)
}

type postgresStore struct {
	db *postgres.Client
}

// NewPostgresStore builds a Store backed by the delivery_marks table.
func NewPostgresStore(db *postgres.Client) Store {
	return &postgresStore{db: db}
}

// InitSchema creates the delivery_marks table if it does not already exist.
func InitSchema(ctx context.Context, db *postgres.Client) error {
	err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS delivery_marks (
			chain_id      TEXT NOT NULL,
			proposal_id   BIGINT NOT NULL,
			subscriber_id TEXT NOT NULL,
			sent_at       TIMESTAMPTZ NOT NULL,
			message_id    TEXT NOT NULL,
			PRIMARY KEY (chain_id, proposal_id, subscriber_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("init delivery_marks schema: %w", err)
	}
	return nil
}

func (s *postgresStore) Exists(ctx context.Context, k Key) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT 1 FROM delivery_marks WHERE chain_id = $1 AND proposal_id = $2 AND subscriber_id = $3
	`, k.ChainID, k.ProposalID, k.SubscriberID)

	var one int
	if err := row.Scan(&one); err != nil {
		if postgres.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("probe delivery mark %+v: %w", k, err)
	}
	return true, nil
}

// Insert is the compare-and-insert primitive the Delivery Gate's double-check
// depends on (§4.7.1): ON CONFLICT DO NOTHING plus RowsAffected() tells the
// caller whether this call actually won the race.
func (s *postgresStore) Insert(ctx context.Context, m Mark) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO delivery_marks (chain_id, proposal_id, subscriber_id, sent_at, message_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, proposal_id, subscriber_id) DO NOTHING
	`, m.ChainID, m.ProposalID, m.SubscriberID, m.SentAt, m.MessageID)
	if err != nil {
		return false, fmt.Errorf("insert delivery mark %+v: %w", m.Key, err)
	}
	return tag.RowsAffected() > 0, nil
}
