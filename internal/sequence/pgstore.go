package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the single-row query surface the store needs; both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps one counter row per (doc_type, period_key). The upsert
// increments and returns in one statement, which is what makes concurrent
// issuance safe; scanning for the current maximum and adding one is not.
type PGStore struct {
	DB Querier
}

// Next atomically advances and returns the counter.
func (s PGStore) Next(ctx context.Context, docType, periodKey string) (int64, error) {
	var value int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO sequence_counters (doc_type, period_key, last_issued)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period_key)
		DO UPDATE SET last_issued = sequence_counters.last_issued + 1
		RETURNING last_issued`,
		docType, periodKey).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: advance counter: %w", err)
	}
	return value, nil
}
