package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `key, match_id, market, selection, confidence, minute,
	state, reasoning, evaluation_id, odds, value_percent, outcome, profit,
	created_at, updated_at`

func scanSignalRows(rows pgx.Rows) ([]domain.SignalRecord, error) {
	var records []domain.SignalRecord
	for rows.Next() {
		var (
			r       domain.SignalRecord
			state   string
			outcome *string
		)
		if err := rows.Scan(
			&r.Key, &r.MatchID, &r.Market, &r.Selection, &r.Confidence,
			&r.Minute, &state, &r.Reasoning, &r.EvaluationID,
			&r.Odds, &r.ValuePercent, &outcome, &r.Profit,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		r.State = domain.SignalState(state)
		if outcome != nil {
			r.Outcome = domain.OutcomeKind(*outcome)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertBatch writes the tick's records using a pgx Batch. Existing keys are
// updated in place so one row tracks a signal across its state changes; the
// outcome columns are never touched here, feedback owns them.
func (s *SignalStore) UpsertBatch(ctx context.Context, records []domain.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO signals (
			key, match_id, market, selection, confidence, minute,
			state, reasoning, evaluation_id, odds, value_percent,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		) ON CONFLICT (key) DO UPDATE SET
			confidence    = EXCLUDED.confidence,
			minute        = EXCLUDED.minute,
			state         = EXCLUDED.state,
			reasoning     = EXCLUDED.reasoning,
			evaluation_id = EXCLUDED.evaluation_id,
			odds          = EXCLUDED.odds,
			value_percent = EXCLUDED.value_percent,
			updated_at    = EXCLUDED.updated_at`

	for _, r := range records {
		batch.Queue(query,
			r.Key, r.MatchID, r.Market, r.Selection, r.Confidence, r.Minute,
			string(r.State), r.Reasoning, r.EvaluationID, r.Odds, r.ValuePercent,
			r.CreatedAt, r.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert signal batch item %d: %w", i, err)
		}
	}
	return nil
}

// MarkOutcome attaches outcome feedback to the record carrying the
// evaluation id.
func (s *SignalStore) MarkOutcome(ctx context.Context, outcome domain.SignalOutcome) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE signals
		SET outcome = $2, profit = $3, updated_at = NOW()
		WHERE evaluation_id = $1`,
		outcome.EvaluationID, string(outcome.Outcome), outcome.Profit,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark outcome %s: %w", outcome.EvaluationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark outcome %s: %w", outcome.EvaluationID, domain.ErrNotFound)
	}
	return nil
}

// ListExpiredBefore returns up to limit expired records last updated before
// cutoff, oldest first.
func (s *SignalStore) ListExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SignalRecord, error) {
	query := `SELECT ` + signalSelectCols + `
		FROM signals
		WHERE state = $1 AND updated_at < $2
		ORDER BY updated_at ASC`
	args := []any{string(domain.StateExpired), cutoff}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired signals: %w", err)
	}
	defer rows.Close()

	records, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired signals: %w", err)
	}
	return records, nil
}

// DeleteExpiredBefore removes expired records last updated before cutoff and
// returns the number deleted.
func (s *SignalStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM signals
		WHERE state = $1 AND updated_at < $2`,
		string(domain.StateExpired), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired signals: %w", err)
	}
	return tag.RowsAffected(), nil
}
