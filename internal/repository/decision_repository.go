package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// DecisionRepository stores the operator command journal.
type DecisionRepository interface {
	Create(ctx context.Context, entry *domain.DecisionEntry) error
	ListByDraft(ctx context.Context, draftID string, limit int) ([]domain.DecisionEntry, error)
}

type decisionRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository builds repository.
func NewDecisionRepository(pool *pgxpool.Pool) DecisionRepository {
	return &decisionRepository{pool: pool}
}

func (r *decisionRepository) Create(ctx context.Context, entry *domain.DecisionEntry) error {
	const query = `
        INSERT INTO review_decisions (id, event_type, draft_id, operator, outcome, error, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.EventType,
		entry.DraftID,
		entry.Operator,
		entry.Outcome,
		entry.Error,
		payload,
		entry.CreatedAt,
	).Scan(&entry.CreatedAt)
}

func (r *decisionRepository) ListByDraft(ctx context.Context, draftID string, limit int) ([]domain.DecisionEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, event_type, draft_id, operator, outcome, error, payload, created_at
        FROM review_decisions WHERE draft_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, draftID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.DecisionEntry{}
	for rows.Next() {
		var entry domain.DecisionEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.DraftID,
			&entry.Operator,
			&entry.Outcome,
			&entry.Error,
			&entry.Payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
