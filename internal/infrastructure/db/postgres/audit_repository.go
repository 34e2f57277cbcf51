package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditRepository implements ports.AuditRepository using PostgreSQL.
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AccountEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO account_events (type, user_id, actor_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(event.Type), event.UserID, event.ActorID, event.Detail, event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert account event: %w", err)
	}
	return nil
}
