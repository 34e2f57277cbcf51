package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditPublisher accepts account events for asynchronous persistence.
// Publish must not block the caller.
type AuditPublisher interface {
	Publish(event domain.AccountEvent)
}

// AuditRepository persists account events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AccountEvent) error
}
