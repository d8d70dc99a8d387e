package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// AuthEventRecorder accepts audit events without blocking the caller.
type AuthEventRecorder interface {
	Record(event domain.AuthEvent)
}

// AuthEventStore persists audit events drained from the queue.
type AuthEventStore interface {
	Store(ctx context.Context, event domain.AuthEvent) error
}
