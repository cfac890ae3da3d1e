package driving

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// Scheduler runs background tasks such as refreshing stale indexes.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// RunNow executes a task immediately and records its result.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)
}
