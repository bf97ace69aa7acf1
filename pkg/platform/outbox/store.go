package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the outbox persistence contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds an entry. Call it inside the transaction of the business write.
	Append(ctx context.Context, entry *Entry) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// Postgres locks them with FOR UPDATE SKIP LOCKED so workers do not collide.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
