package session

import (
	"context"

	"github.com/lenden-assist/server/internal/assistant/model"
)

// Store is the append-only per-user conversation log.
//
// Append is idempotent by message id when one is supplied: appending a
// duplicate id is a no-op, not an error. A message without an id is assigned
// the session's next sequence index. Appends to the same session are
// serialised so message order and last_updated stay monotonic.
type Store interface {
	// Create opens a new session for the user and returns it.
	Create(ctx context.Context, userID string) (*model.Session, error)

	// Append adds one message to the session log. Fails with ErrNotFound if
	// the session was never created.
	Append(ctx context.Context, sessionID string, msg model.Message) error

	// Get returns messages oldest-to-newest, paginated by offset/limit
	// (limit <= 0 means no limit). Fails with ErrNotFound if the session was
	// never created.
	Get(ctx context.Context, sessionID string, limit, offset int) ([]model.Message, error)

	// ListSessions returns the user's session summaries ordered by
	// last_updated descending.
	ListSessions(ctx context.Context, userID string) ([]model.SessionSummary, error)
}
