package escalation

import (
	"context"
	"fmt"

	"github.com/lenden-assist/server/internal/assistant/model"
)

// Queue is the durable record of flagged queries awaiting human resolution.
//
// Create is idempotent per open (user_id, session_id, query_id) tuple: a
// second create while a matching record is still open fails with
// ErrDuplicate. Records move open→resolved exactly once and are never
// deleted. List performs a fresh read on each call; no cursor state is kept.
type Queue interface {
	Create(ctx context.Context, q model.Query, reason string) (*model.EscalationRecord, error)

	// Resolve transitions the record open→resolved. Fails with ErrNotFound
	// for an unknown id and ErrInvalidState when already resolved.
	Resolve(ctx context.Context, id, resolution string) (*model.EscalationRecord, error)

	// List returns records matching the status filter; an empty status
	// matches all. Ordered oldest first.
	List(ctx context.Context, status model.EscalationStatus) ([]*model.EscalationRecord, error)
}

// dedupeTuple is the idempotence key for open records.
func dedupeTuple(userID, sessionID, queryID string) string {
	return fmt.Sprintf("%s:%s:%s", userID, sessionID, queryID)
}
