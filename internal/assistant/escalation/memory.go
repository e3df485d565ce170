package escalation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
)

// MemoryQueue is an in-memory Queue used in tests and single-process setups.
type MemoryQueue struct {
	mu      sync.RWMutex
	records map[string]*model.EscalationRecord
	openIdx map[string]string // dedupe tuple -> record id
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		records: make(map[string]*model.EscalationRecord),
		openIdx: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (q *MemoryQueue) Create(_ context.Context, query model.Query, reason string) (*model.EscalationRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tuple := dedupeTuple(query.UserID, query.SessionID, query.ID)
	if _, open := q.openIdx[tuple]; open {
		return nil, errx.Duplicate(fmt.Sprintf("open escalation already exists for query %s", query.ID))
	}

	rec := &model.EscalationRecord{
		ID:        uuid.New().String(),
		QueryID:   query.ID,
		UserID:    query.UserID,
		SessionID: query.SessionID,
		QueryText: query.Text,
		Reason:    reason,
		Status:    model.EscalationOpen,
		CreatedAt: q.now(),
	}
	q.records[rec.ID] = rec
	q.openIdx[tuple] = rec.ID

	out := *rec
	return &out, nil
}

func (q *MemoryQueue) Resolve(_ context.Context, id, resolution string) (*model.EscalationRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[id]
	if !ok {
		return nil, errx.NotFound(fmt.Sprintf("escalation %s not found", id))
	}
	if rec.Status == model.EscalationResolved {
		return nil, errx.InvalidState(fmt.Sprintf("escalation %s already resolved", id))
	}

	resolvedAt := q.now()
	rec.Status = model.EscalationResolved
	rec.Resolution = resolution
	rec.ResolvedAt = &resolvedAt
	delete(q.openIdx, dedupeTuple(rec.UserID, rec.SessionID, rec.QueryID))

	out := *rec
	return &out, nil
}

func (q *MemoryQueue) List(_ context.Context, status model.EscalationStatus) ([]*model.EscalationRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	records := make([]*model.EscalationRecord, 0, len(q.records))
	for _, rec := range q.records {
		if status != "" && rec.Status != status {
			continue
		}
		out := *rec
		records = append(records, &out)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

var _ Queue = (*MemoryQueue)(nil)
