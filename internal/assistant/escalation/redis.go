package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
	"github.com/lenden-assist/server/internal/core/lock"
)

// RedisQueue persists escalation records in Redis: one JSON value per record,
// a set per status for listing, and a marker key per open (user, session,
// query) tuple for idempotent creates. Records carry no TTL; the queue is an
// audit trail.
type RedisQueue struct {
	rdb   redis.Cmdable
	locks *lock.KeyMutex
	now   func() time.Time
}

func NewRedisQueue(rdb redis.Cmdable) *RedisQueue {
	return &RedisQueue{
		rdb:   rdb,
		locks: lock.NewKeyMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func recordKey(id string) string {
	return fmt.Sprintf("escalation:%s", id)
}

func statusSetKey(status model.EscalationStatus) string {
	return fmt.Sprintf("escalations:%s", status)
}

func openMarkerKey(tuple string) string {
	return fmt.Sprintf("escalation:open:%s", tuple)
}

func (q *RedisQueue) Create(ctx context.Context, query model.Query, reason string) (*model.EscalationRecord, error) {
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

	tuple := dedupeTuple(rec.UserID, rec.SessionID, rec.QueryID)
	set, err := q.rdb.SetNX(ctx, openMarkerKey(tuple), rec.ID, 0).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	if !set {
		return nil, errx.Duplicate(fmt.Sprintf("open escalation already exists for query %s", rec.QueryID))
	}

	if err := q.save(ctx, rec); err != nil {
		return nil, err
	}
	if err := q.rdb.SAdd(ctx, statusSetKey(model.EscalationOpen), rec.ID).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	return rec, nil
}

func (q *RedisQueue) Resolve(ctx context.Context, id, resolution string) (*model.EscalationRecord, error) {
	q.locks.Lock(id)
	defer q.locks.Unlock(id)

	raw, err := q.rdb.Get(ctx, recordKey(id)).Result()
	if err == redis.Nil {
		return nil, errx.NotFound(fmt.Sprintf("escalation %s not found", id))
	}
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	var rec model.EscalationRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal escalation %s: %w", id, err)
	}
	if rec.Status == model.EscalationResolved {
		return nil, errx.InvalidState(fmt.Sprintf("escalation %s already resolved", id))
	}

	resolvedAt := q.now()
	rec.Status = model.EscalationResolved
	rec.Resolution = resolution
	rec.ResolvedAt = &resolvedAt

	if err := q.save(ctx, &rec); err != nil {
		return nil, err
	}
	if err := q.rdb.SRem(ctx, statusSetKey(model.EscalationOpen), id).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	if err := q.rdb.SAdd(ctx, statusSetKey(model.EscalationResolved), id).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	tuple := dedupeTuple(rec.UserID, rec.SessionID, rec.QueryID)
	if err := q.rdb.Del(ctx, openMarkerKey(tuple)).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	return &rec, nil
}

func (q *RedisQueue) List(ctx context.Context, status model.EscalationStatus) ([]*model.EscalationRecord, error) {
	statuses := []model.EscalationStatus{status}
	if status == "" {
		statuses = []model.EscalationStatus{model.EscalationOpen, model.EscalationResolved}
	}

	var ids []string
	for _, st := range statuses {
		members, err := q.rdb.SMembers(ctx, statusSetKey(st)).Result()
		if err != nil {
			return nil, errx.WrapRedis(err)
		}
		ids = append(ids, members...)
	}

	records := make([]*model.EscalationRecord, 0, len(ids))
	for _, id := range ids {
		raw, err := q.rdb.Get(ctx, recordKey(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, errx.WrapRedis(err)
		}
		var rec model.EscalationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal escalation %s: %w", id, err)
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (q *RedisQueue) save(ctx context.Context, rec *model.EscalationRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal escalation %s: %w", rec.ID, err)
	}
	if err := q.rdb.Set(ctx, recordKey(rec.ID), b, 0).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Queue = (*RedisQueue)(nil)
