package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
	"github.com/lenden-assist/server/internal/core/lock"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// RedisStore persists sessions in Redis: a hash for session metadata, a list
// of JSON messages, and a set of seen message ids for idempotent appends.
type RedisStore struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	locks *lock.KeyMutex
	now   func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb:   rdb,
		ttl:   ttl,
		locks: lock.NewKeyMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func metaKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func messagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func messageIDsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:ids", sessionID)
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf("user:%s:sessions", userID)
}

func (s *RedisStore) Create(ctx context.Context, userID string) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		ID:          shortuuid.New(),
		UserID:      userID,
		CreatedAt:   now,
		LastUpdated: now,
	}

	key := metaKey(sess.ID)
	fields := map[string]any{
		"user_id":      sess.UserID,
		"created_at":   sess.CreatedAt.Format(time.RFC3339Nano),
		"last_updated": sess.LastUpdated.Format(time.RFC3339Nano),
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	if err := s.rdb.SAdd(ctx, userSessionsKey(userID), sess.ID).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	s.touch(ctx, sess.ID)
	return sess, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msg model.Message) error {
	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)

	exists, err := s.rdb.Exists(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if exists == 0 {
		return errx.NotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	if msg.ID != "" {
		dup, err := s.rdb.SIsMember(ctx, messageIDsKey(sessionID), msg.ID).Result()
		if err != nil {
			return errx.WrapRedis(err)
		}
		if dup {
			logx.Debug().
				Str("session_id", sessionID).
				Str("message_id", msg.ID).
				Msg("duplicate message id - append is a no-op")
			return nil
		}
	} else {
		n, err := s.rdb.LLen(ctx, messagesKey(sessionID)).Result()
		if err != nil {
			return errx.WrapRedis(err)
		}
		msg.ID = strconv.FormatInt(n+1, 10)
	}

	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, messagesKey(sessionID), b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.SAdd(ctx, messageIDsKey(sessionID), msg.ID).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.HSet(ctx, metaKey(sessionID), "last_updated", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	s.touch(ctx, sessionID)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string, limit, offset int) ([]model.Message, error) {
	exists, err := s.rdb.Exists(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	if exists == 0 {
		return nil, errx.NotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	if offset < 0 {
		offset = 0
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}

	rows, err := s.rdb.LRange(ctx, messagesKey(sessionID), int64(offset), stop).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]model.Message, 0, len(rows))
	for i, row := range rows {
		var m model.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) ListSessions(ctx context.Context, userID string) ([]model.SessionSummary, error) {
	ids, err := s.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	summaries := make([]model.SessionSummary, 0, len(ids))
	for _, id := range ids {
		fields, err := s.rdb.HGetAll(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, errx.WrapRedis(err)
		}
		if len(fields) == 0 {
			// Session expired but the user index entry survived; skip it.
			continue
		}
		count, err := s.rdb.LLen(ctx, messagesKey(id)).Result()
		if err != nil {
			return nil, errx.WrapRedis(err)
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
		lastUpdated, _ := time.Parse(time.RFC3339Nano, fields["last_updated"])
		summaries = append(summaries, model.SessionSummary{
			ID:           id,
			UserID:       userID,
			CreatedAt:    createdAt,
			LastUpdated:  lastUpdated,
			MessageCount: int(count),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
	})
	return summaries, nil
}

// touch extends the TTL on all keys of a session. Best effort; an expiry
// failure is logged, not surfaced.
func (s *RedisStore) touch(ctx context.Context, sessionID string) {
	if s.ttl <= 0 {
		return
	}
	for _, key := range []string{metaKey(sessionID), messagesKey(sessionID), messageIDsKey(sessionID)} {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to set TTL on session key")
		}
	}
}

var _ Store = (*RedisStore)(nil)
