package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
)

type memSession struct {
	meta     model.Session
	messages []model.Message
	seenIDs  map[string]bool
}

// MemoryStore is an in-memory Store used in tests and single-process setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	byUser   map[string][]string
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		byUser:   make(map[string][]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, userID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := model.Session{
		ID:          shortuuid.New(),
		UserID:      userID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.sessions[sess.ID] = &memSession{meta: sess, seenIDs: make(map[string]bool)}
	s.byUser[userID] = append(s.byUser[userID], sess.ID)

	out := sess
	return &out, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errx.NotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	if msg.ID != "" {
		if sess.seenIDs[msg.ID] {
			return nil
		}
	} else {
		msg.ID = strconv.Itoa(len(sess.messages) + 1)
	}

	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	sess.messages = append(sess.messages, msg)
	sess.seenIDs[msg.ID] = true
	sess.meta.LastUpdated = now
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string, limit, offset int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errx.NotFound(fmt.Sprintf("session %s not found", sessionID))
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(sess.messages) {
		return []model.Message{}, nil
	}
	end := len(sess.messages)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]model.Message, end-offset)
	copy(out, sess.messages[offset:end])
	return out, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, userID string) ([]model.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	summaries := make([]model.SessionSummary, 0, len(ids))
	for _, id := range ids {
		sess := s.sessions[id]
		summaries = append(summaries, model.SessionSummary{
			ID:           sess.meta.ID,
			UserID:       sess.meta.UserID,
			CreatedAt:    sess.meta.CreatedAt,
			LastUpdated:  sess.meta.LastUpdated,
			MessageCount: len(sess.messages),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
	})
	return summaries, nil
}

var _ Store = (*MemoryStore)(nil)
