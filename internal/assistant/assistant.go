package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lenden-assist/server/internal/assistant/escalation"
	"github.com/lenden-assist/server/internal/assistant/model"
	"github.com/lenden-assist/server/internal/assistant/router"
	"github.com/lenden-assist/server/internal/assistant/session"
	"github.com/lenden-assist/server/internal/assistant/specialist"
	"github.com/lenden-assist/server/internal/assistant/synthesizer"
	errx "github.com/lenden-assist/server/internal/core/error"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// Knowledge is the admin-facing surface of the knowledge store.
type Knowledge interface {
	Upsert(ctx context.Context, item model.KnowledgeItem) (model.KnowledgeItem, error)
	List(ctx context.Context) ([]model.KnowledgeItem, error)
}

// Assistant composes the router, specialists, synthesizer and stores into
// the two user-facing operations plus the admin surface. It holds no request
// state itself; everything durable lives in the injected stores.
type Assistant struct {
	router   *router.Router
	handlers map[model.Category]specialist.Handler
	synth    *synthesizer.Synthesizer
	sessions session.Store
	queue    escalation.Queue
	kb       Knowledge
}

func New(
	rt *router.Router,
	handlers map[model.Category]specialist.Handler,
	synth *synthesizer.Synthesizer,
	sessions session.Store,
	queue escalation.Queue,
	kb Knowledge,
) (*Assistant, error) {
	if rt == nil || synth == nil {
		return nil, fmt.Errorf("router and synthesizer are required")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("no specialist handlers configured")
	}
	if sessions == nil || queue == nil || kb == nil {
		return nil, fmt.Errorf("session store, escalation queue and knowledge store are required")
	}
	return &Assistant{
		router:   rt,
		handlers: handlers,
		synth:    synth,
		sessions: sessions,
		queue:    queue,
		kb:       kb,
	}, nil
}

// QueryResult is the reply to one user turn.
type QueryResult struct {
	SessionID string         `json:"session_id"`
	Response  model.Response `json:"response"`
}

// HandleUserQuery runs the full pipeline for one user turn: classify, fan
// out to one specialist per category, merge, log the turn to the session,
// and open an escalation record when the merged response is flagged.
//
// A missing sessionID creates a new session. The reply is degraded rather
// than withheld when upstreams fail; only invalid input or a broken session
// store surface as errors.
func (a *Assistant) HandleUserQuery(ctx context.Context, userID, sessionID, text string) (*QueryResult, error) {
	if sessionID == "" {
		sess, err := a.sessions.Create(ctx, userID)
		if err != nil {
			return nil, err
		}
		sessionID = sess.ID
	}

	q := model.Query{
		ID:         uuid.New().String(),
		UserID:     userID,
		SessionID:  sessionID,
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}

	cls, err := a.router.Route(ctx, q)
	if err != nil {
		return nil, err
	}

	categories := cls.Categories()
	drafts := make([]model.Draft, len(categories))

	var g errgroup.Group
	for i, cat := range categories {
		handler, ok := a.handlers[cat]
		if !ok {
			// Closed category set; reaching this means the handler table is
			// misconfigured. Degrade the single category, not the request.
			logx.Error().Str("category", cat.String()).Msg("no handler for category")
			drafts[i] = model.Draft{QueryID: q.ID, Category: cat, CannotAnswer: true}
			continue
		}
		i := i
		g.Go(func() error {
			drafts[i] = handler.Handle(ctx, q)
			return nil
		})
	}
	// Handlers report degradation through their drafts, never through errors.
	_ = g.Wait()

	resp := a.synth.Synthesize(q, drafts)

	if err := a.logTurn(ctx, q, resp); err != nil {
		return nil, err
	}

	if resp.NeedsEscalation {
		a.escalate(ctx, q, resp.EscalationReason)
	}

	logx.Debug().
		Str("query_id", q.ID).
		Str("session_id", sessionID).
		Int("categories", len(categories)).
		Float64("confidence", resp.Confidence).
		Bool("needs_escalation", resp.NeedsEscalation).
		Msg("query handled")

	return &QueryResult{SessionID: sessionID, Response: resp}, nil
}

// logTurn appends the user message and the assistant reply to the session.
func (a *Assistant) logTurn(ctx context.Context, q model.Query, resp model.Response) error {
	userMsg := model.Message{
		ID:        q.ID + ":user",
		Role:      model.RoleUser,
		Content:   q.Text,
		Timestamp: q.ReceivedAt,
	}
	if err := a.sessions.Append(ctx, q.SessionID, userMsg); err != nil {
		return err
	}

	meta := map[string]string{
		"query_id":   q.ID,
		"confidence": strconv.FormatFloat(resp.Confidence, 'f', 2, 64),
	}
	if resp.NeedsEscalation {
		meta["escalated"] = "true"
	}
	assistantMsg := model.Message{
		ID:       q.ID + ":assistant",
		Role:     model.RoleAssistant,
		Content:  resp.AnswerText,
		Metadata: meta,
	}
	return a.sessions.Append(ctx, q.SessionID, assistantMsg)
}

// escalate opens an escalation record. A duplicate open record is the
// idempotent success case; any other failure is logged but never blocks the
// reply.
func (a *Assistant) escalate(ctx context.Context, q model.Query, reason string) {
	rec, err := a.queue.Create(ctx, q, reason)
	if err != nil {
		if errors.Is(err, errx.ErrDuplicate) {
			logx.Debug().Str("query_id", q.ID).Msg("escalation already open for query")
			return
		}
		logx.Error().Err(err).Str("query_id", q.ID).Msg("failed to create escalation record")
		return
	}
	logx.Info().
		Str("escalation_id", rec.ID).
		Str("query_id", q.ID).
		Str("reason", reason).
		Msg("query escalated")
}

// ResolveEscalation closes an open escalation record with the admin's
// resolution text.
func (a *Assistant) ResolveEscalation(ctx context.Context, id, resolution string) (*model.EscalationRecord, error) {
	if resolution == "" {
		return nil, errx.InvalidInput("resolution is required")
	}
	return a.queue.Resolve(ctx, id, resolution)
}

// ListEscalations returns escalation records filtered by status ("" = all).
func (a *Assistant) ListEscalations(ctx context.Context, status model.EscalationStatus) ([]*model.EscalationRecord, error) {
	return a.queue.List(ctx, status)
}

// UploadKnowledge is a pass-through to the knowledge store.
func (a *Assistant) UploadKnowledge(ctx context.Context, item model.KnowledgeItem) (model.KnowledgeItem, error) {
	return a.kb.Upsert(ctx, item)
}

// ListKnowledge returns the uploaded knowledge items.
func (a *Assistant) ListKnowledge(ctx context.Context) ([]model.KnowledgeItem, error) {
	return a.kb.List(ctx)
}

// History returns a page of the session's conversation log.
func (a *Assistant) History(ctx context.Context, sessionID string, limit, offset int) ([]model.Message, error) {
	return a.sessions.Get(ctx, sessionID, limit, offset)
}

// Sessions returns the user's session summaries, most recently updated first.
func (a *Assistant) Sessions(ctx context.Context, userID string) ([]model.SessionSummary, error) {
	return a.sessions.ListSessions(ctx, userID)
}
