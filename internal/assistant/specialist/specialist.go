package specialist

import (
	"context"
	"fmt"

	"github.com/lenden-assist/server/internal/assistant/knowledge"
	"github.com/lenden-assist/server/internal/assistant/llm"
	"github.com/lenden-assist/server/internal/assistant/model"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// Handler produces a draft answer for one category. Handle never returns an
// error: a failed upstream call yields a degraded draft so sibling handlers
// for other categories are unaffected.
type Handler interface {
	Category() model.Category
	Handle(ctx context.Context, q model.Query) model.Draft
}

// Config carries the policy knobs shared by all handlers.
type Config struct {
	// TopK is how many knowledge snippets each handler retrieves.
	TopK int
	// NoContextConfidence is the fixed confidence for drafts produced with
	// zero retrieved snippets.
	NoContextConfidence float64
	Prompt              model.PromptConfig
}

// NewHandlers builds the full category-to-handler table.
func NewHandlers(kb knowledge.Querier, completer llm.Completer, cfg Config) map[model.Category]Handler {
	handlers := make(map[model.Category]Handler)
	for _, cat := range []model.Category{
		model.CategoryLoan,
		model.CategoryAccount,
		model.CategoryPolicy,
		model.CategoryGeneral,
	} {
		handlers[cat] = &retrievalHandler{
			category:  cat,
			kb:        kb,
			completer: completer,
			cfg:       cfg,
		}
	}
	handlers[model.CategoryEscalate] = &escalateHandler{}
	return handlers
}

// retrievalHandler answers a query from category-scoped knowledge plus a
// completion call.
type retrievalHandler struct {
	category  model.Category
	kb        knowledge.Querier
	completer llm.Completer
	cfg       Config
}

func (h *retrievalHandler) Category() model.Category {
	return h.category
}

func (h *retrievalHandler) Handle(ctx context.Context, q model.Query) model.Draft {
	results, err := h.kb.Query(ctx, h.category, q.Text, h.cfg.TopK)
	if err != nil {
		logx.Error().
			Err(err).
			Str("query_id", q.ID).
			Str("category", h.category.String()).
			Msg("knowledge query failed - producing degraded draft")
		return degradedDraft(q, h.category)
	}

	docs := make([]llm.ContextDoc, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		docs = append(docs, llm.ContextDoc{Content: r.Content, Citation: r.Citation})
		sources = append(sources, r.Citation)
	}

	res, err := h.completer.Complete(ctx, llm.CompletionRequest{
		System: systemPrompt(h.cfg.Prompt, h.category),
		Query:  q.Text,
		Docs:   docs,
	})
	if err != nil {
		logx.Error().
			Err(err).
			Str("query_id", q.ID).
			Str("category", h.category.String()).
			Msg("completion failed - producing degraded draft")
		return degradedDraft(q, h.category)
	}

	confidence := res.Confidence
	if len(results) == 0 {
		// Nothing retrieved: the answer rests on the model alone, so the
		// confidence is pinned low regardless of its self-assessment.
		confidence = h.cfg.NoContextConfidence
		sources = nil
	}

	return model.Draft{
		QueryID:    q.ID,
		Category:   h.category,
		AnswerText: res.Text,
		Sources:    sources,
		Confidence: confidence,
	}
}

// escalateHandler handles queries the classifier routed straight to a human.
// Its confidence of 0 guarantees the synthesized response is flagged.
type escalateHandler struct{}

func (h *escalateHandler) Category() model.Category {
	return model.CategoryEscalate
}

func (h *escalateHandler) Handle(_ context.Context, q model.Query) model.Draft {
	return model.Draft{
		QueryID:    q.ID,
		Category:   model.CategoryEscalate,
		AnswerText: "I've flagged this conversation for our support team. A human agent will follow up with you shortly.",
		Confidence: 0,
	}
}

func degradedDraft(q model.Query, category model.Category) model.Draft {
	return model.Draft{
		QueryID:      q.ID,
		Category:     category,
		Confidence:   0,
		CannotAnswer: true,
	}
}

var specialistRoles = map[model.Category]string{
	model.CategoryLoan:    "loan products: applications, balances, repayment schedules, and interest rates",
	model.CategoryAccount: "user accounts: registration, login, profile, and linked bank details",
	model.CategoryPolicy:  "platform policy: terms of service, fees, and regulatory compliance",
	model.CategoryGeneral: "general questions about the platform",
}

func systemPrompt(cfg model.PromptConfig, category model.Category) string {
	return fmt.Sprintf(
		"You are a support specialist for %s, a %s. You handle %s.",
		cfg.BusinessName, cfg.BusinessType, specialistRoles[category],
	)
}
