package router

import (
	"context"
	"errors"
	"strings"

	"github.com/lenden-assist/server/internal/assistant/llm"
	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// defaultIntentConfidence applies when classification parsed cleanly but
// yielded no usable category and the query defaults to general.
const defaultIntentConfidence = 0.5

// Router classifies an incoming query into one or more categories from the
// fixed set. It holds no state; classification is delegated to the LLM
// adapter.
type Router struct {
	classifier llm.Classifier
}

func New(classifier llm.Classifier) *Router {
	return &Router{classifier: classifier}
}

// Route validates the query text and produces its classification. An
// unavailable provider is retried once, then the classification degrades to
// the general category with confidence 0 rather than failing the request.
func (r *Router) Route(ctx context.Context, q model.Query) (model.Classification, error) {
	if strings.TrimSpace(q.Text) == "" {
		return model.Classification{}, errx.InvalidInput("query text is empty")
	}

	scores, err := r.classify(ctx, q.Text)
	if err != nil {
		if !errors.Is(err, errx.ErrUpstreamUnavailable) {
			return model.Classification{}, err
		}
		logx.Warn().
			Err(err).
			Str("query_id", q.ID).
			Msg("classification unavailable after retry - degrading to general")
		return model.Classification{
			QueryID:  q.ID,
			Intents:  []model.IntentScore{{Category: model.CategoryGeneral, Confidence: 0}},
			Degraded: true,
		}, nil
	}

	intents := restrictToKnown(scores)
	if len(intents) == 0 {
		logx.Debug().
			Str("query_id", q.ID).
			Msg("no category detected - defaulting to general")
		intents = []model.IntentScore{{Category: model.CategoryGeneral, Confidence: defaultIntentConfidence}}
	}

	return model.Classification{QueryID: q.ID, Intents: intents}, nil
}

// classify calls the adapter, retrying once when the provider is unavailable.
func (r *Router) classify(ctx context.Context, text string) ([]llm.LabelScore, error) {
	scores, err := r.classifier.Classify(ctx, text)
	if err == nil {
		return scores, nil
	}
	if !errors.Is(err, errx.ErrUpstreamUnavailable) {
		return nil, err
	}
	logx.Warn().Err(err).Msg("classification failed - retrying once")
	return r.classifier.Classify(ctx, text)
}

// restrictToKnown drops labels outside the category set and collapses
// duplicate categories, keeping the highest confidence per category.
func restrictToKnown(scores []llm.LabelScore) []model.IntentScore {
	best := make(map[model.Category]float64)
	var order []model.Category
	for _, s := range scores {
		cat, ok := model.ParseCategory(s.Label)
		if !ok {
			logx.Warn().Str("label", s.Label).Msg("dropping unknown category label")
			continue
		}
		if conf, seen := best[cat]; !seen {
			best[cat] = s.Confidence
			order = append(order, cat)
		} else if s.Confidence > conf {
			best[cat] = s.Confidence
		}
	}

	out := make([]model.IntentScore, 0, len(order))
	for _, cat := range order {
		out = append(out, model.IntentScore{Category: cat, Confidence: best[cat]})
	}
	return out
}
