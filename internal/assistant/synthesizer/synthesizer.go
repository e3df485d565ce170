package synthesizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lenden-assist/server/internal/assistant/model"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// fallbackAnswer is returned when every specialist came back degraded. The
// user always receives a reply, never an error.
const fallbackAnswer = "I don't have enough information to answer that right now. I've flagged your question for our support team."

const allDegradedReason = "no specialist could answer"

// Synthesizer merges specialist drafts into the single user-facing response.
// It is a pure function over the drafts plus the configured threshold.
type Synthesizer struct {
	threshold float64
}

// New validates the configuration and builds the synthesizer. An out-of-range
// threshold is a startup failure, not a runtime degradation.
func New(cfg model.SynthesizerConfig) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{threshold: cfg.EscalationThreshold}, nil
}

// Synthesize merges the drafts, which must arrive in category-priority order.
// Drafts marked cannot-answer are dropped unless all of them are; confidence
// aggregates as the minimum over retained drafts so one weak draft is never
// masked by a strong one. The threshold is an inclusive pass: confidence
// equal to it does not escalate.
func (s *Synthesizer) Synthesize(q model.Query, drafts []model.Draft) model.Response {
	retained := make([]model.Draft, 0, len(drafts))
	for _, d := range drafts {
		if !d.CannotAnswer {
			retained = append(retained, d)
		}
	}

	if len(retained) == 0 {
		logx.Warn().
			Str("query_id", q.ID).
			Int("drafts", len(drafts)).
			Msg("all drafts degraded - forcing escalation")
		return model.Response{
			QueryID:          q.ID,
			AnswerText:       fallbackAnswer,
			Sources:          []string{},
			Confidence:       0,
			NeedsEscalation:  true,
			EscalationReason: allDegradedReason,
		}
	}

	// Prefer drafts above the threshold: they lead the merged answer. The
	// incoming category-priority order breaks ties.
	sort.SliceStable(retained, func(i, j int) bool {
		iPass := retained[i].Confidence >= s.threshold
		jPass := retained[j].Confidence >= s.threshold
		return iPass && !jPass
	})

	confidence := retained[0].Confidence
	for _, d := range retained[1:] {
		if d.Confidence < confidence {
			confidence = d.Confidence
		}
	}

	resp := model.Response{
		QueryID:    q.ID,
		AnswerText: mergeAnswers(retained),
		Sources:    mergeSources(retained),
		Confidence: confidence,
	}

	if confidence < s.threshold {
		resp.NeedsEscalation = true
		resp.EscalationReason = fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, s.threshold)
	}
	return resp
}

// mergeAnswers passes a single draft through untouched; multiple drafts are
// concatenated as category-labelled segments with duplicate texts collapsed.
func mergeAnswers(retained []model.Draft) string {
	if len(retained) == 1 {
		return retained[0].AnswerText
	}

	seen := make(map[string]bool, len(retained))
	segments := make([]string, 0, len(retained))
	for _, d := range retained {
		if seen[d.AnswerText] {
			continue
		}
		seen[d.AnswerText] = true
		segments = append(segments, fmt.Sprintf("[%s] %s", d.Category, d.AnswerText))
	}
	if len(segments) == 1 {
		return retained[0].AnswerText
	}
	return strings.Join(segments, "\n\n")
}

// mergeSources unions citations across drafts, deduplicated case-insensitively
// with the first occurrence winning and order preserved.
func mergeSources(retained []model.Draft) []string {
	seen := make(map[string]bool)
	sources := make([]string, 0)
	for _, d := range retained {
		for _, src := range d.Sources {
			key := strings.ToLower(src)
			if seen[key] {
				continue
			}
			seen[key] = true
			sources = append(sources, src)
		}
	}
	return sources
}
