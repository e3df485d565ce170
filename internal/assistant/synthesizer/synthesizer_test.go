package synthesizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenden-assist/server/internal/assistant/model"
)

func newSynth(t *testing.T, threshold float64) *Synthesizer {
	t.Helper()
	s, err := New(model.SynthesizerConfig{EscalationThreshold: threshold, NoContextConfidence: 0.2})
	require.NoError(t, err)
	return s
}

func TestNewRejectsOutOfRangeConfig(t *testing.T) {
	_, err := New(model.SynthesizerConfig{EscalationThreshold: 1.5, NoContextConfidence: 0.2})
	assert.Error(t, err)

	_, err = New(model.SynthesizerConfig{EscalationThreshold: 0.5, NoContextConfidence: -0.1})
	assert.Error(t, err)
}

func TestSynthesizeSingleDraftPassesThrough(t *testing.T) {
	s := newSynth(t, 0.5)
	q := model.Query{ID: "q1"}
	drafts := []model.Draft{{
		QueryID:    "q1",
		Category:   model.CategoryLoan,
		AnswerText: "Interest starts at 12% p.a.",
		Sources:    []string{"doc-42"},
		Confidence: 0.8,
	}}

	resp := s.Synthesize(q, drafts)

	assert.Equal(t, "q1", resp.QueryID)
	assert.Equal(t, "Interest starts at 12% p.a.", resp.AnswerText)
	assert.Equal(t, []string{"doc-42"}, resp.Sources)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-9)
	assert.False(t, resp.NeedsEscalation)
}

func TestSynthesizeConfidenceIsMinimumOfRetained(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "loan answer", Confidence: 0.9},
		{Category: model.CategoryPolicy, AnswerText: "policy answer", Confidence: 0.3},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.InDelta(t, 0.3, resp.Confidence, 1e-9)
	assert.True(t, resp.NeedsEscalation)
	assert.Contains(t, resp.EscalationReason, "below threshold")
}

func TestSynthesizeThresholdIsInclusive(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{{Category: model.CategoryLoan, AnswerText: "answer", Confidence: 0.5}}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.False(t, resp.NeedsEscalation)
	assert.Empty(t, resp.EscalationReason)
}

func TestSynthesizeLabelsMultipleSegments(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "loan answer", Confidence: 0.9},
		{Category: model.CategoryPolicy, AnswerText: "policy answer", Confidence: 0.8},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, "[loan] loan answer\n\n[policy] policy answer", resp.AnswerText)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-9)
	assert.False(t, resp.NeedsEscalation)
}

func TestSynthesizeAboveThresholdDraftsLead(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "weak loan answer", Confidence: 0.3},
		{Category: model.CategoryPolicy, AnswerText: "strong policy answer", Confidence: 0.9},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, "[policy] strong policy answer\n\n[loan] weak loan answer", resp.AnswerText)
}

func TestSynthesizeCollapsesDuplicateAnswers(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "same answer", Confidence: 0.9},
		{Category: model.CategoryPolicy, AnswerText: "same answer", Confidence: 0.8},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, "same answer", resp.AnswerText)
}

func TestSynthesizeDedupesSourcesCaseInsensitively(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "a", Sources: []string{"Doc-42", "doc-7"}, Confidence: 0.9},
		{Category: model.CategoryPolicy, AnswerText: "b", Sources: []string{"doc-42", "doc-9"}, Confidence: 0.8},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, []string{"Doc-42", "doc-7", "doc-9"}, resp.Sources)
}

func TestSynthesizeDropsCannotAnswerDrafts(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, AnswerText: "loan answer", Confidence: 0.9},
		{Category: model.CategoryPolicy, CannotAnswer: true},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, "loan answer", resp.AnswerText)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
	assert.False(t, resp.NeedsEscalation)
}

func TestSynthesizeAllDegradedForcesEscalation(t *testing.T) {
	s := newSynth(t, 0.5)
	drafts := []model.Draft{
		{Category: model.CategoryLoan, CannotAnswer: true},
		{Category: model.CategoryPolicy, CannotAnswer: true},
	}

	resp := s.Synthesize(model.Query{ID: "q1"}, drafts)

	assert.Equal(t, fallbackAnswer, resp.AnswerText)
	assert.Zero(t, resp.Confidence)
	assert.True(t, resp.NeedsEscalation)
	assert.Equal(t, allDegradedReason, resp.EscalationReason)
	assert.Empty(t, resp.Sources)
}
