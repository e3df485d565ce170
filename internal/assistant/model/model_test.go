package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	for _, known := range []string{"loan", "account", "policy", "general", "escalate"} {
		cat, ok := ParseCategory(known)
		assert.True(t, ok, known)
		assert.Equal(t, known, cat.String())
	}

	_, ok := ParseCategory("weather")
	assert.False(t, ok)
	_, ok = ParseCategory("")
	assert.False(t, ok)
}

func TestCategoriesSortByPriority(t *testing.T) {
	cls := Classification{Intents: []IntentScore{
		{Category: CategoryEscalate, Confidence: 0.9},
		{Category: CategoryGeneral, Confidence: 0.8},
		{Category: CategoryLoan, Confidence: 0.7},
		{Category: CategoryPolicy, Confidence: 0.6},
	}}

	assert.Equal(t, []Category{
		CategoryLoan,
		CategoryPolicy,
		CategoryGeneral,
		CategoryEscalate,
	}, cls.Categories())
}

func TestUnknownCategorySortsLast(t *testing.T) {
	unknown := Category("weather")
	assert.Greater(t, unknown.Priority(), CategoryEscalate.Priority())
}

func TestSynthesizerConfigValidate(t *testing.T) {
	valid := SynthesizerConfig{EscalationThreshold: 0.5, NoContextConfidence: 0.2}
	assert.NoError(t, valid.Validate())

	assert.Error(t, SynthesizerConfig{EscalationThreshold: -0.1, NoContextConfidence: 0.2}.Validate())
	assert.Error(t, SynthesizerConfig{EscalationThreshold: 1.1, NoContextConfidence: 0.2}.Validate())
	assert.Error(t, SynthesizerConfig{EscalationThreshold: 0.5, NoContextConfidence: 2}.Validate())
}
