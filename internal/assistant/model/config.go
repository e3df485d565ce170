package model

import "fmt"

// ================ Config ================

type ClassifyModelConfig struct {
	Model       string  `envconfig:"CLASSIFY_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFY_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"CLASSIFY_TEMPERATURE" default:"0.1"`
	TimeoutSec  int     `envconfig:"CLASSIFY_TIMEOUT_SECONDS" default:"15"`
}

type CompleteModelConfig struct {
	Model       string  `envconfig:"COMPLETE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"COMPLETE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"COMPLETE_TEMPERATURE" default:"0.4"`
	TimeoutSec  int     `envconfig:"COMPLETE_TIMEOUT_SECONDS" default:"30"`
}

type SynthesizerConfig struct {
	// EscalationThreshold is the confidence below which a response is flagged
	// for a human. Must be within [0,1].
	EscalationThreshold float64 `envconfig:"ESCALATION_THRESHOLD" default:"0.5"`
	// NoContextConfidence is the fixed confidence assigned to drafts produced
	// without any retrieved knowledge.
	NoContextConfidence float64 `envconfig:"NO_CONTEXT_CONFIDENCE" default:"0.2"`
}

// Validate rejects out-of-range thresholds at startup.
func (c SynthesizerConfig) Validate() error {
	if c.EscalationThreshold < 0 || c.EscalationThreshold > 1 {
		return fmt.Errorf("escalation threshold %v out of range [0,1]", c.EscalationThreshold)
	}
	if c.NoContextConfidence < 0 || c.NoContextConfidence > 1 {
		return fmt.Errorf("no-context confidence %v out of range [0,1]", c.NoContextConfidence)
	}
	return nil
}

type SessionConfig struct {
	TTL string `envconfig:"SESSION_TTL" default:"720h"`
}

type KnowledgeConfig struct {
	DataDir        string `envconfig:"KNOWLEDGE_DATA_DIR" default:"./data"`
	TopK           int    `envconfig:"KNOWLEDGE_TOP_K" default:"5"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingURL   string `envconfig:"EMBEDDING_BASE_URL" default:"https://api.openai.com/v1"`
	EmbeddingKey   string `envconfig:"EMBEDDING_API_KEY"`
}

type PromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"LenDen Club"`
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"peer-to-peer lending platform"`
}
