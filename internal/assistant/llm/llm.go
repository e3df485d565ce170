package llm

import "context"

// LabelScore is one raw classification label with the model's confidence.
// Labels are not validated here; restricting them to the known category set
// is the router's job.
type LabelScore struct {
	Label      string
	Confidence float64
}

// Classifier turns free-form query text into zero or more labelled intents.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]LabelScore, error)
}

// ContextDoc is one retrieved knowledge snippet handed to the completer.
type ContextDoc struct {
	Content  string
	Citation string
}

// CompletionRequest carries everything a specialist needs answered.
type CompletionRequest struct {
	// System is the specialist's role prompt; output-format instructions are
	// appended by the completer itself.
	System string
	Query  string
	Docs   []ContextDoc
}

// CompletionResult is the drafted answer plus the model's self-reported
// confidence, already clamped to [0,1].
type CompletionResult struct {
	Text       string
	Confidence float64
}

// Completer produces a draft answer for a query given retrieved context.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
