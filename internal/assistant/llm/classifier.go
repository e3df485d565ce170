package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lenden-assist/server/internal/assistant/model"
)

const classifySystemPrompt = `You are an intent classifier for a financial-services assistant.
Classify the user message into one or more of these categories:

- loan: loan products, applications, balances, repayments, interest
- account: the user's account, registration, login, profile, linked bank details
- policy: terms of service, fees, regulatory and compliance questions
- general: anything else answerable from general knowledge about the platform
- escalate: the user explicitly asks for a human, or is filing a complaint

Output one record per detected category, in this exact format and nothing else:

(intent<||><category><||><confidence 0.0-1.0>)##(intent<||><category><||><confidence>)<|COMPLETE|>

Example: (intent<||>loan<||>0.92)##(intent<||>account<||>0.41)<|COMPLETE|>`

// ChatClassifier implements Classifier on top of a chat model using the
// delimited-tuple output contract above.
type ChatClassifier struct {
	cm      *Models
	timeout time.Duration
}

func NewChatClassifier(models *Models, cfg model.ClassifyModelConfig) *ChatClassifier {
	return &ChatClassifier{
		cm:      models,
		timeout: timeoutFromSeconds(cfg.TimeoutSec, 15*time.Second),
	}
}

// Classify returns the raw labels the model detected. Malformed records are
// skipped by the parser; an empty result is valid and left to the caller to
// default.
func (c *ChatClassifier) Classify(ctx context.Context, text string) ([]LabelScore, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(classifySystemPrompt),
		schema.UserMessage(text),
	}

	out, err := generate(ctx, c.cm.Classify, c.cm.ClassifyName, c.timeout, msgs)
	if err != nil {
		return nil, err
	}

	return ParseClassification(out.Content), nil
}

var _ Classifier = (*ChatClassifier)(nil)
