package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lenden-assist/server/internal/assistant/model"
)

const completionInstructions = `

Answer using only the provided context when context is given. Cite nothing the context does not support.
After your answer, on its own final line, report how confident you are that the answer is correct and complete:

CONFIDENCE: <value between 0.0 and 1.0>`

// defaultCompletionConfidence applies when the model omits the confidence line.
const defaultCompletionConfidence = 0.5

// ChatCompleter implements Completer on top of a chat model. The draft
// confidence is the model's self-assessment parsed from the trailing
// confidence line.
type ChatCompleter struct {
	cm      *Models
	timeout time.Duration
}

func NewChatCompleter(models *Models, cfg model.CompleteModelConfig) *ChatCompleter {
	return &ChatCompleter{
		cm:      models,
		timeout: timeoutFromSeconds(cfg.TimeoutSec, 30*time.Second),
	}
}

func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(req.System + completionInstructions),
		schema.UserMessage(buildUserContent(req)),
	}

	out, err := generate(ctx, c.cm.Complete, c.cm.CompleteName, c.timeout, msgs)
	if err != nil {
		return CompletionResult{}, err
	}

	text, conf := ExtractConfidence(out.Content, defaultCompletionConfidence)
	return CompletionResult{Text: text, Confidence: conf}, nil
}

// buildUserContent renders the retrieved documents and the query into one
// user turn, tagging each snippet with its citation.
func buildUserContent(req CompletionRequest) string {
	var b strings.Builder
	if len(req.Docs) > 0 {
		b.WriteString("<context>\n")
		for _, doc := range req.Docs {
			b.WriteString("[" + doc.Citation + "] " + doc.Content + "\n")
		}
		b.WriteString("</context>\n\n")
	}
	b.WriteString(req.Query)
	return b.String()
}

var _ Completer = (*ChatCompleter)(nil)
