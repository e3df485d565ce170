package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// GeminiConfig holds what is needed to build both chat models from one
// shared Gemini client.
type GeminiConfig struct {
	APIKey   string
	BaseURL  string
	Classify model.ClassifyModelConfig
	Complete model.CompleteModelConfig
}

// Models bundles the classification and completion chat models.
type Models struct {
	Classify     einomodel.BaseChatModel
	Complete     einomodel.BaseChatModel
	ClassifyName string
	CompleteName string
}

// NewGeminiModels creates both chat models with the given configuration.
func NewGeminiModels(ctx context.Context, cfg GeminiConfig) (*Models, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	classifyModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Classify.Model,
		Temperature: &cfg.Classify.Temperature,
		MaxTokens:   &cfg.Classify.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classification model")
		return nil, fmt.Errorf("error creating classification model: %w", err)
	}

	completeModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Complete.Model,
		Temperature: &cfg.Complete.Temperature,
		MaxTokens:   &cfg.Complete.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating completion model")
		return nil, fmt.Errorf("error creating completion model: %w", err)
	}

	return &Models{
		Classify:     classifyModel,
		Complete:     completeModel,
		ClassifyName: cfg.Classify.Model,
		CompleteName: cfg.Complete.Model,
	}, nil
}

// generate runs one chat-model call with a hard timeout and maps any failure
// to the upstream-unavailable kind so callers can apply the degradation policy.
func generate(ctx context.Context, cm einomodel.BaseChatModel, modelName string, timeout time.Duration, msgs []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return nil, errx.Upstream(err, "llm call failed")
	}
	if out == nil {
		return nil, errx.Upstream(nil, "llm returned no message")
	}
	logUsage(modelName, out)
	return out, nil
}

// logUsage records token usage for a completed model call.
func logUsage(modelName string, out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	u := out.ResponseMeta.Usage
	logx.Debug().
		Str("model", modelName).
		Int("prompt_tokens", u.PromptTokens).
		Int("completion_tokens", u.CompletionTokens).
		Int("total_tokens", u.TotalTokens).
		Msg("LLM usage")
}

func timeoutFromSeconds(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}
