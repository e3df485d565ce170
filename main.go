package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v5"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lenden-assist/server/internal/assistant"
	"github.com/lenden-assist/server/internal/assistant/escalation"
	"github.com/lenden-assist/server/internal/assistant/knowledge"
	"github.com/lenden-assist/server/internal/assistant/llm"
	"github.com/lenden-assist/server/internal/assistant/model"
	"github.com/lenden-assist/server/internal/assistant/router"
	"github.com/lenden-assist/server/internal/assistant/session"
	"github.com/lenden-assist/server/internal/assistant/specialist"
	"github.com/lenden-assist/server/internal/assistant/synthesizer"
	"github.com/lenden-assist/server/internal/core"
	"github.com/lenden-assist/server/internal/server"
	logx "github.com/lenden-assist/server/pkg/logger"
	pkgredis "github.com/lenden-assist/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Assistant configs
	Classify    model.ClassifyModelConfig
	Complete    model.CompleteModelConfig
	Synthesizer model.SynthesizerConfig
	Session     model.SessionConfig
	Knowledge   model.KnowledgeConfig
	Prompt      model.PromptConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis")

	ttl, err := time.ParseDuration(cfg.Session.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Session.TTL).Msg("Invalid SESSION_TTL")
	}

	models, err := llm.NewGeminiModels(ctx, llm.GeminiConfig{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Classify: cfg.Classify,
		Complete: cfg.Complete,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build chat models")
	}

	embedKey := cfg.Knowledge.EmbeddingKey
	if embedKey == "" {
		embedKey = cfg.APIKey
	}
	kb, err := knowledge.New(cfg.Knowledge, chromem.NewEmbeddingFuncOpenAICompat(
		cfg.Knowledge.EmbeddingURL, embedKey, cfg.Knowledge.EmbeddingModel, nil,
	))
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open knowledge store")
	}

	synth, err := synthesizer.New(cfg.Synthesizer)
	if err != nil {
		logx.Fatal().Err(err).Msg("Invalid synthesizer config")
	}

	handlers := specialist.NewHandlers(kb, llm.NewChatCompleter(models, cfg.Complete), specialist.Config{
		TopK:                cfg.Knowledge.TopK,
		NoContextConfidence: cfg.Synthesizer.NoContextConfidence,
		Prompt:              cfg.Prompt,
	})

	asst, err := assistant.New(
		router.New(llm.NewChatClassifier(models, cfg.Classify)),
		handlers,
		synth,
		session.NewRedisStore(rdb, ttl),
		escalation.NewRedisQueue(rdb),
		kb,
	)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build assistant")
	}

	e := echo.New()
	server.New(asst).Register(e)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logx.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Error().Err(err).Msg("HTTP server stopped")
		os.Exit(1)
	}
}
