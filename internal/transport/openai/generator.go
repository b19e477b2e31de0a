package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	"github.com/kailas-cloud/animedex/internal/metrics"
)

// Generator defaults match the Groq free tier.
const (
	DefaultChatModel   = "llama-3.1-8b-instant"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

// GeneratorConfig holds the chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      *zap.Logger
}

// Generator produces chat replies through an OpenAI-compatible API (Groq by default).
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewGenerator creates a chat completion client. Zero values take the defaults.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	g := &Generator{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
	if g.model == "" {
		g.model = DefaultChatModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.temperature == 0 {
		g.temperature = DefaultTemperature
	}
	return g
}

// Model returns the configured chat model.
func (g *Generator) Model() string { return g.model }

// Generate returns the first completion choice for messages.
func (g *Generator) Generate(ctx context.Context, messages []domchat.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(g.model, "error").Inc()
		g.logger.Error("Chat completion failed",
			zap.String("model", g.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError("chat", err, domain.ErrGeneratorError)
	}
	if len(resp.Choices) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("chat completion returned no choices: %w", domain.ErrGeneratorError)
	}

	metrics.ChatRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(g.model).Observe(duration.Seconds())
	g.logger.Debug("Chat completion finished",
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
