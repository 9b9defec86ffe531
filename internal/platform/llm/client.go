package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	metrics     *observability.Metrics
	log         *logger.Logger
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// ConfigFromEnv reads LLM_API_KEY, LLM_BASE_URL, LLM_MODEL, LLM_TEMPERATURE,
// LLM_TIMEOUT_SECONDS and LLM_MAX_RETRIES.
func ConfigFromEnv() Config {
	return Config{
		APIKey:      envutil.String("LLM_API_KEY", ""),
		BaseURL:     envutil.String("LLM_BASE_URL", DefaultBaseURL),
		Model:       envutil.String("LLM_MODEL", DefaultModel),
		Temperature: envutil.Float("LLM_TEMPERATURE", 0.1),
		Timeout:     envutil.Seconds("LLM_TIMEOUT_SECONDS", 120*time.Second),
		MaxRetries:  envutil.Int("LLM_MAX_RETRIES", 2),
	}
}

// NewFromEnv returns (nil, nil) when no API key is configured.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	cfg := ConfigFromEnv()
	if cfg.APIKey == "" {
		return nil, nil
	}
	return New(cfg, log)
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm: missing api key")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	c := &Client{
		api:         api,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		metrics:     observability.Current(),
		log:         log.With("client", "LLM", "model", cfg.Model),
	}
	c.log.Info("llm client configured", "base_url", cfg.BaseURL, "api_key", cfg.APIKey)
	return c, nil
}

func (c *Client) Model() string { return c.model }

// GenerateJSONObject requests a JSON-object response and returns the raw message content.
func (c *Client) GenerateJSONObject(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		c.metrics.ObserveLLMRequest(c.model, "error", time.Since(start), 0, 0)
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	c.metrics.ObserveLLMRequest(c.model, "ok", time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion")
	}
	c.log.Debug("chat completion finished",
		"latency_ms", time.Since(start).Milliseconds(),
		"finish_reason", completion.Choices[0].FinishReason,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)
	return completion.Choices[0].Message.Content, nil
}
