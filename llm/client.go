package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/models"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotConfigured wird zurückgegeben, wenn kein API-Key gesetzt ist.
var ErrNotConfigured = errors.New("llm: LLM_API_KEY not configured")

// Client spricht einen OpenAI-kompatiblen Chat-Endpunkt an (Standard: OpenRouter)
// und implementiert Extraktion, Klassifikation, Gruppierung und Digest-Zusammenfassung.
type Client struct {
	chat    *openai.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	extractionModel     string
	classificationModel string
	groupingModel       string
	digestModel         string
}

// NewClient erstellt den Client aus der Konfiguration. Ohne API-Key liefern alle Aufrufe ErrNotConfigured.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	c := &Client{
		limiter:             newLimiter(cfg.LLMRequestsPerSecond),
		logger:              logger,
		extractionModel:     cfg.LLMExtractionModel,
		classificationModel: cfg.LLMClassificationModel,
		groupingModel:       cfg.LLMGroupingModel,
		digestModel:         cfg.LLMDigestModel,
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY is empty, language model calls are disabled")
		return c
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLMAPIKey),
		// Wiederholungen übernimmt die RetryPolicy der Services
		option.WithMaxRetries(0),
	}
	if cfg.LLMBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLMBaseURL))
	}
	if cfg.LLMRequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.LLMRequestTimeout))
	}
	client := openai.NewClient(opts...)
	c.chat = &client
	return c
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

type completionRequest struct {
	model       string
	system      string
	prompt      string
	temperature float64
	maxTokens   int64
}

func (c *Client) complete(ctx context.Context, req completionRequest, format *openai.ResponseFormatJSONSchemaParam) (string, error) {
	if c.chat == nil {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.system != "" {
		msgs = append(msgs, openai.SystemMessage(req.system))
	}
	msgs = append(msgs, openai.UserMessage(req.prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.model),
		Messages:    msgs,
		Temperature: openai.Float(req.temperature),
	}
	if req.maxTokens > 0 {
		body.MaxTokens = openai.Int(req.maxTokens)
	}
	if format != nil {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONSchema: format}
	}

	start := time.Now()
	response, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", mapError(err)
	}
	c.logger.Debug("LLM completion finished",
		zap.String("model", req.model),
		zap.Int64("prompt_tokens", response.Usage.PromptTokens),
		zap.Int64("completion_tokens", response.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model %s", req.model)
	}
	message := response.Choices[0].Message.Content
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("empty response from model %s (finish_reason: %s)", req.model, response.Choices[0].FinishReason)
	}
	return message, nil
}

func (c *Client) completeJSON(ctx context.Context, req completionRequest, name, description string, out any) error {
	format := &openai.ResponseFormatJSONSchemaParam{
		JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:        name,
			Description: openai.String(description),
			Schema:      GenerateSchema(out),
			Strict:      openai.Bool(true),
		},
	}
	message, err := c.complete(ctx, req, format)
	if err != nil {
		return err
	}
	if err := UnmarshalFlexible(message, out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// mapError übersetzt Drosselung (HTTP 429/503, RESOURCE_EXHAUSTED) in RateLimitError.
func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusServiceUnavailable {
			var retryAfter time.Duration
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &models.RateLimitError{Err: err, RetryAfter: retryAfter}
		}
		return err
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return &models.RateLimitError{Err: err}
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
