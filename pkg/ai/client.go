package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// Client talks to an OpenAI-compatible completion API (Groq, OpenRouter,
// OpenAI itself). It is the single language-model oracle of the system:
// narration, summarization and embeddings all go through it so that
// write-time and query-time embeddings share one vector space.
type Client struct {
	client         *openai.Client
	modelName      string
	embeddingModel string
	timeout        time.Duration
	maxRetries     int
}

// Config holds oracle client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ModelName      string
	EmbeddingModel string
	Timeout        int // seconds
	MaxRetries     int
}

// Message is one prior exchange passed back to the model.
type Message struct {
	Role    string
	Content string
}

// NarrationRequest is the oracle contract for one narrative turn: a system
// directive, ordered context chunks, recent history and the user's action.
type NarrationRequest struct {
	SystemDirective string
	ContextChunks   []string
	History         []Message
	UserAction      string
	Temperature     float32
	MaxTokens       int
}

// New creates an oracle client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle API key is not configured")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "llama-3.3-70b-versatile"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:         openai.NewClientWithConfig(config),
		modelName:      cfg.ModelName,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        time.Duration(cfg.Timeout) * time.Second,
		maxRetries:     cfg.MaxRetries,
	}, nil
}

// Narrate generates the narrator's response for one turn.
func (c *Client) Narrate(ctx context.Context, req NarrationRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+3)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemDirective,
	})

	if len(req.ContextChunks) > 0 {
		memory := "Story memory, most important first:\n\n" + strings.Join(req.ContextChunks, "\n\n")
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: memory,
		})
	}

	for _, m := range req.History {
		role := openai.ChatMessageRoleAssistant
		if m.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserAction,
	})

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.8
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        0.95,
	})
}

// Summarize runs a single instruction+text completion, used by the lore
// extractor at chapter closure.
func (c *Client) Summarize(ctx context.Context, instructions, text string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   800,
	})
}

// Embed converts text to an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contained no data")
	}

	return resp.Data[0].Embedding, nil
}

// complete runs a chat completion with bounded retries on transient errors.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attempts := 0
	for {
		attempts++

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			log.Error().Err(err).Int("attempt", attempts).Msg("Chat completion failed")
			if attempts >= c.maxRetries || !IsRetryable(err) {
				return "", fmt.Errorf("oracle call failed after %d attempts: %w", attempts, err)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			log.Warn().Int("attempt", attempts).Msg("Empty response from oracle")
			if attempts >= c.maxRetries {
				return "", fmt.Errorf("empty oracle response after %d attempts: %w", attempts, ErrEmptyResponse)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}
}

// ErrEmptyResponse indicates the model returned no usable choices.
var ErrEmptyResponse = errors.New("empty response from model")

// IsRetryable classifies oracle failures: rate limits, server errors,
// timeouts and empty responses are transient; everything else (bad request,
// auth) is terminal and must be surfaced to the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0
	}

	// Plain transport errors carry no status at all.
	return true
}
