package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

type Client struct {
	api        *sdk.Client
	model      string
	embedModel string

	embedExec    *resilience.Executor
	generateExec *resilience.Executor
}

type Option func(*Client)

func WithEmbedExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.embedExec = exec }
}

func WithGenerateExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.generateExec = exec }
}

// New builds a client for the OpenAI API or any compatible server at baseURL.
func New(apiKey, baseURL, model, embedModel string, opts ...Option) *Client {
	cfg := sdk.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	c := &Client{
		api:        sdk.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

// requestTemperature keeps a configured zero on the wire; the SDK omits a
// literal 0 and the server would fall back to its own default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := make([]sdk.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := sdk.ChatCompletionRequest{
		Model:       c.client.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: requestTemperature(req.Temperature),
	}

	resp, err := resilience.Call(ctx, c.client.generateExec, "openai.chat", func(ctx context.Context) (sdk.ChatCompletionResponse, error) {
		return c.client.api.CreateChatCompletion(ctx, chatReq)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapModelError("openai.chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrGeneration, "openai.chat", errors.New("empty completion response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := sdk.EmbeddingRequest{
		Model: sdk.EmbeddingModel(e.client.embedModel),
		Input: texts,
	}

	resp, err := resilience.Call(ctx, e.client.embedExec, "openai.embed", func(ctx context.Context) (sdk.EmbeddingResponse, error) {
		return e.client.api.CreateEmbeddings(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapModelError("openai.embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrGeneration, "openai.embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	// The API may reorder items; Index is authoritative.
	vectors := make([][]float32, len(texts))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			idx = i
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		vectors[idx] = vec
	}
	return vectors, nil
}

func statusCode(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if code := statusCode(err); code != 0 {
		switch code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapModelError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrTemporary) || errors.Is(err, context.Canceled) {
		return err
	}
	class := classifyOpenAIError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrGeneration, operation, err)
}
