package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client

	embedExec    *resilience.Executor
	generateExec *resilience.Executor
}

type Option func(*Client)

// WithEmbedExecutor routes embedding calls through exec.
func WithEmbedExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.embedExec = exec }
}

// WithGenerateExecutor routes generation calls through exec.
func WithGenerateExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.generateExec = exec }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
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

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	vectors, err := resilience.Call(ctx, e.client.embedExec, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapModelError("ollama.embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(domain.ErrGeneration, "ollama.embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}

type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	options := map[string]any{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	reqBody := map[string]any{
		"model":   c.client.genModel,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}
	if strings.TrimSpace(req.System) != "" {
		reqBody["system"] = req.System
	}

	text, err := resilience.Call(ctx, c.client.generateExec, "ollama.generate", func(ctx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return response.Response, nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapModelError("ollama.generate", err)
	}
	return strings.TrimSpace(text), nil
}
