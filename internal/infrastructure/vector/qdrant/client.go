package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

const (
	upsertBatchSize = 256
	scrollPageSize  = 256
)

// Client is a VectorIndex backed by a single Qdrant collection using cosine
// distance.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if msg := strings.TrimSpace(e.Body); msg != "" {
		return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, msg)
	}
	return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// PointID maps a passage id to the UUID Qdrant stores it under.
func PointID(passageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(passageID)).String()
}

func (c *Client) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant.insert",
				fmt.Errorf("entry %s has vector size %d, expected %d", e.ID, len(e.Vector), dim))
		}
	}

	if err := c.ensureCollection(ctx, dim); err != nil {
		return wrapIndexError("qdrant.ensure_collection", err)
	}

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))
		points := make([]point, 0, end-start)
		for _, e := range entries[start:end] {
			points = append(points, point{
				ID:     PointID(e.ID),
				Vector: e.Vector,
				Payload: map[string]any{
					"passage_id":  e.ID,
					"document_id": e.Metadata.DocumentID,
					"filename":    e.Metadata.Filename,
					"chunk_index": e.Metadata.ChunkIndex,
					"chunk_text":  e.Metadata.ChunkText,
					"text":        e.Text,
				},
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
		if err := c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
			return wrapIndexError("qdrant.upsert", err)
		}
	}
	return nil
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapIndexError("qdrant.search", err)
	}

	out := make([]domain.IndexHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		meta := payloadMetadata(r.Payload)
		text := getStringPayload(r.Payload, "text")
		if text == "" {
			text = meta.ChunkText
		}
		id := getStringPayload(r.Payload, "passage_id")
		if id == "" {
			id = fmt.Sprintf("%v", r.ID)
		}
		out = append(out, domain.IndexHit{
			ID:       id,
			Text:     text,
			Metadata: meta,
			// Cosine score is a similarity; callers work with distances.
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, documentID string) ([]string, error) {
	ids := make([]string, 0)
	var offset any
	for {
		reqBody := map[string]any{
			"filter":       documentFilter(documentID),
			"limit":        scrollPageSize,
			"with_payload": []string{"passage_id"},
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
		if err := c.do(ctx, http.MethodPost, path, reqBody, &scrollResp, "scroll"); err != nil {
			if isNotFound(err) {
				return ids, nil
			}
			return nil, wrapIndexError("qdrant.scroll", err)
		}
		for _, p := range scrollResp.Result.Points {
			id := getStringPayload(p.Payload, "passage_id")
			if id == "" {
				id = fmt.Sprintf("%v", p.ID)
			}
			ids = append(ids, id)
		}
		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			return ids, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) Delete(ctx context.Context, documentID string) ([]string, error) {
	ids, err := c.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	reqBody := map[string]any{"filter": documentFilter(documentID)}
	if err := c.do(ctx, http.MethodPost, path, reqBody, nil, "delete"); err != nil {
		if isNotFound(err) {
			return []string{}, nil
		}
		return nil, wrapIndexError("qdrant.delete", err)
	}
	return ids, nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": "document_id",
				"match": map[string]any{
					"value": documentID,
				},
			},
		},
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.do(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	// 409 when the collection already exists.
	var statusErr *StatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	return c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(msg)}
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, classifyQdrantError)
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func wrapIndexError(operation string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || domain.IsKind(err, domain.ErrIndexUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrIndexUnavailable, operation, err)
}

func payloadMetadata(payload map[string]any) domain.PassageMetadata {
	return domain.PassageMetadata{
		DocumentID: getStringPayload(payload, "document_id"),
		Filename:   getStringPayload(payload, "filename"),
		ChunkIndex: getIntPayload(payload, "chunk_index"),
		ChunkText:  getStringPayload(payload, "chunk_text"),
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
