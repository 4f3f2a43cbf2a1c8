package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func doRequest(h http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload["error"]
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{domain.ErrNotAPDF, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("x")), http.StatusNotFound},
		{domain.ErrSearchNotFound, http.StatusNotFound},
		{domain.ErrCorruptDocument, http.StatusUnprocessableEntity},
		{domain.ErrExtraction, http.StatusUnprocessableEntity},
		{domain.ErrTemporary, http.StatusServiceUnavailable},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{domain.ErrGeneration, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(fmt.Errorf("op: %w", tc.err)); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRequiresBearerToken(t *testing.T) {
	f := newRouterFixture()
	res := doRequest(f.handler, http.MethodGet, "/v1/search/stats", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	res = doRequest(f.handler, http.MethodGet, "/v1/search/stats", "bogus", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.Code)
	}
}

func TestDocumentManagementRequiresAdmin(t *testing.T) {
	f := newRouterFixture()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/documents"},
		{http.MethodDelete, "/v1/documents/doc-1"},
		{http.MethodPost, "/v1/documents/doc-1/process"},
		{http.MethodPost, "/v1/documents/samples"},
	} {
		res := doRequest(f.handler, tc.method, tc.path, userToken, nil)
		if res.Code != http.StatusForbidden {
			t.Fatalf("%s %s expected 403, got %d", tc.method, tc.path, res.Code)
		}
	}
	if f.documents.deleted != "" {
		t.Fatalf("non-admin must not delete")
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	f := newRouterFixture()
	f.documents.err = domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))

	res := doRequest(f.handler, http.MethodGet, "/v1/documents/missing", adminToken, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestAskEmptyQueryReturns400(t *testing.T) {
	f := newRouterFixture()
	res := doRequest(f.handler, http.MethodPost, "/v1/search/ask", userToken, []byte(`{"query":"  "}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskErrorResultReturns500WithAnswerText(t *testing.T) {
	f := newRouterFixture()
	f.answerer.result = &domain.AnswerResult{Answer: "An error occurred while processing the question: index down", Error: true}

	res := doRequest(f.handler, http.MethodPost, "/v1/search/ask", userToken, []byte(`{"query":"q"}`))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := decodeError(t, res); got != f.answerer.result.Answer {
		t.Fatalf("expected answer text as error, got %q", got)
	}
}

func TestUnclassifiedErrorsHideDetails(t *testing.T) {
	f := newRouterFixture()
	f.documents.err = errors.New("pq: password authentication failed")

	res := doRequest(f.handler, http.MethodGet, "/v1/documents", adminToken, nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := decodeError(t, res); got != "internal server error" {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestDeleteSearchValidatesID(t *testing.T) {
	f := newRouterFixture()
	res := doRequest(f.handler, http.MethodDelete, "/v1/search/history/abc", userToken, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}

	f.history.err = domain.ErrSearchNotFound
	res = doRequest(f.handler, http.MethodDelete, "/v1/search/history/9", userToken, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
