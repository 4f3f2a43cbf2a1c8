package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMiddlewareNormalizesDocumentPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/documents/abc/process", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `path="/v1/documents/{document_id}/process"`) || !strings.Contains(out, `status="202"`) {
		t.Fatalf("expected normalized path label, got:\n%s", out)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/documents/samples":   "/v1/documents/samples",
		"/v1/documents/x":         "/v1/documents/{document_id}",
		"/v1/search/history/12":   "/v1/search/history/{id}",
		"/v1/search/ask":          "/v1/search/ask",
		"/v1/documents/x/process": "/v1/documents/{document_id}/process",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObserveAskCountsNoContext(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveAsk(context.Background(), "success", time.Second, 0)
	m.ObserveAsk(context.Background(), "error", time.Second, 0)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `pdfrag_rag_no_context_total{service="api"} 1`) {
		t.Fatalf("expected one no-context question, got:\n%s", out)
	}
	if !strings.Contains(out, `pdfrag_rag_ask_total{result="error",service="api"} 1`) {
		t.Fatalf("expected error counter, got:\n%s", out)
	}
}

func TestWorkerMetricsRecordsProcessAndLag(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartDocument()
	m.ObserveProcess(context.Background(), "success", 2*time.Second, 12)
	m.FinishDocument()
	m.ObserveQueueLag(-time.Second)
	m.ObserveQueueLag(time.Second)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `pdfrag_worker_document_process_total{result="success",service="worker"} 1`) {
		t.Fatalf("expected success counter, got:\n%s", out)
	}
	if !strings.Contains(out, `pdfrag_worker_queue_lag_seconds_count{service="worker"} 1`) {
		t.Fatalf("expected one lag observation, got:\n%s", out)
	}
	if !strings.Contains(out, `pdfrag_worker_document_process_in_flight{service="worker"} 0`) {
		t.Fatalf("expected in-flight back to zero, got:\n%s", out)
	}
}
