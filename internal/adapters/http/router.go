package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/metrics"
)

const (
	multipartMemory      = 8 << 20
	multipartOverhead    = 1 << 20
	backpressureMaxWait  = 250 * time.Millisecond
	defaultMaxUploadSize = 50 << 20
)

// Services are the inbound ports served over HTTP.
type Services struct {
	Uploader  ports.DocumentUploader
	Processor ports.DocumentProcessor
	Documents ports.DocumentManager
	Answerer  ports.QuestionAnswerer
	History   ports.SearchHistoryService
	Samples   ports.SampleSeeder
	Auth      ports.Authenticator
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services, m *metrics.HTTPServerMetrics) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadSize
	}
	return &Router{cfg: cfg, svc: svc, metrics: m}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.admin(rt.uploadDocument))
	mux.HandleFunc("GET /v1/documents", rt.admin(rt.listDocuments))
	mux.HandleFunc("POST /v1/documents/samples", rt.admin(rt.seedSamples))
	mux.HandleFunc("GET /v1/documents/{id}", rt.admin(rt.getDocumentByID))
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.admin(rt.deleteDocument))
	mux.HandleFunc("POST /v1/documents/{id}/process", rt.admin(rt.processDocument))

	mux.HandleFunc("POST /v1/search/ask", rt.authenticated(rt.ask))
	mux.HandleFunc("GET /v1/search/history", rt.authenticated(rt.searchHistory))
	mux.HandleFunc("DELETE /v1/search/history/{id}", rt.authenticated(rt.deleteSearch))
	mux.HandleFunc("GET /v1/search/stats", rt.authenticated(rt.searchStats))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureMaxWait, rt.reject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.reject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) reject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.svc.Uploader.Upload(
		r.Context(),
		user,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	docs, err := rt.svc.Documents.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	doc, err := rt.svc.Documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	id := r.PathValue("id")
	if err := rt.svc.Documents.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted", "document_id": id})
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	force, err := parseBoolQuery(r, "force")
	if err != nil {
		writeError(w, http.StatusBadRequest, "force must be a boolean")
		return
	}
	result, err := rt.svc.Processor.ProcessByID(r.Context(), r.PathValue("id"), force)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	message := "document processed"
	if result.AlreadyProcessed {
		message = "already processed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           message,
		"document_id":       result.DocumentID,
		"chunk_count":       result.ChunkCount,
		"already_processed": result.AlreadyProcessed,
	})
}

func (rt *Router) seedSamples(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	added, err := rt.svc.Samples.SeedSamples(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Successfully added %d sample documents", added),
		"count":   added,
	})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := rt.svc.Answerer.Ask(r.Context(), user, req.Query)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if result.Error {
		writeError(w, http.StatusInternalServerError, result.Answer)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) searchHistory(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := rt.svc.History.History(r.Context(), user, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records, "total": len(records)})
}

func (rt *Router) deleteSearch(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "search id must be an integer")
		return
	}
	if err := rt.svc.History.DeleteHistory(r.Context(), user, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "search history deleted"})
}

func (rt *Router) searchStats(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	stats, err := rt.svc.History.Stats(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, publicMessage(status, err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
