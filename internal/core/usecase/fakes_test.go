package usecase

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	created     []*domain.Document
	statusCalls []statusCall
	createErr   error
	getErr      error
	statusErr   error
	processed   map[string]int
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document), processed: make(map[string]int)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	f.created = append(f.created, &copyDoc)
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) List(context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b domain.Document) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *docRepoFake) MarkProcessed(_ context.Context, id string, chunkCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Processed = true
	doc.ChunkCount = chunkCount
	doc.Status = domain.StatusReady
	f.processed[id] = chunkCount
	return nil
}

func (f *docRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	files   map[string]string
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type queueFake struct {
	documentID string
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

// extractorFake returns the body as text so tests control the content.
type extractorFake struct {
	err error
}

func (f *extractorFake) Extract(_ context.Context, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// lineChunker splits on blank lines.
type lineChunker struct{}

func (lineChunker) Split(text string) []string {
	out := make([]string, 0)
	for part := range strings.SplitSeq(text, "\n\n") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// keywordEmbedder maps text onto fixed axes by keyword presence.
type keywordEmbedder struct {
	keywords []string
	err      error
	calls    int
	drop     bool
}

func (f *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec := make([]float32, len(f.keywords)+1)
		vec[len(f.keywords)] = 0.01
		lower := strings.ToLower(text)
		for i, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				vec[i] = 1
			}
		}
		out = append(out, vec)
	}
	if f.drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type indexFake struct {
	mu        sync.Mutex
	entries   []domain.IndexEntry
	hits      []domain.IndexHit
	insertErr error
	queryErr  error
	deleteErr error
	// partialInsert stores the first entry before failing.
	partialInsert bool
	deletes       []string
}

func (f *indexFake) Insert(_ context.Context, entries []domain.IndexEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		if f.partialInsert && len(entries) > 0 {
			f.entries = append(f.entries, entries[0])
		}
		return f.insertErr
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *indexFake) Query(_ context.Context, _ []float32, topK int) ([]domain.IndexHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	hits := f.hits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *indexFake) Delete(_ context.Context, documentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, documentID)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	kept := f.entries[:0]
	removed := make([]string, 0)
	for _, e := range f.entries {
		if e.Metadata.DocumentID == documentID {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *indexFake) Get(_ context.Context, documentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0)
	for _, e := range f.entries {
		if e.Metadata.DocumentID == documentID {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

type historyFake struct {
	records   []domain.SearchRecord
	createErr error
	nextID    int64
	since     time.Time
}

func (f *historyFake) Create(_ context.Context, record *domain.SearchRecord) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	rec := *record
	rec.ID = f.nextID
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *historyFake) ListByUser(_ context.Context, userID string, limit int) ([]domain.SearchRecord, error) {
	out := make([]domain.SearchRecord, 0)
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *historyFake) Delete(_ context.Context, userID string, id int64) error {
	for i, r := range f.records {
		if r.ID == id && r.UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrSearchNotFound
}

func (f *historyFake) Stats(_ context.Context, userID string, since time.Time) (domain.SearchStats, error) {
	f.since = since
	var stats domain.SearchStats
	var total int64
	for _, r := range f.records {
		if r.UserID != userID {
			continue
		}
		stats.TotalSearches++
		total += r.ResponseTimeMS
		if !r.CreatedAt.Before(since) {
			stats.RecentSearches++
		}
	}
	if stats.TotalSearches > 0 {
		stats.AverageResponseTime = float64(total) / float64(stats.TotalSearches)
	}
	return stats, nil
}

type completerFake struct {
	answer string
	err    error
	req    domain.CompletionRequest
}

func (f *completerFake) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

var (
	adminUser   = domain.Identity{UserID: "admin", Role: domain.RoleAdmin}
	regularUser = domain.Identity{UserID: "u1", Role: domain.RoleUser}
)
