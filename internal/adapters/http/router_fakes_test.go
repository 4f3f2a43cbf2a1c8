package httpadapter

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

const (
	adminToken = "admin-token"
	userToken  = "user-token"
)

type authFake struct{}

func (authFake) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	switch token {
	case adminToken:
		return domain.Identity{UserID: "root", Role: domain.RoleAdmin}, nil
	case userToken:
		return domain.Identity{UserID: "u1", Role: domain.RoleUser}, nil
	default:
		return domain.Identity{}, domain.ErrUnauthorized
	}
}

type uploaderFake struct {
	err      error
	filename string
	body     string
	owner    domain.Identity
}

func (f *uploaderFake) Upload(_ context.Context, owner domain.Identity, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename, f.body, f.owner = filename, string(raw), owner
	now := time.Now().UTC()
	return &domain.Document{
		ID:         "doc-1",
		Filename:   filename,
		MimeType:   mimeType,
		SizeBytes:  size,
		UploadedBy: owner.UserID,
		Status:     domain.StatusUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

type processorFake struct {
	result domain.ProcessResult
	err    error
	force  bool
}

func (f *processorFake) ProcessByID(_ context.Context, id string, force bool) (domain.ProcessResult, error) {
	f.force = force
	if f.err != nil {
		return domain.ProcessResult{}, f.err
	}
	res := f.result
	res.DocumentID = id
	return res, nil
}

type documentsFake struct {
	err     error
	deleted string
}

func (f *documentsFake) List(context.Context) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Document{{ID: "doc-2"}, {ID: "doc-1"}}, nil
}

func (f *documentsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.pdf", Status: domain.StatusReady}, nil
}

func (f *documentsFake) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = id
	return nil
}

type answererFake struct {
	result *domain.AnswerResult
	err    error
	user   domain.Identity
}

func (f *answererFake) Ask(_ context.Context, user domain.Identity, query string) (*domain.AnswerResult, error) {
	f.user = user
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AnswerResult{Query: query, Answer: "ok", Sources: []domain.Evidence{}}, nil
}

type historyServiceFake struct {
	limit     int
	deletedID int64
	err       error
}

func (f *historyServiceFake) History(_ context.Context, _ domain.Identity, limit int) ([]domain.SearchRecord, error) {
	f.limit = limit
	return []domain.SearchRecord{{ID: 1, Query: "q", Sources: []domain.Evidence{}}}, nil
}

func (f *historyServiceFake) DeleteHistory(_ context.Context, _ domain.Identity, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deletedID = id
	return nil
}

func (f *historyServiceFake) Stats(context.Context, domain.Identity) (domain.SearchStats, error) {
	return domain.SearchStats{TotalSearches: 3, AverageResponseTime: 120, RecentSearches: 1}, nil
}

type samplesFake struct{}

func (samplesFake) SeedSamples(_ context.Context, owner domain.Identity) (int, error) {
	if !owner.IsAdmin() {
		return 0, domain.ErrForbidden
	}
	return 5, nil
}

type routerFixture struct {
	uploader  *uploaderFake
	processor *processorFake
	documents *documentsFake
	answerer  *answererFake
	history   *historyServiceFake
	handler   http.Handler
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		uploader:  &uploaderFake{},
		processor: &processorFake{},
		documents: &documentsFake{},
		answerer:  &answererFake{},
		history:   &historyServiceFake{},
	}
	f.handler = NewRouter(config.Config{MaxUploadBytes: 1 << 20}, Services{
		Uploader:  f.uploader,
		Processor: f.processor,
		Documents: f.documents,
		Answerer:  f.answerer,
		History:   f.history,
		Samples:   samplesFake{},
		Auth:      authFake{},
	}, nil).Handler()
	return f
}
