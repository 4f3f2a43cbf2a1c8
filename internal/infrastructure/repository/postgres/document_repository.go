package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, filename, mime_type, storage_path, size_bytes, uploaded_by, processed, chunk_count, status, COALESCE(error_message, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	if err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.SizeBytes, &doc.UploadedBy,
		&doc.Processed, &doc.ChunkCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, size_bytes, uploaded_by, processed, chunk_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.SizeBytes, doc.UploadedBy,
		doc.Processed, doc.ChunkCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// List returns all documents, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(result, "update document status", id)
}

// MarkProcessed records a successful ingestion run.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processed = TRUE, chunk_count = $2, status = $3, error_message = '', updated_at = $4
WHERE id = $1
`, id, chunkCount, string(domain.StatusReady), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	return requireAffected(result, "mark document processed", id)
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(result, "delete document", id)
}

func requireAffected(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
