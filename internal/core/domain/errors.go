package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSearchNotFound   = errors.New("search history item not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrTemporary        = errors.New("temporary failure")

	ErrCorruptDocument  = errors.New("invalid or corrupted PDF file")
	ErrExtraction       = errors.New("pdf text extraction failed")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrGeneration       = errors.New("answer generation failed")
)

// Specialized input errors match ErrInvalidInput through errors.Is.
var (
	ErrEmptyQuery = fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	ErrNotAPDF    = fmt.Errorf("%w: file is not a PDF document", ErrInvalidInput)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
