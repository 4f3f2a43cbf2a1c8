package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

var pdfHeader = []byte("%PDF")

// pageSource is the subset of a parsed PDF the extractor reads.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

type Extractor struct {
	open func(raw []byte) (pageSource, error)
}

func NewExtractor() *Extractor {
	return &Extractor{open: openLedongthuc}
}

// Extract returns all page texts, each followed by a newline. It never
// returns partial text: any page failure fails the whole document.
func (e *Extractor) Extract(ctx context.Context, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf", err)
	}
	if !bytes.HasPrefix(raw, pdfHeader) {
		return "", domain.WrapError(domain.ErrNotAPDF, "extract text", errors.New("missing %PDF header"))
	}

	doc, err := e.openSafe(raw)
	if err != nil {
		return "", classifyReaderError("open pdf", err)
	}

	var out strings.Builder
	for num := 1; num <= doc.NumPage(); num++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.PageText(num)
		if err != nil {
			return "", classifyReaderError(fmt.Sprintf("extract page %d", num), err)
		}
		out.WriteString(text)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (e *Extractor) openSafe(raw []byte) (doc pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", domain.ErrCorruptDocument, r)
		}
	}()
	return e.open(raw)
}

func classifyReaderError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrCorruptDocument) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		strings.Contains(msg, "unexpected eof"),
		strings.Contains(msg, "missing %%eof"),
		strings.Contains(msg, "eof marker"):
		return domain.WrapError(domain.ErrCorruptDocument, operation, err)
	case strings.Contains(msg, "invalid header"):
		return domain.WrapError(domain.ErrNotAPDF, operation, err)
	default:
		return domain.WrapError(domain.ErrExtraction, operation, err)
	}
}

type ledongthucSource struct {
	reader *pdf.Reader
}

func openLedongthuc(raw []byte) (pageSource, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	return &ledongthucSource{reader: reader}, nil
}

func (s *ledongthucSource) NumPage() int {
	return s.reader.NumPage()
}

func (s *ledongthucSource) PageText(num int) (string, error) {
	page := s.reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
