// Package samples holds the built-in demo documents.
package samples

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

//go:embed samples.yaml
var builtin []byte

type file struct {
	Documents []domain.SampleDocument `yaml:"documents"`
}

// Builtin returns the embedded sample set.
func Builtin() ([]domain.SampleDocument, error) {
	return Parse(builtin)
}

// Parse decodes a sample set; every entry needs a title and content.
func Parse(raw []byte) ([]domain.SampleDocument, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	out := make([]domain.SampleDocument, 0, len(f.Documents))
	for i, doc := range f.Documents {
		doc.Title = strings.TrimSpace(doc.Title)
		doc.Content = strings.TrimSpace(doc.Content)
		if doc.Title == "" || doc.Content == "" {
			return nil, fmt.Errorf("sample %d: title and content are required", i)
		}
		out = append(out, doc)
	}
	return out, nil
}
