package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	DefaultMaxTokens         = 1000
	DefaultTemperature       = float32(0.3)
	excerptRunes             = 200
	generationFailurePrefix  = "An error occurred while generating the answer: "
	synthesizerSystemMessage = "You are a patent document expert. Give accurate, helpful answers based only on the documents you are given."
)

type Synthesizer struct {
	completer   ports.Completer
	maxTokens   int
	temperature float32
}

// NewSynthesizer builds the answer step. A nil completer switches to the
// deterministic development answer.
func NewSynthesizer(completer ports.Completer, maxTokens int, temperature float32) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	return &Synthesizer{completer: completer, maxTokens: maxTokens, temperature: temperature}
}

// Synthesize always returns an answer; model failures become the answer text.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence []domain.Evidence) string {
	if s.completer == nil {
		return developmentAnswer(query, evidence)
	}

	answer, err := s.completer.Complete(ctx, domain.CompletionRequest{
		System:      synthesizerSystemMessage,
		Prompt:      buildGroundingPrompt(query, evidence),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		slog.Warn("answer_generation_failed", "error", err)
		return generationFailurePrefix + err.Error()
	}
	return strings.TrimSpace(answer)
}

func buildGroundingPrompt(query string, evidence []domain.Evidence) string {
	blocks := make([]string, 0, len(evidence))
	for _, e := range evidence {
		blocks = append(blocks, fmt.Sprintf("Document: %s\nContent: %s", e.Filename, e.Text))
	}

	return fmt.Sprintf(`Answer the question using the documents below.

Documents:
%s

Question: %s

When answering:
1. Base the answer only on the content of the documents above.
2. Do not speculate about anything the documents do not contain.
3. Explain technical and patent terminology in plain language.
4. Name the source document for every claim you make.

Answer:`, strings.Join(blocks, "\n\n"), query)
}

func developmentAnswer(query string, evidence []domain.Evidence) string {
	filenames := make([]string, 0, len(evidence))
	for _, e := range evidence {
		filenames = append(filenames, e.Filename)
	}
	top := "No related documents were found."
	if len(evidence) > 0 {
		top = truncateRunes(evidence[0].Text, excerptRunes) + "..."
	}

	return fmt.Sprintf(`[development mode] Answer to the question '%s'.

Related information was found in these documents:
%s

In production a language model analyses these documents and writes a detailed answer.

Top result:
%s
`, query, strings.Join(filenames, ", "), top)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
