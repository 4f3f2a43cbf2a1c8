package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

var sensorEvidence = []domain.Evidence{
	{Filename: "자율주행 센서 퓨전.pdf", Text: "라이다, 카메라, 레이더 센서를 융합한다."},
	{Filename: "bms.pdf", Text: "Battery management."},
}

func TestSynthesizeBuildsGroundedPrompt(t *testing.T) {
	completer := &completerFake{answer: "  grounded answer \n"}
	s := NewSynthesizer(completer, 0, -1)

	got := s.Synthesize(context.Background(), "센서 융합 방법은?", sensorEvidence)
	if got != "grounded answer" {
		t.Fatalf("expected trimmed answer, got %q", got)
	}
	req := completer.req
	if req.MaxTokens != DefaultMaxTokens || req.Temperature != DefaultTemperature {
		t.Fatalf("unexpected params: %+v", req)
	}
	if req.System == "" {
		t.Fatalf("expected system message")
	}
	for _, want := range []string{
		"Document: 자율주행 센서 퓨전.pdf\nContent: 라이다, 카메라, 레이더 센서를 융합한다.",
		"Document: bms.pdf",
		"Question: 센서 융합 방법은?",
		"4. Name the source document",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, req.Prompt)
		}
	}
}

func TestSynthesizeKeepsExplicitParams(t *testing.T) {
	completer := &completerFake{answer: "ok"}
	NewSynthesizer(completer, 200, 0).Synthesize(context.Background(), "q", nil)
	if completer.req.MaxTokens != 200 || completer.req.Temperature != 0 {
		t.Fatalf("unexpected params: %+v", completer.req)
	}
}

func TestSynthesizeReportsModelError(t *testing.T) {
	s := NewSynthesizer(&completerFake{err: errors.New("rate limited")}, 0, -1)
	got := s.Synthesize(context.Background(), "q", sensorEvidence)
	if got != generationFailurePrefix+"rate limited" {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestSynthesizeDevelopmentAnswer(t *testing.T) {
	long := strings.Repeat("센", 300)
	s := NewSynthesizer(nil, 0, -1)

	got := s.Synthesize(context.Background(), "질문", []domain.Evidence{{Filename: "a.pdf", Text: long}, {Filename: "b.pdf"}})
	if !strings.Contains(got, "'질문'") || !strings.Contains(got, "a.pdf, b.pdf") {
		t.Fatalf("expected query and filenames in answer, got %q", got)
	}
	if !strings.Contains(got, strings.Repeat("센", excerptRunes)+"...") || strings.Contains(got, strings.Repeat("센", excerptRunes+1)) {
		t.Fatalf("expected excerpt truncated to %d runes", excerptRunes)
	}

	empty := s.Synthesize(context.Background(), "질문", nil)
	if !strings.Contains(empty, "No related documents were found.") {
		t.Fatalf("expected empty marker, got %q", empty)
	}
}

func TestTruncateRunes(t *testing.T) {
	got := truncateRunes("가나다라", 2)
	if got != "가나" || !utf8.ValidString(got) {
		t.Fatalf("truncateRunes() = %q", got)
	}
	if truncateRunes("ab", 5) != "ab" {
		t.Fatalf("short strings must be unchanged")
	}
}
