package chunking

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	// MinChunkChars is the retention threshold: shorter passages are dropped.
	MinChunkChars = 50
)

// Splitter packs period-terminated sentences into length-bounded chunks.
// Lengths are measured in runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	return slices.Collect(s.Chunks(text))
}

// Chunks yields retained chunks lazily. A sentence longer than ChunkSize is
// never cut; it closes the buffer on the following sentence.
func (s *Splitter) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		emit := func(chunk string) bool {
			chunk = strings.TrimSpace(chunk)
			if utf8.RuneCountInString(chunk) <= MinChunkChars {
				return true
			}
			return yield(chunk)
		}

		var current strings.Builder
		currentLen := 0
		for sentence := range strings.SplitSeq(text, ".") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			sentenceLen := utf8.RuneCountInString(sentence)

			if currentLen+sentenceLen < s.ChunkSize {
				current.WriteString(sentence)
				current.WriteString(". ")
				currentLen += sentenceLen + 2
				continue
			}

			seed := ""
			if currentLen > 0 {
				closed := current.String()
				if !emit(closed) {
					return
				}
				seed = tailRunes(closed, s.Overlap)
			}
			current.Reset()
			current.WriteString(seed)
			current.WriteString(sentence)
			current.WriteString(". ")
			currentLen = utf8.RuneCountInString(seed) + sentenceLen + 2
		}

		if currentLen > 0 {
			emit(current.String())
		}
	}
}

// tailRunes returns the last n runes of s, or s itself when it is not longer.
func tailRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
