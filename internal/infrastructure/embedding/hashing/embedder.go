// Package hashing provides a dependency-free embedder based on feature
// hashing of word tokens. It is deterministic and needs no model server,
// which makes it suitable for local runs and tests.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultDimensions = 384

	// tfSaturation bounds the weight of repeated terms like BM25's k1.
	tfSaturation = 1.2
)

type Embedder struct {
	dims int
}

func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dims: dimensions}
}

func (e *Embedder) Dimensions() int {
	return e.dims
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.encode(text))
	}
	return out, nil
}

func (e *Embedder) encode(text string) []float32 {
	termFreq := make(map[string]float64, 32)
	for _, token := range tokenize(text) {
		termFreq[token]++
	}

	vec := make([]float64, e.dims)
	for token, tf := range termFreq {
		sum := hashToken(token)
		idx := int(sum % uint32(e.dims))
		sign := 1.0
		if sum&(1<<31) != 0 {
			sign = -1.0
		}
		vec[idx] += sign * (tf * (tfSaturation + 1.0)) / (tf + tfSaturation)
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

// tokenize lowercases and splits on anything that is not a letter or digit,
// so Hangul and Cyrillic words survive as tokens.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
