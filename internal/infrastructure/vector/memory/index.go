// Package memory is an in-process VectorIndex using brute-force cosine
// distance. Contents are lost on restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type record struct {
	entry domain.IndexEntry
	norm  float64
	seq   uint64
}

type Index struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]*record
	nextSeq   uint64
}

func NewIndex() *Index {
	return &Index{records: make(map[string]*record)}
}

// Insert adds entries, replacing any entry with the same id.
func (x *Index) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for _, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return domain.WrapError(domain.ErrInvalidInput, "memory.insert",
				fmt.Errorf("entry %s has vector size %d, expected %d", e.ID, len(e.Vector), dim))
		}
	}
	x.dimension = dim

	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		e.Vector = vec
		x.nextSeq++
		x.records[e.ID] = &record{entry: e, norm: norm(vec), seq: x.nextSeq}
	}
	return nil
}

func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.records) == 0 {
		return nil, nil
	}
	if len(vector) != x.dimension {
		return nil, domain.WrapError(domain.ErrInvalidInput, "memory.query",
			fmt.Errorf("query vector size %d, expected %d", len(vector), x.dimension))
	}

	type scored struct {
		rec      *record
		distance float64
	}
	qNorm := norm(vector)
	all := make([]scored, 0, len(x.records))
	for _, rec := range x.records {
		all = append(all, scored{rec: rec, distance: cosineDistance(vector, qNorm, rec.entry.Vector, rec.norm)})
	}
	slices.SortFunc(all, func(a, b scored) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.seq, b.rec.seq)
	})
	if topK > len(all) {
		topK = len(all)
	}

	hits := make([]domain.IndexHit, 0, topK)
	for _, s := range all[:topK] {
		hits = append(hits, domain.IndexHit{
			ID:       s.rec.entry.ID,
			Text:     s.rec.entry.Text,
			Metadata: s.rec.entry.Metadata,
			Distance: s.distance,
		})
	}
	return hits, nil
}

func (x *Index) Get(ctx context.Context, documentID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.idsFor(documentID), nil
}

func (x *Index) Delete(ctx context.Context, documentID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := x.idsFor(documentID)
	for _, id := range ids {
		delete(x.records, id)
	}
	return ids, nil
}

// idsFor returns matching ids in insertion order. Caller holds the lock.
func (x *Index) idsFor(documentID string) []string {
	matched := make([]*record, 0)
	for _, rec := range x.records {
		if rec.entry.Metadata.DocumentID == documentID {
			matched = append(matched, rec)
		}
	}
	slices.SortFunc(matched, func(a, b *record) int { return cmp.Compare(a.seq, b.seq) })
	ids := make([]string, 0, len(matched))
	for _, rec := range matched {
		ids = append(ids, rec.entry.ID)
	}
	return ids
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(aNorm*bNorm)
}
