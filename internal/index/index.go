package index

import (
	"math"
	"sort"

	"docchat/internal/domain"
)

// userIndex is one user's in-memory index: an embedding matrix and the
// records mapped to it. Invariants held at all times:
//
//	len(vectors) == len(records)
//	records[i].VectorID == i
//	len(vectors[i]) == dim
type userIndex struct {
	dim     int
	vectors [][]float64
	records []domain.VectorRecord
}

func newUserIndex() *userIndex {
	return &userIndex{}
}

func (x *userIndex) size() int { return len(x.vectors) }

// search returns up to k nearest records by Euclidean distance, ascending,
// ties broken by lower vector id.
func (x *userIndex) search(query []float64, k int) []domain.SearchResult {
	if k <= 0 || len(x.vectors) == 0 {
		return nil
	}
	type scored struct {
		idx  int
		dist float64
	}
	scoreds := make([]scored, len(x.vectors))
	for i, vec := range x.vectors {
		scoreds[i] = scored{idx: i, dist: euclidean(query, vec)}
	}
	sort.Slice(scoreds, func(a, b int) bool {
		if scoreds[a].dist != scoreds[b].dist {
			return scoreds[a].dist < scoreds[b].dist
		}
		return scoreds[a].idx < scoreds[b].idx
	})
	if k > len(scoreds) {
		k = len(scoreds)
	}
	out := make([]domain.SearchResult, k)
	for i := 0; i < k; i++ {
		s := scoreds[i]
		out[i] = domain.SearchResult{Record: x.records[s.idx], Distance: s.dist}
	}
	return out
}

// rebuildWithout re-creates the index from scratch, dropping every record
// of the given document. Surviving records keep their retained embeddings
// and are reassigned sequential vector ids in the same relative order.
func (x *userIndex) rebuildWithout(documentID int64) *userIndex {
	rebuilt := &userIndex{dim: x.dim}
	for i, rec := range x.records {
		if rec.DocumentID == documentID {
			continue
		}
		rec.VectorID = len(rebuilt.vectors)
		rec.Embedding = x.vectors[i]
		rebuilt.vectors = append(rebuilt.vectors, x.vectors[i])
		rebuilt.records = append(rebuilt.records, rec)
	}
	return rebuilt
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
