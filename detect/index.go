package detect

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// MemoryIndex is an in-memory VectorIndex backed by brute-force cosine
// similarity. It is suitable for the modest example counts a classifier
// accumulates; larger corpora belong in a dedicated vector store.
type MemoryIndex struct {
	mu         sync.RWMutex
	examples   map[string]*Example
	embeddings map[string][]float64
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		examples:   map[string]*Example{},
		embeddings: map[string][]float64{},
	}
}

// Add stores an example with its embedding. An existing example with the
// same ID is replaced.
func (x *MemoryIndex) Add(example *Example, embedding []float64) error {
	if example == nil || example.ID == "" {
		return goerr.New("example must have an ID")
	}
	if len(embedding) == 0 {
		return goerr.New("embedding must not be empty", goerr.V("example_id", example.ID))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	copied := *example
	x.examples[example.ID] = &copied
	x.embeddings[example.ID] = append([]float64(nil), embedding...)
	return nil
}

func (x *MemoryIndex) Query(ctx context.Context, embedding []float64, topK int, minScore float64) ([]*Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var matches []*Match
	for id, stored := range x.embeddings {
		sim := cosineSimilarity(embedding, stored)
		if sim < minScore {
			continue
		}
		copied := *x.examples[id]
		matches = append(matches, &Match{Example: &copied, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (x *MemoryIndex) MarkUsed(ctx context.Context, exampleID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	example, ok := x.examples[exampleID]
	if !ok {
		return goerr.New("unknown example", goerr.V("example_id", exampleID))
	}
	example.UsageCount++
	return nil
}

// Len reports the number of stored examples.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.examples)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
