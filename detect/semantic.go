package detect

import (
	"context"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
)

// Example is a labeled query stored in a vector index. Complexity and
// ReasoningPasses are the labels assigned when the example was recorded.
type Example struct {
	ID              string
	Query           string
	Complexity      float64
	ReasoningPasses int
	UsageCount      int
}

// Match is an index hit with its cosine similarity to the probe embedding.
type Match struct {
	Example    *Example
	Similarity float64
}

// VectorIndex looks up labeled examples by embedding similarity.
// Query returns up to topK matches with similarity >= minScore, best first.
// MarkUsed increments the usage counter of a matched example.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float64, topK int, minScore float64) ([]*Match, error)
	MarkUsed(ctx context.Context, exampleID string) error
}

// Similarity thresholds for the semantic strategy.
const (
	semanticAcceptThreshold = 0.75
	semanticHighReliability = 0.90
	semanticTopK            = 3
)

// SemanticStrategy classifies a query by embedding it and finding the most
// similar labeled example in a vector index. It is only usable when both an
// embedding client and an index are configured.
type SemanticStrategy struct {
	llm       cogito.LLMClient
	index     VectorIndex
	dimension int
}

// SemanticStrategyOption configures a SemanticStrategy.
type SemanticStrategyOption func(*SemanticStrategy)

// WithEmbeddingDimension sets the embedding dimension requested from the
// LLM client. Defaults to 256.
func WithEmbeddingDimension(dimension int) SemanticStrategyOption {
	return func(x *SemanticStrategy) {
		x.dimension = dimension
	}
}

// NewSemanticStrategy creates the embedding similarity strategy. Either
// argument may be nil, in which case CanUse reports false.
func NewSemanticStrategy(llm cogito.LLMClient, index VectorIndex, options ...SemanticStrategyOption) *SemanticStrategy {
	strategy := &SemanticStrategy{
		llm:       llm,
		index:     index,
		dimension: 256,
	}
	for _, opt := range options {
		opt(strategy)
	}
	return strategy
}

func (x *SemanticStrategy) Kind() StrategyKind {
	return StrategySemantic
}

func (x *SemanticStrategy) CanUse(ctx context.Context, dctx Context) bool {
	return x.llm != nil && x.index != nil
}

func (x *SemanticStrategy) Priority(dctx Context) int {
	return 30
}

func (x *SemanticStrategy) Detect(ctx context.Context, dctx Context) (*Result, error) {
	if x.llm == nil || x.index == nil {
		return nil, goerr.Wrap(ErrStrategyUnavailable, "semantic strategy requires embedding client and index")
	}

	embeddings, err := x.llm.GenerateEmbedding(ctx, x.dimension, []string{dctx.Query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("request_id", dctx.RequestID))
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("embedding client returned no vectors")
	}

	matches, err := x.index.Query(ctx, embeddings[0], semanticTopK, semanticAcceptThreshold)
	if err != nil {
		return nil, goerr.Wrap(err, "vector index query failed")
	}
	if len(matches) == 0 {
		return nil, goerr.Wrap(ErrNoConfidentMatch, "no example above similarity threshold",
			goerr.V("threshold", semanticAcceptThreshold))
	}

	best := matches[0]
	return &Result{
		Score:           best.Example.Complexity,
		ReasoningPasses: best.Example.ReasoningPasses,
		Confidence:      best.Similarity,
		Metadata: map[string]any{
			"matched_example": best.Example.ID,
			"matched_query":   best.Example.Query,
			"similarity":      best.Similarity,
			"match_count":     len(matches),
		},
	}, nil
}

// RecordAcceptance increments the usage count of the matched example. The
// orchestrator calls this only when the semantic result wins arbitration, so
// counts reflect accepted matches rather than every threshold hit.
func (x *SemanticStrategy) RecordAcceptance(ctx context.Context, result *Result) error {
	if x.index == nil || result == nil {
		return nil
	}
	exampleID, ok := result.Metadata["matched_example"].(string)
	if !ok || exampleID == "" {
		return nil
	}
	return x.index.MarkUsed(ctx, exampleID)
}
