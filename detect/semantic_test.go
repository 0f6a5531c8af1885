package detect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/detect"
	"github.com/m-mizutani/gt"
)

// embeddingClient implements cogito.LLMClient returning a fixed embedding.
type embeddingClient struct {
	embedding []float64
	err       error
}

func (c *embeddingClient) NewSession(ctx context.Context, options ...cogito.SessionOption) (cogito.Session, error) {
	return nil, errors.New("sessions not supported in this test")
}

func (c *embeddingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = c.embedding
	}
	return out, nil
}

func TestSemanticStrategy(t *testing.T) {
	ctx := context.Background()

	index := detect.NewMemoryIndex()
	gt.NoError(t, index.Add(&detect.Example{
		ID:              "ex-1",
		Query:           "list facility ABC",
		Complexity:      0.1,
		ReasoningPasses: 1,
	}, []float64{1, 0, 0}))
	gt.NoError(t, index.Add(&detect.Example{
		ID:              "ex-2",
		Query:           "analyze all incidents",
		Complexity:      0.8,
		ReasoningPasses: 3,
	}, []float64{0, 1, 0}))

	t.Run("close match returns stored labels", func(t *testing.T) {
		client := &embeddingClient{embedding: []float64{0.95, 0.05, 0}}
		strategy := detect.NewSemanticStrategy(client, index)

		result, err := strategy.Detect(ctx, detect.Context{RequestID: "req-1", Query: "list facility XYZ"})
		gt.NoError(t, err)
		gt.Equal(t, 0.1, result.Score)
		gt.Equal(t, 1, result.ReasoningPasses)
		gt.Equal(t, "ex-1", result.Metadata["matched_example"])
	})

	t.Run("usage counts only on acceptance", func(t *testing.T) {
		client := &embeddingClient{embedding: []float64{0, 1, 0}}
		strategy := detect.NewSemanticStrategy(client, index)

		result, err := strategy.Detect(ctx, detect.Context{RequestID: "req-2", Query: "analyze every incident"})
		gt.NoError(t, err)

		// A threshold match alone does not touch the counter.
		matches, err := index.Query(ctx, []float64{0, 1, 0}, 1, 0.9)
		gt.NoError(t, err)
		gt.Equal(t, 1, len(matches))
		gt.Equal(t, 0, matches[0].Example.UsageCount)

		gt.NoError(t, strategy.RecordAcceptance(ctx, result))
		matches, err = index.Query(ctx, []float64{0, 1, 0}, 1, 0.9)
		gt.NoError(t, err)
		gt.Equal(t, 1, matches[0].Example.UsageCount)
	})

	t.Run("distant query fails with no confident match", func(t *testing.T) {
		client := &embeddingClient{embedding: []float64{0, 0, 1}}
		strategy := detect.NewSemanticStrategy(client, index)

		_, err := strategy.Detect(ctx, detect.Context{RequestID: "req-3", Query: "unrelated"})
		gt.Error(t, err)
		gt.B(t, errors.Is(err, detect.ErrNoConfidentMatch)).True()
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		client := &embeddingClient{err: errors.New("quota exceeded")}
		strategy := detect.NewSemanticStrategy(client, index)

		_, err := strategy.Detect(ctx, detect.Context{RequestID: "req-4", Query: "anything"})
		gt.Error(t, err)
	})

	t.Run("unusable without client or index", func(t *testing.T) {
		gt.B(t, detect.NewSemanticStrategy(nil, index).CanUse(ctx, detect.Context{})).False()
		client := &embeddingClient{embedding: []float64{1, 0, 0}}
		gt.B(t, detect.NewSemanticStrategy(client, nil).CanUse(ctx, detect.Context{})).False()
		gt.B(t, detect.NewSemanticStrategy(client, index).CanUse(ctx, detect.Context{})).True()
	})
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("query orders by similarity", func(t *testing.T) {
		index := detect.NewMemoryIndex()
		gt.NoError(t, index.Add(&detect.Example{ID: "a", Complexity: 0.1}, []float64{1, 0}))
		gt.NoError(t, index.Add(&detect.Example{ID: "b", Complexity: 0.2}, []float64{0.7, 0.7}))
		gt.NoError(t, index.Add(&detect.Example{ID: "c", Complexity: 0.3}, []float64{0, 1}))

		matches, err := index.Query(ctx, []float64{1, 0}, 2, 0.1)
		gt.NoError(t, err)
		gt.Equal(t, 2, len(matches))
		gt.Equal(t, "a", matches[0].Example.ID)
		gt.Equal(t, "b", matches[1].Example.ID)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		index := detect.NewMemoryIndex()
		gt.Error(t, index.Add(nil, []float64{1}))
		gt.Error(t, index.Add(&detect.Example{}, []float64{1}))
		gt.Error(t, index.Add(&detect.Example{ID: "x"}, nil))
		gt.Error(t, index.MarkUsed(ctx, "missing"))
	})
}
