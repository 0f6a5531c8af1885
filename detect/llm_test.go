package detect_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/detect"
	"github.com/m-mizutani/gt"
)

type scriptedClient struct {
	response string
	err      error
}

func (c *scriptedClient) NewSession(ctx context.Context, options ...cogito.SessionOption) (cogito.Session, error) {
	return &scriptedSession{client: c}, nil
}

func (c *scriptedClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

type scriptedSession struct {
	client *scriptedClient
}

func (s *scriptedSession) GenerateContent(ctx context.Context, input ...cogito.Input) (*cogito.Response, error) {
	if s.client.err != nil {
		return nil, s.client.err
	}
	return &cogito.Response{Texts: []string{s.client.response}}, nil
}

func TestLLMStrategy(t *testing.T) {
	ctx := context.Background()
	dctx := detect.Context{RequestID: "req-1", Query: "compare all facility budgets"}

	t.Run("structured verdict", func(t *testing.T) {
		client := &scriptedClient{
			response: `{"complexity": 0.75, "confidence": 0.9, "explanation": "multi-entity comparison"}`,
		}
		strategy := detect.NewLLMStrategy(client)

		result, err := strategy.Detect(ctx, dctx)
		gt.NoError(t, err)
		gt.Equal(t, 0.75, result.Score)
		gt.Equal(t, 3, result.ReasoningPasses)
		gt.Equal(t, 0.9, result.Confidence)
		gt.Equal(t, "multi-entity comparison", result.Metadata["explanation"])
	})

	t.Run("judge assigns its own pass budget", func(t *testing.T) {
		client := &scriptedClient{
			response: `{"complexity": 0.2, "reasoning_passes": 3, "confidence": 0.9, "explanation": "short but subtle"}`,
		}
		strategy := detect.NewLLMStrategy(client)

		// A low score with an explicit pass count keeps the judge's count
		// instead of the threshold mapping.
		result, err := strategy.Detect(ctx, dctx)
		gt.NoError(t, err)
		gt.Equal(t, 0.2, result.Score)
		gt.Equal(t, 3, result.ReasoningPasses)
	})

	t.Run("out of range pass budget falls back to thresholds", func(t *testing.T) {
		client := &scriptedClient{
			response: "complexity: 0.2\nreasoning passes: 9\nconfidence: 0.9",
		}
		strategy := detect.NewLLMStrategy(client)

		result, err := strategy.Detect(ctx, dctx)
		gt.NoError(t, err)
		gt.Equal(t, 1, result.ReasoningPasses)
	})

	t.Run("free text fallback parsing", func(t *testing.T) {
		client := &scriptedClient{
			response: "complexity: 0.3\nconfidence: 0.8\nexplanation: simple lookup",
		}
		strategy := detect.NewLLMStrategy(client)

		result, err := strategy.Detect(ctx, dctx)
		gt.NoError(t, err)
		gt.Equal(t, 0.3, result.Score)
		gt.Equal(t, 1, result.ReasoningPasses)
	})

	t.Run("free text pass count is honored", func(t *testing.T) {
		client := &scriptedClient{
			response: "complexity: 0.3\nreasoning passes: 2\nconfidence: 0.8",
		}
		strategy := detect.NewLLMStrategy(client)

		result, err := strategy.Detect(ctx, dctx)
		gt.NoError(t, err)
		gt.Equal(t, 2, result.ReasoningPasses)
	})

	t.Run("unparseable response is an error", func(t *testing.T) {
		client := &scriptedClient{response: "I cannot rate this."}
		strategy := detect.NewLLMStrategy(client)

		_, err := strategy.Detect(ctx, dctx)
		gt.Error(t, err)
	})

	t.Run("nil client is unusable", func(t *testing.T) {
		strategy := detect.NewLLMStrategy(nil)
		gt.B(t, strategy.CanUse(ctx, detect.Context{})).False()
		_, err := strategy.Detect(ctx, detect.Context{})
		gt.Error(t, err)
	})
}
