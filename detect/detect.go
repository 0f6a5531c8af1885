// Package detect determines the complexity of a user query and the number of
// reasoning passes it deserves. Three strategies contribute: a semantic
// strategy backed by vector similarity over stored examples, an always-usable
// keyword heuristic, and an LLM judgment used as a tie-breaker. The
// Orchestrator arbitrates between them.
package detect

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrStrategyUnavailable means a strategy cannot run in the current
	// configuration (e.g. no LLM credentials). Non-fatal; the orchestrator
	// falls through.
	ErrStrategyUnavailable = goerr.New("detection strategy unavailable")

	// ErrNoConfidentMatch means the semantic strategy found no stored example
	// above its similarity threshold. This is a deliberate signal, not a
	// low-confidence guess, so the orchestrator can fall through.
	ErrNoConfidentMatch = goerr.New("no confident semantic match")
)

// StrategyKind is the closed set of detection strategies.
type StrategyKind string

const (
	StrategySemantic StrategyKind = "semantic"
	StrategyKeyword  StrategyKind = "keyword"
	StrategyLLM      StrategyKind = "llm"
)

// Context carries one detection request through the strategy chain. It is
// passed by value and extended, never mutated in place: each strategy's
// result is recorded by the orchestrator on its own copy.
type Context struct {
	RequestID string
	Query     string

	// Results of strategies that already ran, keyed by strategy kind.
	// Populated by the orchestrator so later strategies (the LLM judge) can
	// see earlier opinions.
	Results map[StrategyKind]*Result
}

// withResult returns a copy of the context extended with one result.
func (c Context) withResult(kind StrategyKind, result *Result) Context {
	results := make(map[StrategyKind]*Result, len(c.Results)+1)
	for k, v := range c.Results {
		results[k] = v
	}
	results[kind] = result
	c.Results = results
	return c
}

// Result is a strategy-local detection output, consumed only by the
// orchestrator.
type Result struct {
	Score           float64
	ReasoningPasses int
	Confidence      float64
	Metadata        map[string]any
}

// Strategy is one way to judge query complexity.
type Strategy interface {
	// Kind identifies the strategy.
	Kind() StrategyKind

	// CanUse reports whether the strategy can run for this request.
	CanUse(ctx context.Context, dctx Context) bool

	// Detect produces a complexity judgment. Errors are non-fatal signals to
	// the orchestrator ("no opinion"), never propagated to the caller.
	Detect(ctx context.Context, dctx Context) (*Result, error)

	// Priority orders strategies; higher runs first.
	Priority(dctx Context) int
}

// passesForScore maps a complexity score to the reasoning-pass budget.
// Thresholds at 0.4 and 0.7 split the bands {1,2,3}.
func passesForScore(score float64) int {
	switch {
	case score >= 0.7:
		return 3
	case score >= 0.4:
		return 2
	default:
		return 1
	}
}
