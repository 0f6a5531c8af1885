package detect

import (
	"context"
	"strings"
)

// KeywordStrategy scores query complexity with a weighted sum over six
// heuristic factors, each normalized to [0,1]. It needs no external service,
// so it is always usable and serves as the guaranteed fallback.
type KeywordStrategy struct {
	domainTerms map[string]struct{}
}

// Heuristic factor weights. They sum to 1 so the final score stays in [0,1].
const (
	weightLength      = 0.15
	weightQuestions   = 0.15
	weightMultiStep   = 0.20
	weightAnalysis    = 0.20
	weightAggregation = 0.15
	weightDomainTerms = 0.15
)

var multiStepTerms = []string{
	"then", "after", "before", "first", "next", "finally", "step",
	"followed", "once", "subsequently",
}

var analysisTerms = []string{
	"analyze", "analyse", "compare", "evaluate", "assess", "explain",
	"why", "investigate", "diagnose", "review",
}

var aggregationTerms = []string{
	"all", "every", "total", "sum", "average", "across", "aggregate",
	"overall", "combined", "count",
}

// defaultDomainTerms are the built-in domain vocabulary used for term
// density. Callers with their own vocabulary replace it via the option.
var defaultDomainTerms = []string{
	"facility", "asset", "inventory", "report", "schedule", "incident",
	"maintenance", "workflow", "audit", "compliance",
}

// KeywordStrategyOption configures a KeywordStrategy.
type KeywordStrategyOption func(*KeywordStrategy)

// WithDomainTerms replaces the built-in domain vocabulary.
func WithDomainTerms(terms []string) KeywordStrategyOption {
	return func(x *KeywordStrategy) {
		x.domainTerms = make(map[string]struct{}, len(terms))
		for _, t := range terms {
			x.domainTerms[strings.ToLower(t)] = struct{}{}
		}
	}
}

// NewKeywordStrategy creates the keyword heuristic strategy.
func NewKeywordStrategy(options ...KeywordStrategyOption) *KeywordStrategy {
	strategy := &KeywordStrategy{}
	WithDomainTerms(defaultDomainTerms)(strategy)
	for _, opt := range options {
		opt(strategy)
	}
	return strategy
}

func (x *KeywordStrategy) Kind() StrategyKind {
	return StrategyKeyword
}

func (x *KeywordStrategy) CanUse(ctx context.Context, dctx Context) bool {
	return true
}

func (x *KeywordStrategy) Priority(dctx Context) int {
	return 10
}

func (x *KeywordStrategy) Detect(ctx context.Context, dctx Context) (*Result, error) {
	factors := x.factors(dctx.Query)

	score := factors["length"]*weightLength +
		factors["multi_question"]*weightQuestions +
		factors["multi_step"]*weightMultiStep +
		factors["analysis"]*weightAnalysis +
		factors["aggregation"]*weightAggregation +
		factors["domain_terms"]*weightDomainTerms

	metadata := make(map[string]any, len(factors))
	for name, value := range factors {
		metadata[name] = value
	}

	return &Result{
		Score:           score,
		ReasoningPasses: passesForScore(score),
		Confidence:      0.6,
		Metadata:        metadata,
	}, nil
}

// factors computes the six normalized heuristic factors.
func (x *KeywordStrategy) factors(query string) map[string]float64 {
	lowered := strings.ToLower(query)
	words := strings.Fields(lowered)

	factors := map[string]float64{}

	// Longer queries tend to pack more requirements. Saturates at 40 words.
	factors["length"] = clamp01(float64(len(words)) / 40)

	// More than one question mark means more than one question.
	questions := strings.Count(query, "?")
	factors["multi_question"] = clamp01(float64(questions) / 2)

	factors["multi_step"] = termDensityFactor(words, multiStepTerms, 3)
	factors["analysis"] = termDensityFactor(words, analysisTerms, 2)
	factors["aggregation"] = termDensityFactor(words, aggregationTerms, 2)

	domainHits := 0
	for _, word := range words {
		if _, ok := x.domainTerms[strings.Trim(word, ".,!?;:")]; ok {
			domainHits++
		}
	}
	density := 0.0
	if len(words) > 0 {
		density = float64(domainHits) / float64(len(words))
	}
	factors["domain_terms"] = clamp01(density * 2)

	return factors
}

// termDensityFactor counts how many of the given terms appear, normalized so
// saturation matches appear.
func termDensityFactor(words []string, terms []string, saturation int) float64 {
	hits := 0
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?;:")] = struct{}{}
	}
	for _, term := range terms {
		if _, ok := wordSet[term]; ok {
			hits++
		}
	}
	return clamp01(float64(hits) / float64(saturation))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
