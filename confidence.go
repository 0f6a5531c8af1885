package cogito

import (
	"bytes"
	"context"
	"fmt"
	"sort"
)

// ConfidenceScore is one agent's self-reported confidence in its own output.
type ConfidenceScore struct {
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// RoutingDecision drives what the orchestrating caller does next.
type RoutingDecision string

const (
	DecisionExecute  RoutingDecision = "execute"
	DecisionReview   RoutingDecision = "review"
	DecisionRethink  RoutingDecision = "rethink"
	DecisionEscalate RoutingDecision = "escalate"
)

// ScorePattern classifies the distribution of agent scores.
type ScorePattern string

const (
	PatternConsistent ScorePattern = "consistent"
	PatternAllHigh    ScorePattern = "all-high"
	PatternAllLow     ScorePattern = "all-low"
	PatternMixed      ScorePattern = "mixed"
)

// AgentContribution is one agent's weighted share of the aggregate.
type AgentContribution struct {
	AgentName    string  `json:"agent_name"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ConfidenceScorerOutput is the JSON-serializable record of one aggregation.
type ConfidenceScorerOutput struct {
	RequestID           string              `json:"request_id"`
	AgentName           string              `json:"agent_name"`
	WeightedConfidence  float64             `json:"weighted_confidence"`
	Decision            RoutingDecision     `json:"decision"`
	ConfidenceBreakdown []AgentContribution `json:"confidence_breakdown"`
	ScoreVariance       float64             `json:"score_variance"`
	ScorePattern        ScorePattern        `json:"score_pattern"`
	PrimaryDriver       string              `json:"primary_driver,omitempty"`
	Concerns            []string            `json:"concerns,omitempty"`
	Reasoning           string              `json:"reasoning,omitempty"`
}

// Agent importance weights. Unknown agents fall back to defaultAgentWeight.
// The critic weighs most: a low critic score should drag the aggregate down
// harder than a cheerful thought agent can pull it up.
var agentWeights = map[string]float64{
	"critic":  0.35,
	"planner": 0.30,
	"thought": 0.25,
	"meta":    0.10,
}

const defaultAgentWeight = 0.10

// Routing thresholds are fixed constants, not configurable per call, so that
// decisions stay comparable across runs. Each band is inclusive on its lower
// threshold.
const (
	executeThreshold = 0.8
	reviewThreshold  = 0.6
	rethinkThreshold = 0.4
)

const consistentVarianceLimit = 0.01

// ConfidenceAggregator combines per-agent confidence scores into one routing
// decision. The llm client is only used for the reasoning text and may be
// nil; the decision itself is fully deterministic.
type ConfidenceAggregator struct {
	llm LLMClient
}

// ConfidenceAggregatorOption configures a ConfidenceAggregator.
type ConfidenceAggregatorOption func(*ConfidenceAggregator)

// WithConfidenceLLM enables LLM-generated reasoning text.
func WithConfidenceLLM(llm LLMClient) ConfidenceAggregatorOption {
	return func(x *ConfidenceAggregator) { x.llm = llm }
}

// NewConfidenceAggregator creates a confidence aggregator.
func NewConfidenceAggregator(options ...ConfidenceAggregatorOption) *ConfidenceAggregator {
	aggregator := &ConfidenceAggregator{}
	for _, opt := range options {
		opt(aggregator)
	}
	return aggregator
}

// Aggregate computes the weighted confidence, distribution analysis and
// routing decision for the given scores.
func (x *ConfidenceAggregator) Aggregate(ctx context.Context, requestID string, scores []ConfidenceScore) *ConfidenceScorerOutput {
	logger := LoggerFromContext(ctx)

	output := &ConfidenceScorerOutput{
		RequestID: requestID,
		AgentName: "confidence",
	}

	if len(scores) == 0 {
		output.WeightedConfidence = 0.5
		output.Decision = routeByConfidence(0.5)
		output.ScorePattern = PatternMixed
		output.Reasoning = "no agent scores available, defaulting to neutral confidence"
		return output
	}

	var weightedSum, weightSum, scoreSum float64
	breakdown := make([]AgentContribution, 0, len(scores))
	for _, score := range scores {
		weight := agentWeight(score.AgentName)
		weightedSum += score.Score * weight
		weightSum += weight
		scoreSum += score.Score
		breakdown = append(breakdown, AgentContribution{
			AgentName:    score.AgentName,
			Score:        score.Score,
			Weight:       weight,
			Contribution: score.Score * weight,
		})
	}

	output.WeightedConfidence = weightedSum / weightSum
	output.ConfidenceBreakdown = breakdown
	output.Decision = routeByConfidence(output.WeightedConfidence)

	mean := scoreSum / float64(len(scores))
	var variance float64
	for _, score := range scores {
		diff := score.Score - mean
		variance += diff * diff
	}
	variance /= float64(len(scores))
	output.ScoreVariance = variance
	output.ScorePattern = classifyPattern(scores, variance)

	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Contribution > breakdown[j].Contribution
	})
	output.PrimaryDriver = breakdown[0].AgentName

	for _, score := range scores {
		if score.Score < 0.5 && agentWeight(score.AgentName) >= 0.25 {
			output.Concerns = append(output.Concerns, score.AgentName)
		}
	}

	output.Reasoning = x.reasoningText(ctx, output, scores)

	logger.Info("confidence aggregated",
		"request_id", requestID,
		"weighted_confidence", output.WeightedConfidence,
		"decision", output.Decision,
		"pattern", output.ScorePattern)

	return output
}

func agentWeight(name string) float64 {
	if weight, ok := agentWeights[name]; ok {
		return weight
	}
	return defaultAgentWeight
}

func routeByConfidence(confidence float64) RoutingDecision {
	switch {
	case confidence >= executeThreshold:
		return DecisionExecute
	case confidence >= reviewThreshold:
		return DecisionReview
	case confidence >= rethinkThreshold:
		return DecisionRethink
	default:
		return DecisionEscalate
	}
}

func classifyPattern(scores []ConfidenceScore, variance float64) ScorePattern {
	if variance < consistentVarianceLimit {
		return PatternConsistent
	}

	allHigh, allLow := true, true
	for _, score := range scores {
		if score.Score < 0.7 {
			allHigh = false
		}
		if score.Score > 0.4 {
			allLow = false
		}
	}
	switch {
	case allHigh:
		return PatternAllHigh
	case allLow:
		return PatternAllLow
	default:
		return PatternMixed
	}
}

// reasoningText generates a natural-language explanation of the decision.
// The routing decision never depends on this succeeding: any model failure
// falls back to a deterministic summary.
func (x *ConfidenceAggregator) reasoningText(ctx context.Context, output *ConfidenceScorerOutput, scores []ConfidenceScore) string {
	fallback := fmt.Sprintf("weighted confidence %.2f (%s pattern, driven by %s) maps to decision %q",
		output.WeightedConfidence, output.ScorePattern, output.PrimaryDriver, output.Decision)

	if x.llm == nil {
		return fallback
	}

	logger := LoggerFromContext(ctx)

	session, err := x.llm.NewSession(ctx)
	if err != nil {
		logger.Warn("reasoning text generation unavailable", "error", err)
		return fallback
	}

	var buf bytes.Buffer
	if err := confidenceTmpl.Execute(&buf, confidenceTemplateData{
		WeightedConfidence: output.WeightedConfidence,
		Decision:           string(output.Decision),
		Pattern:            string(output.ScorePattern),
		PrimaryDriver:      output.PrimaryDriver,
		Scores:             scores,
	}); err != nil {
		logger.Warn("reasoning prompt rendering failed", "error", err)
		return fallback
	}

	resp, err := session.GenerateContent(ctx, Text(buf.String()))
	if err != nil {
		logger.Warn("reasoning text generation failed", "error", err)
		return fallback
	}
	if text := resp.Text(); text != "" {
		return text
	}
	return fallback
}
