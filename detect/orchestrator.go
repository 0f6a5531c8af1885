package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
)

// LLMPolicy controls when the orchestrator escalates to the LLM strategy.
type LLMPolicy string

const (
	// LLMPolicyAlways invokes the LLM strategy on every request.
	LLMPolicyAlways LLMPolicy = "always"

	// LLMPolicyConflict invokes the LLM strategy only when semantic and
	// keyword results disagree by more than conflictThreshold, or when
	// semantic failed while keyword succeeded. This is the default.
	LLMPolicyConflict LLMPolicy = "conflict"

	// LLMPolicyAmbiguous invokes the LLM strategy when the query is very
	// short, semantic failed, or semantic confidence is low.
	LLMPolicyAmbiguous LLMPolicy = "ambiguous"
)

const (
	conflictThreshold       = 0.3
	ambiguousQueryLength    = 10
	ambiguousSimilarity     = 0.5
	semanticPreferenceFloor = 0.3
)

// acceptanceRecorder is implemented by strategies that track how often
// their results win arbitration.
type acceptanceRecorder interface {
	RecordAcceptance(ctx context.Context, result *Result) error
}

// Orchestrator arbitrates the detection strategies into one complexity
// judgment per request. It holds no per-request state; the Context travels
// through the strategy chain by value.
type Orchestrator struct {
	semantic Strategy
	keyword  Strategy
	llm      Strategy
	policy   LLMPolicy

	explainer cogito.LLMClient
	agentName string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLLMPolicy sets the LLM escalation policy. Defaults to LLMPolicyConflict.
func WithLLMPolicy(policy LLMPolicy) OrchestratorOption {
	return func(x *Orchestrator) {
		x.policy = policy
	}
}

// WithExplainer sets the client used for best-effort natural language
// explanations of high-complexity verdicts.
func WithExplainer(llm cogito.LLMClient) OrchestratorOption {
	return func(x *Orchestrator) {
		x.explainer = llm
	}
}

// WithAgentName sets the agent name recorded on outputs. Defaults to
// "complexity-detector".
func WithAgentName(name string) OrchestratorOption {
	return func(x *Orchestrator) {
		x.agentName = name
	}
}

// NewOrchestrator creates an orchestrator over the three strategies. The
// semantic and llm strategies may be nil or unusable; keyword must not be
// nil because it is the guaranteed fallback.
func NewOrchestrator(semantic, keyword, llm Strategy, options ...OrchestratorOption) (*Orchestrator, error) {
	if keyword == nil {
		return nil, goerr.New("keyword strategy is required as the fallback")
	}

	orchestrator := &Orchestrator{
		semantic:  semantic,
		keyword:   keyword,
		llm:       llm,
		policy:    LLMPolicyConflict,
		agentName: "complexity-detector",
	}
	for _, opt := range options {
		opt(orchestrator)
	}
	return orchestrator, nil
}

// Detect classifies the query and never fails: strategy errors are treated
// as "no opinion" and the keyword strategy backstops total exhaustion.
func (x *Orchestrator) Detect(ctx context.Context, requestID, query string) (*cogito.ComplexityDetectorOutput, error) {
	logger := cogito.LoggerFromContext(ctx)
	dctx := Context{RequestID: requestID, Query: query}

	dctx = x.runStrategy(ctx, dctx, x.semantic)
	dctx = x.runStrategy(ctx, dctx, x.keyword)

	semanticResult := dctx.Results[StrategySemantic]
	keywordResult := dctx.Results[StrategyKeyword]

	final, method := x.arbitrate(ctx, dctx, semanticResult, keywordResult)

	if method == StrategySemantic {
		if recorder, ok := x.semantic.(acceptanceRecorder); ok {
			if err := recorder.RecordAcceptance(ctx, final); err != nil {
				logger.Warn("failed to record example usage",
					"request_id", requestID, "error", err)
			}
		}
	}

	if final == nil {
		// Keyword cannot fail, but guard the impossible path anyway.
		forced, err := x.keyword.Detect(ctx, dctx)
		if err != nil {
			return nil, goerr.Wrap(err, "fallback keyword strategy failed",
				goerr.V("request_id", requestID))
		}
		final = forced
		method = StrategyKeyword
	}

	output := &cogito.ComplexityDetectorOutput{
		RequestID:       requestID,
		AgentName:       x.agentName,
		Query:           query,
		Score:           final.Score,
		ReasoningPasses: final.ReasoningPasses,
		Confidence:      final.Confidence,
		Factors:         final.Metadata,
		DetectionMethod: string(method),
		DetectedAt:      time.Now(),
	}

	if final.ReasoningPasses == 3 || method == StrategyLLM {
		output.Explanation = x.explain(ctx, query, output)
	}

	logger.Info("complexity detected",
		"request_id", requestID,
		"score", output.Score,
		"reasoning_passes", output.ReasoningPasses,
		"method", output.DetectionMethod)
	return output, nil
}

// arbitrate applies the escalation policy and preference order to pick the
// final result. Returns nil when no strategy produced one.
func (x *Orchestrator) arbitrate(ctx context.Context, dctx Context, semanticResult, keywordResult *Result) (*Result, StrategyKind) {
	highReliability := semanticResult != nil && semanticResult.Confidence >= semanticHighReliability

	if x.shouldInvokeLLM(ctx, dctx, semanticResult, keywordResult) {
		dctx = x.runStrategy(ctx, dctx, x.llm)
		if llmResult, ok := dctx.Results[StrategyLLM]; ok {
			return llmResult, StrategyLLM
		}
	}

	if highReliability {
		return semanticResult, StrategySemantic
	}
	if semanticResult != nil && semanticResult.Confidence >= semanticPreferenceFloor {
		return semanticResult, StrategySemantic
	}
	if keywordResult != nil {
		return keywordResult, StrategyKeyword
	}
	return nil, ""
}

func (x *Orchestrator) shouldInvokeLLM(ctx context.Context, dctx Context, semanticResult, keywordResult *Result) bool {
	if x.llm == nil || !x.llm.CanUse(ctx, dctx) {
		return false
	}

	switch x.policy {
	case LLMPolicyAlways:
		return true
	case LLMPolicyAmbiguous:
		if len(dctx.Query) < ambiguousQueryLength {
			return true
		}
		if semanticResult == nil {
			return true
		}
		return semanticResult.Confidence < ambiguousSimilarity
	default: // LLMPolicyConflict
		if semanticResult == nil && keywordResult != nil {
			return true
		}
		if semanticResult == nil || keywordResult == nil {
			return false
		}
		diff := semanticResult.Score - keywordResult.Score
		if diff < 0 {
			diff = -diff
		}
		return diff > conflictThreshold
	}
}

// runStrategy executes one strategy and folds its result into the context.
// Errors and unusable strategies yield the context unchanged.
func (x *Orchestrator) runStrategy(ctx context.Context, dctx Context, strategy Strategy) Context {
	if strategy == nil || !strategy.CanUse(ctx, dctx) {
		return dctx
	}

	result, err := strategy.Detect(ctx, dctx)
	if err != nil {
		cogito.LoggerFromContext(ctx).Warn("detection strategy failed",
			"strategy", string(strategy.Kind()),
			"request_id", dctx.RequestID,
			"error", err)
		return dctx
	}
	return dctx.withResult(strategy.Kind(), result)
}

// explain produces a short natural language justification. Any failure
// degrades to a deterministic summary rather than failing the detection.
func (x *Orchestrator) explain(ctx context.Context, query string, output *cogito.ComplexityDetectorOutput) string {
	fallback := fmt.Sprintf("classified as complexity %.2f (%d reasoning passes) via %s",
		output.Score, output.ReasoningPasses, output.DetectionMethod)
	if x.explainer == nil {
		return fallback
	}

	session, err := x.explainer.NewSession(ctx)
	if err != nil {
		return fallback
	}
	prompt := fmt.Sprintf(
		"In one sentence, explain why the query %q was rated complexity %.2f with %d reasoning passes.",
		query, output.Score, output.ReasoningPasses)
	response, err := session.GenerateContent(ctx, cogito.Text(prompt))
	if err != nil || response.Text() == "" {
		return fallback
	}
	return response.Text()
}
