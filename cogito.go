// Package cogito coordinates autonomous reasoning agents. It classifies
// incoming queries by complexity, executes dependency-ordered plans with
// meta-reasoning checkpoints, and aggregates agent confidence scores into a
// routing decision for the caller.
package cogito

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/m-mizutani/cogito/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Coordinator is the core structure of the package. It ties the complexity
// detector, the execution engine and the confidence aggregator together and
// persists their outputs for audit when a store is configured.
type Coordinator struct {
	llm LLMClient

	coordinatorConfig
}

type coordinatorConfig struct {
	detector   ComplexityDetector
	aggregator *ConfidenceAggregator
	store      storage.Store
	logger     *slog.Logger

	tools    []Tool
	toolSets []ToolSet

	policy       ErrorPolicy
	questions    QuestionGenerator
	checkpointer Checkpointer

	engineOptions []EngineOption
}

// Option configures a Coordinator.
type Option func(*coordinatorConfig)

// WithComplexityDetector sets the detector used by DetectComplexity. The
// detect subpackage provides the standard implementation.
func WithComplexityDetector(detector ComplexityDetector) Option {
	return func(c *coordinatorConfig) {
		c.detector = detector
	}
}

// WithConfidenceAggregator replaces the default confidence aggregator.
func WithConfidenceAggregator(aggregator *ConfidenceAggregator) Option {
	return func(c *coordinatorConfig) {
		c.aggregator = aggregator
	}
}

// WithStore sets the persistence store for agent outputs.
func WithStore(store storage.Store) Option {
	return func(c *coordinatorConfig) {
		c.store = store
	}
}

// WithLogger sets the logger. The default discards all logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *coordinatorConfig) {
		c.logger = logger
	}
}

// WithTools adds tools available to plan steps.
func WithTools(tools ...Tool) Option {
	return func(c *coordinatorConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithToolSets adds tool sets (for example MCP clients) available to plan
// steps.
func WithToolSets(toolSets ...ToolSet) Option {
	return func(c *coordinatorConfig) {
		c.toolSets = append(c.toolSets, toolSets...)
	}
}

// WithCoordinatorErrorPolicy replaces the error policy used by plan runs.
func WithCoordinatorErrorPolicy(policy ErrorPolicy) Option {
	return func(c *coordinatorConfig) {
		c.policy = policy
	}
}

// WithEngineOptions appends extra options passed through to every engine
// created by ExecutePlan, such as run hooks.
func WithEngineOptions(options ...EngineOption) Option {
	return func(c *coordinatorConfig) {
		c.engineOptions = append(c.engineOptions, options...)
	}
}

// New creates a new coordinator. The LLM client may be nil; checkpointing,
// question generation and reasoning text then use their deterministic
// fallbacks.
func New(llm LLMClient, options ...Option) *Coordinator {
	coordinator := &Coordinator{
		llm: llm,
		coordinatorConfig: coordinatorConfig{
			logger: slog.New(slog.DiscardHandler),
		},
	}
	for _, opt := range options {
		opt(&coordinator.coordinatorConfig)
	}

	if coordinator.aggregator == nil {
		coordinator.aggregator = NewConfidenceAggregator(WithConfidenceLLM(llm))
	}
	if coordinator.policy == nil {
		coordinator.policy = NewDefaultErrorPolicy()
	}
	if coordinator.questions == nil {
		coordinator.questions = NewQuestionGenerator(llm)
	}
	if coordinator.checkpointer == nil {
		coordinator.checkpointer = NewCheckpointer(llm)
	}

	return coordinator
}

// NewRequestID issues the identifier that ties one query's detector,
// executor and confidence outputs together.
func NewRequestID() string {
	return uuid.New().String()
}

// DetectComplexity classifies the query and returns the reasoning-pass
// budget upstream agents should spend on it. Requires a configured detector.
func (x *Coordinator) DetectComplexity(ctx context.Context, requestID, query string) (*ComplexityDetectorOutput, error) {
	if x.detector == nil {
		return nil, goerr.New("no complexity detector configured")
	}
	if requestID == "" {
		requestID = NewRequestID()
	}

	ctx = ctxWithLogger(ctx, x.logger)
	output, err := x.detector.Detect(ctx, requestID, query)
	if err != nil {
		return nil, goerr.Wrap(err, "complexity detection failed",
			goerr.V("request_id", requestID))
	}

	x.persist(ctx, requestID, output.AgentName, "complexity", output)
	return output, nil
}

// ExecutePlan runs the plan to completion, pause, or deadlock and returns
// the run record. A paused run is continued with ResumePlan.
func (x *Coordinator) ExecutePlan(ctx context.Context, requestID string, plan *Plan) (*ExecutorAgentOutput, error) {
	if requestID == "" {
		requestID = NewRequestID()
	}

	ctx = ctxWithLogger(ctx, x.logger)
	engine, err := x.newEngine(ctx, requestID)
	if err != nil {
		return nil, err
	}

	output, err := engine.Run(ctx, plan)
	if err != nil {
		return nil, err
	}

	x.persist(ctx, requestID, output.AgentName, "execution", output)
	return output, nil
}

// ResumePlan continues a paused run with the user's answer to the pending
// question.
func (x *Coordinator) ResumePlan(ctx context.Context, requestID string, state *ExecutionState, answer string) (*ExecutorAgentOutput, error) {
	if requestID == "" {
		requestID = NewRequestID()
	}

	ctx = ctxWithLogger(ctx, x.logger)
	engine, err := x.newEngine(ctx, requestID)
	if err != nil {
		return nil, err
	}

	output, err := engine.Resume(ctx, state, answer)
	if err != nil {
		return nil, err
	}

	x.persist(ctx, requestID, output.AgentName, "execution", output)
	return output, nil
}

// AggregateConfidence combines the agents' self-reported confidence scores
// into one routing decision.
func (x *Coordinator) AggregateConfidence(ctx context.Context, requestID string, scores []ConfidenceScore) *ConfidenceScorerOutput {
	if requestID == "" {
		requestID = NewRequestID()
	}

	ctx = ctxWithLogger(ctx, x.logger)
	output := x.aggregator.Aggregate(ctx, requestID, scores)

	x.persist(ctx, requestID, output.AgentName, "confidence", output)
	return output
}

func (x *Coordinator) newEngine(ctx context.Context, requestID string) (*Engine, error) {
	executor, err := NewToolStepExecutor(ctx, x.tools, x.toolSets)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build step executor")
	}

	options := []EngineOption{
		WithRequestID(requestID),
		WithEngineLogger(x.logger),
		WithErrorPolicy(x.policy),
		WithQuestionGenerator(x.questions),
		WithCheckpointer(x.checkpointer),
	}
	options = append(options, x.engineOptions...)
	return NewEngine(executor, options...), nil
}

// persist saves an agent output for audit. Persistence is best-effort; a
// failing store must not fail the request.
func (x *Coordinator) persist(ctx context.Context, requestID, agentName, kind string, payload any) {
	if x.store == nil {
		return
	}

	record, err := storage.NewRecord(requestID, agentName, kind, payload)
	if err != nil {
		x.logger.Warn("failed to build audit record",
			"request_id", requestID, "agent_name", agentName, "error", err)
		return
	}
	if err := x.store.Save(ctx, record); err != nil {
		x.logger.Warn("failed to persist agent output",
			"request_id", requestID, "agent_name", agentName, "error", err)
	}
}
