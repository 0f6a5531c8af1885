package cogito

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ExecutionResult records one attempted step.
type ExecutionResult struct {
	StepID         string         `json:"step_id"`
	StepOrder      int            `json:"step_order"`
	Success        bool           `json:"success"`
	Result         any            `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorType      ErrorType      `json:"error_type,omitempty"`
	Duration       time.Duration  `json:"duration"`
	Retries        int            `json:"retries"`
	ToolCalled     string         `json:"tool_called"`
	ParametersUsed map[string]any `json:"parameters_used,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// StepOutcome is what a step executor returns on success. PlanUpdate is an
// optional note about how the executor deviated from the plan (for audit).
// Retries is the number of attempts spent beyond the first.
type StepOutcome struct {
	Result     map[string]any
	PlanUpdate string
	Retries    int
}

// StepExecutor executes a single plan step. Implementations must apply their
// own bounded per-step retry and map failures to the ErrorType vocabulary;
// the engine treats a returned error as already-retried and terminal for the
// attempt. Timeout and cancellation are the executor's concern and surface
// as ordinary failures with ErrorTypeTimeout.
type StepExecutor interface {
	Execute(ctx context.Context, step PlanStep, stepContext map[string]any) (*StepOutcome, error)
}

// ToolStepExecutor resolves a step's Action against a tool map and runs the
// tool with the step parameters, retrying transient failures up to the
// configured limit.
type ToolStepExecutor struct {
	toolMap    map[string]Tool
	retryLimit int
	backoff    time.Duration
}

// ToolStepExecutorOption configures a ToolStepExecutor.
type ToolStepExecutorOption func(*ToolStepExecutor)

// WithStepRetryLimit sets the per-step retry budget.
func WithStepRetryLimit(limit int) ToolStepExecutorOption {
	return func(x *ToolStepExecutor) {
		x.retryLimit = limit
	}
}

// WithStepRetryBackoff sets the delay between retry attempts.
func WithStepRetryBackoff(backoff time.Duration) ToolStepExecutorOption {
	return func(x *ToolStepExecutor) {
		x.backoff = backoff
	}
}

const defaultStepRetryLimit = 2

// NewToolStepExecutor creates a StepExecutor backed by registered tools and
// tool sets.
func NewToolStepExecutor(ctx context.Context, tools []Tool, toolSets []ToolSet, options ...ToolStepExecutorOption) (*ToolStepExecutor, error) {
	toolMap, err := setupTools(ctx, tools, toolSets)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to setup tools for step executor")
	}

	executor := &ToolStepExecutor{
		toolMap:    toolMap,
		retryLimit: defaultStepRetryLimit,
		backoff:    100 * time.Millisecond,
	}
	for _, opt := range options {
		opt(executor)
	}

	return executor, nil
}

// Execute runs the tool named by step.Action. Transient failures (timeout,
// tool errors) are retried within the budget; validation failures are not,
// because repeating the same bad parameters cannot succeed.
func (x *ToolStepExecutor) Execute(ctx context.Context, step PlanStep, stepContext map[string]any) (*StepOutcome, error) {
	logger := LoggerFromContext(ctx)

	tool, ok := x.toolMap[step.Action]
	if !ok {
		return nil, goerr.Wrap(ErrToolNotFound, "cannot execute step",
			goerr.V("step_id", step.ID), goerr.V("action", step.Action))
	}

	var lastErr error
	for attempt := 0; attempt <= x.retryLimit; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying step",
				"step_id", step.ID,
				"attempt", attempt,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "step cancelled during retry wait", goerr.V("step_id", step.ID))
			case <-time.After(x.backoff):
			}
		}

		result, err := tool.Run(ctx, step.Parameters)
		if err == nil {
			return &StepOutcome{Result: result, Retries: attempt}, nil
		}
		lastErr = err

		if ClassifyError(err) == ErrorTypeValidation {
			break
		}
	}

	return nil, goerr.Wrap(lastErr, "step execution failed",
		goerr.V("step_id", step.ID), goerr.V("action", step.Action), goerr.V("retries", x.retryLimit))
}

// Tools returns the names of all resolvable step actions.
func (x *ToolStepExecutor) Tools() []string {
	names := make([]string, 0, len(x.toolMap))
	for name := range x.toolMap {
		names = append(names, name)
	}
	return names
}
