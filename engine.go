package cogito

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunState is the terminal state of one engine run.
type RunState string

const (
	RunStateRunning    RunState = "running"
	RunStateCompleted  RunState = "completed"
	RunStatePaused     RunState = "paused"
	RunStateDeadlocked RunState = "deadlocked"
)

// ExecutorAgentOutput is the JSON-serializable record of one plan run,
// produced for downstream consumers and persistence.
type ExecutorAgentOutput struct {
	RequestID              string            `json:"request_id"`
	AgentName              string            `json:"agent_name"`
	PlanID                 string            `json:"plan_id"`
	Steps                  []ExecutionResult `json:"steps"`
	Errors                 []string          `json:"errors,omitempty"`
	PartialResults         map[string]any    `json:"partial_results,omitempty"`
	Adaptations            []string          `json:"adaptations,omitempty"`
	PlanUpdates            []string          `json:"plan_updates,omitempty"`
	QuestionsAsked         []Question        `json:"questions_asked,omitempty"`
	OverallSuccess         bool              `json:"overall_success"`
	RequiresUserFeedback   bool              `json:"requires_user_feedback"`
	PendingQuestion        *Question         `json:"pending_question,omitempty"`
	CritiqueRecommendation string            `json:"critique_recommendation,omitempty"`
	RunState               RunState          `json:"run_state"`
	BlockedSteps           []string          `json:"blocked_steps,omitempty"`
	Duration               time.Duration     `json:"duration"`

	// state keeps the final snapshot available for Resume. Not serialized;
	// a paused run resumes within the process that holds the output.
	state *ExecutionState
}

// State returns the final execution state snapshot of the run. Use it with
// Engine.Resume to continue a paused run.
func (o *ExecutorAgentOutput) State() *ExecutionState {
	return o.state
}

// Engine hook types for monitoring run lifecycle.
type (
	// StepStartHook is called before a step executes. Returning an error
	// aborts the run.
	StepStartHook func(ctx context.Context, step PlanStep) error

	// StepCompletedHook is called after a step attempt, success or failure.
	StepCompletedHook func(ctx context.Context, step PlanStep, result ExecutionResult) error

	// CheckpointHook is called after each meta-reasoning checkpoint.
	CheckpointHook func(ctx context.Context, verdict *CheckpointVerdict) error

	// RunCompletedHook is called once when the run reaches a terminal state.
	RunCompletedHook func(ctx context.Context, output *ExecutorAgentOutput) error
)

// Engine is the plan scheduling loop. It owns the ExecutionState for the
// duration of a run; ready steps execute sequentially, and the only
// suspension point is the ask-user decision of the error policy. An Engine
// is single-use: one Run, plus Resume calls for a paused run.
type Engine struct {
	executor     StepExecutor
	policy       ErrorPolicy
	questions    QuestionGenerator
	checkpointer Checkpointer
	logger       *slog.Logger

	requestID string
	started   bool

	stepStartHook     StepStartHook
	stepCompletedHook StepCompletedHook
	checkpointHook    CheckpointHook
	runCompletedHook  RunCompletedHook
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithErrorPolicy replaces the default error policy decision table.
func WithErrorPolicy(policy ErrorPolicy) EngineOption {
	return func(x *Engine) { x.policy = policy }
}

// WithQuestionGenerator replaces the default question generator.
func WithQuestionGenerator(questions QuestionGenerator) EngineOption {
	return func(x *Engine) { x.questions = questions }
}

// WithCheckpointer replaces the default meta-reasoning checkpointer.
func WithCheckpointer(checkpointer Checkpointer) EngineOption {
	return func(x *Engine) { x.checkpointer = checkpointer }
}

// WithEngineLogger sets the logger for the run.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(x *Engine) { x.logger = logger }
}

// WithRequestID ties the run output to an upstream request.
func WithRequestID(requestID string) EngineOption {
	return func(x *Engine) { x.requestID = requestID }
}

// WithStepStartHook sets a hook called before each step.
func WithStepStartHook(hook StepStartHook) EngineOption {
	return func(x *Engine) { x.stepStartHook = hook }
}

// WithStepCompletedHook sets a hook called after each step attempt.
func WithStepCompletedHook(hook StepCompletedHook) EngineOption {
	return func(x *Engine) { x.stepCompletedHook = hook }
}

// WithCheckpointHook sets a hook called after each checkpoint.
func WithCheckpointHook(hook CheckpointHook) EngineOption {
	return func(x *Engine) { x.checkpointHook = hook }
}

// WithRunCompletedHook sets a hook called when the run reaches a terminal
// state.
func WithRunCompletedHook(hook RunCompletedHook) EngineOption {
	return func(x *Engine) { x.runCompletedHook = hook }
}

// NewEngine creates an execution engine. The step executor is the one
// required dependency; policy, question generator and checkpointer default to
// the built-in implementations (the default checkpointer and question
// generator run without an LLM, using their deterministic paths).
func NewEngine(executor StepExecutor, options ...EngineOption) *Engine {
	engine := &Engine{
		executor:     executor,
		policy:       NewDefaultErrorPolicy(),
		questions:    NewQuestionGenerator(nil),
		checkpointer: NewCheckpointer(nil),
		logger:       slog.New(slog.DiscardHandler),
		requestID:    uuid.New().String(),
	}
	for _, opt := range options {
		opt(engine)
	}
	return engine
}

// Run executes the plan to completion, pause, or deadlock. The engine never
// returns an error for step failures; those are reported in the output. An
// error return means the run could not proceed at all (already started, or a
// hook aborted it).
func (x *Engine) Run(ctx context.Context, plan *Plan) (*ExecutorAgentOutput, error) {
	if x.started {
		return nil, ErrPlanAlreadyExecuted
	}
	x.started = true

	return x.loop(ctx, NewExecutionState(plan))
}

// Resume continues a paused run with the user's answer to the pending
// question. The answer is recorded in the state snapshot and the scheduling
// loop picks up where it stopped.
func (x *Engine) Resume(ctx context.Context, state *ExecutionState, answer string) (*ExecutorAgentOutput, error) {
	if state == nil || len(state.QuestionsAsked) == 0 {
		return nil, ErrStateNotResumable
	}

	return x.loop(ctx, state.WithAnswer(answer))
}

func (x *Engine) loop(ctx context.Context, state *ExecutionState) (*ExecutorAgentOutput, error) {
	logger := x.logger.With(
		"cogito.request_id", x.requestID,
		"cogito.plan_id", state.Plan.ID())
	ctx = ctxWithLogger(ctx, logger)

	logger.Info("plan run started",
		"goal", state.Plan.Goal(),
		"steps", len(state.Plan.Steps()))

	for {
		ready := ReadySteps(state.Plan, state.ExecutedSteps)

		if len(ready) == 0 {
			if len(state.ExecutedSteps) == len(state.Plan.Steps()) {
				return x.finish(ctx, state, RunStateCompleted, nil)
			}
			blocked := blockedSteps(state)
			logger.Error("plan deadlocked", "blocked_steps", blocked)
			return x.finish(ctx, state, RunStateDeadlocked, blocked)
		}

		for _, step := range ready {
			if x.stepStartHook != nil {
				if err := x.stepStartHook(ctx, step); err != nil {
					return nil, err
				}
			}

			result, planUpdate := x.executeStep(ctx, step, state)
			state = ApplyResult(state, result, planUpdate)

			if x.stepCompletedHook != nil {
				if err := x.stepCompletedHook(ctx, step, result); err != nil {
					return nil, err
				}
			}

			verdict, err := x.checkpointer.Evaluate(ctx, state, result)
			if err != nil || verdict == nil {
				// Checkpointer implementations degrade internally; this is
				// the last line of defense against a misbehaving custom one.
				logger.Warn("checkpointer returned error, using deterministic verdict", "error", err)
				verdict = deterministicVerdict(state)
			}
			if x.checkpointHook != nil {
				if err := x.checkpointHook(ctx, verdict); err != nil {
					return nil, err
				}
			}

			if verdict.ShouldAdapt && verdict.Adaptation != "" {
				state = state.WithAdaptation(verdict.Adaptation)
			}

			// The policy runs before the early-stop check so a failed final
			// step can still pause for user input.
			if !result.Success {
				output, done, err := x.handleFailure(ctx, step, result, &state)
				if err != nil {
					return nil, err
				}
				if done {
					return output, nil
				}
			}

			if !verdict.ShouldContinue && !verdict.ShouldAdapt && !verdict.ShouldReplan {
				logger.Info("checkpoint stopped run early", "reasoning", verdict.Reasoning)
				return x.finish(ctx, state, RunStateCompleted, nil)
			}

			if verdict.GoalAchieved {
				logger.Info("goal achieved before all steps executed")
				return x.finish(ctx, state, RunStateCompleted, nil)
			}
		}
	}
}

// handleFailure consults the error policy for a failed step. It returns
// done=true with an output when the run pauses for user input. state is
// passed by pointer so adaptation records survive into the caller's loop.
func (x *Engine) handleFailure(ctx context.Context, step PlanStep, result ExecutionResult, state **ExecutionState) (*ExecutorAgentOutput, bool, error) {
	logger := LoggerFromContext(ctx)

	decision := x.policy.Decide(ctx, PolicyInput{
		Error:     result.Error,
		ErrorType: result.ErrorType,
		Step:      step,
		State:     *state,
		Result:    result,
	})

	logger.Info("error policy decision",
		"step_id", step.ID,
		"error_type", result.ErrorType,
		"decision", decision)

	switch decision {
	case DecideAskUser:
		question, err := x.questions.GenerateErrorQuestion(ctx, result.Error, result.ErrorType, step, *state)
		if err != nil {
			logger.Warn("question generation failed, continuing without pause", "error", err)
			return nil, false, nil
		}
		if question == nil {
			return nil, false, nil
		}
		*state = (*state).WithQuestion(*question)
		output, ferr := x.finish(ctx, *state, RunStatePaused, nil)
		if ferr != nil {
			return nil, false, ferr
		}
		return output, true, nil

	case DecideAdapt:
		*state = (*state).WithAdaptation(fmt.Sprintf("step %s (%s): %s", step.ID, result.ErrorType, result.Error))
		return nil, false, nil

	case DecideSkip:
		logger.Info("skipping failed step", "step_id", step.ID)
		return nil, false, nil

	default: // DecideRetry
		// The executor's internal retry budget is already spent; a retry
		// decision here is terminal for this attempt.
		logger.Warn("retry budget exhausted for step", "step_id", step.ID)
		return nil, false, nil
	}
}

// executeStep runs one step through the executor, converting panics and
// errors into a failed ExecutionResult so the loop keeps control.
func (x *Engine) executeStep(ctx context.Context, step PlanStep, state *ExecutionState) (result ExecutionResult, planUpdate string) {
	start := time.Now()
	result = ExecutionResult{
		StepID:         step.ID,
		StepOrder:      step.Order,
		ToolCalled:     step.Action,
		ParametersUsed: step.Parameters,
		Timestamp:      start,
	}

	defer func() {
		if r := recover(); r != nil {
			LoggerFromContext(ctx).Error("panic during step execution",
				"step_id", step.ID, "panic", r)
			result.Success = false
			result.Error = fmt.Sprintf("panic during step execution: %v", r)
			result.ErrorType = ErrorTypeUnknown
			result.Duration = time.Since(start)
			planUpdate = ""
		}
	}()

	outcome, err := x.executor.Execute(ctx, step, StepContext(step, state))
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		result.ErrorType = ClassifyError(err)
		return result, ""
	}

	result.Success = true
	result.Result = outcome.Result
	result.Retries = outcome.Retries
	return result, outcome.PlanUpdate
}

func (x *Engine) finish(ctx context.Context, state *ExecutionState, runState RunState, blocked []string) (*ExecutorAgentOutput, error) {
	logger := LoggerFromContext(ctx)

	output := &ExecutorAgentOutput{
		RequestID:      x.requestID,
		AgentName:      "executor",
		PlanID:         state.Plan.ID(),
		Steps:          state.Results,
		Errors:         state.Errors,
		PartialResults: state.PartialResults,
		Adaptations:    state.Adaptations,
		PlanUpdates:    state.PlanUpdates,
		QuestionsAsked: state.QuestionsAsked,
		OverallSuccess: GoalAchieved(state),
		RunState:       runState,
		BlockedSteps:   blocked,
		Duration:       time.Since(state.StartTime),
		state:          state,
	}

	switch runState {
	case RunStatePaused:
		output.RequiresUserFeedback = true
		if n := len(state.QuestionsAsked); n > 0 {
			output.PendingQuestion = &state.QuestionsAsked[n-1]
		}
	case RunStateDeadlocked:
		output.Errors = append(output.Errors,
			fmt.Sprintf("%s: %v", ErrDeadlock.Error(), blocked))
		output.CritiqueRecommendation = "plan has unsatisfiable step dependencies, rethink the plan structure"
	default:
		if !output.OverallSuccess && len(output.Errors) > 0 {
			output.CritiqueRecommendation = "review failed steps before accepting partial results"
		}
	}

	logger.Info("plan run finished",
		"run_state", runState,
		"overall_success", output.OverallSuccess,
		"steps_executed", len(state.ExecutedSteps),
		"errors", len(output.Errors))

	if x.runCompletedHook != nil {
		if err := x.runCompletedHook(ctx, output); err != nil {
			return nil, err
		}
	}

	return output, nil
}

// blockedSteps describes why each unexecuted step cannot proceed.
func blockedSteps(state *ExecutionState) []string {
	var blocked []string
	for _, step := range state.Plan.Steps() {
		if state.ExecutedSteps[step.ID] {
			continue
		}
		var missing []string
		for _, dep := range step.Dependencies {
			if !state.ExecutedSteps[dep] {
				missing = append(missing, dep)
			}
		}
		blocked = append(blocked, fmt.Sprintf("%s waiting on %v", step.ID, missing))
	}
	return blocked
}
