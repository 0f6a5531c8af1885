package cogito_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// scriptedExecutor runs each step through a scripted handler keyed by step ID.
type scriptedExecutor struct {
	handlers map[string]func() (*cogito.StepOutcome, error)
	executed []string
}

func (x *scriptedExecutor) Execute(ctx context.Context, step cogito.PlanStep, stepContext map[string]any) (*cogito.StepOutcome, error) {
	x.executed = append(x.executed, step.ID)
	handler, ok := x.handlers[step.ID]
	if !ok {
		return &cogito.StepOutcome{Result: map[string]any{"ok": true}}, nil
	}
	return handler()
}

func succeed(result map[string]any) func() (*cogito.StepOutcome, error) {
	return func() (*cogito.StepOutcome, error) {
		return &cogito.StepOutcome{Result: result}, nil
	}
}

func fail(err error) func() (*cogito.StepOutcome, error) {
	return func() (*cogito.StepOutcome, error) {
		return nil, err
	}
}

func TestEngineRunCompletes(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch":     succeed(map[string]any{"rows": 10}),
		"summarize": succeed(map[string]any{"summary": "all good"}),
	}}

	engine := cogito.NewEngine(executor, cogito.WithRequestID("req-run"))
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	gt.Equal(t, cogito.RunStateCompleted, output.RunState)
	gt.B(t, output.OverallSuccess).True()
	gt.B(t, output.RequiresUserFeedback).False()
	gt.Equal(t, []string{"fetch", "summarize"}, executor.executed)
	gt.Equal(t, 2, len(output.Steps))
	gt.Equal(t, "req-run", output.RequestID)
	gt.Equal(t, map[string]any{"rows": 10}, output.PartialResults["fetch"].(map[string]any))
}

func TestEngineIsSingleUse(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)
	engine := cogito.NewEngine(&scriptedExecutor{})

	_, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	_, err = engine.Run(ctx, plan)
	gt.Error(t, err)
	gt.B(t, errors.Is(err, cogito.ErrPlanAlreadyExecuted)).True()
}

func TestEnginePauseAndResume(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch": fail(goerr.Wrap(cogito.ErrInvalidParameter, "facility ID is missing")),
	}}

	engine := cogito.NewEngine(executor)
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	// A validation failure routes to ask-user and pauses after one step.
	gt.Equal(t, cogito.RunStatePaused, output.RunState)
	gt.B(t, output.RequiresUserFeedback).True()
	gt.B(t, output.PendingQuestion != nil).True()
	gt.Equal(t, "fetch", output.PendingQuestion.StepID)
	gt.Equal(t, 1, len(output.State().ExecutedSteps))

	resumed, err := engine.Resume(ctx, output.State(), "use facility ABC")
	gt.NoError(t, err)

	gt.Equal(t, cogito.RunStateCompleted, resumed.RunState)
	gt.Equal(t, []string{"fetch", "summarize"}, executor.executed)
	gt.Equal(t, "use facility ABC", resumed.QuestionsAsked[0].Answer)

	// The failed step stays failed, so the run is not an overall success.
	gt.B(t, resumed.OverallSuccess).False()
}

func TestEngineLastStepFailurePauses(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch":     succeed(map[string]any{"rows": 10}),
		"summarize": fail(goerr.Wrap(cogito.ErrInvalidParameter, "summary target is missing")),
	}}

	engine := cogito.NewEngine(executor)
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	// A validation failure on the final step still pauses for user input
	// instead of completing because all steps were attempted.
	gt.Equal(t, cogito.RunStatePaused, output.RunState)
	gt.B(t, output.RequiresUserFeedback).True()
	gt.B(t, output.PendingQuestion != nil).True()
	gt.Equal(t, "summarize", output.PendingQuestion.StepID)

	resumed, err := engine.Resume(ctx, output.State(), "summarize only the fetched rows")
	gt.NoError(t, err)
	gt.Equal(t, cogito.RunStateCompleted, resumed.RunState)
	gt.B(t, resumed.OverallSuccess).False()
}

func TestEngineResumeRequiresPausedState(t *testing.T) {
	ctx := context.Background()
	engine := cogito.NewEngine(&scriptedExecutor{})

	_, err := engine.Resume(ctx, nil, "answer")
	gt.Error(t, err)
	gt.B(t, errors.Is(err, cogito.ErrStateNotResumable)).True()
}

func TestEngineDeadlock(t *testing.T) {
	ctx := context.Background()
	plan, err := cogito.NewPlan("cycle", []cogito.PlanStep{
		{ID: "a", Order: 1, Action: "noop", Dependencies: []string{"b"}},
		{ID: "b", Order: 2, Action: "noop", Dependencies: []string{"a"}},
	})
	gt.NoError(t, err)

	executor := &scriptedExecutor{}
	engine := cogito.NewEngine(executor)
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	gt.Equal(t, cogito.RunStateDeadlocked, output.RunState)
	gt.B(t, output.OverallSuccess).False()
	gt.Equal(t, 0, len(executor.executed))
	gt.Equal(t, 2, len(output.BlockedSteps))
	gt.B(t, len(output.Errors) > 0).True()
	gt.S(t, output.CritiqueRecommendation).Contains("rethink")
}

func TestEnginePanicRecovery(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch": func() (*cogito.StepOutcome, error) {
			panic("tool misbehaved")
		},
	}}

	engine := cogito.NewEngine(executor)
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	// The panic becomes a synthetic failed result and the run continues.
	gt.Equal(t, cogito.RunStateCompleted, output.RunState)
	gt.Equal(t, []string{"fetch", "summarize"}, executor.executed)
	gt.B(t, output.OverallSuccess).False()
	gt.Equal(t, cogito.ErrorTypeUnknown, output.Steps[0].ErrorType)
	gt.S(t, output.Steps[0].Error).Contains("panic")
}

func TestEngineSkipsUnknownFailures(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch": fail(errors.New("something odd happened")),
	}}

	engine := cogito.NewEngine(executor)
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	gt.Equal(t, cogito.RunStateCompleted, output.RunState)
	gt.Equal(t, []string{"fetch", "summarize"}, executor.executed)
	gt.B(t, output.OverallSuccess).False()
}

func TestEngineCheckpointEarlyStop(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	executor := &scriptedExecutor{handlers: map[string]func() (*cogito.StepOutcome, error){
		"fetch": succeed(map[string]any{"answer": 42}),
	}}

	stopAfterFirst := checkpointerFunc(func(ctx context.Context, state *cogito.ExecutionState, last cogito.ExecutionResult) (*cogito.CheckpointVerdict, error) {
		return &cogito.CheckpointVerdict{
			ShouldContinue: false,
			Reasoning:      "first step already answered the goal",
		}, nil
	})

	engine := cogito.NewEngine(executor, cogito.WithCheckpointer(stopAfterFirst))
	output, err := engine.Run(ctx, plan)
	gt.NoError(t, err)

	gt.Equal(t, cogito.RunStateCompleted, output.RunState)
	gt.Equal(t, []string{"fetch"}, executor.executed)
}

func TestEngineHooks(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	var started, completed []string
	var finished int

	engine := cogito.NewEngine(&scriptedExecutor{},
		cogito.WithStepStartHook(func(ctx context.Context, step cogito.PlanStep) error {
			started = append(started, step.ID)
			return nil
		}),
		cogito.WithStepCompletedHook(func(ctx context.Context, step cogito.PlanStep, result cogito.ExecutionResult) error {
			completed = append(completed, step.ID)
			return nil
		}),
		cogito.WithRunCompletedHook(func(ctx context.Context, output *cogito.ExecutorAgentOutput) error {
			finished++
			return nil
		}),
	)

	_, err := engine.Run(ctx, plan)
	gt.NoError(t, err)
	gt.Equal(t, []string{"fetch", "summarize"}, started)
	gt.Equal(t, []string{"fetch", "summarize"}, completed)
	gt.Equal(t, 1, finished)
}

func TestEngineHookAbortsRun(t *testing.T) {
	ctx := context.Background()
	plan := twoStepPlan(t)

	engine := cogito.NewEngine(&scriptedExecutor{},
		cogito.WithStepStartHook(func(ctx context.Context, step cogito.PlanStep) error {
			return errors.New("abort")
		}),
	)

	_, err := engine.Run(ctx, plan)
	gt.Error(t, err)
}

// checkpointerFunc adapts a function to the Checkpointer interface.
type checkpointerFunc func(ctx context.Context, state *cogito.ExecutionState, last cogito.ExecutionResult) (*cogito.CheckpointVerdict, error)

func (f checkpointerFunc) Evaluate(ctx context.Context, state *cogito.ExecutionState, last cogito.ExecutionResult) (*cogito.CheckpointVerdict, error) {
	return f(ctx, state, last)
}
