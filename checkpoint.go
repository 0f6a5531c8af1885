package cogito

import (
	"bytes"
	"context"
	"encoding/json"
)

// CheckpointVerdict is the outcome of a meta-reasoning checkpoint, run after
// every step to decide whether the run should continue, adapt, replan, or
// stop.
type CheckpointVerdict struct {
	ShouldContinue bool   `json:"should_continue"`
	ShouldAdapt    bool   `json:"should_adapt"`
	ShouldReplan   bool   `json:"should_replan"`
	GoalAchieved   bool   `json:"goal_achieved"`
	Adaptation     string `json:"adaptation,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// Checkpointer validates overall progress after each step.
type Checkpointer interface {
	Evaluate(ctx context.Context, state *ExecutionState, last ExecutionResult) (*CheckpointVerdict, error)
}

// llmCheckpointer asks the model to judge progress, validating the structured
// response against a JSON schema before trusting it. Any model or validation
// failure degrades to the deterministic verdict; a checkpoint can slow a run
// down but never kill it.
type llmCheckpointer struct {
	llm LLMClient
}

// NewCheckpointer creates the default checkpointer. llm may be nil, in which
// case every evaluation uses the deterministic heuristics.
func NewCheckpointer(llm LLMClient) Checkpointer {
	return &llmCheckpointer{llm: llm}
}

func (x *llmCheckpointer) Evaluate(ctx context.Context, state *ExecutionState, last ExecutionResult) (*CheckpointVerdict, error) {
	logger := LoggerFromContext(ctx)

	if x.llm == nil {
		return deterministicVerdict(state), nil
	}

	verdict, err := x.evaluateWithLLM(ctx, state, last)
	if err != nil {
		logger.Warn("checkpoint via LLM failed, using deterministic verdict", "error", err)
		return deterministicVerdict(state), nil
	}

	// The model cannot be the sole authority on goal achievement: if steps
	// remain or errors accumulated, an optimistic verdict is overridden.
	if verdict.GoalAchieved && !GoalAchieved(state) {
		verdict.GoalAchieved = false
	}

	return verdict, nil
}

func (x *llmCheckpointer) evaluateWithLLM(ctx context.Context, state *ExecutionState, last ExecutionResult) (*CheckpointVerdict, error) {
	session, err := x.llm.NewSession(ctx, WithSessionContentType(ContentTypeJSON))
	if err != nil {
		return nil, err
	}

	progress := Progress(state)
	lastError := ""
	if !last.Success {
		lastError = last.Error
	}

	var buf bytes.Buffer
	if err := checkpointTmpl.Execute(&buf, checkpointTemplateData{
		Goal:          state.Plan.Goal(),
		Executed:      progress.Executed,
		Total:         progress.Total,
		Failed:        progress.Failed,
		LastStep:      last.StepID,
		LastSucceeded: last.Success,
		LastError:     lastError,
	}); err != nil {
		return nil, err
	}

	resp, err := session.GenerateContent(ctx, Text(buf.String()))
	if err != nil {
		return nil, err
	}

	raw := resp.Text()
	if err := validateCheckpointVerdict([]byte(raw)); err != nil {
		return nil, err
	}

	var verdict CheckpointVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, err
	}

	return &verdict, nil
}

// deterministicVerdict is the fallback heuristic: keep going while unexecuted
// steps remain, flag adaptation when over half the attempted steps failed.
func deterministicVerdict(state *ExecutionState) *CheckpointVerdict {
	progress := Progress(state)

	verdict := &CheckpointVerdict{
		ShouldContinue: progress.Executed < progress.Total,
		GoalAchieved:   GoalAchieved(state),
		Reasoning:      "deterministic checkpoint",
	}

	if progress.Executed > 0 && float64(progress.Failed)/float64(progress.Executed) > 0.5 {
		verdict.ShouldAdapt = true
		verdict.Adaptation = "more than half of attempted steps failed, consider a different approach"
	}

	return verdict
}
