package cogito

import (
	"maps"
	"time"
)

// ExecutionState is a snapshot of one plan run. It is owned exclusively by
// the execution engine for the duration of the run; every transition produces
// a new snapshot (copy-on-write), so a held reference never changes under the
// caller. The transition functions in this file are pure: none of them
// mutates its input, which keeps runs deterministically replayable.
type ExecutionState struct {
	Plan           *Plan             `json:"plan"`
	ExecutedSteps  map[string]bool   `json:"executed_steps"`
	PartialResults map[string]any    `json:"partial_results"`
	Results        []ExecutionResult `json:"execution_results"`
	Errors         []string          `json:"errors"`
	QuestionsAsked []Question        `json:"questions_asked,omitempty"`
	Adaptations    []string          `json:"adaptations,omitempty"`
	PlanUpdates    []string          `json:"plan_updates,omitempty"`
	StartTime      time.Time         `json:"start_time"`
}

// NewExecutionState builds the initial snapshot for a plan run.
func NewExecutionState(plan *Plan) *ExecutionState {
	return &ExecutionState{
		Plan:           plan,
		ExecutedSteps:  map[string]bool{},
		PartialResults: map[string]any{},
		StartTime:      time.Now(),
	}
}

// clone produces a deep-enough copy for copy-on-write transitions. The plan
// itself is immutable and shared; maps and slices are copied.
func (s *ExecutionState) clone() *ExecutionState {
	next := &ExecutionState{
		Plan:           s.Plan,
		ExecutedSteps:  maps.Clone(s.ExecutedSteps),
		PartialResults: maps.Clone(s.PartialResults),
		Results:        append([]ExecutionResult(nil), s.Results...),
		Errors:         append([]string(nil), s.Errors...),
		QuestionsAsked: append([]Question(nil), s.QuestionsAsked...),
		Adaptations:    append([]string(nil), s.Adaptations...),
		PlanUpdates:    append([]string(nil), s.PlanUpdates...),
		StartTime:      s.StartTime,
	}
	return next
}

// ApplyResult folds one execution result into a new snapshot. The attempted
// step joins the executed set whether or not it succeeded; failures also land
// in Errors so GoalAchieved stays false. planUpdate, when non-empty, is the
// executor's audit note about deviating from the plan.
func ApplyResult(state *ExecutionState, result ExecutionResult, planUpdate string) *ExecutionState {
	next := state.clone()

	next.ExecutedSteps[result.StepID] = true
	next.Results = append(next.Results, result)

	if result.Success {
		if result.Result != nil {
			next.PartialResults[result.StepID] = result.Result
		}
	} else {
		next.Errors = append(next.Errors, result.Error)
	}

	if planUpdate != "" {
		next.PlanUpdates = append(next.PlanUpdates, planUpdate)
	}

	return next
}

// WithAdaptation records an adaptation suggestion in a new snapshot.
func (s *ExecutionState) WithAdaptation(adaptation string) *ExecutionState {
	next := s.clone()
	next.Adaptations = append(next.Adaptations, adaptation)
	return next
}

// WithQuestion records an asked question in a new snapshot.
func (s *ExecutionState) WithQuestion(question Question) *ExecutionState {
	next := s.clone()
	next.QuestionsAsked = append(next.QuestionsAsked, question)
	return next
}

// WithAnswer records the user answer for the most recent question in a new
// snapshot, keyed under the question's step ID in PartialResults so dependent
// steps can consume it.
func (s *ExecutionState) WithAnswer(answer string) *ExecutionState {
	next := s.clone()
	if n := len(next.QuestionsAsked); n > 0 {
		q := &next.QuestionsAsked[n-1]
		q.Answer = answer
		next.PartialResults["question:"+q.StepID] = answer
	}
	return next
}

// ReadySteps returns the steps that can execute now: not yet executed and
// with every dependency in the executed set. Order follows the plan's step
// order.
func ReadySteps(plan *Plan, executed map[string]bool) []PlanStep {
	var ready []PlanStep
	for _, step := range plan.Steps() {
		if executed[step.ID] {
			continue
		}
		ok := true
		for _, dep := range step.Dependencies {
			if !executed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		}
	}
	return ready
}

// StepContext assembles the context handed to the step executor: the plan
// goal, the step's expectation, and the partial results of its dependencies.
func StepContext(step PlanStep, state *ExecutionState) map[string]any {
	depResults := make(map[string]any, len(step.Dependencies))
	for _, dep := range step.Dependencies {
		if v, ok := state.PartialResults[dep]; ok {
			depResults[dep] = v
		}
	}

	return map[string]any{
		"goal":               state.Plan.Goal(),
		"step_id":            step.ID,
		"expected_outcome":   step.ExpectedOutcome,
		"dependency_results": depResults,
		"progress":           Progress(state),
	}
}

// RunProgress summarizes how far a run has come.
type RunProgress struct {
	Executed int     `json:"executed"`
	Total    int     `json:"total"`
	Failed   int     `json:"failed"`
	Ratio    float64 `json:"ratio"`
}

// Progress computes the run progress of a snapshot.
func Progress(state *ExecutionState) RunProgress {
	total := len(state.Plan.Steps())
	progress := RunProgress{
		Executed: len(state.ExecutedSteps),
		Total:    total,
	}
	for _, r := range state.Results {
		if !r.Success {
			progress.Failed++
		}
	}
	if total > 0 {
		progress.Ratio = float64(progress.Executed) / float64(total)
	}
	return progress
}

// GoalAchieved reports whether every step executed with zero accumulated
// errors.
func GoalAchieved(state *ExecutionState) bool {
	return len(state.ExecutedSteps) == len(state.Plan.Steps()) && len(state.Errors) == 0
}
