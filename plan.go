package cogito

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Plan is an ordered, dependency-annotated set of steps meant to achieve a
// goal. A Plan is immutable once created; refinement produces a new Plan
// rather than mutating in place.
type Plan struct {
	id                  string
	goal                string
	steps               []PlanStep
	confidence          float64
	estimatedComplexity float64
}

// PlanStep is a single unit of work in a plan. Dependencies reference other
// step IDs and must form a DAG; the execution engine detects cycles at run
// time and reports deadlock instead of assuming acyclicity.
type PlanStep struct {
	ID              string         `json:"step_id"`
	Order           int            `json:"step_order"`
	Description     string         `json:"step_description"`
	Action          string         `json:"step_action"`
	Parameters      map[string]any `json:"step_parameters,omitempty"`
	ExpectedOutcome string         `json:"step_expected_outcome,omitempty"`
	Dependencies    []string       `json:"step_dependencies,omitempty"`
	Status          StepStatus     `json:"step_status"`
}

// StepStatus represents the status of a plan step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusExecuting StepStatus = "executing"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// PlanOption configures plan creation.
type PlanOption func(*Plan)

// WithPlanConfidence sets the upstream planner's confidence in the plan.
func WithPlanConfidence(confidence float64) PlanOption {
	return func(p *Plan) {
		p.confidence = confidence
	}
}

// WithPlanComplexity sets the estimated complexity carried over from the
// complexity detector.
func WithPlanComplexity(complexity float64) PlanOption {
	return func(p *Plan) {
		p.estimatedComplexity = complexity
	}
}

// NewPlan creates a plan from upstream-generated steps. It validates the
// structure: non-empty goal, at least one step, unique step IDs, and
// dependencies referencing known steps. It does not check for cycles; the
// engine reports those as deadlock so that malformed plans surface in the
// run output rather than at construction.
func NewPlan(goal string, steps []PlanStep, options ...PlanOption) (*Plan, error) {
	eb := goerr.NewBuilder(goerr.V("goal", goal))

	if strings.TrimSpace(goal) == "" {
		return nil, eb.Wrap(ErrInvalidPlan, "goal is required")
	}
	if len(steps) == 0 {
		return nil, eb.Wrap(ErrInvalidPlan, "plan has no steps")
	}

	ids := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return nil, eb.Wrap(ErrInvalidPlan, "step ID is required", goerr.V("description", step.Description))
		}
		if _, exists := ids[step.ID]; exists {
			return nil, eb.Wrap(ErrInvalidPlan, "duplicated step ID", goerr.V("step_id", step.ID))
		}
		ids[step.ID] = struct{}{}
	}
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if _, ok := ids[dep]; !ok {
				return nil, eb.Wrap(ErrInvalidPlan, "dependency references unknown step",
					goerr.V("step_id", step.ID), goerr.V("dependency", dep))
			}
		}
	}

	copied := make([]PlanStep, len(steps))
	copy(copied, steps)
	for i := range copied {
		if copied[i].Status == "" {
			copied[i].Status = StepStatusPending
		}
	}

	plan := &Plan{
		id:    uuid.New().String(),
		goal:  goal,
		steps: copied,
	}

	for _, opt := range options {
		opt(plan)
	}

	return plan, nil
}

// ID returns the plan identifier.
func (p *Plan) ID() string { return p.id }

// Goal returns the goal the plan is meant to achieve.
func (p *Plan) Goal() string { return p.goal }

// Confidence returns the upstream planner's confidence in the plan.
func (p *Plan) Confidence() float64 { return p.confidence }

// EstimatedComplexity returns the complexity estimate the plan carries.
func (p *Plan) EstimatedComplexity() float64 { return p.estimatedComplexity }

// Steps returns a copy of the plan steps. Mutating the returned slice does
// not affect the plan.
func (p *Plan) Steps() []PlanStep {
	steps := make([]PlanStep, len(p.steps))
	copy(steps, p.steps)
	for i := range steps {
		steps[i].Dependencies = append([]string(nil), p.steps[i].Dependencies...)
	}
	return steps
}

// Step returns the step with the given ID.
func (p *Plan) Step(id string) (PlanStep, bool) {
	for _, step := range p.steps {
		if step.ID == id {
			return step, true
		}
	}
	return PlanStep{}, false
}

// Refine produces a new plan with the same goal and identity metadata but
// replaced steps. The original plan is left untouched.
func (p *Plan) Refine(steps []PlanStep) (*Plan, error) {
	refined, err := NewPlan(p.goal, steps,
		WithPlanConfidence(p.confidence),
		WithPlanComplexity(p.estimatedComplexity))
	if err != nil {
		return nil, err
	}
	return refined, nil
}

// Serialization

const PlanVersion = 1

// planData represents serializable plan data.
type planData struct {
	Version             int        `json:"version"`
	ID                  string     `json:"id"`
	Goal                string     `json:"goal"`
	Steps               []PlanStep `json:"steps"`
	Confidence          float64    `json:"confidence"`
	EstimatedComplexity float64    `json:"estimated_complexity"`
}

// MarshalJSON implements json.Marshaler for Plan.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planData{
		Version:             PlanVersion,
		ID:                  p.id,
		Goal:                p.goal,
		Steps:               p.steps,
		Confidence:          p.confidence,
		EstimatedComplexity: p.estimatedComplexity,
	})
}

// UnmarshalJSON implements json.Unmarshaler for Plan with version validation.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var pd planData
	if err := json.Unmarshal(data, &pd); err != nil {
		return goerr.Wrap(err, "failed to unmarshal plan data")
	}
	if pd.Version != PlanVersion {
		return goerr.Wrap(ErrInvalidPlanData, "plan version mismatch",
			goerr.V("expected", PlanVersion), goerr.V("actual", pd.Version))
	}

	p.id = pd.ID
	p.goal = pd.Goal
	p.steps = pd.Steps
	p.confidence = pd.Confidence
	p.estimatedComplexity = pd.EstimatedComplexity

	return nil
}
