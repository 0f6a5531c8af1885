package cogito_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/gt"
)

func twoStepPlan(t *testing.T) *cogito.Plan {
	t.Helper()
	plan, err := cogito.NewPlan("inspect facility", []cogito.PlanStep{
		{ID: "fetch", Order: 1, Description: "fetch facility data", Action: "fetch"},
		{ID: "summarize", Order: 2, Description: "summarize findings", Action: "summarize", Dependencies: []string{"fetch"}},
	})
	gt.NoError(t, err)
	return plan
}

func TestNewPlanValidation(t *testing.T) {
	step := cogito.PlanStep{ID: "a", Action: "noop"}

	t.Run("goal is required", func(t *testing.T) {
		_, err := cogito.NewPlan("  ", []cogito.PlanStep{step})
		gt.Error(t, err)
		gt.B(t, errors.Is(err, cogito.ErrInvalidPlan)).True()
	})

	t.Run("steps are required", func(t *testing.T) {
		_, err := cogito.NewPlan("goal", nil)
		gt.Error(t, err)
	})

	t.Run("step IDs must be unique", func(t *testing.T) {
		_, err := cogito.NewPlan("goal", []cogito.PlanStep{step, step})
		gt.Error(t, err)
	})

	t.Run("dependencies must reference known steps", func(t *testing.T) {
		_, err := cogito.NewPlan("goal", []cogito.PlanStep{
			{ID: "a", Action: "noop", Dependencies: []string{"ghost"}},
		})
		gt.Error(t, err)
	})

	t.Run("cycles are allowed at construction", func(t *testing.T) {
		// The engine reports cycles as deadlock at run time.
		_, err := cogito.NewPlan("goal", []cogito.PlanStep{
			{ID: "a", Action: "noop", Dependencies: []string{"b"}},
			{ID: "b", Action: "noop", Dependencies: []string{"a"}},
		})
		gt.NoError(t, err)
	})

	t.Run("pending status is applied by default", func(t *testing.T) {
		plan, err := cogito.NewPlan("goal", []cogito.PlanStep{step})
		gt.NoError(t, err)
		gt.Equal(t, cogito.StepStatusPending, plan.Steps()[0].Status)
	})
}

func TestPlanImmutability(t *testing.T) {
	plan := twoStepPlan(t)

	steps := plan.Steps()
	steps[0].Description = "mutated"
	steps[1].Dependencies[0] = "mutated"

	fresh := plan.Steps()
	gt.Equal(t, "fetch facility data", fresh[0].Description)
	gt.Equal(t, "fetch", fresh[1].Dependencies[0])
}

func TestPlanRefine(t *testing.T) {
	plan := twoStepPlan(t)

	refined, err := plan.Refine([]cogito.PlanStep{
		{ID: "fetch", Order: 1, Action: "fetch"},
	})
	gt.NoError(t, err)
	gt.Equal(t, plan.Goal(), refined.Goal())
	gt.Equal(t, 1, len(refined.Steps()))
	gt.Equal(t, 2, len(plan.Steps()))
}

func TestPlanSerialization(t *testing.T) {
	plan := twoStepPlan(t)

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(plan)
		gt.NoError(t, err)

		var restored cogito.Plan
		gt.NoError(t, json.Unmarshal(data, &restored))
		gt.Equal(t, plan.ID(), restored.ID())
		gt.Equal(t, plan.Goal(), restored.Goal())
		gt.Equal(t, plan.Steps(), restored.Steps())
	})

	t.Run("version mismatch is rejected", func(t *testing.T) {
		var restored cogito.Plan
		err := json.Unmarshal([]byte(`{"version": 99, "goal": "g", "steps": []}`), &restored)
		gt.Error(t, err)
		gt.B(t, errors.Is(err, cogito.ErrInvalidPlanData)).True()
	})
}
