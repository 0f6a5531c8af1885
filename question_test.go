package cogito_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/gt"
)

func fetchStep(t *testing.T) cogito.PlanStep {
	t.Helper()
	return twoStepPlan(t).Steps()[0]
}

func TestQuestionFallback(t *testing.T) {
	generator := cogito.NewQuestionGenerator(nil)
	state := cogito.NewExecutionState(twoStepPlan(t))

	t.Run("validation error asks for corrected input", func(t *testing.T) {
		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"region must be one of: us, eu", cogito.ErrorTypeValidation, fetchStep(t), state)).NoError(t)

		gt.B(t, question != nil).True()
		gt.Equal(t, "fetch", question.StepID)
		gt.B(t, question.ID != "").True()
		gt.S(t, question.Text).Contains("correct the input")
		gt.S(t, question.Text).Contains("region must be one of")
	})

	t.Run("timeout asks whether to retry or skip", func(t *testing.T) {
		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"deadline exceeded", cogito.ErrorTypeTimeout, fetchStep(t), state)).NoError(t)

		gt.S(t, question.Text).Contains("timed out")
	})

	t.Run("other errors ask how to proceed", func(t *testing.T) {
		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"unexpected payload", cogito.ErrorTypeUnknown, fetchStep(t), state)).NoError(t)

		gt.S(t, question.Text).Contains("How should execution proceed")
	})
}

func TestQuestionWithLLM(t *testing.T) {
	state := cogito.NewExecutionState(twoStepPlan(t))

	t.Run("model phrasing is preferred", func(t *testing.T) {
		client := &replayClient{responses: []string{
			"Which region should the fetch target, us or eu?",
		}}
		generator := cogito.NewQuestionGenerator(client)

		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"region must be one of: us, eu", cogito.ErrorTypeValidation, fetchStep(t), state)).NoError(t)

		gt.Equal(t, "Which region should the fetch target, us or eu?", question.Text)
		gt.S(t, question.Context).Contains(state.Plan.Goal())
	})

	t.Run("model failure degrades to fallback text", func(t *testing.T) {
		client := &replayClient{contentErr: errors.New("rate limited")}
		generator := cogito.NewQuestionGenerator(client)

		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"deadline exceeded", cogito.ErrorTypeTimeout, fetchStep(t), state)).NoError(t)

		gt.S(t, question.Text).Contains("timed out")
	})

	t.Run("empty model answer keeps fallback text", func(t *testing.T) {
		client := &replayClient{responses: []string{""}}
		generator := cogito.NewQuestionGenerator(client)

		question := gt.R1(generator.GenerateErrorQuestion(context.Background(),
			"boom", cogito.ErrorTypeUnknown, fetchStep(t), state)).NoError(t)

		gt.S(t, question.Text).Contains("How should execution proceed")
	})
}
