package cogito

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Question is a user-facing prompt produced when execution must pause for
// human input.
type Question struct {
	ID      string `json:"question_id"`
	StepID  string `json:"step_id"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
	Answer  string `json:"answer,omitempty"`
}

// QuestionGenerator produces a follow-up question for a failed step. A nil
// Question with nil error means "nothing useful to ask"; the engine then does
// not pause.
type QuestionGenerator interface {
	GenerateErrorQuestion(ctx context.Context, errMsg string, errorType ErrorType, step PlanStep, state *ExecutionState) (*Question, error)
}

// llmQuestionGenerator asks the model to phrase a question about the failure.
// When the model call fails, it falls back to a deterministic template; a
// question generator failure must never block the pause path.
type llmQuestionGenerator struct {
	llm LLMClient
}

// NewQuestionGenerator creates the default LLM-backed question generator.
// llm may be nil; the generator then always uses the deterministic fallback.
func NewQuestionGenerator(llm LLMClient) QuestionGenerator {
	return &llmQuestionGenerator{llm: llm}
}

func (x *llmQuestionGenerator) GenerateErrorQuestion(ctx context.Context, errMsg string, errorType ErrorType, step PlanStep, state *ExecutionState) (*Question, error) {
	logger := LoggerFromContext(ctx)

	question := &Question{
		ID:      uuid.New().String(),
		StepID:  step.ID,
		Text:    fallbackQuestionText(errMsg, errorType, step),
		Context: fmt.Sprintf("goal: %s", state.Plan.Goal()),
	}

	if x.llm == nil {
		return question, nil
	}

	text, err := x.generateText(ctx, errMsg, errorType, step, state)
	if err != nil {
		logger.Warn("question generation via LLM failed, using fallback",
			"step_id", step.ID,
			"error", err)
		return question, nil
	}
	if text != "" {
		question.Text = text
	}

	return question, nil
}

func (x *llmQuestionGenerator) generateText(ctx context.Context, errMsg string, errorType ErrorType, step PlanStep, state *ExecutionState) (string, error) {
	session, err := x.llm.NewSession(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := questionTmpl.Execute(&buf, questionTemplateData{
		Goal:        state.Plan.Goal(),
		Description: step.Description,
		Error:       errMsg,
		ErrorType:   string(errorType),
	}); err != nil {
		return "", err
	}

	resp, err := session.GenerateContent(ctx, Text(buf.String()))
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

func fallbackQuestionText(errMsg string, errorType ErrorType, step PlanStep) string {
	switch errorType {
	case ErrorTypeValidation:
		return fmt.Sprintf("The step %q was rejected with: %s. Can you correct the input for this step?", step.Description, errMsg)
	case ErrorTypeTimeout:
		return fmt.Sprintf("The step %q timed out. Should it be attempted again or skipped?", step.Description)
	default:
		return fmt.Sprintf("The step %q failed with: %s. How should execution proceed?", step.Description, errMsg)
	}
}
