package cogito

import (
	"context"
	"errors"
	"strings"
)

// ErrorType is the fixed vocabulary of step failure classifications. The
// step executor maps failures to one of these; the engine treats them
// uniformly through the error policy.
type ErrorType string

const (
	ErrorTypeTool       ErrorType = "tool-error"
	ErrorTypeValidation ErrorType = "validation-error"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeParse      ErrorType = "parse-error"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// ClassifyError maps an error to the ErrorType vocabulary. Sentinel checks
// come first; the string heuristics are the documented fallback for errors
// from external adapters that carry no sentinel.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	if errors.Is(err, ErrInvalidParameter) || errors.Is(err, ErrInvalidTool) {
		return ErrorTypeValidation
	}
	if errors.Is(err, ErrToolNotFound) {
		return ErrorTypeTool
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return ErrorTypeValidation
	case strings.Contains(msg, "parse"), strings.Contains(msg, "unmarshal"), strings.Contains(msg, "decode"):
		return ErrorTypeParse
	case strings.Contains(msg, "tool"):
		return ErrorTypeTool
	default:
		return ErrorTypeUnknown
	}
}

// PolicyDecision is what the error policy tells the engine to do with a
// failed step.
type PolicyDecision string

const (
	// DecideRetry means the failure looked transient. The step executor has
	// already spent its own retry budget, so a failure reaching the engine
	// with this decision is terminal for the attempt.
	DecideRetry PolicyDecision = "retry"

	// DecideAskUser means the failure needs human input. The engine generates
	// a question and pauses the run.
	DecideAskUser PolicyDecision = "ask-user"

	// DecideAdapt means the plan should change. The engine records the
	// suggested adaptation for audit and continues; it does not replan
	// automatically.
	DecideAdapt PolicyDecision = "adapt"

	// DecideSkip means the step is not worth blocking on. The engine advances
	// past it.
	DecideSkip PolicyDecision = "skip"
)

// PolicyInput carries everything the policy may consult for a decision.
type PolicyInput struct {
	Error     string
	ErrorType ErrorType
	Step      PlanStep
	State     *ExecutionState
	Result    ExecutionResult
}

// ErrorPolicy decides how the engine reacts to a failed step.
type ErrorPolicy interface {
	Decide(ctx context.Context, input PolicyInput) PolicyDecision
}

// defaultErrorPolicy is a decision table over the error type vocabulary.
//
//	timeout           -> retry (transient; executor retries already exhausted)
//	validation-error  -> ask-user (bad parameters need human correction)
//	tool-error        -> adapt (a different approach may avoid the tool)
//	parse-error       -> adapt
//	unknown           -> skip
type defaultErrorPolicy struct{}

// NewDefaultErrorPolicy returns the built-in policy decision table.
func NewDefaultErrorPolicy() ErrorPolicy {
	return &defaultErrorPolicy{}
}

func (x *defaultErrorPolicy) Decide(ctx context.Context, input PolicyInput) PolicyDecision {
	switch input.ErrorType {
	case ErrorTypeTimeout:
		return DecideRetry
	case ErrorTypeValidation:
		return DecideAskUser
	case ErrorTypeTool, ErrorTypeParse:
		return DecideAdapt
	default:
		return DecideSkip
	}
}

// ErrorPolicyFunc adapts a function to the ErrorPolicy interface.
type ErrorPolicyFunc func(ctx context.Context, input PolicyInput) PolicyDecision

func (f ErrorPolicyFunc) Decide(ctx context.Context, input PolicyInput) PolicyDecision {
	return f(ctx, input)
}
