package cogito

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidTool is returned when a tool specification is malformed.
	ErrInvalidTool = goerr.New("invalid tool specification")

	// ErrInvalidParameter is returned when a tool parameter definition is malformed.
	ErrInvalidParameter = goerr.New("invalid parameter")

	// ErrInvalidPlan is returned when a plan fails structural validation
	// (duplicate step IDs, dependencies on unknown steps, empty goal).
	ErrInvalidPlan = goerr.New("invalid plan")

	// ErrPlanAlreadyExecuted is returned when Run is called twice for the same plan run.
	ErrPlanAlreadyExecuted = goerr.New("plan is already executed")

	// ErrDeadlock indicates that no step is ready but unexecuted steps remain.
	// This covers dependency cycles and dependencies on unknown steps. It is
	// reported in the run output, never raised as a panic.
	ErrDeadlock = goerr.New("plan deadlocked, no step can proceed")

	// ErrToolNotFound is returned by the step executor when a step's action
	// does not resolve to a registered tool.
	ErrToolNotFound = goerr.New("tool not found for step action")

	// ErrLLMCallFailure marks a failed model call. Callers must degrade to a
	// deterministic fallback; this error is never the sole cause of a failed run.
	ErrLLMCallFailure = goerr.New("LLM call failed")

	// ErrInvalidPlanData is returned when deserialized plan data has an
	// unexpected version.
	ErrInvalidPlanData = goerr.New("invalid plan data")

	// ErrStateNotResumable is returned when Resume is called with a state that
	// has no pending question.
	ErrStateNotResumable = goerr.New("execution state has no pending question")
)
