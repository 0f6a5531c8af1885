package cogito_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]struct {
		err      error
		expected cogito.ErrorType
	}{
		"deadline sentinel": {
			err:      context.DeadlineExceeded,
			expected: cogito.ErrorTypeTimeout,
		},
		"invalid parameter sentinel": {
			err:      goerr.Wrap(cogito.ErrInvalidParameter, "bad argument"),
			expected: cogito.ErrorTypeValidation,
		},
		"tool not found sentinel": {
			err:      goerr.Wrap(cogito.ErrToolNotFound, "no such tool"),
			expected: cogito.ErrorTypeTool,
		},
		"timeout by message": {
			err:      errors.New("request timeout after 30s"),
			expected: cogito.ErrorTypeTimeout,
		},
		"validation by message": {
			err:      errors.New("validation failed for field name"),
			expected: cogito.ErrorTypeValidation,
		},
		"parse by message": {
			err:      errors.New("failed to unmarshal response"),
			expected: cogito.ErrorTypeParse,
		},
		"tool by message": {
			err:      errors.New("tool crashed"),
			expected: cogito.ErrorTypeTool,
		},
		"unknown": {
			err:      errors.New("something odd"),
			expected: cogito.ErrorTypeUnknown,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, tc.expected, cogito.ClassifyError(tc.err))
		})
	}

	t.Run("nil error has no type", func(t *testing.T) {
		gt.Equal(t, cogito.ErrorType(""), cogito.ClassifyError(nil))
	})
}

func TestDefaultErrorPolicy(t *testing.T) {
	ctx := context.Background()
	policy := cogito.NewDefaultErrorPolicy()

	cases := map[cogito.ErrorType]cogito.PolicyDecision{
		cogito.ErrorTypeTimeout:    cogito.DecideRetry,
		cogito.ErrorTypeValidation: cogito.DecideAskUser,
		cogito.ErrorTypeTool:       cogito.DecideAdapt,
		cogito.ErrorTypeParse:      cogito.DecideAdapt,
		cogito.ErrorTypeUnknown:    cogito.DecideSkip,
	}

	for errorType, expected := range cases {
		decision := policy.Decide(ctx, cogito.PolicyInput{ErrorType: errorType})
		gt.Equal(t, expected, decision)
	}
}

func TestErrorPolicyFunc(t *testing.T) {
	ctx := context.Background()
	policy := cogito.ErrorPolicyFunc(func(ctx context.Context, input cogito.PolicyInput) cogito.PolicyDecision {
		return cogito.DecideSkip
	})
	gt.Equal(t, cogito.DecideSkip, policy.Decide(ctx, cogito.PolicyInput{ErrorType: cogito.ErrorTypeTimeout}))
}
